package tnom

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// Collector runs one full collection pass against a single,
// already-healthy endpoint: the oracle miss counter, the current
// aggregate prevote (fetched but its result discarded and not logged;
// never used to derive SignedThisTick, since a prevote is not proof a
// matching vote landed, and a failed prevote query is ignored), the set of
// denoms the validator is expected to vote on, the aggregate vote
// itself, the slash window from chain params, and the watched wallet's
// spendable balance.
type Collector struct {
	client *http.Client
}

// NewCollector builds a Collector with the standard per-request timeout.
func NewCollector() *Collector {
	return &Collector{client: &http.Client{Timeout: requestTimeoutSeconds * time.Second}}
}

// CollectError wraps the failure of a single REST call made during a
// collection pass, identifying which one failed.
type CollectError struct {
	Query string
	Err   error
}

func (e *CollectError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Query, e.Err)
}

func (e *CollectError) Unwrap() error { return e.Err }

// PickEndpoint selects uniformly at random among the healthy endpoints
// returned by EndpointProbe.Probe, matching the original implementation's
// per-tick load spreading across redundant nodes. Caller must ensure
// healthy is non-empty.
func PickEndpoint(healthy []EndpointStatus) EndpointStatus {
	return healthy[rand.Intn(len(healthy))]
}

// Collect runs one full tick against endpoint for the given validator
// and price-feed wallet addresses, returning CollectTick or the first
// CollectError encountered.
func (c *Collector) Collect(ctx context.Context, endpoint EndpointStatus, validatorAddr, priceFeedAddr string) (*CollectTick, error) {
	missCounter, err := c.fetchMissCounter(ctx, endpoint.BaseURL, validatorAddr)
	if err != nil {
		return nil, &CollectError{Query: "miss_counter", Err: err}
	}

	// aggregate_prevote is fetched and its result discarded; it is not
	// logged. A prevote commits to a future vote and is not itself
	// evidence of signing.
	_, _ = c.fetchAggregatePrevote(ctx, endpoint.BaseURL, validatorAddr)

	voteTargets, err := c.fetchVoteTargets(ctx, endpoint.BaseURL)
	if err != nil {
		return nil, &CollectError{Query: "vote_targets", Err: err}
	}

	votedDenoms, err := c.fetchAggregateVote(ctx, endpoint.BaseURL, validatorAddr)
	if err != nil {
		return nil, &CollectError{Query: "aggregate_vote", Err: err}
	}

	slashWindow, err := c.fetchSlashWindow(ctx, endpoint.BaseURL)
	if err != nil {
		return nil, &CollectError{Query: "params", Err: err}
	}

	balance, err := c.fetchSpendableBalance(ctx, endpoint.BaseURL, priceFeedAddr)
	if err != nil {
		return nil, &CollectError{Query: "spendable_balances", Err: err}
	}

	return &CollectTick{
		Endpoint:       endpoint.BaseURL,
		MissCounter:    missCounter,
		SignedThisTick: votedAllTargets(voteTargets, votedDenoms),
		CurrentEpoch:   Epoch(endpoint.BlockHeight, slashWindow),
		WalletBalance:  balance,
	}, nil
}

func votedAllTargets(targets, voted []string) bool {
	if len(targets) == 0 {
		return false
	}
	votedSet := make(map[string]bool, len(voted))
	for _, d := range voted {
		votedSet[d] = true
	}
	for _, t := range targets {
		if !votedSet[t] {
			return false
		}
	}
	return true
}

type missCounterResponse struct {
	MissCounter string `json:"miss_counter"`
}

func (c *Collector) fetchMissCounter(ctx context.Context, base, validatorAddr string) (int64, error) {
	url := fmt.Sprintf("%s/nibiru/oracle/v1beta1/validators/%s/miss", base, validatorAddr)
	var body missCounterResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return 0, err
	}
	return strconv.ParseInt(body.MissCounter, 10, 64)
}

type aggregatePrevoteResponse struct {
	AggregatePrevote struct {
		Hash string `json:"hash"`
	} `json:"aggregate_prevote"`
}

func (c *Collector) fetchAggregatePrevote(ctx context.Context, base, validatorAddr string) (string, error) {
	url := fmt.Sprintf("%s/nibiru/oracle/v1beta1/validators/%s/aggregate_prevote", base, validatorAddr)
	var body aggregatePrevoteResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return "", err
	}
	return body.AggregatePrevote.Hash, nil
}

type voteTargetsResponse struct {
	VoteTargets []string `json:"vote_targets"`
}

func (c *Collector) fetchVoteTargets(ctx context.Context, base string) ([]string, error) {
	url := base + "/nibiru/oracle/v1beta1/pairs/vote_targets"
	var body voteTargetsResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	return body.VoteTargets, nil
}

type aggregateVoteResponse struct {
	AggregateVote struct {
		ExchangeRateTuples []struct {
			Pair string `json:"pair"`
		} `json:"exchange_rate_tuples"`
	} `json:"aggregate_vote"`
}

// fetchAggregateVote hits the validators/{addr}/aggregate_vote
// endpoint. The path segment is "valdiators", not "validators" — this
// typo ships in the deployed oracle module and is preserved here
// verbatim; correcting it would 404 against a real node.
func (c *Collector) fetchAggregateVote(ctx context.Context, base, validatorAddr string) ([]string, error) {
	url := fmt.Sprintf("%s/nibiru/oracle/v1beta1/valdiators/%s/aggregate_vote", base, validatorAddr)
	var body aggregateVoteResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	pairs := make([]string, 0, len(body.AggregateVote.ExchangeRateTuples))
	for _, t := range body.AggregateVote.ExchangeRateTuples {
		pairs = append(pairs, t.Pair)
	}
	return pairs, nil
}

type paramsResponse struct {
	Params struct {
		SlashWindow string `json:"slash_window"`
	} `json:"params"`
}

func (c *Collector) fetchSlashWindow(ctx context.Context, base string) (int64, error) {
	url := base + "/nibiru/oracle/v1beta1/params"
	var body paramsResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return 0, err
	}
	return strconv.ParseInt(body.Params.SlashWindow, 10, 64)
}

type spendableBalancesResponse struct {
	Balances []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

func (c *Collector) fetchSpendableBalance(ctx context.Context, base, addr string) (int64, error) {
	url := fmt.Sprintf("%s/cosmos/bank/v1beta1/spendable_balances/%s", base, addr)
	var body spendableBalancesResponse
	if err := c.getJSON(ctx, url, &body); err != nil {
		return 0, err
	}
	for _, b := range body.Balances {
		if b.Denom == unibiDenom {
			return strconv.ParseInt(b.Amount, 10, 64)
		}
	}
	return 0, nil
}

func (c *Collector) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
