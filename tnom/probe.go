package tnom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// EndpointProbe checks a fixed list of REST endpoints and classifies
// each as healthy or lagging, based on the tallest height any endpoint
// reported.
type EndpointProbe struct {
	client *http.Client
}

// NewEndpointProbe builds an EndpointProbe with the standard per-request timeout.
func NewEndpointProbe() *EndpointProbe {
	return &EndpointProbe{client: &http.Client{Timeout: requestTimeoutSeconds * time.Second}}
}

type latestBlockResponse struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// Probe queries every endpoint concurrently for its latest block height
// and returns the subset within MaxBlockHeightDiff of the tallest
// height observed, in the same order as baseURLs. Endpoints that fail
// to respond are dropped entirely. If every endpoint fails, the
// returned slice is empty.
func (p *EndpointProbe) Probe(ctx context.Context, baseURLs []string) []EndpointStatus {
	type result struct {
		idx    int
		status EndpointStatus
		ok     bool
	}

	results := make(chan result, len(baseURLs))
	for i, base := range baseURLs {
		go func(idx int, base string) {
			height, err := p.fetchHeight(ctx, base)
			if err != nil {
				results <- result{idx: idx, ok: false}
				return
			}
			results <- result{idx: idx, ok: true, status: EndpointStatus{BaseURL: base, BlockHeight: height}}
		}(i, base)
	}

	statuses := make([]EndpointStatus, len(baseURLs))
	ok := make([]bool, len(baseURLs))
	for range baseURLs {
		r := <-results
		statuses[r.idx] = r.status
		ok[r.idx] = r.ok
	}

	var maxHeight int64 = -1
	for i, present := range ok {
		if present && statuses[i].BlockHeight > maxHeight {
			maxHeight = statuses[i].BlockHeight
		}
	}

	healthy := make([]EndpointStatus, 0, len(baseURLs))
	for i, present := range ok {
		if !present {
			continue
		}
		s := statuses[i]
		s.Healthy = maxHeight-s.BlockHeight <= MaxBlockHeightDiff
		if s.Healthy {
			healthy = append(healthy, s)
		}
	}
	return healthy
}

func (p *EndpointProbe) fetchHeight(ctx context.Context, base string) (int64, error) {
	url := base + "/cosmos/base/tendermint/v1beta1/blocks/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	var body latestBlockResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode response from %s: %w", url, err)
	}

	height, err := strconv.ParseInt(body.Block.Header.Height, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse height from %s: %w", url, err)
	}
	return height, nil
}
