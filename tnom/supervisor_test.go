package tnom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fullNodeServer(t *testing.T, height int64, signed bool, missCounter, slashWindow, balance int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/cosmos/base/tendermint/v1beta1/blocks/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"block":{"header":{"height":"%d","time":"2024-01-01T00:00:00Z"}}}`, height)
	})
	mux.HandleFunc("/nibiru/oracle/v1beta1/validators/v/miss", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"miss_counter":"%d"}`, missCounter)
	})
	mux.HandleFunc("/nibiru/oracle/v1beta1/validators/v/aggregate_prevote", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"aggregate_prevote":{"hash":"deadbeef"}}`)
	})
	mux.HandleFunc("/nibiru/oracle/v1beta1/pairs/vote_targets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vote_targets":["unibi:uusd"]}`)
	})
	mux.HandleFunc("/nibiru/oracle/v1beta1/valdiators/v/aggregate_vote", func(w http.ResponseWriter, r *http.Request) {
		if signed {
			fmt.Fprint(w, `{"aggregate_vote":{"exchange_rate_tuples":[{"pair":"unibi:uusd"}]}}`)
		} else {
			fmt.Fprint(w, `{"aggregate_vote":{"exchange_rate_tuples":[]}}`)
		}
	})
	mux.HandleFunc("/nibiru/oracle/v1beta1/params", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"params":{"slash_window":"%d"}}`, slashWindow)
	})
	mux.HandleFunc("/cosmos/bank/v1beta1/spendable_balances/w", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"balances":[{"denom":"unibi","amount":"%d"}]}`, balance)
	})

	return httptest.NewServer(mux)
}

func TestSupervisorTickFreshRunSignedTick(t *testing.T) {
	srv := fullNodeServer(t, 7200, true, 0, 3600, 5_000_000)
	defer srv.Close()

	store := openTestStore(t)
	cfg := &Config{
		ValidatorAddress:   "v",
		PriceFeedAddr:      "w",
		APIs:               []string{srv.URL},
		MonitoringInterval: 60,
	}
	alertCfg := &AlertConfig{}

	s := NewSupervisor(cfg, alertCfg, store, NewLogger())

	if err := s.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	epoch, ok, err := store.LastEpoch()
	if err != nil || !ok {
		t.Fatalf("LastEpoch: ok=%v err=%v", ok, err)
	}
	if epoch != 2 {
		t.Fatalf("epoch = %d, want 2", epoch)
	}

	r, err := store.Get(epoch)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.UnsignedOracleEvents != 0 {
		t.Errorf("UnsignedOracleEvents = %d, want 0 for a signed tick", r.UnsignedOracleEvents)
	}
	if r.ConsecutiveMisses != 0 {
		t.Errorf("ConsecutiveMisses = %d, want 0 for a signed tick", r.ConsecutiveMisses)
	}
}

func TestSupervisorTickAllEndpointsDownTriggersAPIDownPath(t *testing.T) {
	store := openTestStore(t)
	if err := store.Upsert(&EpochRecord{SlashEpoch: 0}); err != nil {
		t.Fatalf("seed epoch: %v", err)
	}

	deadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	deadServer.Close()

	cfg := &Config{
		ValidatorAddress:   "v",
		PriceFeedAddr:      "w",
		APIs:               []string{deadServer.URL},
		MonitoringInterval: 60,
	}
	alertCfg := &AlertConfig{}

	s := NewSupervisor(cfg, alertCfg, store, NewLogger())

	for i := 0; i < 3; i++ {
		if err := s.tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	r, err := store.Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.APIConsMiss != 3 {
		t.Errorf("APIConsMiss = %d, want 3 after three all-down ticks", r.APIConsMiss)
	}
}
