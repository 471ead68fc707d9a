package tnom

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nibiru-oracle/tnomd/tnom/utils"
)

// MetricsEndpoint serves the latest EpochRecord as Prometheus text
// format. It owns a dedicated registry rather than the global default
// one, so multiple instances (as in tests) never collide on metric
// registration.
type MetricsEndpoint struct {
	store    *EpochStore
	log      zerolog.Logger
	interval time.Duration
	cache    *utils.EpochRecordCache[*EpochRecord]

	registry *prometheus.Registry

	slashEpoch           prometheus.Gauge
	missCounterEvents    prometheus.Gauge
	unsignedOracleEvents prometheus.Gauge
	priceFeedBalance     prometheus.Gauge
	consecutiveMisses    prometheus.Gauge
	apiConsMiss          prometheus.Gauge

	missCounterP1Executed      prometheus.Counter
	missCounterP2Executed      prometheus.Counter
	missCounterP3Executed      prometheus.Counter
	smallBalanceAlertExecuted  prometheus.Counter
	verySmallBalanceExecuted   prometheus.Counter
	lastSeenMissCounterLatches [3]int
	lastSeenBalanceLatches     [2]int

	server *http.Server
}

const metricsNamespace = "nibiru_oracle"

// NewMetricsEndpoint builds a MetricsEndpoint that re-reads store every
// interval and registers its series on a fresh, private registry.
func NewMetricsEndpoint(store *EpochStore, interval time.Duration, log zerolog.Logger) *MetricsEndpoint {
	m := &MetricsEndpoint{
		store:    store,
		log:      log.With().Str("component", "metrics").Logger(),
		interval: interval,
		cache:    utils.NewEpochRecordCache[*EpochRecord](),
		registry: prometheus.NewRegistry(),
	}

	gauge := func(name string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: metricsNamespace, Name: name})
		m.registry.MustRegister(g)
		return g
	}
	counter := func(name string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name})
		m.registry.MustRegister(c)
		return c
	}

	m.slashEpoch = gauge("slash_epoch")
	m.missCounterEvents = gauge("miss_counter_events")
	m.unsignedOracleEvents = gauge("unsigned_oracle_events")
	m.priceFeedBalance = gauge("price_feed_balance")
	m.consecutiveMisses = gauge("consecutive_misses")
	m.apiConsMiss = gauge("api_cons_miss")

	m.missCounterP1Executed = counter("miss_counter_events_p1_executed")
	m.missCounterP2Executed = counter("miss_counter_events_p2_executed")
	m.missCounterP3Executed = counter("miss_counter_events_p3_executed")
	m.smallBalanceAlertExecuted = counter("small_balance_alert_executed")
	m.verySmallBalanceExecuted = counter("very_small_balance_alert_executed")

	return m
}

// refresh re-reads the latest epoch row and updates every series.
// Counters only ever move forward: the delta between the latch's
// previous 0/1 value and its current one is added, so refreshing an
// unchanged, already-latched row again does not double count. The last
// seen values start at 0 in each process, so after a restart an
// already-latched row is counted once more.
func (m *MetricsEndpoint) refresh() {
	epoch, ok, err := m.store.LastEpoch()
	if err != nil {
		m.log.Error().Err(err).Msg("read last epoch for metrics refresh")
		return
	}
	if !ok {
		return
	}

	r, err := m.store.Get(epoch)
	if err != nil {
		m.log.Error().Err(err).Msg("read epoch record for metrics refresh")
		return
	}

	m.slashEpoch.Set(float64(r.SlashEpoch))
	m.missCounterEvents.Set(float64(r.MissCounterEvents))
	m.unsignedOracleEvents.Set(float64(r.UnsignedOracleEvents))
	m.priceFeedBalance.Set(float64(r.PriceFeedAddrBalance))
	m.consecutiveMisses.Set(float64(r.ConsecutiveMisses))
	m.apiConsMiss.Set(float64(r.APIConsMiss))

	m.bumpLatch(&m.lastSeenMissCounterLatches[0], r.MissCounterP1Executed, m.missCounterP1Executed)
	m.bumpLatch(&m.lastSeenMissCounterLatches[1], r.MissCounterP2Executed, m.missCounterP2Executed)
	m.bumpLatch(&m.lastSeenMissCounterLatches[2], r.MissCounterP3Executed, m.missCounterP3Executed)
	m.bumpLatch(&m.lastSeenBalanceLatches[0], r.SmallBalanceAlertExecuted, m.smallBalanceAlertExecuted)
	m.bumpLatch(&m.lastSeenBalanceLatches[1], r.VerySmallBalanceAlertExecuted, m.verySmallBalanceExecuted)

	m.cache.Store(r)
}

func (m *MetricsEndpoint) bumpLatch(lastSeen *int, current int, c prometheus.Counter) {
	if current > *lastSeen {
		c.Add(float64(current - *lastSeen))
	}
	*lastSeen = current
}

// Run starts the interval refresher and the HTTP server, and blocks
// until ctx is cancelled, at which point it attempts a graceful
// shutdown bounded to ~10 seconds.
func (m *MetricsEndpoint) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: addr, Handler: mux}

	go m.refreshLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		m.log.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics endpoint shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (m *MetricsEndpoint) refreshLoop(ctx context.Context) {
	m.refresh()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh()
		}
	}
}

// ServeOnce refreshes the cache if stale and serves a single /metrics
// request, used by tests that don't want to run the full HTTP server.
func (m *MetricsEndpoint) ServeOnce(w http.ResponseWriter, req *http.Request) {
	if m.cache.Stale(m.interval) {
		m.refresh()
	}
	promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, req)
}
