package tnom

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Supervisor owns the process lifetime: it starts the monitor loop
// and, when enabled in AlertConfig, the health pinger and the metrics
// endpoint as independent goroutines, and tears them down
// cooperatively on SIGINT/SIGTERM.
type Supervisor struct {
	cfg      *Config
	alertCfg *AlertConfig
	store    *EpochStore
	log      zerolog.Logger

	probe    *EndpointProbe
	collect  *Collector
	notifier *Notifier
	engine   *AlertEngine
}

// NewSupervisor wires every component together. It does not start any
// worker; call Run for that. Fatal startup failures (cannot open the
// store, cannot load config, no alert channel enabled) should happen
// before this is ever called.
func NewSupervisor(cfg *Config, alertCfg *AlertConfig, store *EpochStore, log zerolog.Logger) *Supervisor {
	notifier := NewNotifier(alertCfg, log)
	engine := NewAlertEngine(notifier)

	if epoch, ok, err := store.LastEpoch(); err == nil && ok {
		if r, err := store.Get(epoch); err == nil {
			engine.SeedFromRecord(r)
		}
	}

	return &Supervisor{
		cfg:      cfg,
		alertCfg: alertCfg,
		store:    store,
		log:      log,
		probe:    NewEndpointProbe(),
		collect:  NewCollector(),
		notifier: notifier,
		engine:   engine,
	}
}

// Run blocks until SIGINT/SIGTERM, then waits up to 10 seconds for all
// workers to finish before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runMonitorLoop(ctx)
	}()

	if s.alertCfg.HealthCheckEnabled {
		pinger := NewHealthPinger(s.alertCfg.HealthCheckURL, s.alertCfg.HealthCheckIntervalDuration(), s.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			pinger.Run(ctx)
		}()
	}

	if s.alertCfg.PrometheusClientEnabled {
		metrics := NewMetricsEndpoint(s.store, time.Duration(s.cfg.MonitoringInterval)*time.Second, s.log)
		addr := fmt.Sprintf("%s:%d", s.alertCfg.PrometheusHost, s.alertCfg.PrometheusPort)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Run(ctx, addr); err != nil {
				s.log.Error().Err(err).Msg("metrics endpoint exited with error")
			}
		}()
	}

	<-ctx.Done()
	s.log.Info().Msg("shutdown signal received, waiting for workers")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("all workers exited cleanly")
	case <-time.After(10 * time.Second):
		s.log.Warn().Msg("timed out waiting for workers to exit")
	}
	return nil
}

func (s *Supervisor) runMonitorLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.MonitoringInterval) * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.tick(ctx); err != nil {
			s.log.Error().Err(err).Msg("monitor tick failed, backing off")
			if !sleepOrDone(ctx, tickBackoffSeconds*time.Second) {
				return
			}
			continue
		}

		if !sleepOrDone(ctx, interval) {
			return
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) error {
	healthy := s.probe.Probe(ctx, s.cfg.APIs)

	if len(healthy) == 0 {
		if err := s.engine.EvaluateAPIStatus(s.store, true); err != nil {
			return fmt.Errorf("evaluate API-down status: %w", err)
		}
		return nil
	}
	if err := s.engine.EvaluateAPIStatus(s.store, false); err != nil {
		return fmt.Errorf("evaluate API-recovery status: %w", err)
	}

	endpoint := pickEndpoint(healthy)
	tick, err := s.collect.Collect(ctx, endpoint, s.cfg.ValidatorAddress, s.cfg.PriceFeedAddr)
	if err != nil {
		return err
	}

	record, err := ReduceState(s.store, tick)
	if err != nil {
		return fmt.Errorf("reduce state: %w", err)
	}

	if err = s.engine.Evaluate(s.store, record, tick); err != nil {
		return fmt.Errorf("evaluate alerts: %w", err)
	}
	return nil
}

// pickEndpoint wraps PickEndpoint so supervisor.go has a single,
// test-friendly seam for endpoint selection.
func pickEndpoint(healthy []EndpointStatus) EndpointStatus {
	if len(healthy) == 1 {
		return healthy[0]
	}
	return PickEndpoint(healthy)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func init() {
	// The original implementation relied on the language runtime's
	// default seeding; math/rand's global source is seeded explicitly
	// here so endpoint selection doesn't replay the same sequence
	// across process restarts.
	rand.Seed(time.Now().UnixNano())
}
