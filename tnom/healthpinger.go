package tnom

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HealthPinger issues a best-effort liveness ping to an external
// dead-man-switch URL on a fixed interval.
type HealthPinger struct {
	client   *http.Client
	url      string
	interval time.Duration
	log      zerolog.Logger

	// maxIterations caps the number of pings for deterministic tests;
	// zero means run until ctx is cancelled.
	maxIterations int
}

// NewHealthPinger builds a HealthPinger. interval must be > 0.
func NewHealthPinger(url string, interval time.Duration, log zerolog.Logger) *HealthPinger {
	return &HealthPinger{
		client:   &http.Client{Timeout: healthPingTimeoutSeconds * time.Second},
		url:      url,
		interval: interval,
		log:      log.With().Str("component", "healthpinger").Logger(),
	}
}

// Run pings url every interval until ctx is cancelled (or, if set,
// maxIterations pings have been issued).
func (p *HealthPinger) Run(ctx context.Context) {
	n := 0
	for {
		p.ping(ctx)
		n++
		if p.maxIterations > 0 && n >= p.maxIterations {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *HealthPinger) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.log.Warn().Err(err).Msg("build health check request")
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn().Err(err).Msg("health check request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.log.Info().Int("status", resp.StatusCode).Msg("health check ping succeeded")
		return
	}
	p.log.Warn().Int("status", resp.StatusCode).Msg("health check ping returned non-2xx")
}
