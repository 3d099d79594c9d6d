package processor

import (
	"context"
	"time"

	"comfyworker/internal/metrics"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/renderer"
)

// Prober waits for the engine HTTP API to answer 200 on GET /.
type Prober struct {
	client   renderer.Client
	attempts int
	interval time.Duration
	log      *logger.Logger
}

func NewProber(client renderer.Client, attempts int, interval time.Duration, log *logger.Logger) *Prober {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Prober{
		client:   client,
		attempts: attempts,
		interval: interval,
		log:      log.WithComponent("prober"),
	}
}

// WaitReady polls until the engine answers or the attempt budget runs out.
// Failed attempts are swallowed; only the final outcome is reported.
func (p *Prober) WaitReady(ctx context.Context) bool {
	p.log.Debug("checking engine availability", "attempts", p.attempts)

	for i := 1; i <= p.attempts; i++ {
		err := p.client.Ping(ctx)
		if err == nil {
			p.log.Debug("engine reachable", "attempt", i)
			metrics.ObserveProbe(i)
			return true
		}

		if i == p.attempts {
			break
		}

		select {
		case <-ctx.Done():
			metrics.ObserveProbe(i)
			return false
		case <-time.After(p.interval):
		}
	}

	p.log.Warn("engine not reachable", "attempts", p.attempts)
	metrics.ObserveProbe(p.attempts)
	return false
}
