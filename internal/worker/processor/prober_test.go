package processor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"comfyworker/internal/pkg/logger"
)

func TestProberWaitReady(t *testing.T) {
	refused := fmt.Errorf("connection refused")

	tests := []struct {
		name      string
		pingErrs  []error
		fallback  error
		attempts  int
		want      bool
		wantPings int
	}{
		{"ready immediately", nil, nil, 5, true, 1},
		{"ready after failures", []error{refused, refused, refused}, nil, 5, true, 4},
		{"never ready", nil, refused, 4, false, 4},
		{"no budget", nil, nil, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{pingErrs: tt.pingErrs, pingDefault: tt.fallback}
			p := NewProber(engine, tt.attempts, time.Millisecond, logger.Nop())

			if got := p.WaitReady(context.Background()); got != tt.want {
				t.Errorf("WaitReady() = %v, want %v", got, tt.want)
			}
			if engine.pings != tt.wantPings {
				t.Errorf("pings = %d, want %d", engine.pings, tt.wantPings)
			}
		})
	}
}

func TestProberStopsOnCancel(t *testing.T) {
	engine := &fakeEngine{pingDefault: fmt.Errorf("refused")}
	p := NewProber(engine, 1000, time.Hour, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if p.WaitReady(ctx) {
		t.Fatal("expected not ready after cancel")
	}
	if engine.pings != 1 {
		t.Errorf("pings = %d, want 1", engine.pings)
	}
}
