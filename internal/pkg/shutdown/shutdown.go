// Package shutdown coordinates graceful shutdown of the worker and API processes.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"comfyworker/internal/pkg/logger"
)

// Manager runs registered cleanup handlers once a shutdown is requested.
type Manager struct {
	log      *logger.Logger
	timeout  time.Duration
	handlers []Handler
	mu       sync.Mutex
	once     sync.Once
	done     chan struct{}
}

// Handler is a named cleanup step.
type Handler struct {
	Name    string
	Cleanup func(ctx context.Context) error
}

// NewManager creates a new shutdown manager.
func NewManager(log *logger.Logger, timeout time.Duration) *Manager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		log:      log,
		timeout:  timeout,
		handlers: make([]Handler, 0),
		done:     make(chan struct{}),
	}
}

// Register adds a cleanup handler.
func (m *Manager) Register(name string, cleanup func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, Handler{Name: name, Cleanup: cleanup})
	m.log.Debug("registered shutdown handler", "name", name)
}

// RegisterSimple adds a cleanup handler without context.
func (m *Manager) RegisterSimple(name string, cleanup func()) {
	m.Register(name, func(ctx context.Context) error {
		cleanup()
		return nil
	})
}

// Wait blocks until SIGINT, SIGTERM or SIGHUP arrives, then shuts down.
func (m *Manager) Wait() {
	m.WaitWithContext(context.Background())
}

// WaitWithContext is Wait that also returns early when ctx ends.
func (m *Manager) WaitWithContext(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.log.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		m.log.Info("context canceled, initiating shutdown")
	}

	m.Shutdown()
}

// Shutdown runs the handlers one by one, last registered first, sharing
// a single deadline. Later calls are no-ops.
func (m *Manager) Shutdown() {
	m.once.Do(m.shutdown)
}

func (m *Manager) shutdown() {
	defer close(m.done)

	m.mu.Lock()
	handlers := make([]Handler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.log.Info("starting graceful shutdown", "handlers", len(handlers), "timeout", m.timeout.String())

	for i := len(handlers) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			m.log.Warn("shutdown timeout exceeded, skipping remaining handlers", "remaining", i+1)
			return
		}

		h := handlers[i]
		start := time.Now()
		if err := m.run(ctx, h); err != nil {
			m.log.Error("shutdown handler failed",
				"name", h.Name,
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			continue
		}
		m.log.Debug("shutdown handler completed",
			"name", h.Name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	m.log.Info("graceful shutdown completed")
}

// run stops waiting on a handler that ignores its context once the deadline passes.
func (m *Manager) run(ctx context.Context, h Handler) error {
	errc := make(chan error, 1)
	go func() { errc <- h.Cleanup(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Context returns a context that is canceled once shutdown completes.
func (m *Manager) Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-m.done
		cancel()
	}()
	return ctx
}
