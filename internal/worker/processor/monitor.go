package processor

import (
	"context"
	"fmt"
	"time"

	"comfyworker/internal/config"
	"comfyworker/internal/metrics"
	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/renderer"
)

const defaultReadTimeout = 10 * time.Second

// State of an execution monitor.
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateReconnecting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExecutionResult is the terminal outcome observed on the event stream.
type ExecutionResult struct {
	State  State
	Errors []string
}

// Monitor follows one prompt on the engine's event stream. It owns the
// stream for the client id it was created with; Close must run on every
// exit path.
type Monitor struct {
	dialer   renderer.StreamDialer
	engine   renderer.Client
	clientID string

	reconnectAttempts int
	reconnectDelay    time.Duration
	readTimeout       time.Duration

	stream renderer.EventSource
	state  State
	log    *logger.Logger
}

func NewMonitor(dialer renderer.StreamDialer, engine renderer.Client, clientID string, cfg config.EngineConfig, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Monitor{
		dialer:            dialer,
		engine:            engine,
		clientID:          clientID,
		reconnectAttempts: cfg.ReconnectAttempts,
		reconnectDelay:    cfg.ReconnectDelay,
		readTimeout:       defaultReadTimeout,
		state:             StateConnecting,
		log:               log.WithComponent("monitor").WithClientID(clientID),
	}
}

// State returns the current monitor state.
func (m *Monitor) State() State {
	return m.state
}

// Connect opens the event stream scoped to the monitor's client id.
func (m *Monitor) Connect(ctx context.Context) error {
	stream, err := m.dialer.Dial(ctx, m.clientID)
	if err != nil {
		m.state = StateFailed
		return errors.WrapWithCode(err, errors.CodeConnection, "monitor.connect",
			fmt.Sprintf("WebSocket error: %v", err))
	}
	m.stream = stream
	m.state = StateStreaming
	m.log.Debug("event stream connected")
	return nil
}

// Wait consumes events until promptID finishes or fails. Events for other
// prompts, binary frames and undecodable frames are ignored.
func (m *Monitor) Wait(ctx context.Context, promptID string) (*ExecutionResult, error) {
	log := m.log.WithPromptID(promptID)
	log.Info("waiting for execution")

	var result *ExecutionResult
	for m.state == StateStreaming {
		frame, err := m.stream.Next(ctx, m.readTimeout)
		switch {
		case err == nil:
		case errors.Is(err, renderer.ErrReadTimeout):
			continue
		case errors.Is(err, renderer.ErrStreamClosed):
			if rerr := m.reconnect(ctx, err); rerr != nil {
				m.state = StateFailed
				return nil, rerr
			}
			continue
		default:
			m.state = StateFailed
			return nil, cancelled("monitor.wait", err)
		}

		ev, ok := renderer.DecodeEvent(frame)
		if !ok || ev.PromptID != promptID {
			continue
		}

		switch ev.Type {
		case renderer.EventExecuting:
			if ev.Node == nil {
				m.state = StateDone
				result = &ExecutionResult{State: StateDone}
				log.Info("execution finished")
			}
		case renderer.EventExecutionError:
			m.state = StateFailed
			msg := fmt.Sprintf("Execution error: Node: %s, Message: %s", ev.NodeType, ev.ExceptionMessage)
			result = &ExecutionResult{State: StateFailed, Errors: []string{msg}}
			log.Warn("execution failed", "node_id", ev.NodeID, "node_type", ev.NodeType)
		}
	}

	if result == nil {
		return nil, errors.New(errors.CodeProtocol, "Workflow monitoring exited unexpectedly").
			WithOp("monitor.wait").
			WithField("state", m.state.String())
	}
	return result, nil
}

// reconnect replaces a dropped stream. The engine must still answer HTTP
// before every attempt; if it does not, there is nothing to reconnect to.
func (m *Monitor) reconnect(ctx context.Context, cause error) error {
	m.state = StateReconnecting
	m.log.Warn("event stream closed, reconnecting", "error", cause.Error())
	m.closeStream()

	last := cause
	for attempt := 1; attempt <= m.reconnectAttempts; attempt++ {
		if ctx.Err() != nil {
			return cancelled("monitor.reconnect", ctx.Err())
		}
		if err := m.engine.Ping(ctx); err != nil {
			metrics.ObserveReconnect("unreachable")
			return errors.WrapWithCode(err, errors.CodeConnection, "monitor.reconnect",
				"WebSocket error: ComfyUI HTTP unreachable")
		}

		m.log.Info("reconnect attempt", "attempt", attempt, "max", m.reconnectAttempts)
		stream, err := m.dialer.Dial(ctx, m.clientID)
		if err == nil {
			metrics.ObserveReconnect("success")
			m.stream = stream
			m.state = StateStreaming
			m.log.Info("event stream reconnected", "attempt", attempt)
			return nil
		}

		metrics.ObserveReconnect("failed")
		last = err
		if attempt == m.reconnectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return cancelled("monitor.reconnect", ctx.Err())
		case <-time.After(m.reconnectDelay):
		}
	}

	return errors.WrapWithCode(last, errors.CodeConnection, "monitor.reconnect",
		fmt.Sprintf("WebSocket error: Failed to reconnect: %v", last))
}

func cancelled(op string, err error) error {
	return errors.WrapWithCode(err, errors.CodeInternal, op,
		fmt.Sprintf("Workflow monitoring cancelled: %v", err))
}

func (m *Monitor) closeStream() {
	if m.stream == nil {
		return
	}
	if err := m.stream.Close(); err != nil {
		m.log.Debug("closing event stream", "error", err.Error())
	}
	m.stream = nil
}

// Close releases the stream if one is open. Safe to call more than once.
func (m *Monitor) Close() {
	m.closeStream()
}
