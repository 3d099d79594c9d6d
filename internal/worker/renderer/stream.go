package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"comfyworker/internal/pkg/logger"
)

var (
	// ErrReadTimeout means no frame arrived within the requested window.
	// The stream stays usable.
	ErrReadTimeout = errors.New("event stream read timeout")
	// ErrStreamClosed means the connection is gone and must be redialed.
	ErrStreamClosed = errors.New("event stream closed")
)

const handshakeTimeout = 10 * time.Second

// EventSource yields frames one at a time.
type EventSource interface {
	Next(ctx context.Context, timeout time.Duration) (Frame, error)
	Close() error
}

// StreamDialer opens an EventSource scoped to a client identity.
type StreamDialer interface {
	Dial(ctx context.Context, clientID string) (EventSource, error)
}

// Dialer opens websocket event streams against the engine.
type Dialer struct {
	urlFor func(clientID string) string
	ws     *websocket.Dialer
	trace  *logger.Logger
}

// NewDialer builds a dialer; urlFor maps a client id to the ws:// URL.
// A non-nil trace logger receives every raw frame.
func NewDialer(urlFor func(clientID string) string, trace *logger.Logger) *Dialer {
	return &Dialer{
		urlFor: urlFor,
		ws:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		trace:  trace,
	}
}

func (d *Dialer) Dial(ctx context.Context, clientID string) (EventSource, error) {
	target := d.urlFor(clientID)
	conn, resp, err := d.ws.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return newStream(conn, d.trace), nil
}

// Stream pumps frames from a websocket connection on a background
// goroutine so a read timeout never leaves the connection in a failed
// state.
type Stream struct {
	conn   *websocket.Conn
	frames chan Frame
	done   chan struct{}
	quit   chan struct{}
	err    error
	trace  *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func newStream(conn *websocket.Conn, trace *logger.Logger) *Stream {
	s := &Stream{
		conn:   conn,
		frames: make(chan Frame, 64),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
		trace:  trace,
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.done)
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.err = err
			return
		}

		f := Frame{Binary: mt == websocket.BinaryMessage, Data: data}
		if s.trace != nil {
			if f.Binary {
				s.trace.Info("ws frame", "binary", true, "size", len(data))
			} else {
				s.trace.Info("ws frame", "text", string(data))
			}
		}

		select {
		case s.frames <- f:
		case <-s.quit:
			return
		}
	}
}

// Next blocks until a frame arrives, the timeout elapses (ErrReadTimeout),
// the connection drops (ErrStreamClosed) or ctx ends.
func (s *Stream) Next(ctx context.Context, timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		// frames buffered before the drop are still delivered
		select {
		case f := <-s.frames:
			return f, nil
		default:
		}
		return Frame{}, fmt.Errorf("%w: %v", ErrStreamClosed, s.err)
	case <-timer.C:
		return Frame{}, ErrReadTimeout
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Close releases the connection. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
