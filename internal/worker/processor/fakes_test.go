package processor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"comfyworker/internal/ports"
	"comfyworker/internal/worker/renderer"
)

// fakeEngine is an in-memory renderer.Client.
type fakeEngine struct {
	mu sync.Mutex

	pingErrs    []error
	pingDefault error
	pings       int

	objectInfo    renderer.ObjectInfo
	objectInfoErr error

	uploadErrs map[string]error
	uploads    []string
	uploaded   map[string][]byte

	queueResp  *renderer.PromptResponse
	queueErr   error
	lastPrompt renderer.PromptRequest

	history    renderer.History
	historyErr error

	views map[string][]byte
}

func (f *fakeEngine) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if len(f.pingErrs) > 0 {
		err := f.pingErrs[0]
		f.pingErrs = f.pingErrs[1:]
		return err
	}
	return f.pingDefault
}

func (f *fakeEngine) ObjectInfo(ctx context.Context) (renderer.ObjectInfo, error) {
	return f.objectInfo, f.objectInfoErr
}

func (f *fakeEngine) UploadImage(ctx context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.uploadErrs[name]; err != nil {
		return err
	}
	if f.uploaded == nil {
		f.uploaded = make(map[string][]byte)
	}
	f.uploads = append(f.uploads, name)
	f.uploaded[name] = data
	return nil
}

func (f *fakeEngine) QueuePrompt(ctx context.Context, req renderer.PromptRequest) (*renderer.PromptResponse, error) {
	f.lastPrompt = req
	if f.queueErr != nil {
		return nil, f.queueErr
	}
	if f.queueResp == nil {
		return &renderer.PromptResponse{PromptID: "p-1"}, nil
	}
	return f.queueResp, nil
}

func (f *fakeEngine) History(ctx context.Context, promptID string) (renderer.History, error) {
	return f.history, f.historyErr
}

func (f *fakeEngine) View(ctx context.Context, ref renderer.ImageRef) ([]byte, error) {
	data, ok := f.views[ref.Filename]
	if !ok {
		return nil, fmt.Errorf("view %s: not found", ref.Filename)
	}
	return data, nil
}

// step is one scripted result of fakeStream.Next.
type step struct {
	frame renderer.Frame
	err   error
}

func text(s string) step {
	return step{frame: renderer.Frame{Data: []byte(s)}}
}

func binary() step {
	return step{frame: renderer.Frame{Binary: true, Data: []byte{0, 1, 2}}}
}

func timeout() step {
	return step{err: renderer.ErrReadTimeout}
}

func closed() step {
	return step{err: fmt.Errorf("%w: EOF", renderer.ErrStreamClosed)}
}

func doneEvent(promptID string) step {
	return text(fmt.Sprintf(`{"type":"executing","data":{"node":null,"prompt_id":%q}}`, promptID))
}

func errorEvent(promptID, nodeType, msg string) step {
	return text(fmt.Sprintf(`{"type":"execution_error","data":{"prompt_id":%q,"node_id":"3","node_type":%q,"exception_message":%q}}`, promptID, nodeType, msg))
}

// fakeStream replays scripted steps; once exhausted it reports closed.
type fakeStream struct {
	steps  []step
	closed bool
}

func (s *fakeStream) Next(ctx context.Context, timeout time.Duration) (renderer.Frame, error) {
	if err := ctx.Err(); err != nil {
		return renderer.Frame{}, err
	}
	if len(s.steps) == 0 {
		return renderer.Frame{}, renderer.ErrStreamClosed
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.frame, st.err
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// droppingStream cancels the caller's context and then reports a closed stream.
type droppingStream struct {
	cancel context.CancelFunc
}

func (s *droppingStream) Next(ctx context.Context, timeout time.Duration) (renderer.Frame, error) {
	s.cancel()
	return renderer.Frame{}, fmt.Errorf("%w: EOF", renderer.ErrStreamClosed)
}

func (s *droppingStream) Close() error { return nil }

type dialOutcome struct {
	stream *fakeStream
	err    error
}

// fakeDialer hands out scripted outcomes in order.
type fakeDialer struct {
	outcomes  []dialOutcome
	clientIDs []string
}

func (d *fakeDialer) Dial(ctx context.Context, clientID string) (renderer.EventSource, error) {
	d.clientIDs = append(d.clientIDs, clientID)
	if len(d.outcomes) == 0 {
		return nil, fmt.Errorf("connection refused")
	}
	o := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	if o.err != nil {
		return nil, o.err
	}
	return o.stream, nil
}

func (d *fakeDialer) dials() int {
	return len(d.clientIDs)
}

// fakeStorage records PutObject calls.
type fakeStorage struct {
	err  error
	keys []string
	data map[string][]byte
}

func (s *fakeStorage) Provider() string { return "fake" }

func (s *fakeStorage) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if s.err != nil {
		return ports.PutObjectOutput{}, s.err
	}
	b, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.keys = append(s.keys, in.ObjectKey)
	s.data[in.ObjectKey] = b
	return ports.PutObjectOutput{
		ObjectKey: in.ObjectKey,
		Size:      int64(len(b)),
		URL:       "https://bucket.example/" + in.ObjectKey,
	}, nil
}
