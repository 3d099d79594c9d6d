package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"
)

const (
	pingTimeout       = 5 * time.Second
	objectInfoTimeout = 10 * time.Second
	uploadTimeout     = 30 * time.Second
	promptTimeout     = 30 * time.Second
	historyTimeout    = 30 * time.Second
	viewTimeout       = 60 * time.Second
)

// Client is the subset of the ComfyUI HTTP API the worker needs.
type Client interface {
	Ping(ctx context.Context) error
	ObjectInfo(ctx context.Context) (ObjectInfo, error)
	UploadImage(ctx context.Context, name string, data []byte) error
	QueuePrompt(ctx context.Context, req PromptRequest) (*PromptResponse, error)
	History(ctx context.Context, promptID string) (History, error)
	View(ctx context.Context, ref ImageRef) ([]byte, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client for baseURL (e.g. http://127.0.0.1:8188).
// Each call applies its own timeout through the request context.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Ping succeeds only on HTTP 200 from GET /.
func (c *HTTPClient) Ping(ctx context.Context) error {
	body, status, err := c.do(ctx, pingTimeout, http.MethodGet, "/", nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &StatusError{Op: "ping", StatusCode: status, Body: body}
	}
	return nil
}

func (c *HTTPClient) ObjectInfo(ctx context.Context) (ObjectInfo, error) {
	var info ObjectInfo
	if err := c.getJSON(ctx, objectInfoTimeout, "object_info", "/object_info", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// UploadImage posts data as a multipart "image" part with overwrite=true.
func (c *HTTPClient) UploadImage(ctx context.Context, name string, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.WriteField("overwrite", "true"); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	body, status, err := c.do(ctx, uploadTimeout, http.MethodPost, "/upload/image", &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	if !ok(status) {
		return &StatusError{Op: "upload", StatusCode: status, Body: body}
	}
	return nil
}

// QueuePrompt posts the workflow. A non-2xx answer is a *StatusError
// carrying the raw body so callers can interpret validation failures.
func (c *HTTPClient) QueuePrompt(ctx context.Context, req PromptRequest) (*PromptResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, promptTimeout, http.MethodPost, "/prompt", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &StatusError{Op: "prompt", StatusCode: status, Body: body}
	}

	var out PromptResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("prompt: decode response: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) History(ctx context.Context, promptID string) (History, error) {
	var h History
	if err := c.getJSON(ctx, historyTimeout, "history", "/history/"+url.PathEscape(promptID), &h); err != nil {
		return nil, err
	}
	return h, nil
}

// View downloads the raw bytes of an artifact.
func (c *HTTPClient) View(ctx context.Context, ref ImageRef) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", ref.Type)

	body, status, err := c.do(ctx, viewTimeout, http.MethodGet, "/view?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &StatusError{Op: "view", StatusCode: status, Body: body}
	}
	return body, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, timeout time.Duration, op, path string, out any) error {
	body, status, err := c.do(ctx, timeout, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if !ok(status) {
		return &StatusError{Op: op, StatusCode: status, Body: body}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, timeout time.Duration, method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, err
	}
	return data, res.StatusCode, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}
