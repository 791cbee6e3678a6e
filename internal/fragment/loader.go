package fragment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/microstore/internal/observability"
)

// Loader produces the markup of one fragment view.
type Loader interface {
	Load(ctx context.Context, ref Ref, props Props) (template.HTML, error)
}

var (
	ErrUnknownFragment   = errors.New("unknown fragment")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrViewNotFound      = errors.New("view not found")
	ErrBadResponse       = errors.New("bad response")
)

// maxBodyBytes caps how much of a remote response is read.
const maxBodyBytes = 1 << 20

// StatusError is a 4xx answer from a remote JSON API, decoded from its error
// envelope when present.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote returned HTTP %d", e.StatusCode)
}

// HTTPLoader loads fragment views from remote fragment servers. It makes a
// single attempt per load and never retries.
type HTTPLoader struct {
	remotes     map[string]string
	timeout     time.Duration
	callTimeout time.Duration
	client      *http.Client
}

// NewHTTPLoader returns a loader for the given fragment name to base URL map.
func NewHTTPLoader(remotes map[string]string, timeout time.Duration) (*HTTPLoader, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("fragment timeout must be positive, got %s", timeout)
	}
	bases := make(map[string]string, len(remotes))
	for name, raw := range remotes {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("remote %q: invalid URL %q", name, raw)
		}
		bases[name] = strings.TrimRight(raw, "/")
	}
	return &HTTPLoader{
		remotes:     bases,
		timeout:     timeout,
		callTimeout: timeout,
		client:      &http.Client{},
	}, nil
}

// WithCallTimeout sets the timeout for Call, which defaults to the load
// timeout. Non-positive values are ignored.
func (l *HTTPLoader) WithCallTimeout(d time.Duration) *HTTPLoader {
	if d > 0 {
		l.callTimeout = d
	}
	return l
}

// Base returns the base URL configured for fragment.
func (l *HTTPLoader) Base(fragment string) (string, bool) {
	b, ok := l.remotes[fragment]
	return b, ok
}

// Load posts props to {base}/fragments/{view} and returns the HTML body.
func (l *HTTPLoader) Load(ctx context.Context, ref Ref, props Props) (template.HTML, error) {
	start := time.Now()
	body, err := l.load(ctx, ref, props)
	status := "success"
	if err != nil {
		status = string(CategorizeError(err))
	}
	observability.FragmentLoadsTotal.WithLabelValues(ref.Fragment, ref.View, status).Inc()
	observability.FragmentLoadDuration.WithLabelValues(ref.Fragment, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return template.HTML(body), nil
}

func (l *HTTPLoader) load(ctx context.Context, ref Ref, props Props) ([]byte, error) {
	base, ok := l.remotes[ref.Fragment]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFragment, ref.Fragment)
	}
	resp, err := l.do(ctx, http.MethodPost, base+"/fragments/"+url.PathEscape(ref.View), props, "text/html", l.timeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, ref)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrRemoteUnavailable, ref, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrBadResponse, ref, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		return nil, fmt.Errorf("%w: %s: content type %q", ErrBadResponse, ref, ct)
	}

	return readBody(resp.Body)
}

// Call sends in as JSON to a remote API path and decodes the JSON answer into
// out. in and out may be nil. A 4xx answer is returned as *StatusError.
func (l *HTTPLoader) Call(ctx context.Context, fragment, method, path string, in, out any) error {
	start := time.Now()
	err := l.call(ctx, fragment, method, path, in, out)
	status := "success"
	if err != nil {
		status = string(CategorizeError(err))
	}
	observability.FragmentLoadsTotal.WithLabelValues(fragment, "api", status).Inc()
	observability.FragmentLoadDuration.WithLabelValues(fragment, status).Observe(time.Since(start).Seconds())
	return err
}

func (l *HTTPLoader) call(ctx context.Context, fragment, method, path string, in, out any) error {
	base, ok := l.remotes[fragment]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFragment, fragment)
	}
	resp, err := l.do(ctx, method, base+path, in, "application/json", l.callTimeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: HTTP %d", ErrRemoteUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return decodeStatusError(resp.StatusCode, body)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s %s: HTTP %d", ErrBadResponse, method, path, resp.StatusCode)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %w", ErrBadResponse, err)
	}
	return nil
}

// readBody reads at most maxBodyBytes. A longer body is rejected rather than
// truncated.
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRemoteUnavailable, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrBadResponse, maxBodyBytes)
	}
	return body, nil
}

// do performs one request under timeout.
func (l *HTTPLoader) do(ctx context.Context, method, target string, in any, accept string, timeout time.Duration) (*http.Response, error) {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(reqCtx, method, target, reqBody)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: request timeout: %w", ErrRemoteUnavailable, err)
		}
		return nil, fmt.Errorf("%w: http request failed: %w", ErrRemoteUnavailable, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func decodeStatusError(status int, body []byte) error {
	se := &StatusError{StatusCode: status}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		se.Code = envelope.Error.Code
		se.Message = envelope.Error.Message
	}
	return se
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}
