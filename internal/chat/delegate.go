package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultDelegateTimeout bounds a single delegate call.
const DefaultDelegateTimeout = 5 * time.Second

// maxDelegateBody caps how much of a delegate answer is read.
const maxDelegateBody = 8 << 20

// HTTPDelegate forwards queries to an NL-to-SQL service: POST {base}/query
// with {"query": text}. Any 2xx response with a JSON body is an answer.
type HTTPDelegate struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPDelegate returns a delegate for the service at baseURL.
// A non-positive timeout selects DefaultDelegateTimeout.
func NewHTTPDelegate(baseURL string, timeout time.Duration) *HTTPDelegate {
	if timeout <= 0 {
		timeout = DefaultDelegateTimeout
	}
	return &HTTPDelegate{
		endpoint: strings.TrimRight(baseURL, "/") + "/query",
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint is the URL queries are posted to.
func (d *HTTPDelegate) Endpoint() string { return d.endpoint }

func (d *HTTPDelegate) Query(ctx context.Context, text string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"query": text})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrDelegateUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelegateUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelegateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrDelegateUnavailable, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDelegateBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrDelegateUnavailable, err)
	}
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: response is not JSON", ErrDelegateUnavailable)
	}
	return json.RawMessage(raw), nil
}
