package crosssale

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 512

// Transport issues authenticated requests against the cross-sale endpoint.
// Implementations return the raw response body, or an error wrapping
// ErrTransport for network failures and non-2xx statuses.
type Transport interface {
	Get(ctx context.Context, path, rawQuery string) ([]byte, error)
	Post(ctx context.Context, path, contentType string, body []byte) ([]byte, error)
}

// HTTPTransport is the net/http Transport. Every request carries the bearer
// token it was built with.
type HTTPTransport struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport rooted at baseURL (for example
// https://host/v1/). A zero timeout leaves requests bounded only by ctx.
func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient replaces the underlying client, mainly for tests.
func (t *HTTPTransport) WithHTTPClient(c *http.Client) *HTTPTransport {
	t.httpClient = c
	return t
}

func (t *HTTPTransport) Get(ctx context.Context, path, rawQuery string) ([]byte, error) {
	url := t.baseURL + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}

	return t.do(req)
}

func (t *HTTPTransport) Post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	url := t.baseURL + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", contentType)

	return t.do(req)
}

func (t *HTTPTransport) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, &StatusError{
			Method:     req.Method,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       snippet,
		})
	}

	return body, nil
}
