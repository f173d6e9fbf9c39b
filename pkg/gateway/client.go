// Package gateway provides the mutation/query transport to the dashboard API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/AnthusAI/plexus-dashboard/internal/resilience"
)

// Client defines the single entry point every remote operation goes through.
// Execute returns a transport-level error on connectivity or auth failure;
// application-level errors ride inside the Result and must be checked via
// Result.Err by any caller that is not fire-and-forget.
type Client interface {
	Execute(ctx context.Context, op Operation) (*Result, error)
}

// ClientOption configures the HTTP gateway client.
type ClientOption func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit on gateway calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryConfig overrides the default transient-failure retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) ClientOption {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// httpClient implements Client over HTTP/JSON.
type httpClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewClient creates a gateway client for the given endpoint and API key.
func NewClient(endpoint, apiKey string, opts ...ClientOption) Client {
	c := &httpClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type requestEnvelope struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (c *httpClient) Execute(ctx context.Context, op Operation) (*Result, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "gateway: rate limit")
	}

	payload, err := json.Marshal(requestEnvelope{
		OperationName: op.Name,
		Query:         op.Document,
		Variables:     op.Variables,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gateway: marshal request")
	}

	requestID := uuid.NewString()
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("gateway", op.Name)

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, payload, requestID)
	})
	if err != nil {
		return nil, eris.Wrap(err, "gateway: "+op.Name)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "gateway: unmarshal "+op.Name)
	}
	return &result, nil
}

// post issues one HTTP attempt. Transient statuses come back wrapped as
// resilience.TransientError so the retry policy can tell them apart.
func (c *httpClient) post(ctx context.Context, payload []byte, requestID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "gateway: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "gateway: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gateway: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("gateway: status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}
