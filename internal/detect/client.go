package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/versecue/speech-gateway/internal/observability"
	"github.com/versecue/speech-gateway/internal/resilience"
)

// ClientConfig holds tunables for the detection service client.
type ClientConfig struct {
	URL     string
	Timeout time.Duration

	CircuitBreakerMaxFailures  int
	CircuitBreakerResetTimeout time.Duration
	RetryMaxAttempts           int
	RetryInitialBackoff        time.Duration
}

// Client calls the detection service over HTTP. Calls are protected by
// a circuit breaker and retried on transient network failures.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewClient creates a detection service client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: resilience.NewCircuitBreaker(
			"detection",
			cfg.CircuitBreakerMaxFailures,
			cfg.CircuitBreakerResetTimeout,
		),
		logger: logger.With().Str("component", "detect").Logger(),
	}
}

// Detect implements Service.
func (c *Client) Detect(ctx context.Context, req Request) (*Response, error) {
	retryConfig := &resilience.RetryConfig{
		MaxAttempts:       c.config.RetryMaxAttempts,
		InitialBackoff:    c.config.RetryInitialBackoff,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}

	var resp *Response
	start := time.Now()
	err := c.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func() error {
			var callErr error
			resp, callErr = c.post(ctx, req)
			return callErr
		}, retryConfig, resilience.IsRetryableNetworkError)
	})
	elapsed := time.Since(start)

	if err != nil {
		observability.RecordDetectionCall(false, elapsed.Seconds())
		observability.RecordError("detection_call", "detect")
		return nil, err
	}
	observability.RecordDetectionCall(true, elapsed.Seconds())
	return resp, nil
}

func (c *Client) post(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal detection request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build detection request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		// Read a little of the body for the log line; the service
		// returns plain-text errors.
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 256))
		c.logger.Warn().
			Int("status", httpResp.StatusCode).
			Str("body", string(snippet)).
			Msg("detection service returned error")
		return nil, fmt.Errorf("detection service returned status %d", httpResp.StatusCode)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}
	return &resp, nil
}

// State exposes the circuit breaker state for health reporting.
func (c *Client) State() resilience.CircuitState {
	return c.circuitBreaker.GetState()
}
