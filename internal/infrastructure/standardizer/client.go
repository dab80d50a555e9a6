package standardizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pricelens/backend/internal/domain"
)

// ClientConfig configures the HTTP standardizer client
type ClientConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	MaxAttempts   int
	RatePerSecond float64
	Burst         int
}

// Client calls an HTTP product-name standardization service
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxAttempts int
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	logger      zerolog.Logger
	debug       bool
}

// NewClient creates a new standardizer client
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxAttempts: attempts,
		rateLimiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		backoff:     exponentialBackoff,
		logger:      logger,
	}
}

// SetDebug enables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// standardizeRequest is the wire format of POST /v1/standardize
type standardizeRequest struct {
	Name    string `json:"name"`
	Unit    string `json:"unit,omitempty"`
	Context string `json:"context,omitempty"`
	Model   string `json:"model,omitempty"`
}

// doRequest executes an HTTP POST request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PriceLens/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStandardizerFailure, err)
	}

	return resp, nil
}

// Standardize asks the service for the canonical name of a product.
// Transport errors, 429 and 5xx responses are retried with exponential backoff.
func (c *Client) Standardize(ctx context.Context, name, unit, hint string) (*domain.StandardizationResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty product name", domain.ErrInvalidInput)
	}

	body, err := json.Marshal(standardizeRequest{Name: name, Unit: unit, Context: hint, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	reqURL := c.baseURL + "/v1/standardize"

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		resp, err := c.doRequest(ctx, reqURL, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("[STANDARDIZER] request error")
			lastErr = err
			if !c.sleep(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: reading body: %v", domain.ErrStandardizerFailure, readErr)
			if !c.sleep(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		if c.debug {
			c.logger.Debug().
				Str("name", name).
				Int("status", resp.StatusCode).
				Str("body", string(respBody)).
				Msg("[STANDARDIZER] response")
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: status %d", domain.ErrStandardizerFailure, resp.StatusCode)
			if !retryable(resp.StatusCode) {
				return nil, lastErr
			}
			c.logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("[STANDARDIZER] retryable status")
			if !c.sleep(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		var wire standardizeResponse
		if err := json.Unmarshal(respBody, &wire); err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrStandardizerFailure, err)
		}

		return MapToStandardization(wire)
	}

	return nil, lastErr
}

// sleep waits before the next attempt; it returns false when ctx ends first
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	if attempt >= c.maxAttempts {
		return true
	}
	return sleepContext(ctx, c.backoff(attempt))
}

// sleepContext waits for d; it returns false when ctx ends first
func sleepContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
