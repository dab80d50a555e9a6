package standardizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pricelens/backend/internal/domain"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-1.5-flash"

// generateFunc sends one prompt to the model
type generateFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

// GeminiStandardizer standardizes product names with a Gemini model returning JSON
type GeminiStandardizer struct {
	client      *genai.Client
	generate    generateFunc
	maxAttempts int
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	logger      zerolog.Logger
}

// NewGeminiStandardizer creates a Gemini-backed standardizer. Model, MaxAttempts,
// RatePerSecond and Burst of cfg fall back to defaults when unset.
func NewGeminiStandardizer(ctx context.Context, cfg ClientConfig, logger zerolog.Logger) (*GeminiStandardizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = standardizationSchema()

	return &GeminiStandardizer{
		client: client,
		generate: func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, genai.Text(prompt))
		},
		maxAttempts: attempts,
		rateLimiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		backoff:     exponentialBackoff,
		logger:      logger,
	}, nil
}

// Close releases the underlying client
func (g *GeminiStandardizer) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Standardize asks Gemini for the canonical English name of a product.
// Quota and server errors are retried with exponential backoff.
func (g *GeminiStandardizer) Standardize(ctx context.Context, name, unit, hint string) (*domain.StandardizationResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty product name", domain.ErrInvalidInput)
	}
	prompt := buildPrompt(name, unit, hint)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := g.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		resp, err := g.generate(ctx, prompt)
		if err == nil {
			wire, err := parseGeminiResponse(resp)
			if err != nil {
				g.logger.Warn().Err(err).Str("name", name).Msg("[GEMINI] unusable response")
				return nil, err
			}
			return MapToStandardization(wire)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = fmt.Errorf("%w: %v", domain.ErrStandardizerFailure, err)
		if !retryableGeminiError(err) {
			return nil, lastErr
		}
		g.logger.Warn().Err(err).Int("attempt", attempt).Msg("[GEMINI] retryable error")
		if attempt < g.maxAttempts && !sleepContext(ctx, g.backoff(attempt)) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// retryableGeminiError reports quota and server-side failures from either transport
func retryableGeminiError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryable(apiErr.Code)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.Internal:
			return true
		}
	}
	return false
}

func buildPrompt(name, unit, hint string) string {
	var b strings.Builder
	b.WriteString("You normalize grocery and produce names from Indonesian supplier price lists.\n")
	b.WriteString("Return the generic English product name in lowercase, without brand, size or packaging words.\n")
	b.WriteString("Keep words that change what the product is (sweet potato, sea salt, red onion).\n")
	b.WriteString("Map the unit to one of kg, l or pcs when possible.\n")
	if hint != "" {
		fmt.Fprintf(&b, "Matching status: %s.\n", hint)
	}
	fmt.Fprintf(&b, "Product name: %q\n", name)
	if unit != "" {
		fmt.Fprintf(&b, "Unit: %q\n", unit)
	}
	return b.String()
}

func standardizationSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"standardized_name": {
				Type:        genai.TypeString,
				Description: "Generic lowercase English product name",
			},
			"standardized_unit": {
				Type:        genai.TypeString,
				Description: "kg, l or pcs",
			},
			"confidence": {
				Type:        genai.TypeNumber,
				Description: "Confidence between 0 and 1",
			},
		},
		Required: []string{"standardized_name"},
	}
}

// parseGeminiResponse extracts the JSON body from the first candidate
func parseGeminiResponse(resp *genai.GenerateContentResponse) (standardizeResponse, error) {
	var wire standardizeResponse
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return wire, fmt.Errorf("%w: no candidates in Gemini response", domain.ErrStandardizerFailure)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return wire, fmt.Errorf("%w: empty text in Gemini response", domain.ErrStandardizerFailure)
	}

	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return wire, fmt.Errorf("%w: failed to decode response: %v", domain.ErrStandardizerFailure, err)
	}
	return wire, nil
}
