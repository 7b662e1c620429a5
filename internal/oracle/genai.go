package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Default tuning for the hosted reasoning model.
const (
	DefaultModel      = "gemini-2.5-flash"
	DefaultTimeout    = 120 * time.Second
	DefaultBaseDelay  = 1 * time.Second
	DefaultStepDelay  = 2 * time.Second
	DefaultMaxRetries = 5
)

// GenAIConfig tunes the hosted oracle client.
type GenAIConfig struct {
	APIKey      string
	Model       string
	CallTimeout time.Duration
	BaseDelay   time.Duration
	StepDelay   time.Duration
	MaxRetries  int
}

// GenAIClient implements Client against the Gemini API.
type GenAIClient struct {
	client *genai.Client
	cfg    GenAIConfig
	logger *zap.Logger
}

// NewGenAIClient creates a Gemini-backed oracle client.
func NewGenAIClient(ctx context.Context, cfg GenAIConfig, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = DefaultStepDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIClient{client: client, cfg: cfg, logger: logger}, nil
}

// Propose issues one reasoning request, retrying throttled calls with
// backoff, and returns whatever fragment survives lenient parsing. A response
// with nothing recoverable yields an empty fragment, not an error.
func (c *GenAIClient) Propose(ctx context.Context, req Request) (Fragment, error) {
	prompt := BuildPrompt(req)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, c.cfg.BaseDelay, c.cfg.StepDelay)
			c.logger.Info("oracle throttled, backing off",
				zap.Int("attempt", attempt), zap.Duration("delay", delay))
			if err := sleepBackoff(ctx, delay); err != nil {
				return nil, err
			}
		}

		text, err := c.generate(ctx, prompt, config)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isThrottled(err) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("oracle call failed: %w", err)
		}

		outcome := Parse(text)
		for _, w := range outcome.Warnings {
			c.logger.Warn("oracle response recovery", zap.String("warning", w))
		}
		if outcome.Status == ParseFailed {
			c.logger.Warn("oracle response had no recoverable entries",
				zap.Int("response_len", len(text)))
			return Fragment{}, nil
		}
		return outcome.Fragment, nil
	}

	return nil, fmt.Errorf("%w after %d retries: %v", ErrRateLimitExhausted, c.cfg.MaxRetries, lastErr)
}

// generate performs a single model call under the per-call timeout. The
// timeout lets an in-flight call finish or expire on its own rather than
// being torn down by the retry loop.
func (c *GenAIClient) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(callCtx, c.cfg.Model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	c.logger.Debug("oracle call completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("response_len", len(text)))
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	return text, nil
}

// isThrottled reports whether an error is the oracle's throttling signal.
func isThrottled(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code == http.StatusServiceUnavailable
	}
	return false
}
