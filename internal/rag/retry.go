package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// RetryConfig configures the retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: string matching because Genkit and LLM provider SDKs do not expose
// typed errors for transient failures. Re-evaluate if Genkit adds
// structured error types in a future version.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(errStr, sub) {
				return true
			}
		}
	}
	return false
}

// generateWithRetry calls genkit.Generate with exponential backoff.
// Each attempt waits on the rate limiter before hitting the model.
// canRetry gates retries; nil means always. Streaming calls pass a check
// that blocks retries once text has reached the client, since replaying a
// partially streamed answer would duplicate output.
func (e *Engine) generateWithRetry(ctx context.Context, opts []ai.GenerateOption, canRetry func() bool) (*ai.ModelResponse, error) {
	var lastErr error
	delay := e.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, e.g, opts...)
		if err == nil {
			e.logger.Debug("generation succeeded",
				"attempts", attempt+1, "elapsed", time.Since(start))
			return resp, nil
		}

		lastErr = err
		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if canRetry != nil && !canRetry() {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == e.retry.MaxRetries {
			break
		}

		e.logger.Debug("retrying after transient error",
			"attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, e.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		e.retry.MaxRetries, time.Since(start), lastErr)
}

// newLimiter builds the per-engine request limiter. rps <= 0 disables
// rate limiting.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
