package llm

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const defaultMaxTokens = 1024

// ErrNoProvider indicates no text-generation credentials are configured.
// Callers treat this exactly like any other collaborator failure: fall
// back deterministically.
var ErrNoProvider = errors.New("no LLM provider configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY")

// Resolve selects a provider from available API keys. Anthropic is
// preferred when both are configured. The returned provider is wrapped
// with retry on transient failures.
func Resolve() (Provider, error) {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		p, err := NewAnthropic()
		if err != nil {
			return nil, err
		}
		return WithRetry(p), nil
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		p, err := NewOpenAI()
		if err != nil {
			return nil, err
		}
		return WithRetry(p), nil
	}
	return nil, ErrNoProvider
}

// Retry settings for generation calls. The budget is deliberately small:
// every caller has a deterministic fallback, so failing fast beats
// waiting out a long backoff schedule.
const (
	generateMaxAttempts = 3
	generateRetryDelay  = 500 * time.Millisecond
	generateMaxDelay    = 5 * time.Second
)

// retryingProvider wraps a Provider with bounded retry.
type retryingProvider struct {
	inner Provider
}

// WithRetry wraps p so transient generation failures are retried with
// exponential backoff and jitter.
func WithRetry(p Provider) Provider {
	return &retryingProvider{inner: p}
}

// Name identifies the wrapped provider.
func (r *retryingProvider) Name() string { return r.inner.Name() }

// Generate calls the wrapped provider, retrying on failure.
func (r *retryingProvider) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	var out string
	err := retry.Do(
		func() error {
			var genErr error
			out, genErr = r.inner.Generate(ctx, prompt, s)
			return genErr
		},
		retry.Context(ctx),
		retry.Attempts(generateMaxAttempts),
		retry.Delay(generateRetryDelay),
		retry.MaxDelay(generateMaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retrying text generation", "component", "llm", "provider", r.inner.Name(), "attempt", n+1, "error", err)
		}),
	)
	return out, err
}
