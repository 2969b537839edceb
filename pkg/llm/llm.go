// Package llm defines the text-generation collaborator interface and its
// implementations. Every caller must treat any failure here as
// "unavailable" and fall back deterministically; no error from this
// package reaches an API user.
package llm

import "context"

// Settings configures one generation request.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider generates text from a prompt.
type Provider interface {
	Generate(ctx context.Context, prompt string, settings Settings) (string, error)
	Name() string
}
