package llm

import "context"

// Mock is a test double that returns canned responses.
type Mock struct {
	Err      error
	Response string
	Prompts  []string
}

// Name identifies the mock provider.
func (*Mock) Name() string { return "mock" }

// Generate records the prompt and returns the canned response.
func (m *Mock) Generate(_ context.Context, prompt string, _ Settings) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}
