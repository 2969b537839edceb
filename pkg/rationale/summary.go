package rationale

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeGROOVE-dev/unblocker/pkg/llm"
)

// SummarizePR generates a short PR summary for reviewer context. Any
// collaborator failure yields the deterministic file-count fallback.
func (a *Augmenter) SummarizePR(ctx context.Context, title string, files []string) string {
	if a.provider == nil {
		return summaryFallback(files)
	}

	prompt := fmt.Sprintf(`Summarize this pull request in 2-3 short sentences for a code reviewer.

PR Title: %s
Files Changed: %s

Write a concise summary focusing on what areas of the codebase are affected. Do not use markdown formatting.`,
		title, fileList(files, maxSummaryFiles))

	summary, err := a.provider.Generate(ctx, prompt, llm.Settings{Temperature: 0.1, MaxTokens: summaryMaxTokens})
	if err != nil {
		slog.Warn("AI summarization unavailable, using fallback", "component", "rationale", "error", err)
		return summaryFallback(files)
	}
	return summary
}

// summaryFallback describes the change set without AI help.
func summaryFallback(files []string) string {
	first := "unknown paths"
	if len(files) > 0 {
		first = files[0]
	}
	return fmt.Sprintf("This PR modifies %d file(s) including %s.", len(files), first)
}
