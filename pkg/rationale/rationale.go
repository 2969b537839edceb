// Package rationale attaches natural-language rationale to ranked
// reviewer candidates. The augmenter never reorders candidates: output
// order is always input order, and every collaborator failure degrades
// to a deterministic per-source fallback.
package rationale

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codeGROOVE-dev/unblocker/pkg/llm"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Prompt and fallback sizing.
const (
	maxPromptFiles      = 8   // Changed files listed in the ranking prompt
	maxSummaryFiles     = 10  // Changed files listed in the summary prompt
	maxFallbackDirFiles = 5   // Files inspected for the ownership fallback
	maxFallbackDirs     = 2   // Directory prefixes cited in the ownership fallback
	rationaleMaxTokens  = 250 // Token budget for the ranking call
	summaryMaxTokens    = 150 // Token budget for the summary call
)

// Overall rationale used when the collaborator answered.
const aiOverallRationale = "AI-ranked reviewers based on code ownership and recent activity."

// Augmenter enriches ranked candidates with rationale text. A nil
// provider is valid and forces the deterministic fallback path.
type Augmenter struct {
	provider llm.Provider
}

// New creates an Augmenter backed by provider (which may be nil).
func New(provider llm.Provider) *Augmenter {
	return &Augmenter{provider: provider}
}

// Augment attaches a rationale to every candidate, preserving input
// order regardless of how the collaborator ordered its response. On any
// collaborator failure every candidate gets the deterministic fallback
// and the overall rationale attributes the selection to the candidate
// source instead of the AI.
func (a *Augmenter) Augment(
	ctx context.Context, prTitle string, files []string, ranked []types.ScoredCandidate,
) (augmented []types.AugmentedCandidate, overall string) {
	if len(ranked) == 0 {
		return nil, "No reviewer candidates available."
	}

	if a.provider == nil {
		return fallbackAll(ranked, files), sourceOverall(ranked)
	}

	text, err := a.provider.Generate(ctx, rankingPrompt(prTitle, files, ranked), llm.Settings{
		Temperature: 0.1,
		MaxTokens:   rationaleMaxTokens,
	})
	if err != nil {
		slog.Warn("AI ranking unavailable, using deterministic fallback", "component", "rationale", "error", err)
		return fallbackAll(ranked, files), sourceOverall(ranked)
	}

	byHandle := parseRationaleLines(text)
	augmented = make([]types.AugmentedCandidate, 0, len(ranked))
	for _, c := range ranked {
		rationale, ok := byHandle[c.Login]
		if !ok {
			rationale = Fallback(c.Source, files)
		}
		augmented = append(augmented, types.AugmentedCandidate{ScoredCandidate: c, Rationale: rationale})
	}
	return augmented, aiOverallRationale
}

// parseRationaleLines parses "@handle - rationale" lines into a map.
// Blank lines and lines without the " - " separator are skipped; handles
// are normalized to carry a leading "@". The last occurrence wins on
// duplicate handles.
func parseRationaleLines(text string) map[string]string {
	byHandle := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		handle, rationale, found := strings.Cut(line, " - ")
		if !found {
			continue
		}
		handle = strings.TrimSpace(handle)
		rationale = strings.TrimSpace(rationale)
		if handle == "" || rationale == "" {
			continue
		}
		if !strings.HasPrefix(handle, "@") {
			handle = "@" + handle
		}
		byHandle[handle] = rationale
	}
	return byHandle
}

// Fallback computes the deterministic rationale for a candidate source.
func Fallback(source types.Source, files []string) string {
	switch source {
	case types.SourceCodeowners:
		if dirs := ownedDirectories(files); len(dirs) > 0 {
			return "CODEOWNER for " + strings.Join(dirs, ", ")
		}
		return "CODEOWNER for modified paths"
	case types.SourceRecent:
		return "Recently contributed to modified files"
	default:
		return "Default reviewer for this repository"
	}
}

// ownedDirectories derives up to maxFallbackDirs top-level directory
// prefixes from the first maxFallbackDirFiles changed files.
func ownedDirectories(files []string) []string {
	seen := make(map[string]bool)
	for i, f := range files {
		if i >= maxFallbackDirFiles {
			break
		}
		if dir, _, found := strings.Cut(f, "/"); found {
			seen[dir+"/"] = true
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	if len(dirs) > maxFallbackDirs {
		dirs = dirs[:maxFallbackDirs]
	}
	return dirs
}

// fallbackAll applies the deterministic fallback to every candidate,
// preserving order.
func fallbackAll(ranked []types.ScoredCandidate, files []string) []types.AugmentedCandidate {
	augmented := make([]types.AugmentedCandidate, 0, len(ranked))
	for _, c := range ranked {
		augmented = append(augmented, types.AugmentedCandidate{
			ScoredCandidate: c,
			Rationale:       Fallback(c.Source, files),
		})
	}
	return augmented
}

// sourceOverall attributes the selection to the candidate source when
// the AI was unavailable.
func sourceOverall(ranked []types.ScoredCandidate) string {
	source := "available"
	if len(ranked) > 0 && ranked[0].Source != "" {
		source = string(ranked[0].Source)
	}
	return fmt.Sprintf("Reviewers selected based on %s data.", source)
}

// rankingPrompt builds the structured candidate-ranking prompt.
func rankingPrompt(prTitle string, files []string, ranked []types.ScoredCandidate) string {
	lines := make([]string, 0, len(ranked))
	for _, c := range ranked {
		lines = append(lines, fmt.Sprintf("- %s (source: %s)", c.Login, c.Source))
	}

	return fmt.Sprintf(`You are ranking code reviewers for a pull request.

PR Title: %s
Files Changed: %s

Candidates:
%s

For each candidate, write a brief rationale (1 sentence) explaining why they should review this PR.
Focus on their source (CODEOWNERS = owns the code, recent = recently modified these files, fallback = default reviewer).

Output format (one line per candidate):
@username - [rationale]

Only output the ranked list, nothing else.`, prTitle, fileList(files, maxPromptFiles), strings.Join(lines, "\n"))
}

// fileList joins up to limit file names, noting how many were elided.
func fileList(files []string, limit int) string {
	if len(files) <= limit {
		return strings.Join(files, ", ")
	}
	return strings.Join(files[:limit], ", ") + fmt.Sprintf(" (+%d more)", len(files)-limit)
}
