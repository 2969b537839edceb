package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/match"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// maxScanResults bounds how many stalled PRs a scan reports.
const maxScanResults = 3

// StalledPR is one scan hit.
type StalledPR struct {
	PRURL    string            `json:"pr_url"`
	Title    string            `json:"title"`
	Reason   types.MatchReason `json:"reason"`
	AgeHours float64           `json:"age_hours"`
}

// ScanResult lists the oldest stalled PRs in the default repository.
type ScanResult struct {
	RunID    string      `json:"run_id"`
	Mode     string      `json:"mode"`
	ScanText string      `json:"scan_text"`
	Results  []StalledPR `json:"results"`
}

// Scan evaluates every open PR in the configured default repository and
// reports the oldest stalled ones.
func (e *Engine) Scan(ctx context.Context, runID string) (*ScanResult, error) {
	if runID == "" {
		return nil, apierr.Validation("run_id is required")
	}

	rules := e.rules.Rules()
	owner, repo, found := strings.Cut(rules.DefaultRepo, "/")
	if !found || owner == "" || repo == "" {
		return nil, apierr.BadRequest("DEFAULT_REPO not set for scan")
	}

	prs, err := e.host.OpenPullRequests(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	policy := match.Policy{
		ExcludedLabels:      rules.ExcludedLabels,
		ActivityWindowHours: float64(rules.ActivityWindowHours),
		ThresholdHours:      float64(rules.ThresholdHours),
	}
	now := e.now()

	var stalled []StalledPR
	for _, pr := range prs {
		result, err := policy.Evaluate(pr, now)
		if err != nil {
			slog.Warn("Skipping PR with malformed snapshot", "pr", pr.URL, "error", err)
			continue
		}
		if !result.Matched {
			continue
		}
		stalled = append(stalled, StalledPR{
			PRURL:    pr.URL,
			Title:    pr.Title,
			AgeHours: round1(match.HoursSince(pr.CreatedAt, now)),
			Reason:   result.Reason,
		})
	}

	// Oldest first; ties keep snapshot order.
	sort.SliceStable(stalled, func(i, j int) bool {
		return stalled[i].AgeHours > stalled[j].AgeHours
	})
	if len(stalled) > maxScanResults {
		stalled = stalled[:maxScanResults]
	}

	lines := []string{fmt.Sprintf("Unblocker scan (run_id: %s)", runID)}
	if len(stalled) == 0 {
		lines = append(lines, "No stalled PRs found.")
	} else {
		for _, item := range stalled {
			lines = append(lines, fmt.Sprintf("- %s (%s) age %gh", item.Title, item.PRURL, item.AgeHours))
		}
	}

	slog.Info("Scan complete", "run_id", runID, "repo", rules.DefaultRepo, "open", len(prs), "stalled", len(stalled))

	return &ScanResult{
		RunID:    runID,
		Mode:     "scan",
		Results:  stalled,
		ScanText: strings.Join(lines, "\n"),
	}, nil
}
