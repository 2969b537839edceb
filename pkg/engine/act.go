package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/github"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Act statuses.
const (
	StatusCancelled          = "cancelled"
	StatusReviewersRequested = "reviewers_requested"
)

// ActResult reports the outcome of executing (or cancelling) a plan.
type ActResult struct {
	RunID         string   `json:"run_id"`
	Status        string   `json:"status"`
	OutcomeText   string   `json:"outcome_text,omitempty"`
	Reviewers     []string `json:"reviewers,omitempty"`
	ExecutionTime float64  `json:"execution_time_s"`
	Verified      bool     `json:"verified"`
}

// Act consumes the plan for runID and executes it: request reviewers,
// post the optional comment, then re-fetch the PR to verify at least one
// reviewer is now requested.
func (e *Engine) Act(ctx context.Context, runID string, approved bool, explicit *types.ActionPlan) (*ActResult, error) {
	outcome, err := e.plans.Consume(runID, approved, explicit)
	if err != nil {
		return nil, err
	}
	if outcome.Cancelled {
		return &ActResult{RunID: runID, Status: StatusCancelled}, nil
	}

	owner, repo, number, err := github.ParsePRURL(outcome.Plan.PRURL)
	if err != nil {
		return nil, apierr.BadRequest("plan has invalid pr_url")
	}

	reviewers := make([]string, 0, len(outcome.Plan.Reviewers))
	for _, r := range outcome.Plan.Reviewers {
		reviewers = append(reviewers, strings.TrimPrefix(r, "@"))
	}

	start := e.now()

	if err := e.host.AddReviewers(ctx, owner, repo, number, reviewers); err != nil {
		return nil, apierr.Upstream(502, "failed to request reviewers: "+err.Error())
	}

	if outcome.Plan.Comment != "" {
		if err := e.host.CreateComment(ctx, owner, repo, number, outcome.Plan.Comment); err != nil {
			// Reviewers are already requested; a failed comment should not
			// fail the whole action.
			slog.Warn("Failed to post plan comment", "run_id", runID, "pr", outcome.Plan.PRURL, "error", err)
		}
	}

	verified := false
	if after, err := e.host.Snapshot(ctx, owner, repo, number); err == nil {
		verified = len(after.RequestedReviewers) >= 1
	} else {
		slog.Warn("Verification re-fetch failed", "run_id", runID, "pr", outcome.Plan.PRURL, "error", err)
	}

	execSeconds := round2(e.now().Sub(start).Seconds())

	mentions := make([]string, len(reviewers))
	for i, r := range reviewers {
		mentions[i] = "@" + r
	}

	lines := []string{
		"⚠️ Reviewers request sent (unverified)",
		fmt.Sprintf("PR: %s (%s)", outcome.Title, outcome.PRURL),
		fmt.Sprintf("Reviewers: %s", strings.Join(mentions, ", ")),
	}
	if verified {
		lines[0] = "✅ Reviewers requested"
	}
	if outcome.StalledHours > 0 {
		lines = append(lines, fmt.Sprintf("Metric: stalled %gh → assigned in %gs", outcome.StalledHours, execSeconds))
	}
	lines = append(lines, "Run ID: "+runID)

	slog.Info("Plan executed", "run_id", runID, "pr", outcome.Plan.PRURL,
		"reviewers", reviewers, "verified", verified, "execution_s", execSeconds)

	return &ActResult{
		RunID:         runID,
		Status:        StatusReviewersRequested,
		Reviewers:     reviewers,
		Verified:      verified,
		ExecutionTime: execSeconds,
		OutcomeText:   strings.Join(lines, "\n"),
	}, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
