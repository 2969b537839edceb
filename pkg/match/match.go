// Package match implements the stall-matching policy: an ordered decision
// list that decides whether a pull request qualifies for automated
// reviewer assignment.
package match

import (
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Policy holds the tunable thresholds for stall evaluation.
type Policy struct {
	ExcludedLabels      []string
	ActivityWindowHours float64
	ThresholdHours      float64
}

// Evaluate runs the ordered decision list against a snapshot. The first
// applicable rule wins and short-circuits the rest. All hour computations
// derive from the single now instant to avoid clock skew between rules.
//
// Rule order: draft, excluded label, reviewers already requested, recent
// activity, too new, stalled.
func (p Policy) Evaluate(pr *types.PullRequestSnapshot, now time.Time) (types.MatchResult, error) {
	if pr.CreatedAt.IsZero() || pr.UpdatedAt.IsZero() {
		return types.MatchResult{}, apierr.Validation("pull request snapshot has malformed timestamps")
	}

	if pr.Draft {
		return types.MatchResult{Matched: false, Reason: types.ReasonDraft}, nil
	}

	for _, excluded := range p.ExcludedLabels {
		if pr.HasLabel(excluded) {
			return types.MatchResult{Matched: false, Reason: types.ReasonExcludedLabel}, nil
		}
	}

	if len(pr.RequestedReviewers) > 0 {
		return types.MatchResult{Matched: false, Reason: types.ReasonAlreadyRequested}, nil
	}

	if HoursSince(pr.UpdatedAt, now) < p.ActivityWindowHours {
		return types.MatchResult{Matched: false, Reason: types.ReasonRecentActivity}, nil
	}

	if HoursSince(pr.CreatedAt, now) < p.ThresholdHours {
		return types.MatchResult{Matched: false, Reason: types.ReasonTooNew}, nil
	}

	return types.MatchResult{Matched: true, Reason: types.ReasonStalled}, nil
}

// HoursSince returns the hours elapsed between t and now.
func HoursSince(t, now time.Time) float64 {
	return now.Sub(t).Hours()
}

// Evidence carries the computed metrics a non-match explanation may cite.
type Evidence struct {
	AgeHours            float64
	ActivityHours       float64
	ThresholdHours      float64
	ActivityWindowHours float64
}

// ExplainNonMatch renders a human-readable "why not" explanation for a
// reason code produced by Evaluate.
func ExplainNonMatch(reason types.MatchReason, ev Evidence) string {
	var title, detail string
	switch reason {
	case types.ReasonDraft:
		title = "PR is marked as draft"
		detail = "Draft PRs are excluded from automated reviewer requests. " +
			"Mark as ready for review when you want to request reviewers."
	case types.ReasonExcludedLabel:
		title = "PR has an excluded label"
		detail = "PRs with labels like 'wip', 'blocked', or 'do-not-merge' are excluded. " +
			"Remove the label to enable reviewer requests."
	case types.ReasonAlreadyRequested:
		title = "Reviewers already requested"
		detail = "This PR already has reviewers requested. No additional action needed."
	case types.ReasonRecentActivity:
		title = "PR has recent activity"
		detail = fmt.Sprintf("Last activity was %.1fh ago (threshold: %.0fh). "+
			"Check again after the activity window passes.", ev.ActivityHours, ev.ActivityWindowHours)
	case types.ReasonTooNew:
		title = "PR is too new"
		detail = fmt.Sprintf("PR age is %.1fh (threshold: %.0fh). "+
			"Give the author time to self-review and request reviewers.", ev.AgeHours, ev.ThresholdHours)
	case types.ReasonStalled:
		return ""
	default:
		title = "Unknown reason"
		detail = fmt.Sprintf("Reason code: %s", reason)
	}
	return fmt.Sprintf("No action required.\n\nReason: %s\n   -> %s", title, detail)
}
