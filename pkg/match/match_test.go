package match

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() Policy {
	return Policy{
		ExcludedLabels:      []string{"wip", "blocked", "do-not-merge"},
		ActivityWindowHours: 5,
		ThresholdHours:      1,
	}
}

func stalledPR() *types.PullRequestSnapshot {
	return &types.PullRequestSnapshot{
		CreatedAt: testNow.Add(-48 * time.Hour),
		UpdatedAt: testNow.Add(-10 * time.Hour),
	}
}

func TestEvaluate_Stalled(t *testing.T) {
	result, err := testPolicy().Evaluate(stalledPR(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched {
		t.Error("expected match for stalled PR")
	}
	if result.Reason != types.ReasonStalled {
		t.Errorf("reason = %q, want %q", result.Reason, types.ReasonStalled)
	}
}

func TestEvaluate_RuleOrder(t *testing.T) {
	tests := []struct {
		mutate func(pr *types.PullRequestSnapshot)
		name   string
		want   types.MatchReason
	}{
		{
			name:   "draft wins over everything",
			mutate: func(pr *types.PullRequestSnapshot) { pr.Draft = true; pr.Labels = []string{"wip"} },
			want:   types.ReasonDraft,
		},
		{
			name:   "excluded label before already requested",
			mutate: func(pr *types.PullRequestSnapshot) { pr.Labels = []string{"blocked"}; pr.RequestedReviewers = []string{"x"} },
			want:   types.ReasonExcludedLabel,
		},
		{
			name:   "already requested before recent activity",
			mutate: func(pr *types.PullRequestSnapshot) { pr.RequestedReviewers = []string{"x"}; pr.UpdatedAt = testNow },
			want:   types.ReasonAlreadyRequested,
		},
		{
			name: "recent activity before too new",
			mutate: func(pr *types.PullRequestSnapshot) {
				pr.CreatedAt = testNow.Add(-30 * time.Minute)
				pr.UpdatedAt = testNow.Add(-10 * time.Minute)
			},
			want: types.ReasonRecentActivity,
		},
		{
			name: "too new",
			mutate: func(pr *types.PullRequestSnapshot) {
				pr.CreatedAt = testNow.Add(-30 * time.Minute)
				pr.UpdatedAt = testNow.Add(-30 * time.Minute)
			},
			want: types.ReasonTooNew,
		},
	}

	policy := testPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := stalledPR()
			tt.mutate(pr)
			result, err := policy.Evaluate(pr, testNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Matched {
				t.Error("expected no match")
			}
			if result.Reason != tt.want {
				t.Errorf("reason = %q, want %q", result.Reason, tt.want)
			}
		})
	}
}

func TestEvaluate_ActivityBoundaryMatches(t *testing.T) {
	// Exactly at the activity window the PR counts as stalled: the rule
	// uses strict less-than.
	pr := stalledPR()
	pr.UpdatedAt = testNow.Add(-5 * time.Hour)
	result, err := testPolicy().Evaluate(pr, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched {
		t.Errorf("PR at exact activity boundary should match, got reason %q", result.Reason)
	}
}

func TestEvaluate_MalformedTimestamps(t *testing.T) {
	for _, name := range []string{"zero created_at", "zero updated_at"} {
		t.Run(name, func(t *testing.T) {
			pr := stalledPR()
			if name == "zero created_at" {
				pr.CreatedAt = time.Time{}
			} else {
				pr.UpdatedAt = time.Time{}
			}
			_, err := testPolicy().Evaluate(pr, testNow)
			var appErr *apierr.Error
			if !errors.As(err, &appErr) || appErr.Code != "VALIDATION" {
				t.Fatalf("expected VALIDATION error, got %v", err)
			}
		})
	}
}

func TestExplainNonMatch(t *testing.T) {
	ev := Evidence{AgeHours: 0.5, ActivityHours: 0.2, ThresholdHours: 1, ActivityWindowHours: 5}

	tests := []struct {
		reason types.MatchReason
		want   string
	}{
		{types.ReasonDraft, "PR is marked as draft"},
		{types.ReasonExcludedLabel, "PR has an excluded label"},
		{types.ReasonAlreadyRequested, "Reviewers already requested"},
		{types.ReasonRecentActivity, "Last activity was 0.2h ago (threshold: 5h)"},
		{types.ReasonTooNew, "PR age is 0.5h (threshold: 1h)"},
	}
	for _, tt := range tests {
		got := ExplainNonMatch(tt.reason, ev)
		if !strings.Contains(got, tt.want) {
			t.Errorf("ExplainNonMatch(%q) = %q, want it to contain %q", tt.reason, got, tt.want)
		}
		if !strings.HasPrefix(got, "No action required.") {
			t.Errorf("ExplainNonMatch(%q) missing standard prefix: %q", tt.reason, got)
		}
	}

	if got := ExplainNonMatch(types.ReasonStalled, ev); got != "" {
		t.Errorf("ExplainNonMatch(stalled) = %q, want empty", got)
	}
}
