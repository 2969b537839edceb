package wizard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/config"
	"github.com/codeGROOVE-dev/unblocker/pkg/llm"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

type fakeSnapshotter struct {
	snap *types.PullRequestSnapshot
	err  error
}

func (f *fakeSnapshotter) Snapshot(context.Context, string, string, int) (*types.PullRequestSnapshot, error) {
	return f.snap, f.err
}

func newTestWizard(provider llm.Provider, host Snapshotter) (*Wizard, *config.Store) {
	store := config.NewStore(config.Rules{
		ExcludedLabels:      []string{"wip", "blocked"},
		ActivityWindowHours: 5,
		ThresholdHours:      1,
	})
	w := New(provider, store, host)
	w.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return w, store
}

func TestRun_RegexParse(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantSource    string
		wantThreshold int
	}{
		{
			name:          "canonical form",
			text:          "If PR has no reviewers after 2 hours, request reviewers from CODEOWNERS",
			wantSource:    "codeowners",
			wantThreshold: 2,
		},
		{
			name:          "when variant with recent",
			text:          "When a PR has no reviewer after 48h request reviewers from recent",
			wantSource:    "recent",
			wantThreshold: 48,
		},
		{
			name:          "default source",
			text:          "if pr has no reviewers after 6 h, request reviewer from default",
			wantSource:    "default",
			wantThreshold: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWizard(nil, nil)
			res, err := w.Run(context.Background(), Input{Text: tt.text, RunID: "orch_wiz_1"})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Status != StatusPreview {
				t.Fatalf("status = %q, want preview", res.Status)
			}
			if res.ParseMethod != "regex" {
				t.Errorf("parse method = %q, want regex", res.ParseMethod)
			}
			if res.Config.ReviewerSource != tt.wantSource {
				t.Errorf("source = %q, want %q", res.Config.ReviewerSource, tt.wantSource)
			}
			if res.Config.ThresholdHours != tt.wantThreshold {
				t.Errorf("threshold = %d, want %d", res.Config.ThresholdHours, tt.wantThreshold)
			}
			if res.Config.Rule != RuleName {
				t.Errorf("rule = %q", res.Config.Rule)
			}
			if !strings.Contains(res.PreviewText, "To activate, call with activate=true") {
				t.Errorf("preview missing activation hint:\n%s", res.PreviewText)
			}
		})
	}
}

func TestRun_RequiresRunID(t *testing.T) {
	w, _ := newTestWizard(nil, nil)
	_, err := w.Run(context.Background(), Input{Text: "whatever"})
	var appErr *apierr.Error
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}
}

func TestRun_AIParse(t *testing.T) {
	provider := &llm.Mock{Response: "```json\n{\"threshold_hours\": 12, \"source\": \"recent\", \"excluded_labels\": [\"hold\"]}\n```"}
	w, _ := newTestWizard(provider, nil)

	res, err := w.Run(context.Background(), Input{Text: "poke someone after half a day", RunID: "orch_wiz_1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ParseMethod != "ai" {
		t.Errorf("parse method = %q, want ai", res.ParseMethod)
	}
	if res.Config.ThresholdHours != 12 || res.Config.ReviewerSource != "recent" {
		t.Errorf("config = %+v", res.Config)
	}
	if len(res.Config.ExcludedLabels) != 1 || res.Config.ExcludedLabels[0] != "hold" {
		t.Errorf("excluded = %v", res.Config.ExcludedLabels)
	}
}

func TestRun_AIRejectsInput(t *testing.T) {
	provider := &llm.Mock{Response: "INVALID"}
	w, _ := newTestWizard(provider, nil)

	res, err := w.Run(context.Background(), Input{Text: "order me a pizza", RunID: "orch_wiz_1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusParseFailed {
		t.Fatalf("status = %q, want parse_failed", res.Status)
	}
	if !strings.Contains(res.Message, "Could not parse input") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRun_NoProviderParseFailed(t *testing.T) {
	w, _ := newTestWizard(nil, nil)
	res, err := w.Run(context.Background(), Input{Text: "free-form text", RunID: "orch_wiz_1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusParseFailed {
		t.Errorf("status = %q, want parse_failed without a provider", res.Status)
	}
}

func TestRun_ProviderErrorParseFailed(t *testing.T) {
	w, _ := newTestWizard(&llm.Mock{Err: errors.New("boom")}, nil)
	res, err := w.Run(context.Background(), Input{Text: "free-form text", RunID: "orch_wiz_1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusParseFailed {
		t.Errorf("status = %q, want parse_failed on provider error", res.Status)
	}
}

func TestRun_DefaultsApplied(t *testing.T) {
	// AI responses with bad source or non-positive threshold fall back to
	// codeowners and 24h; excluded labels come from the active rules.
	provider := &llm.Mock{Response: `{"threshold_hours": 0, "source": "psychic"}`}
	w, _ := newTestWizard(provider, nil)

	res, err := w.Run(context.Background(), Input{Text: "free-form", RunID: "orch_wiz_1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Config.ReviewerSource != "codeowners" {
		t.Errorf("source = %q, want codeowners default", res.Config.ReviewerSource)
	}
	if res.Config.ThresholdHours != 24 {
		t.Errorf("threshold = %d, want 24 default", res.Config.ThresholdHours)
	}
	if len(res.Config.ExcludedLabels) != 2 || res.Config.ExcludedLabels[0] != "wip" {
		t.Errorf("excluded = %v, want active rule labels", res.Config.ExcludedLabels)
	}
}

func TestRun_Activate(t *testing.T) {
	w, store := newTestWizard(nil, nil)
	res, err := w.Run(context.Background(), Input{
		Text:     "If PR has no reviewers after 48 hours, request reviewers from recent",
		RunID:    "orch_wiz_1",
		Activate: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusActivated {
		t.Fatalf("status = %q, want activated", res.Status)
	}
	want := "Rule activated: PRs without reviewers after 48h will trigger reviewer requests from recent."
	if res.Message != want {
		t.Errorf("message = %q, want %q", res.Message, want)
	}
	if !strings.Contains(res.PreviewText, "✅ Configuration activated!") {
		t.Errorf("preview missing activation banner:\n%s", res.PreviewText)
	}

	rules := store.Rules()
	if rules.ThresholdHours != 48 || rules.ReviewerSource != "recent" {
		t.Errorf("active rules not updated: %+v", rules)
	}
	// Untouched settings survive activation.
	if rules.ActivityWindowHours != 5 {
		t.Errorf("ActivityWindowHours = %d, want 5", rules.ActivityWindowHours)
	}
}

func TestRun_DryRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	host := &fakeSnapshotter{snap: &types.PullRequestSnapshot{
		CreatedAt: now.Add(-72 * time.Hour),
		UpdatedAt: now.Add(-10 * time.Hour),
		Title:     "Fix widget alignment",
	}}
	w, _ := newTestWizard(nil, host)

	res, err := w.Run(context.Background(), Input{
		Text:     "If PR has no reviewers after 2 hours, request reviewers from CODEOWNERS",
		RunID:    "orch_wiz_1",
		DryRunPR: "https://github.com/acme/widgets/pull/42",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.DryRun == nil {
		t.Fatal("missing dry-run result")
	}
	if !res.DryRun.WouldMatch {
		t.Errorf("dry-run = %+v, want match", res.DryRun)
	}
	if res.DryRun.PRTitle != "Fix widget alignment" {
		t.Errorf("title = %q", res.DryRun.PRTitle)
	}
	if !strings.Contains(res.PreviewText, "Would match: Yes (s2_match)") {
		t.Errorf("preview missing dry-run line:\n%s", res.PreviewText)
	}
}

func TestRun_DryRunErrors(t *testing.T) {
	tests := []struct {
		host      Snapshotter
		name      string
		prURL     string
		wantError string
	}{
		{
			name:      "invalid url",
			host:      &fakeSnapshotter{},
			prURL:     "not-a-url",
			wantError: "invalid pr_url format",
		},
		{
			name:      "snapshot failure",
			host:      &fakeSnapshotter{err: errors.New("pull request not found")},
			prURL:     "https://github.com/acme/widgets/pull/42",
			wantError: "pull request not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWizard(nil, tt.host)
			res, err := w.Run(context.Background(), Input{
				Text:     "If PR has no reviewers after 2 hours, request reviewers from CODEOWNERS",
				RunID:    "orch_wiz_1",
				DryRunPR: tt.prURL,
			})
			if err != nil {
				t.Fatalf("dry-run errors must not fail the call: %v", err)
			}
			if res.DryRun == nil || res.DryRun.Error != tt.wantError {
				t.Errorf("dry-run = %+v, want error %q", res.DryRun, tt.wantError)
			}
		})
	}
}
