package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/config"
	"github.com/codeGROOVE-dev/unblocker/pkg/plan"
	"github.com/codeGROOVE-dev/unblocker/pkg/rationale"
	"github.com/codeGROOVE-dev/unblocker/pkg/stats"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

var frozenNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const testPRURL = "https://github.com/acme/widgets/pull/42"

// fakeHost is an in-memory Host with call recording.
type fakeHost struct {
	snap            *types.PullRequestSnapshot
	snapErr         error
	openPRs         []*types.PullRequestSnapshot
	openErr         error
	codeowners      []string
	codeownersErr   error
	contributors    []string
	addReviewersErr error
	commentErr      error

	addedReviewers []string
	comments       []string
	snapshotCalls  int
}

func (f *fakeHost) Snapshot(context.Context, string, string, int) (*types.PullRequestSnapshot, error) {
	f.snapshotCalls++
	return f.snap, f.snapErr
}

func (f *fakeHost) OpenPullRequests(context.Context, string, string) ([]*types.PullRequestSnapshot, error) {
	return f.openPRs, f.openErr
}

func (f *fakeHost) CodeownersLines(context.Context, string, string) ([]string, error) {
	return f.codeowners, f.codeownersErr
}

func (f *fakeHost) Contributors(context.Context, string, string, int) ([]string, error) {
	return f.contributors, nil
}

func (f *fakeHost) AddReviewers(_ context.Context, _, _ string, _ int, reviewers []string) error {
	if f.addReviewersErr != nil {
		return f.addReviewersErr
	}
	f.addedReviewers = append(f.addedReviewers, reviewers...)
	return nil
}

func (f *fakeHost) CreateComment(_ context.Context, _, _ string, _ int, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments = append(f.comments, body)
	return nil
}

func stalledSnapshot() *types.PullRequestSnapshot {
	return &types.PullRequestSnapshot{
		CreatedAt:    frozenNow.Add(-26*time.Hour - 30*time.Minute),
		UpdatedAt:    frozenNow.Add(-10 * time.Hour),
		Title:        "Fix widget alignment",
		URL:          testPRURL,
		Author:       "frank",
		Owner:        "acme",
		Repository:   "widgets",
		ChangedFiles: []string{"pkg/widget/layout.go"},
		Number:       42,
	}
}

func newTestEngine(host *fakeHost) *Engine {
	rules := config.NewStore(config.Rules{
		DefaultRepo:         "acme/widgets",
		ExcludedLabels:      []string{"wip", "blocked"},
		ActivityWindowHours: 5,
		ThresholdHours:      1,
	})
	statsTable := stats.Static{
		"alice": {RecentFileEdits: 4},
		"bob":   {RecentFileEdits: 1},
	}
	return New(Options{
		Host:      host,
		Rules:     rules,
		Stats:     statsTable,
		Augmenter: rationale.New(nil),
		Plans:     plan.NewManager(plan.NewStore(0, func() time.Time { return frozenNow })),
		Now:       func() time.Time { return frozenNow },
	})
}

func TestAnalyze_MatchedPR(t *testing.T) {
	host := &fakeHost{
		snap:       stalledSnapshot(),
		codeowners: []string{"/pkg/ @alice @bob @frank"},
	}
	eng := newTestEngine(host)

	res, err := eng.Analyze(context.Background(), testPRURL, "orch_run_1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !res.Matched || res.Reason != types.ReasonStalled {
		t.Fatalf("matched=%v reason=%s", res.Matched, res.Reason)
	}
	if res.Confidence != types.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", res.Confidence)
	}
	if res.ApprovalRequired {
		t.Error("high confidence should not require approval")
	}
	if !res.AutoExecute {
		t.Error("high confidence match should auto-execute")
	}

	// The author must never be a candidate, even via CODEOWNERS.
	for _, c := range res.Candidates {
		if c.Login == "@frank" {
			t.Error("author included as candidate")
		}
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(res.Candidates))
	}
	// Alice has the stronger history and must rank first.
	if res.Candidates[0].Login != "@alice" {
		t.Errorf("top candidate = %s, want @alice", res.Candidates[0].Login)
	}

	if res.Plan == nil {
		t.Fatal("matched analysis must produce a plan")
	}
	if res.Plan.Action != types.PlanActionRequestReviewers || res.Plan.PRURL != testPRURL {
		t.Errorf("plan = %+v", res.Plan)
	}
	if !strings.HasPrefix(res.Plan.Comment, "🤖 Unblocker: ") {
		t.Errorf("plan comment = %q", res.Plan.Comment)
	}

	if res.Evidence.AgeHours != 26.5 {
		t.Errorf("age = %v, want 26.5", res.Evidence.AgeHours)
	}
	if res.Metric.StalledHours != 26.5 {
		t.Errorf("metric = %v", res.Metric.StalledHours)
	}
	if !strings.Contains(res.PreviewText, "Unblocker preview (run_id: orch_run_1)") {
		t.Errorf("preview text missing header:\n%s", res.PreviewText)
	}
	if len(res.PreviewBlocks) == 0 {
		t.Error("missing preview blocks")
	}

	// The plan must be cached and consumable.
	if _, err := eng.Act(context.Background(), "orch_run_1", true, nil); err != nil {
		t.Errorf("cached plan not consumable: %v", err)
	}
}

func TestAnalyze_NonMatch(t *testing.T) {
	snap := stalledSnapshot()
	snap.Draft = true
	host := &fakeHost{snap: snap, codeowners: []string{"/pkg/ @alice @bob"}}
	eng := newTestEngine(host)

	res, err := eng.Analyze(context.Background(), testPRURL, "orch_run_1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Matched {
		t.Fatal("draft PR must not match")
	}
	if res.Reason != types.ReasonDraft {
		t.Errorf("reason = %s", res.Reason)
	}
	if res.Plan != nil {
		t.Error("non-match must not produce a plan")
	}
	if res.AutoExecute {
		t.Error("non-match must not auto-execute")
	}
	if !strings.Contains(res.NonMatchExplanation, "PR is marked as draft") {
		t.Errorf("non-match explanation = %q", res.NonMatchExplanation)
	}

	// Nothing was cached.
	_, err = eng.Act(context.Background(), "orch_run_1", true, nil)
	var appErr *apierr.Error
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestAnalyze_InputValidation(t *testing.T) {
	eng := newTestEngine(&fakeHost{snap: stalledSnapshot()})
	tests := []struct {
		name  string
		prURL string
		runID string
	}{
		{name: "missing run_id", prURL: testPRURL, runID: ""},
		{name: "missing pr_url", prURL: "", runID: "orch_run_1"},
		{name: "bad pr_url", prURL: "https://example.com/x", runID: "orch_run_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Analyze(context.Background(), tt.prURL, tt.runID)
			var appErr *apierr.Error
			if !errors.As(err, &appErr) || appErr.Code != "VALIDATION" {
				t.Errorf("expected VALIDATION error, got %v", err)
			}
		})
	}
}

func TestAnalyze_CandidateLadder(t *testing.T) {
	t.Run("contributors when no codeowners", func(t *testing.T) {
		host := &fakeHost{snap: stalledSnapshot(), contributors: []string{"carol", "frank"}}
		res, err := newTestEngine(host).Analyze(context.Background(), testPRURL, "orch_run_1")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Candidates) != 1 || res.Candidates[0].Login != "@carol" {
			t.Errorf("candidates = %+v", res.Candidates)
		}
		if res.Candidates[0].Source != types.SourceRecent {
			t.Errorf("source = %s, want recent", res.Candidates[0].Source)
		}
		// One recent candidate is only low confidence.
		if res.Confidence != types.ConfidenceLow {
			t.Errorf("confidence = %s, want low", res.Confidence)
		}
		if !res.ApprovalRequired || res.AutoExecute {
			t.Errorf("approval=%v auto=%v", res.ApprovalRequired, res.AutoExecute)
		}
	})

	t.Run("defaults when repo has no signal", func(t *testing.T) {
		host := &fakeHost{snap: stalledSnapshot()}
		eng := newTestEngine(host)
		rules := eng.rules.Rules()
		rules.DefaultReviewers = []string{"dave"}
		eng.rules.Update(rules)

		res, err := eng.Analyze(context.Background(), testPRURL, "orch_run_1")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Candidates) != 1 || res.Candidates[0].Source != types.SourceFallback {
			t.Errorf("candidates = %+v", res.Candidates)
		}
	})

	t.Run("no candidates at all", func(t *testing.T) {
		host := &fakeHost{snap: stalledSnapshot()}
		res, err := newTestEngine(host).Analyze(context.Background(), testPRURL, "orch_run_1")
		if err != nil {
			t.Fatal(err)
		}
		if res.Confidence != types.ConfidenceNone {
			t.Errorf("confidence = %s, want none", res.Confidence)
		}
		if res.Plan != nil {
			t.Error("no candidates must not produce a plan")
		}
	})

	t.Run("author-only codeowners falls to none", func(t *testing.T) {
		host := &fakeHost{snap: stalledSnapshot(), codeowners: []string{"/pkg/ @frank"}}
		res, err := newTestEngine(host).Analyze(context.Background(), testPRURL, "orch_run_1")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Candidates) != 0 || res.Confidence != types.ConfidenceNone {
			t.Errorf("candidates=%v confidence=%s", res.Candidates, res.Confidence)
		}
	})
}

func TestAnalyze_SnapshotError(t *testing.T) {
	host := &fakeHost{snapErr: errors.New("pull request not found")}
	if _, err := newTestEngine(host).Analyze(context.Background(), testPRURL, "orch_run_1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestScan(t *testing.T) {
	mkPR := func(title string, ageHours float64) *types.PullRequestSnapshot {
		return &types.PullRequestSnapshot{
			CreatedAt: frozenNow.Add(-time.Duration(ageHours * float64(time.Hour))),
			UpdatedAt: frozenNow.Add(-8 * time.Hour),
			Title:     title,
			URL:       "https://github.com/acme/widgets/pull/" + title,
		}
	}
	fresh := mkPR("fresh", 48)
	fresh.UpdatedAt = frozenNow

	host := &fakeHost{openPRs: []*types.PullRequestSnapshot{
		mkPR("a", 10),
		mkPR("b", 72),
		fresh,
		mkPR("c", 30),
		mkPR("d", 50),
	}}
	res, err := newTestEngine(host).Scan(context.Background(), "orch_scan_1")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(res.Results) != 3 {
		t.Fatalf("results = %d, want capped at 3", len(res.Results))
	}
	wantOrder := []string{"b", "d", "c"}
	for i, title := range wantOrder {
		if res.Results[i].Title != title {
			t.Errorf("results[%d] = %s, want %s (oldest first)", i, res.Results[i].Title, title)
		}
	}
	if !strings.Contains(res.ScanText, "Unblocker scan (run_id: orch_scan_1)") {
		t.Errorf("scan text:\n%s", res.ScanText)
	}
	if strings.Contains(res.ScanText, "fresh") {
		t.Error("recently active PR reported as stalled")
	}
}

func TestScan_NoStalledPRs(t *testing.T) {
	host := &fakeHost{}
	res, err := newTestEngine(host).Scan(context.Background(), "orch_scan_1")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Results) != 0 {
		t.Errorf("results = %v", res.Results)
	}
	if !strings.Contains(res.ScanText, "No stalled PRs found.") {
		t.Errorf("scan text:\n%s", res.ScanText)
	}
}

func TestScan_RequiresDefaultRepo(t *testing.T) {
	eng := newTestEngine(&fakeHost{})
	rules := eng.rules.Rules()
	rules.DefaultRepo = ""
	eng.rules.Update(rules)

	_, err := eng.Scan(context.Background(), "orch_scan_1")
	var appErr *apierr.Error
	if !errors.As(err, &appErr) || appErr.Code != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}
