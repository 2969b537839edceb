package rank

import (
	"testing"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

func TestCandidates_OrdersByDescendingScore(t *testing.T) {
	stats := map[string]types.CandidateStats{
		"alice": {RecentFileEdits: 4, MedianReviewHours: hoursPtr(1.5)},
		"bob":   {RecentFileEdits: 1},
	}

	ranked := Candidates([]string{"bob", "alice", "carol"}, types.SourceCodeowners, stats)
	if len(ranked) != 3 {
		t.Fatalf("got %d candidates, want 3", len(ranked))
	}

	wantOrder := []string{"alice", "bob", "carol"}
	for i, login := range wantOrder {
		if ranked[i].Login != login {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].Login, login)
		}
	}
	if ranked[0].Score != 1.00 {
		t.Errorf("top score = %v, want 1.00", ranked[0].Score)
	}
	if ranked[0].Source != types.SourceCodeowners {
		t.Errorf("source = %q, want codeowners", ranked[0].Source)
	}
}

func TestCandidates_StableOnTies(t *testing.T) {
	// No stats: everyone scores identically, input order must survive.
	ranked := Candidates([]string{"zoe", "adam", "mia"}, types.SourceRecent, nil)
	wantOrder := []string{"zoe", "adam", "mia"}
	for i, login := range wantOrder {
		if ranked[i].Login != login {
			t.Errorf("ranked[%d] = %s, want %s (tie order not preserved)", i, ranked[i].Login, login)
		}
	}
}

func TestCandidates_SanitizesLoginForStatsLookup(t *testing.T) {
	stats := map[string]types.CandidateStats{
		"alice": {RecentFileEdits: 4},
	}
	ranked := Candidates([]string{"@alice"}, types.SourceRecent, stats)
	if ranked[0].Score != 0.3 {
		t.Errorf("score = %v, want 0.3 (stats lookup should strip @)", ranked[0].Score)
	}
	if ranked[0].Login != "@alice" {
		t.Errorf("login = %q, want display form preserved", ranked[0].Login)
	}
}

func TestSanitizeLogin(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"@alice", "alice"},
		{"@org/team-a", "team-a"},
		{"org/team-a", "team-a"},
	}
	for _, tt := range tests {
		if got := SanitizeLogin(tt.in); got != tt.want {
			t.Errorf("SanitizeLogin(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExplainTopChoice(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		ranked []types.ScoredCandidate
	}{
		{
			name:   "empty",
			ranked: nil,
			want:   "",
		},
		{
			name: "single candidate",
			ranked: []types.ScoredCandidate{
				{ReviewerCandidate: types.ReviewerCandidate{Login: "alice"}, Score: 0.5},
			},
			want: "alice is the only candidate",
		},
		{
			name: "score gap and ownership",
			ranked: []types.ScoredCandidate{
				{
					ReviewerCandidate: types.ReviewerCandidate{Login: "alice"},
					Score:             1.00,
					Reasons:           []string{"Owns touched paths (CODEOWNERS)"},
				},
				{ReviewerCandidate: types.ReviewerCandidate{Login: "bob"}, Score: 0.5},
			},
			want: "alice ranks #1: significantly higher score (1.00 vs 0.50), owns the modified paths",
		},
		{
			name: "factors capped at two",
			ranked: []types.ScoredCandidate{
				{
					ReviewerCandidate: types.ReviewerCandidate{Login: "alice"},
					Score:             1.00,
					Reasons: []string{
						"Owns touched paths (CODEOWNERS)",
						"Edited touched files 4x in last 30 days",
						"Median review time: 1h",
					},
				},
				{ReviewerCandidate: types.ReviewerCandidate{Login: "bob"}, Score: 0.95},
			},
			want: "alice ranks #1: owns the modified paths, recently worked on these files",
		},
		{
			name: "no differentiators",
			ranked: []types.ScoredCandidate{
				{ReviewerCandidate: types.ReviewerCandidate{Login: "alice"}, Score: 0.15,
					Reasons: []string{"Median review time: 30h (slow)"}},
				{ReviewerCandidate: types.ReviewerCandidate{Login: "bob"}, Score: 0.15},
			},
			want: "alice ranks #1: best combination of ownership and availability",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExplainTopChoice(tt.ranked); got != tt.want {
				t.Errorf("ExplainTopChoice() = %q, want %q", got, tt.want)
			}
		})
	}
}
