package assess

import (
	"testing"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

func TestConfidence_Grid(t *testing.T) {
	tests := []struct {
		source types.Source
		want   types.ConfidenceLevel
		count  int
	}{
		{types.SourceCodeowners, types.ConfidenceNone, 0},
		{types.SourceCodeowners, types.ConfidenceLow, 1},
		{types.SourceCodeowners, types.ConfidenceHigh, 2},
		{types.SourceCodeowners, types.ConfidenceHigh, 5},
		{types.SourceRecent, types.ConfidenceLow, 1},
		{types.SourceRecent, types.ConfidenceHigh, 3},
		{types.SourceFallback, types.ConfidenceLow, 1},
		{types.SourceFallback, types.ConfidenceLow, 4},
		{types.SourceNone, types.ConfidenceNone, 0},
	}

	for _, tt := range tests {
		if got := Confidence(tt.source, tt.count); got != tt.want {
			t.Errorf("Confidence(%s, %d) = %s, want %s", tt.source, tt.count, got, tt.want)
		}
	}
}

func TestExplainConfidence(t *testing.T) {
	ev := ConfidenceEvidence{AgeHours: 48, ActivityHours: 30, ThresholdHours: 1}

	tests := []struct {
		name       string
		source     types.Source
		confidence types.ConfidenceLevel
		want       string
		ev         ConfidenceEvidence
		count      int
	}{
		{
			name:       "high confidence codeowners with all clauses",
			source:     types.SourceCodeowners,
			confidence: types.ConfidenceHigh,
			count:      2,
			ev:         ev,
			want: "High confidence: 2 CODEOWNERS match modified paths; " +
				"PR age (48.0h) significantly exceeds threshold (1h); " +
				"No recent activity in last 30h",
		},
		{
			name:       "single codeowner",
			source:     types.SourceCodeowners,
			confidence: types.ConfidenceLow,
			count:      1,
			ev:         ConfidenceEvidence{AgeHours: 2, ThresholdHours: 1},
			want:       "Low confidence: 1 CODEOWNER matches modified paths; PR age (2.0h) exceeds threshold (1h)",
		},
		{
			name:       "recent contributors",
			source:     types.SourceRecent,
			confidence: types.ConfidenceHigh,
			count:      3,
			ev:         ConfidenceEvidence{ThresholdHours: 1},
			want:       "High confidence: 3 recent contributor(s) identified",
		},
		{
			name:       "fallback reviewers",
			source:     types.SourceFallback,
			confidence: types.ConfidenceLow,
			count:      2,
			ev:         ConfidenceEvidence{ThresholdHours: 1},
			want:       "Low confidence: Using fallback/default reviewers",
		},
		{
			name:       "no candidates and no evidence",
			source:     types.SourceNone,
			confidence: types.ConfidenceNone,
			count:      0,
			ev:         ConfidenceEvidence{ThresholdHours: 1},
			want:       "No candidates: Unable to identify suitable reviewers",
		},
		{
			name:       "no candidates but stall evidence",
			source:     types.SourceNone,
			confidence: types.ConfidenceNone,
			count:      0,
			ev:         ConfidenceEvidence{AgeHours: 6, ThresholdHours: 1},
			want:       "No candidates: PR age (6.0h) exceeds threshold (1h)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExplainConfidence(tt.confidence, tt.source, tt.count, tt.ev)
			if got != tt.want {
				t.Errorf("ExplainConfidence() = %q, want %q", got, tt.want)
			}
		})
	}
}
