package rank

import (
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Score computes the deterministic suitability score for one candidate.
// The model is additive: ownership, recency, and responsiveness each
// contribute independently and each non-zero component emits one reason
// string. The sum is rounded to two decimals and always lands in [0,1].
func Score(source types.Source, stats types.CandidateStats) (float64, []string) {
	var reasons []string
	var score float64

	if source == types.SourceCodeowners {
		score += ownershipScore
		reasons = append(reasons, "Owns touched paths (CODEOWNERS)")
	}

	switch {
	case stats.RecentFileEdits >= highEditThreshold:
		score += highRecencyScore
		reasons = append(reasons, fmt.Sprintf("Edited touched files %dx in last 30 days", stats.RecentFileEdits))
	case stats.RecentFileEdits >= 1:
		score += lowRecencyScore
		reasons = append(reasons, fmt.Sprintf("Edited touched files recently (%dx)", stats.RecentFileEdits))
	}

	// Responsiveness requires review history; absence emits no reason.
	if stats.MedianReviewHours != nil {
		hours := *stats.MedianReviewHours
		switch {
		case hours <= fastReviewHours:
			score += fastResponseScore
			reasons = append(reasons, fmt.Sprintf("Median review time: %gh", hours))
		case hours <= okReviewHours:
			score += okResponseScore
			reasons = append(reasons, fmt.Sprintf("Median review time: %gh", hours))
		default:
			reasons = append(reasons, fmt.Sprintf("Median review time: %gh (slow)", hours))
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "no historical signal; default fallback")
	}

	return round2(score), reasons
}

// round2 rounds to exactly two decimal places.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
