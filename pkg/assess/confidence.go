// Package assess derives confidence and risk tiers from the outputs of
// the matching and ranking stages.
package assess

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Confidence thresholds.
const (
	highConfidenceMinCandidates = 2  // Candidates needed for high confidence
	escalatedAgeMultiplier      = 10 // Age beyond threshold*N gets escalated wording
	inactivityCalloutHours      = 24 // Inactivity worth calling out explicitly
)

// Confidence derives a confidence tier from the candidate source and
// count. Zero candidates always yields none; trusted sources with at
// least two candidates yield high; everything else is low.
func Confidence(source types.Source, candidateCount int) types.ConfidenceLevel {
	if candidateCount == 0 {
		return types.ConfidenceNone
	}
	if (source == types.SourceCodeowners || source == types.SourceRecent) &&
		candidateCount >= highConfidenceMinCandidates {
		return types.ConfidenceHigh
	}
	return types.ConfidenceLow
}

// ConfidenceEvidence carries the metrics the explanation may cite.
type ConfidenceEvidence struct {
	AgeHours       float64
	ActivityHours  float64
	ThresholdHours float64
}

// ExplainConfidence assembles a human-readable explanation of a
// confidence tier: a candidate-count clause, an age-exceeds-threshold
// clause, and an inactivity clause, joined after a tier-specific prefix.
// The result is never empty.
func ExplainConfidence(confidence types.ConfidenceLevel, source types.Source, candidateCount int, ev ConfidenceEvidence) string {
	var reasons []string

	switch source {
	case types.SourceCodeowners:
		switch {
		case candidateCount >= highConfidenceMinCandidates:
			reasons = append(reasons, fmt.Sprintf("%d CODEOWNERS match modified paths", candidateCount))
		case candidateCount == 1:
			reasons = append(reasons, "1 CODEOWNER matches modified paths")
		}
	case types.SourceRecent:
		reasons = append(reasons, fmt.Sprintf("%d recent contributor(s) identified", candidateCount))
	case types.SourceFallback:
		reasons = append(reasons, "Using fallback/default reviewers")
	case types.SourceNone:
	}

	if ev.AgeHours > ev.ThresholdHours {
		if ev.AgeHours > ev.ThresholdHours*escalatedAgeMultiplier {
			reasons = append(reasons, fmt.Sprintf("PR age (%.1fh) significantly exceeds threshold (%.0fh)", ev.AgeHours, ev.ThresholdHours))
		} else {
			reasons = append(reasons, fmt.Sprintf("PR age (%.1fh) exceeds threshold (%.0fh)", ev.AgeHours, ev.ThresholdHours))
		}
	}

	if ev.ActivityHours > inactivityCalloutHours {
		reasons = append(reasons, fmt.Sprintf("No recent activity in last %.0fh", ev.ActivityHours))
	}

	var prefix string
	switch confidence {
	case types.ConfidenceHigh:
		prefix = "High confidence"
	case types.ConfidenceLow:
		prefix = "Low confidence"
	default:
		prefix = "No candidates"
	}

	if len(reasons) == 0 {
		if confidence == types.ConfidenceNone {
			return "No candidates: Unable to identify suitable reviewers"
		}
		return prefix + ": Based on available evidence"
	}

	return prefix + ": " + strings.Join(reasons, "; ")
}
