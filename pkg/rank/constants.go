// Package rank provides deterministic scoring and ordering of reviewer
// candidates.
package rank

// Scoring model weights and thresholds.
const (
	ownershipScore = 0.5 // Candidate came from CODEOWNERS

	highEditThreshold = 3    // Edits needed for the full recency score
	highRecencyScore  = 0.3  // recentFileEdits >= highEditThreshold
	lowRecencyScore   = 0.15 // recentFileEdits >= 1

	fastReviewHours    = 2.0 // Median review time for the full responsiveness score
	fastResponseScore  = 0.2
	okReviewHours      = 8.0 // Median review time for the partial responsiveness score
	okResponseScore    = 0.1

	significantScoreGap = 0.2 // Score difference worth calling out in explanations
	maxExplainFactors   = 2   // Differentiating factors cited per explanation
)
