package assess

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Risk scoring weights and thresholds.
const (
	sensitiveFileWeight = 2
	reviewerCountWeight = 1
	riskyLabelWeight    = 1

	typicalMaxReviewers = 3 // Requesting more than this adds risk
	maxListedPaths      = 3 // Sensitive paths listed in a factor

	highRiskThreshold   = 3
	mediumRiskThreshold = 1
)

// sensitivePatterns are matched case-insensitively as substrings of
// changed file paths.
var sensitivePatterns = []string{
	".env", "secret", "credential", "password", "key",
	"config/prod", "production", ".pem", ".key",
}

// riskyLabelPatterns are matched case-insensitively as substrings of
// PR labels.
var riskyLabelPatterns = []string{"breaking-change", "security", "critical", "urgent"}

// PRMeta is the slice of PR metadata risk assessment inspects.
type PRMeta struct {
	Files  []string
	Labels []string
}

// Risk assesses the blast radius of executing plan against the PR
// described by meta. Factors accumulate in fixed clause order:
// reversibility, sensitive files, reviewer count, risky labels. The
// reversibility and sensitive-file clauses always contribute a factor
// even when score-neutral; plan may be nil.
func Risk(meta PRMeta, plan *types.ActionPlan) types.RiskAssessment {
	var factors []string
	score := 0

	switch {
	case plan != nil && plan.Action == types.PlanActionRequestReviewers:
		factors = append(factors, "Action (request_reviewers) is easily reversible")
	case plan != nil && plan.Action == "comment":
		factors = append(factors, "Action (comment) is easily deletable")
	default:
		factors = append(factors, "No action proposed")
	}

	sensitive := matchSubstrings(meta.Files, sensitivePatterns)
	if len(sensitive) > 0 {
		score += sensitiveFileWeight
		if len(sensitive) > maxListedPaths {
			sensitive = sensitive[:maxListedPaths]
		}
		factors = append(factors, "Sensitive files detected: "+strings.Join(sensitive, ", "))
	} else {
		factors = append(factors, "No sensitive files modified")
	}

	var reviewers int
	if plan != nil {
		reviewers = len(plan.Reviewers)
	}
	switch {
	case reviewers > typicalMaxReviewers:
		score += reviewerCountWeight
		factors = append(factors, fmt.Sprintf("Requesting %d reviewers (above typical)", reviewers))
	case reviewers > 0:
		factors = append(factors, fmt.Sprintf("Requesting %d reviewer(s)", reviewers))
	}

	if risky := matchSubstrings(meta.Labels, riskyLabelPatterns); len(risky) > 0 {
		score += riskyLabelWeight
		factors = append(factors, "Risk-indicating labels: "+strings.Join(risky, ", "))
	}

	level := types.RiskLow
	switch {
	case score >= highRiskThreshold:
		level = types.RiskHigh
	case score >= mediumRiskThreshold:
		level = types.RiskMedium
	}

	return types.RiskAssessment{Level: level, Factors: factors}
}

// matchSubstrings returns the values containing any of the patterns,
// case-insensitively, preserving input order.
func matchSubstrings(values, patterns []string) []string {
	var matched []string
	for _, v := range values {
		lower := strings.ToLower(v)
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				matched = append(matched, v)
				break
			}
		}
	}
	return matched
}
