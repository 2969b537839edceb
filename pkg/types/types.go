// Package types contains shared data structures used across the unblocker system.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

import "time"

// Source identifies how reviewer candidates were discovered.
type Source string

// Candidate sources, in order of decreasing trust.
const (
	SourceCodeowners Source = "codeowners"
	SourceRecent     Source = "recent"
	SourceFallback   Source = "fallback"
	SourceNone       Source = "none"
)

// Valid reports whether s is a known candidate source.
func (s Source) Valid() bool {
	switch s {
	case SourceCodeowners, SourceRecent, SourceFallback, SourceNone:
		return true
	}
	return false
}

// MatchReason is the single reason code produced by a stall evaluation.
// Exactly one reason is emitted per evaluation; the codes mirror the
// rule order in match.Evaluate.
type MatchReason string

// Stall evaluation reason codes.
const (
	ReasonDraft            MatchReason = "draft"
	ReasonExcludedLabel    MatchReason = "excluded_label"
	ReasonAlreadyRequested MatchReason = "already_requested"
	ReasonRecentActivity   MatchReason = "recent_activity"
	ReasonTooNew           MatchReason = "too_new"
	ReasonStalled          MatchReason = "s2_match"
)

// Valid reports whether r is a known match reason.
func (r MatchReason) Valid() bool {
	switch r {
	case ReasonDraft, ReasonExcludedLabel, ReasonAlreadyRequested,
		ReasonRecentActivity, ReasonTooNew, ReasonStalled:
		return true
	}
	return false
}

// ConfidenceLevel grades how strongly the candidate evidence supports
// acting without human review.
type ConfidenceLevel string

// Confidence tiers.
const (
	ConfidenceNone ConfidenceLevel = "none"
	ConfidenceLow  ConfidenceLevel = "low"
	ConfidenceHigh ConfidenceLevel = "high"
)

// Valid reports whether c is a known confidence tier.
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceNone, ConfidenceLow, ConfidenceHigh:
		return true
	}
	return false
}

// RiskLevel grades the estimated blast radius of executing a plan.
type RiskLevel string

// Risk tiers.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is a known risk tier.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// PlanAction identifies the kind of external action a plan proposes.
type PlanAction string

// PlanActionRequestReviewers is the only action the engine currently plans.
const PlanActionRequestReviewers PlanAction = "request_reviewers"

// PullRequestSnapshot is an immutable view of one pull request at fetch
// time. The decision engine never mutates a snapshot and performs no I/O
// of its own; all fields are populated by the source-control collaborator.
type PullRequestSnapshot struct {
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Title              string    `json:"title"`
	URL                string    `json:"url"`
	Author             string    `json:"author"`
	Owner              string    `json:"owner"`
	Repository         string    `json:"repository"`
	Labels             []string  `json:"labels"`
	RequestedReviewers []string  `json:"requested_reviewers"`
	ChangedFiles       []string  `json:"changed_files"`
	Number             int       `json:"number"`
	Draft              bool      `json:"draft"`
}

// HasLabel reports whether the snapshot carries the given label.
func (pr *PullRequestSnapshot) HasLabel(label string) bool {
	for _, l := range pr.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ReviewerCandidate is a potential reviewer before scoring. Login always
// carries a leading "@".
type ReviewerCandidate struct {
	Login  string `json:"login"`
	Source Source `json:"source"`
}

// CandidateStats is the historical record for one reviewer login.
// MedianReviewHours is nil when no review history exists; a missing
// record is represented by the zero value, never an error.
type CandidateStats struct {
	MedianReviewHours *float64 `json:"median_review_hours,omitempty"`
	RecentFileEdits   int      `json:"recent_file_edits"`
}

// ScoredCandidate is a reviewer candidate with its deterministic
// suitability score in [0,1] (two decimals) and the ordered list of
// reasons that produced it. Reasons is never empty.
type ScoredCandidate struct {
	ReviewerCandidate
	Reasons []string `json:"reasons"`
	Score   float64  `json:"score"`
}

// AugmentedCandidate is a scored candidate with attached natural-language
// rationale. Built by the rationale augmenter, which only ever adds the
// Rationale field and never reorders candidates.
type AugmentedCandidate struct {
	ScoredCandidate
	Rationale string `json:"rationale"`
}

// MatchResult is the outcome of a stall evaluation.
type MatchResult struct {
	Reason  MatchReason `json:"reason"`
	Matched bool        `json:"matched"`
}

// RiskAssessment is the outcome of a plan risk evaluation. Factors
// preserve clause evaluation order.
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// ActionPlan is a concrete, time-bounded proposal to request reviewers
// on a pull request.
type ActionPlan struct {
	Action    PlanAction `json:"action"`
	PRURL     string     `json:"pr_url"`
	Comment   string     `json:"comment,omitempty"`
	Reviewers []string   `json:"reviewers"`
}
