package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/assess"
	"github.com/codeGROOVE-dev/unblocker/pkg/codeowners"
	"github.com/codeGROOVE-dev/unblocker/pkg/github"
	"github.com/codeGROOVE-dev/unblocker/pkg/match"
	"github.com/codeGROOVE-dev/unblocker/pkg/plan"
	"github.com/codeGROOVE-dev/unblocker/pkg/preview"
	"github.com/codeGROOVE-dev/unblocker/pkg/rank"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Evidence is the computed input set the explanations cite. It is echoed
// back to the caller so the orchestrator can render its own views.
type Evidence struct {
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Title               string    `json:"title"`
	Labels              []string  `json:"labels"`
	RequestedReviewers  []string  `json:"requested_reviewers"`
	Files               []string  `json:"files"`
	AgeHours            float64   `json:"age_hours"`
	ActivityHours       float64   `json:"activity_hours"`
	ThresholdHours      int       `json:"threshold_hours"`
	ActivityWindowHours int       `json:"activity_window_hours"`
	Draft               bool      `json:"draft"`
}

// Metric carries the headline number the orchestrator reports.
type Metric struct {
	StalledHours float64 `json:"stalled_hours"`
}

// AnalyzeResult is the full outcome of one analysis pass.
type AnalyzeResult struct {
	RunID                 string                     `json:"run_id"`
	Mode                  string                     `json:"mode"`
	Reason                types.MatchReason          `json:"reason"`
	Confidence            types.ConfidenceLevel      `json:"confidence"`
	ConfidenceExplanation string                     `json:"confidence_explanation"`
	NonMatchExplanation   string                     `json:"non_match_explanation,omitempty"`
	Summary               string                     `json:"ai_summary"`
	Rationale             string                     `json:"ai_rationale"`
	WhyTop                string                     `json:"why_top,omitempty"`
	PreviewText           string                     `json:"preview_text"`
	Risk                  types.RiskAssessment       `json:"risk_assessment"`
	Candidates            []types.AugmentedCandidate `json:"candidates"`
	Plan                  *types.ActionPlan          `json:"plan,omitempty"`
	Evidence              Evidence                   `json:"evidence"`
	Metric                Metric                     `json:"metric"`
	PreviewBlocks         []map[string]any           `json:"preview_blocks"`
	Matched               bool                       `json:"matched"`
	ApprovalRequired      bool                       `json:"approval_required"`
	AutoExecute           bool                       `json:"auto_execute"`
}

// Analyze evaluates one pull request end to end and, when an action plan
// results, caches it under runID for later execution. All age and
// activity math derives from a single frozen instant.
func (e *Engine) Analyze(ctx context.Context, prURL, runID string) (*AnalyzeResult, error) {
	if runID == "" {
		return nil, apierr.Validation("run_id is required")
	}
	if prURL == "" {
		return nil, apierr.Validation("pr_url required for mode=why")
	}

	owner, repo, number, err := github.ParsePRURL(prURL)
	if err != nil {
		return nil, apierr.Validation("Invalid pr_url format")
	}

	snap, err := e.host.Snapshot(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	rules := e.rules.Rules()
	policy := match.Policy{
		ExcludedLabels:      rules.ExcludedLabels,
		ActivityWindowHours: float64(rules.ActivityWindowHours),
		ThresholdHours:      float64(rules.ThresholdHours),
	}

	now := e.now()
	result, err := policy.Evaluate(snap, now)
	if err != nil {
		return nil, err
	}

	candidates, source, err := e.discoverCandidates(ctx, snap, rules.DefaultReviewers)
	if err != nil {
		return nil, err
	}

	confidence := assess.Confidence(source, len(candidates))

	statsMap, err := e.stats.Stats(ctx)
	if err != nil {
		slog.Warn("Reviewer stats unavailable, scoring without history", "error", err)
		statsMap = nil
	}
	scored := rank.Candidates(candidates, source, statsMap)
	whyTop := rank.ExplainTopChoice(scored)

	summary := e.augmenter.SummarizePR(ctx, snap.Title, snap.ChangedFiles)
	augmented, aiRationale := e.augmenter.Augment(ctx, snap.Title, snap.ChangedFiles, scored)

	var actionPlan *types.ActionPlan
	if result.Matched && confidence != types.ConfidenceNone {
		reviewers := make([]string, 0, planReviewerMax)
		for i, c := range augmented {
			if i >= planReviewerMax {
				break
			}
			reviewers = append(reviewers, c.Login)
		}
		actionPlan = &types.ActionPlan{
			Action:    types.PlanActionRequestReviewers,
			PRURL:     prURL,
			Reviewers: reviewers,
			Comment:   "🤖 Unblocker: " + summary,
		}
	}

	ageHours := round1(match.HoursSince(snap.CreatedAt, now))
	activityHours := round1(match.HoursSince(snap.UpdatedAt, now))

	confidenceExplanation := assess.ExplainConfidence(confidence, source, len(augmented), assess.ConfidenceEvidence{
		AgeHours:       ageHours,
		ActivityHours:  activityHours,
		ThresholdHours: float64(rules.ThresholdHours),
	})

	risk := assess.Risk(assess.PRMeta{Files: snap.ChangedFiles, Labels: snap.Labels}, actionPlan)

	var nonMatch string
	if !result.Matched {
		nonMatch = match.ExplainNonMatch(result.Reason, match.Evidence{
			AgeHours:            ageHours,
			ActivityHours:       activityHours,
			ThresholdHours:      float64(rules.ThresholdHours),
			ActivityWindowHours: float64(rules.ActivityWindowHours),
		})
	}

	previewIn := preview.Input{
		RunID:                 runID,
		Title:                 snap.Title,
		PRURL:                 prURL,
		Summary:               summary,
		Confidence:            confidence,
		ConfidenceExplanation: confidenceExplanation,
		Risk:                  risk,
		Candidates:            augmented,
		Matched:               result.Matched,
		Plan:                  actionPlan,
		NonMatchExplanation:   nonMatch,
		WhyTop:                whyTop,
	}

	res := &AnalyzeResult{
		RunID:                 runID,
		Mode:                  "why",
		Matched:               result.Matched,
		Reason:                result.Reason,
		Confidence:            confidence,
		ApprovalRequired:      confidence == types.ConfidenceLow || confidence == types.ConfidenceNone,
		AutoExecute:           confidence == types.ConfidenceHigh && result.Matched,
		ConfidenceExplanation: confidenceExplanation,
		Risk:                  risk,
		NonMatchExplanation:   nonMatch,
		Candidates:            augmented,
		Summary:               summary,
		Rationale:             aiRationale,
		WhyTop:                whyTop,
		Plan:                  actionPlan,
		Evidence: Evidence{
			Title:               snap.Title,
			Draft:               snap.Draft,
			Labels:              snap.Labels,
			CreatedAt:           snap.CreatedAt,
			UpdatedAt:           snap.UpdatedAt,
			RequestedReviewers:  snap.RequestedReviewers,
			Files:               snap.ChangedFiles,
			AgeHours:            ageHours,
			ActivityHours:       activityHours,
			ThresholdHours:      rules.ThresholdHours,
			ActivityWindowHours: rules.ActivityWindowHours,
		},
		Metric:        Metric{StalledHours: ageHours},
		PreviewText:   preview.Text(previewIn),
		PreviewBlocks: preview.Blocks(previewIn),
	}

	if actionPlan != nil {
		e.plans.CreateAndCache(runID, plan.Record{
			Plan:         *actionPlan,
			Title:        snap.Title,
			PRURL:        prURL,
			StalledHours: ageHours,
		})
	}

	slog.Info("Analysis complete",
		"run_id", runID, "pr", prURL, "matched", result.Matched, "reason", result.Reason,
		"confidence", confidence, "candidates", len(augmented), "plan", actionPlan != nil)

	return res, nil
}

// discoverCandidates walks the source ladder: CODEOWNERS owners of the
// changed files, then recent contributors, then configured defaults. The
// PR author is never a candidate and every handle is normalized to carry
// a leading "@".
func (e *Engine) discoverCandidates(
	ctx context.Context, snap *types.PullRequestSnapshot, defaults []string,
) (handles []string, source types.Source, err error) {
	lines, err := e.host.CodeownersLines(ctx, snap.Owner, snap.Repository)
	if err != nil {
		return nil, types.SourceNone, err
	}

	candidates := codeowners.Match(lines, snap.ChangedFiles)
	source = types.SourceCodeowners

	if len(candidates) == 0 {
		candidates, err = e.host.Contributors(ctx, snap.Owner, snap.Repository, contributorLimit)
		if err != nil {
			return nil, types.SourceNone, err
		}
		source = types.SourceRecent
	}

	if len(candidates) == 0 {
		candidates = defaults
		source = types.SourceFallback
	}

	filtered := candidates[:0:0]
	for _, c := range candidates {
		if strings.TrimPrefix(c, "@") == snap.Author {
			continue
		}
		if !strings.HasPrefix(c, "@") {
			c = "@" + c
		}
		filtered = append(filtered, c)
	}

	if len(filtered) == 0 {
		return nil, types.SourceNone, nil
	}
	return filtered, source, nil
}
