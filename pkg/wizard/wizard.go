// Package wizard turns a constrained natural-language rule description
// into a stall-rule configuration: regex first, AI normalization as the
// fallback, with an optional dry-run against a live PR and optional
// activation of the parsed rule.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/config"
	"github.com/codeGROOVE-dev/unblocker/pkg/github"
	"github.com/codeGROOVE-dev/unblocker/pkg/llm"
	"github.com/codeGROOVE-dev/unblocker/pkg/match"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// RuleName identifies the single rule kind the wizard can configure.
const RuleName = "S2_reviewer_missing"

const (
	defaultThresholdHours = 24
	normalizeMaxTokens    = 100
)

// inputPattern is the constrained rule template, e.g.
// "If PR has no reviewers after 2 hours, request reviewers from CODEOWNERS".
var inputPattern = regexp.MustCompile(
	`(?i)(?:If|When)\s+(?:a\s+)?PR\s+has\s+no\s+reviewers?\s+after\s+(\d+)\s*h(?:ours?)?,?\s*` +
		`request\s+reviewers?\s+from\s+(CODEOWNERS|recent|default)`)

// Snapshotter fetches a PR snapshot for dry-runs.
type Snapshotter interface {
	Snapshot(ctx context.Context, owner, repo string, number int) (*types.PullRequestSnapshot, error)
}

// Wizard parses and optionally activates stall rules.
type Wizard struct {
	provider llm.Provider
	rules    *config.Store
	host     Snapshotter
	now      func() time.Time
}

// New creates a Wizard. provider may be nil, disabling AI normalization.
func New(provider llm.Provider, rules *config.Store, host Snapshotter) *Wizard {
	return &Wizard{provider: provider, rules: rules, host: host, now: time.Now}
}

// Input is one wizard request.
type Input struct {
	Text     string
	RunID    string
	DryRunPR string
	Activate bool
}

// ConfigPreview is the parsed rule shown to the user before activation.
type ConfigPreview struct {
	Rule           string   `json:"rule"`
	ReviewerSource string   `json:"reviewer_source"`
	ExcludedLabels []string `json:"excluded_labels"`
	ThresholdHours int      `json:"threshold_hours"`
}

// DryRun reports what the parsed rule would decide for one PR.
type DryRun struct {
	PRURL      string            `json:"pr_url"`
	PRTitle    string            `json:"pr_title"`
	Reason     types.MatchReason `json:"reason"`
	Error      string            `json:"error,omitempty"`
	WouldMatch bool              `json:"would_match"`
}

// Result statuses.
const (
	StatusPreview     = "preview"
	StatusActivated   = "activated"
	StatusParseFailed = "parse_failed"
)

// Result is the wizard response.
type Result struct {
	RunID       string         `json:"run_id"`
	Status      string         `json:"status"`
	ParseMethod string         `json:"parse_method,omitempty"`
	Input       string         `json:"input"`
	Message     string         `json:"message,omitempty"`
	PreviewText string         `json:"preview_text"`
	Config      *ConfigPreview `json:"config,omitempty"`
	DryRun      *DryRun        `json:"dry_run,omitempty"`
}

// parsedRule is the intermediate form both parse paths produce.
type parsedRule struct {
	Source         string   `json:"source"`
	ExcludedLabels []string `json:"excluded_labels"`
	ThresholdHours int      `json:"threshold_hours"`
}

// Run parses in.Text, optionally dry-runs the rule, and optionally
// activates it.
func (w *Wizard) Run(ctx context.Context, in Input) (*Result, error) {
	if in.RunID == "" {
		return nil, apierr.Validation("run_id is required")
	}
	text := strings.TrimSpace(in.Text)

	parsed, method := w.parse(ctx, text)
	if parsed == nil {
		res := &Result{
			RunID:  in.RunID,
			Status: StatusParseFailed,
			Input:  text,
			Message: "Could not parse input. Please use format: " +
				"'If PR has no reviewers after X hours, request reviewers from CODEOWNERS|recent|default'",
		}
		res.PreviewText = previewText(res, nil)
		return res, nil
	}

	source := strings.ToLower(parsed.Source)
	switch source {
	case "codeowners", "recent", "default":
	default:
		source = "codeowners"
	}

	threshold := parsed.ThresholdHours
	if threshold <= 0 {
		threshold = defaultThresholdHours
	}

	excluded := parsed.ExcludedLabels
	if len(excluded) == 0 {
		excluded = w.rules.Rules().ExcludedLabels
	}

	preview := &ConfigPreview{
		Rule:           RuleName,
		ThresholdHours: threshold,
		ReviewerSource: source,
		ExcludedLabels: excluded,
	}

	res := &Result{
		RunID:       in.RunID,
		Status:      StatusPreview,
		ParseMethod: method,
		Input:       text,
		Config:      preview,
	}

	if in.DryRunPR != "" {
		res.DryRun = w.dryRun(ctx, in.DryRunPR, preview)
	}

	if in.Activate {
		rules := w.rules.Rules()
		rules.ThresholdHours = preview.ThresholdHours
		rules.ReviewerSource = source
		rules.ExcludedLabels = preview.ExcludedLabels
		w.rules.Update(rules)

		res.Status = StatusActivated
		res.Message = fmt.Sprintf(
			"Rule activated: PRs without reviewers after %dh will trigger reviewer requests from %s.",
			preview.ThresholdHours, source)
		slog.Info("Wizard rule activated", "run_id", in.RunID,
			"threshold_hours", preview.ThresholdHours, "source", source)
	}

	res.PreviewText = previewText(res, preview)
	return res, nil
}

// parse tries the regex template first, then AI normalization.
func (w *Wizard) parse(ctx context.Context, text string) (*parsedRule, string) {
	if m := inputPattern.FindStringSubmatch(text); m != nil {
		threshold, err := strconv.Atoi(m[1])
		if err == nil {
			return &parsedRule{ThresholdHours: threshold, Source: strings.ToLower(m[2])}, "regex"
		}
	}
	if rule := w.normalize(ctx, text); rule != nil {
		return rule, "ai"
	}
	return nil, ""
}

// normalize asks the AI collaborator to turn free-form input into a
// structured rule. Any failure yields nil.
func (w *Wizard) normalize(ctx context.Context, text string) *parsedRule {
	if w.provider == nil {
		return nil
	}

	prompt := fmt.Sprintf(`Parse this natural language rule into a JSON config.

Input: %q

Expected format:
{"threshold_hours": <number>, "source": "<CODEOWNERS|recent|default>", "excluded_labels": [<list or null>]}

If the input doesn't describe a reviewer rule, respond with: INVALID

Output only the JSON or INVALID, nothing else.`, text)

	raw, err := w.provider.Generate(ctx, prompt, llm.Settings{MaxTokens: normalizeMaxTokens})
	if err != nil {
		slog.Warn("AI wizard normalization unavailable", "error", err)
		return nil
	}

	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "INVALID") {
		slog.Info("Wizard input rejected by AI", "input", truncate(text, 100))
		return nil
	}

	// Strip a markdown code fence if the model added one.
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.Index(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
	}

	var rule parsedRule
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &rule); err != nil {
		slog.Warn("Failed to parse AI wizard response as JSON", "error", err)
		return nil
	}
	return &rule
}

// dryRun evaluates the parsed rule against one live PR. Errors are
// reported in the result rather than failing the wizard call.
func (w *Wizard) dryRun(ctx context.Context, prURL string, preview *ConfigPreview) *DryRun {
	owner, repo, number, err := github.ParsePRURL(prURL)
	if err != nil {
		return &DryRun{PRURL: prURL, Error: "invalid pr_url format"}
	}
	snap, err := w.host.Snapshot(ctx, owner, repo, number)
	if err != nil {
		return &DryRun{PRURL: prURL, Error: err.Error()}
	}

	policy := match.Policy{
		ExcludedLabels:      preview.ExcludedLabels,
		ActivityWindowHours: float64(w.rules.Rules().ActivityWindowHours),
		ThresholdHours:      float64(preview.ThresholdHours),
	}
	result, err := policy.Evaluate(snap, w.now())
	if err != nil {
		return &DryRun{PRURL: prURL, PRTitle: snap.Title, Error: err.Error()}
	}

	return &DryRun{
		PRURL:      prURL,
		PRTitle:    snap.Title,
		WouldMatch: result.Matched,
		Reason:     result.Reason,
	}
}

// previewText renders the wizard result as plain text.
func previewText(res *Result, preview *ConfigPreview) string {
	lines := []string{
		fmt.Sprintf("🧙 Pattern Wizard (run_id: %s)", res.RunID),
		"",
		fmt.Sprintf("Input: %q", res.Input),
	}

	if res.Status == StatusParseFailed {
		lines = append(lines, "", res.Message)
		return strings.Join(lines, "\n")
	}

	lines = append(lines,
		fmt.Sprintf("Parse method: %s", res.ParseMethod),
		"",
		"Extracted Configuration:",
		fmt.Sprintf("  • Rule: %s", preview.Rule),
		fmt.Sprintf("  • Threshold: %d hours", preview.ThresholdHours),
		fmt.Sprintf("  • Reviewer source: %s", preview.ReviewerSource),
		fmt.Sprintf("  • Excluded labels: %s", strings.Join(preview.ExcludedLabels, ", ")),
	)

	if res.DryRun != nil && res.DryRun.Error == "" {
		wouldMatch := "No"
		if res.DryRun.WouldMatch {
			wouldMatch = "Yes"
		}
		lines = append(lines,
			"",
			"Dry-run result:",
			fmt.Sprintf("  • PR: %s", res.DryRun.PRTitle),
			fmt.Sprintf("  • Would match: %s (%s)", wouldMatch, res.DryRun.Reason),
		)
	}

	if res.Status == StatusActivated {
		lines = append(lines, "", "✅ Configuration activated!")
	} else {
		lines = append(lines, "", "To activate, call with activate=true")
	}

	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
