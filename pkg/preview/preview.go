// Package preview renders analysis results for humans: a plain-text
// summary for chat surfaces and Slack Block Kit blocks for rich display.
// Rendering is deterministic; the same input always yields the same
// output.
package preview

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Display limits.
const (
	maxReviewerLines   = 3
	maxReasonsPerLine  = 3
	maxBlockReasons    = 2
	maxBlockRiskLines  = 2
	maxTextRiskLines   = 3
	maxStatusBlockText = 200
)

// Input carries everything one analysis produced that is worth showing.
type Input struct {
	RunID                 string
	Title                 string
	PRURL                 string
	Summary               string
	ConfidenceExplanation string
	NonMatchExplanation   string
	WhyTop                string
	Confidence            types.ConfidenceLevel
	Risk                  types.RiskAssessment
	Candidates            []types.AugmentedCandidate
	Plan                  *types.ActionPlan
	Matched               bool
}

// Text renders the plain-text preview.
func Text(in Input) string {
	lines := []string{
		fmt.Sprintf("Unblocker preview (run_id: %s)", in.RunID),
		fmt.Sprintf("PR: %s (%s)", in.Title, in.PRURL),
		"",
		fmt.Sprintf("📝 AI Summary: %s", in.Summary),
		"",
		fmt.Sprintf("📊 Confidence: %s", capitalize(string(in.Confidence))),
	}

	// The explanation reads "<tier prefix>: detail; detail".
	if _, details, found := strings.Cut(in.ConfidenceExplanation, ": "); found {
		for _, detail := range strings.Split(details, "; ") {
			lines = append(lines, "   → "+detail)
		}
	}

	lines = append(lines, "", fmt.Sprintf("⚠️ Risk: %s", capitalize(string(in.Risk.Level))))
	for _, factor := range head(in.Risk.Factors, maxTextRiskLines) {
		lines = append(lines, "   → "+factor)
	}

	lines = append(lines, "", "Recommended Reviewers:")
	for i, c := range in.Candidates {
		if i >= maxReviewerLines {
			break
		}
		lines = append(lines, fmt.Sprintf("  %d. %s (Score: %.2f)", i+1, c.Login, c.Score))
		for _, reason := range head(c.Reasons, maxReasonsPerLine) {
			lines = append(lines, "     -> "+reason)
		}
	}

	if in.WhyTop != "" {
		lines = append(lines, "", "[Why #1] "+in.WhyTop)
	}

	if in.Matched && in.Plan != nil {
		lines = append(lines, "", "Action: request reviewers "+strings.Join(in.Plan.Reviewers, ", "))
	} else if in.NonMatchExplanation != "" {
		lines = append(lines, "", in.NonMatchExplanation)
	}

	return strings.Join(lines, "\n")
}

// Blocks renders Slack Block Kit blocks for the same input.
func Blocks(in Input) []map[string]any {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": "🔓 Unblocker Analysis", "emoji": true},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*<%s|%s>*", in.PRURL, in.Title)},
			"accessory": map[string]any{
				"type":      "button",
				"text":      map[string]any{"type": "plain_text", "text": "View PR", "emoji": true},
				"url":       in.PRURL,
				"action_id": "view_pr",
			},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "📝 *AI Summary*\n" + in.Summary},
		},
		{"type": "divider"},
		confidenceRiskFields(in),
		{"type": "divider"},
	}

	if len(in.Candidates) > 0 {
		blocks = append(blocks, reviewerSection(in))
	}

	if in.Matched && in.Plan != nil {
		blocks = append(blocks,
			map[string]any{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": "*✅ Proposed Action*\nRequest reviewers: " + strings.Join(in.Plan.Reviewers, ", "),
				},
			},
			map[string]any{
				"type": "actions",
				"elements": []map[string]any{
					{
						"type":      "button",
						"text":      map[string]any{"type": "plain_text", "text": "✓ Approve", "emoji": true},
						"style":     "primary",
						"action_id": "approve_" + in.RunID,
						"value":     in.RunID,
					},
					{
						"type":      "button",
						"text":      map[string]any{"type": "plain_text", "text": "✗ Cancel", "emoji": true},
						"style":     "danger",
						"action_id": "cancel_" + in.RunID,
						"value":     in.RunID,
					},
				},
			},
		)
	} else {
		status := in.NonMatchExplanation
		if status == "" {
			status = "No action required"
		}
		if len(status) > maxStatusBlockText {
			// Cut on a rune boundary so a multi-byte character is
			// never split.
			cut := maxStatusBlockText - 3
			for cut > 0 && !utf8.RuneStart(status[cut]) {
				cut--
			}
			status = status[:cut] + "..."
		}
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "*ℹ️ Status*\n" + status},
		})
	}

	blocks = append(blocks, map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{"type": "mrkdwn", "text": fmt.Sprintf("Run ID: `%s` | unblocker", in.RunID)},
		},
	})

	return blocks
}

func confidenceRiskFields(in Input) map[string]any {
	confEmoji := "⚪"
	switch in.Confidence {
	case types.ConfidenceHigh:
		confEmoji = "🟢"
	case types.ConfidenceLow:
		confEmoji = "🟡"
	case types.ConfidenceNone:
	}

	riskEmoji := "🔴"
	switch in.Risk.Level {
	case types.RiskLow:
		riskEmoji = "🟢"
	case types.RiskMedium:
		riskEmoji = "🟡"
	case types.RiskHigh:
	}

	confDetails := in.ConfidenceExplanation
	if _, details, found := strings.Cut(in.ConfidenceExplanation, ": "); found {
		confDetails = details
	}

	var riskLines []string
	for _, f := range head(in.Risk.Factors, maxBlockRiskLines) {
		riskLines = append(riskLines, "• "+f)
	}

	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s Confidence: %s*\n%s", confEmoji, capitalize(string(in.Confidence)), confDetails),
			},
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s Risk: %s*\n%s", riskEmoji, capitalize(string(in.Risk.Level)), strings.Join(riskLines, "\n")),
			},
		},
	}
}

func reviewerSection(in Input) map[string]any {
	var lines []string
	for i, c := range in.Candidates {
		if i >= maxReviewerLines {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. *%s* `%.2f` — %s",
			i+1, c.Login, c.Score, strings.Join(head(c.Reasons, maxBlockReasons), ", ")))
	}
	text := strings.Join(lines, "\n")
	if in.WhyTop != "" {
		text += "\n\n:bulb: _" + in.WhyTop + "_"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": "*👥 Recommended Reviewers*\n" + text},
	}
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
