package rank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Candidates scores every candidate and orders them by descending score.
// Stats are looked up by login with the leading "@" and any owner-path
// prefix stripped; a missing entry scores as an all-zero record. The sort
// is stable: candidates with equal scores keep their relative input order.
func Candidates(candidates []string, source types.Source, stats map[string]types.CandidateStats) []types.ScoredCandidate {
	ranked := make([]types.ScoredCandidate, 0, len(candidates))
	for _, login := range candidates {
		score, reasons := Score(source, stats[SanitizeLogin(login)])
		ranked = append(ranked, types.ScoredCandidate{
			ReviewerCandidate: types.ReviewerCandidate{Login: login, Source: source},
			Score:             score,
			Reasons:           reasons,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// SanitizeLogin strips the leading "@" and any owner-path prefix
// ("org/team" CODEOWNERS entries) from a login for stats lookup.
func SanitizeLogin(login string) string {
	login = strings.TrimPrefix(login, "@")
	if i := strings.LastIndex(login, "/"); i >= 0 {
		login = login[i+1:]
	}
	return login
}

// ExplainTopChoice renders a "why #1" sentence comparing the top two
// ranked candidates. Up to two differentiating factors are cited, in
// fixed priority order: score gap, ownership, recency, responsiveness.
func ExplainTopChoice(ranked []types.ScoredCandidate) string {
	if len(ranked) == 0 {
		return ""
	}
	if len(ranked) == 1 {
		return fmt.Sprintf("%s is the only candidate", ranked[0].Login)
	}

	top, second := ranked[0], ranked[1]
	var factors []string

	if top.Score-second.Score >= significantScoreGap {
		factors = append(factors, fmt.Sprintf("significantly higher score (%.2f vs %.2f)", top.Score, second.Score))
	}
	if hasOwnershipReason(top.Reasons) {
		factors = append(factors, "owns the modified paths")
	}
	if hasRecencyReason(top.Reasons) {
		factors = append(factors, "recently worked on these files")
	}
	if hasFastResponseReason(top.Reasons) {
		factors = append(factors, "faster response time")
	}

	if len(factors) == 0 {
		factors = append(factors, "best combination of ownership and availability")
	}
	if len(factors) > maxExplainFactors {
		factors = factors[:maxExplainFactors]
	}

	return fmt.Sprintf("%s ranks #1: %s", top.Login, strings.Join(factors, ", "))
}

func hasOwnershipReason(reasons []string) bool {
	for _, r := range reasons {
		if strings.Contains(r, "CODEOWNERS") {
			return true
		}
	}
	return false
}

func hasRecencyReason(reasons []string) bool {
	for _, r := range reasons {
		if strings.HasPrefix(r, "Edited") {
			return true
		}
	}
	return false
}

func hasFastResponseReason(reasons []string) bool {
	for _, r := range reasons {
		if strings.Contains(r, "review time") && !strings.Contains(r, "(slow)") {
			return true
		}
	}
	return false
}
