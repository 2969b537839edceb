package plan

import (
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// RunIDPrefix is the origin-token convention: only run IDs minted in the
// orchestrator's namespace may consume a plan. This is an anti-spoofing
// gate, not an authentication scheme.
const RunIDPrefix = "orch_"

// Manager governs plan validity and the approve/expire gate. It performs
// no network calls itself; the caller executes the returned plan.
type Manager struct {
	store *Store
}

// NewManager creates a Manager backed by the given store.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// CreateAndCache stores rec under runID, overwriting any previous record
// for the same runID.
func (m *Manager) CreateAndCache(runID string, rec Record) {
	m.store.Put(runID, rec)
	slog.Info("Plan cached", "run_id", runID, "pr_url", rec.PRURL, "reviewers", len(rec.Plan.Reviewers))
}

// Outcome is the result of a successful or cancelled Consume call.
type Outcome struct {
	Plan         types.ActionPlan
	Title        string
	PRURL        string
	StalledHours float64
	Cancelled    bool
	FromCache    bool
}

// Consume resolves and validates the plan for runID, removing the cached
// record on success. Rules, in order:
//
//   - approved=false cancels without touching any state and never fails.
//   - runID must carry the orchestrator prefix, else Unauthorized.
//   - an expired cached record is deleted and the call fails Gone; this
//     check runs before any plan is used.
//   - no cached record and no explicit plan fails NotFound.
//   - an explicit plan takes precedence over the cached one.
//   - the effective plan must be structurally valid, else BadRequest.
func (m *Manager) Consume(runID string, approved bool, explicit *types.ActionPlan) (Outcome, error) {
	if !approved {
		slog.Info("Plan consumption cancelled", "run_id", runID)
		return Outcome{Cancelled: true}, nil
	}

	if !strings.HasPrefix(runID, RunIDPrefix) {
		slog.Warn("Rejected run_id outside orchestrator namespace", "run_id", runID)
		return Outcome{}, apierr.Unauthorized("Invalid run_id format. Actions must be initiated through the orchestrator.")
	}

	rec, found, expired := m.store.take(runID)
	if expired {
		slog.Warn("Cached plan expired", "run_id", runID)
		return Outcome{}, apierr.Gone("Plan expired. Re-run analysis to get a fresh plan.")
	}
	if !found && explicit == nil {
		return Outcome{}, apierr.NotFound("No cached plan for run_id; provide explicit plan.")
	}

	effective := rec.Plan
	fromCache := found
	if explicit != nil {
		effective = *explicit
		fromCache = false
	}

	if err := validatePlan(&effective); err != nil {
		// take already removed the cached record; put it back so a
		// bad explicit plan does not burn it.
		if found {
			m.store.restore(runID, rec)
		}
		return Outcome{}, err
	}

	return Outcome{
		Plan:         effective,
		Title:        rec.Title,
		PRURL:        rec.PRURL,
		StalledHours: rec.StalledHours,
		FromCache:    fromCache,
	}, nil
}

// validatePlan checks the structural invariants a plan must satisfy
// before execution.
func validatePlan(p *types.ActionPlan) error {
	if p.Action != types.PlanActionRequestReviewers {
		return apierr.BadRequest("unsupported action")
	}
	if p.PRURL == "" {
		return apierr.BadRequest("plan missing pr_url")
	}
	if len(p.Reviewers) == 0 {
		return apierr.BadRequest("no reviewers to request")
	}
	return nil
}
