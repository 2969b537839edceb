// Package stats provides the historical reviewer-stats collaborator.
// Stats are a static seeded table: the engine never learns from
// outcomes, and a missing login is an all-zero record, never an error.
package stats

import (
	"context"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Source supplies the mapping from sanitized login (no "@", no owner
// prefix) to historical stats.
type Source interface {
	Stats(ctx context.Context) (map[string]types.CandidateStats, error)
}

// Static is an in-memory Source, used for tests and for wiring a
// pre-loaded table.
type Static map[string]types.CandidateStats

// Stats returns the underlying table.
func (s Static) Stats(context.Context) (map[string]types.CandidateStats, error) {
	return s, nil
}
