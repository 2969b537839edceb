package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// PostgresStore reads the seeded stats table from the reviewer_stats
// table. Writes happen out of band (seed scripts, migrations); the
// engine only ever reads.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Stats loads the full stats table.
func (p *PostgresStore) Stats(ctx context.Context) (map[string]types.CandidateStats, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT login, recent_file_edits, median_review_hours FROM reviewer_stats")
	if err != nil {
		return nil, fmt.Errorf("failed to query reviewer stats: %w", err)
	}
	defer rows.Close()

	table := make(map[string]types.CandidateStats)
	for rows.Next() {
		var login string
		var edits int
		var median *float64
		if err := rows.Scan(&login, &edits, &median); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer stats row: %w", err)
		}
		table[login] = types.CandidateStats{RecentFileEdits: edits, MedianReviewHours: median}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reviewer stats rows: %w", err)
	}
	return table, nil
}
