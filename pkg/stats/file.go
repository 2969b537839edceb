package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// FileStore loads the seeded stats table from a JSON file of the shape
// {"login": {"recent_file_edits": N, "median_review_hours": H}}. A
// missing file is treated as an empty table.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore reading from path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Stats reads and decodes the seeded table.
func (f *FileStore) Stats(context.Context) (map[string]types.CandidateStats, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No seeded stats file, using empty table", "path", f.path)
			return map[string]types.CandidateStats{}, nil
		}
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}

	table := make(map[string]types.CandidateStats)
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to decode stats file: %w", err)
	}
	return table, nil
}
