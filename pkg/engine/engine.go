// Package engine orchestrates one analysis or execution pass: fetch a
// snapshot, run the stall policy, discover and rank candidates, assess
// confidence and risk, and build or execute an action plan. The engine
// performs no GitHub I/O itself; all of it goes through the Host seam.
package engine

import (
	"context"
	"math"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/config"
	"github.com/codeGROOVE-dev/unblocker/pkg/plan"
	"github.com/codeGROOVE-dev/unblocker/pkg/rationale"
	"github.com/codeGROOVE-dev/unblocker/pkg/stats"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// Candidate discovery limits.
const (
	contributorLimit = 3 // Recent contributors fetched for the fallback ladder
	planReviewerMax  = 3 // Reviewers included in an action plan
)

// Host is the source-control collaborator the engine drives.
type Host interface {
	Snapshot(ctx context.Context, owner, repo string, number int) (*types.PullRequestSnapshot, error)
	OpenPullRequests(ctx context.Context, owner, repo string) ([]*types.PullRequestSnapshot, error)
	CodeownersLines(ctx context.Context, owner, repo string) ([]string, error)
	Contributors(ctx context.Context, owner, repo string, limit int) ([]string, error)
	AddReviewers(ctx context.Context, owner, repo string, number int, reviewers []string) error
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
}

// Engine wires the decision pipeline together.
type Engine struct {
	host      Host
	rules     *config.Store
	stats     stats.Source
	augmenter *rationale.Augmenter
	plans     *plan.Manager
	now       func() time.Time
}

// Options configures a new Engine. Now defaults to time.Now.
type Options struct {
	Host      Host
	Rules     *config.Store
	Stats     stats.Source
	Augmenter *rationale.Augmenter
	Plans     *plan.Manager
	Now       func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		host:      opts.Host,
		rules:     opts.Rules,
		stats:     opts.Stats,
		augmenter: opts.Augmenter,
		plans:     opts.Plans,
		now:       now,
	}
}

// round1 rounds to one decimal for display metrics.
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
