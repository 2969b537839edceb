package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/config"
	"github.com/codeGROOVE-dev/unblocker/pkg/engine"
	"github.com/codeGROOVE-dev/unblocker/pkg/plan"
	"github.com/codeGROOVE-dev/unblocker/pkg/rationale"
	"github.com/codeGROOVE-dev/unblocker/pkg/stats"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// scanHost serves a fixed set of open PRs; the write methods are never
// reached by a poll.
type scanHost struct {
	prs []*types.PullRequestSnapshot
}

func (h *scanHost) Snapshot(context.Context, string, string, int) (*types.PullRequestSnapshot, error) {
	return nil, nil
}

func (h *scanHost) OpenPullRequests(context.Context, string, string) ([]*types.PullRequestSnapshot, error) {
	return h.prs, nil
}

func (h *scanHost) CodeownersLines(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (h *scanHost) Contributors(context.Context, string, string, int) ([]string, error) {
	return nil, nil
}

func (h *scanHost) AddReviewers(context.Context, string, string, int, []string) error {
	return nil
}

func (h *scanHost) CreateComment(context.Context, string, string, int, string) error {
	return nil
}

func TestHandlePoll_ResponseIsValidJSON(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// PR titles are arbitrary text; a control byte must survive encoding.
	host := &scanHost{prs: []*types.PullRequestSnapshot{{
		Title:     "Fix \x01 parsing",
		URL:       "https://github.com/acme/widgets/pull/42",
		Author:    "frank",
		CreatedAt: now.Add(-48 * time.Hour),
		UpdatedAt: now.Add(-48 * time.Hour),
	}}}
	eng := engine.New(engine.Options{
		Host: host,
		Rules: config.NewStore(config.Rules{
			DefaultRepo:         "acme/widgets",
			ActivityWindowHours: 5,
			ThresholdHours:      24,
		}),
		Stats:     stats.Static{},
		Augmenter: rationale.New(nil),
		Plans:     plan.NewManager(plan.NewStore(0, nil)),
		Now:       func() time.Time { return now },
	})
	bot := &Bot{engine: eng}

	rec := httptest.NewRecorder()
	bot.handlePoll(rec, httptest.NewRequest("GET", "/poll", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.Bytes()
	if !json.Valid(body) {
		t.Fatalf("response is not valid JSON: %q", body)
	}
	var resp struct {
		ScanText      string `json:"scan_text"`
		EventsSeen    int64  `json:"events_seen"`
		PlansExecuted int64  `json:"plans_executed"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.ScanText, "Fix \x01 parsing") {
		t.Errorf("scan_text lost the title: %q", resp.ScanText)
	}
	if resp.EventsSeen != 0 || resp.PlansExecuted != 0 {
		t.Errorf("counters = %d/%d, want 0/0", resp.EventsSeen, resp.PlansExecuted)
	}
}
