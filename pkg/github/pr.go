package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

const perPageLimit = 100

// ErrInvalidPRURL is returned when a pull request URL cannot be parsed.
var ErrInvalidPRURL = errors.New("invalid pr_url format")

// ParsePRURL extracts owner, repo, and PR number from a GitHub PR URL
// such as https://github.com/owner/repo/pull/123.
func ParsePRURL(prURL string) (owner, repo string, number int, err error) {
	_, rest, found := strings.Cut(prURL, "github.com/")
	if !found {
		return "", "", 0, ErrInvalidPRURL
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 4 || parts[0] == "" || parts[1] == "" || parts[2] != "pull" {
		return "", "", 0, ErrInvalidPRURL
	}
	number, err = strconv.Atoi(parts[3])
	if err != nil {
		return "", "", 0, ErrInvalidPRURL
	}
	return parts[0], parts[1], number, nil
}

// prPayload is the subset of the GitHub pull request object we consume.
type prPayload struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	HTMLURL   string    `json:"html_url"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	RequestedReviewers []struct {
		Login string `json:"login"`
	} `json:"requested_reviewers"`
	Number int  `json:"number"`
	Draft  bool `json:"draft"`
}

func (p *prPayload) snapshot(owner, repo string) *types.PullRequestSnapshot {
	snap := &types.PullRequestSnapshot{
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		Title:      p.Title,
		URL:        p.HTMLURL,
		Author:     p.User.Login,
		Owner:      owner,
		Repository: repo,
		Number:     p.Number,
		Draft:      p.Draft,
	}
	for _, l := range p.Labels {
		snap.Labels = append(snap.Labels, l.Name)
	}
	for _, r := range p.RequestedReviewers {
		snap.RequestedReviewers = append(snap.RequestedReviewers, r.Login)
	}
	return snap
}

// Snapshot fetches a pull request and its changed files as an immutable
// snapshot for the decision engine.
func (c *Client) Snapshot(ctx context.Context, owner, repo string, number int) (*types.PullRequestSnapshot, error) {
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/pulls/%d", owner, repo, number)
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("pull request %s/%s#%d not found", owner, repo, number)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch PR %s/%s#%d: status %d", owner, repo, number, resp.StatusCode)
	}

	var payload prPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode PR: %w", err)
	}

	snap := payload.snapshot(owner, repo)
	files, err := c.ChangedFiles(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	snap.ChangedFiles = files
	return snap, nil
}

// OpenPullRequests fetches open pull requests for a repository, oldest
// first, without changed-file detail.
func (c *Client) OpenPullRequests(ctx context.Context, owner, repo string) ([]*types.PullRequestSnapshot, error) {
	slog.Info("Fetching open PRs", "component", "api", "owner", owner, "repo", repo)
	var all []*types.PullRequestSnapshot
	page := 1

	for {
		apiURL := fmt.Sprintf(
			"https://api.github.com/repos/%s/%s/pulls?state=open&sort=created&direction=asc&per_page=%d&page=%d",
			owner, repo, perPageLimit, page)

		payloads, lastPage, err := func() ([]prPayload, bool, error) {
			resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
			if err != nil {
				return nil, false, err
			}
			defer drainAndCloseBody(resp.Body)

			if resp.StatusCode != http.StatusOK {
				return nil, false, fmt.Errorf("failed to list PRs (status %d)", resp.StatusCode)
			}

			var payloads []prPayload
			if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
				return nil, false, err
			}
			return payloads, len(payloads) < perPageLimit, nil
		}()
		if err != nil {
			return nil, err
		}

		for i := range payloads {
			all = append(all, payloads[i].snapshot(owner, repo))
		}

		if lastPage {
			break
		}
		page++
	}

	return all, nil
}

// ChangedFiles fetches the filenames changed in a PR.
func (c *Client) ChangedFiles(ctx context.Context, owner, repo string, number int) ([]string, error) {
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/pulls/%d/files?per_page=%d", owner, repo, number, perPageLimit)
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch changed files for %s/%s#%d: status %d", owner, repo, number, resp.StatusCode)
	}

	var files []struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}
	return names, nil
}

// CodeownersLines fetches .github/CODEOWNERS and returns its non-blank,
// non-comment lines. A missing file yields no lines and no error.
// Results are cached; CODEOWNERS changes rarely.
func (c *Client) CodeownersLines(ctx context.Context, owner, repo string) ([]string, error) {
	cacheKey := "codeowners:" + owner + "/" + repo
	if cached, ok := c.metaCache.Get(cacheKey); ok {
		if lines, ok := cached.([]string); ok {
			return lines, nil
		}
	}

	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/contents/.github/CODEOWNERS", owner, repo)
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("No CODEOWNERS file", "owner", owner, "repo", repo)
		c.metaCache.Set(cacheKey, []string(nil))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch CODEOWNERS for %s/%s: status %d", owner, repo, resp.StatusCode)
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Content == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode CODEOWNERS content: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(decoded), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	c.metaCache.Set(cacheKey, lines)
	return lines, nil
}

// Contributors returns up to limit top contributor logins for a repository.
func (c *Client) Contributors(ctx context.Context, owner, repo string, limit int) ([]string, error) {
	cacheKey := fmt.Sprintf("contributors:%s/%s:%d", owner, repo, limit)
	if cached, ok := c.metaCache.Get(cacheKey); ok {
		if logins, ok := cached.([]string); ok {
			return logins, nil
		}
	}

	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/contributors?per_page=%d", owner, repo, limit)
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch contributors for %s/%s: status %d", owner, repo, resp.StatusCode)
	}

	var contributors []struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&contributors); err != nil {
		return nil, err
	}

	logins := make([]string, 0, len(contributors))
	for _, contrib := range contributors {
		if contrib.Login != "" {
			logins = append(logins, contrib.Login)
		}
	}
	c.metaCache.Set(cacheKey, logins)
	return logins, nil
}

// AddReviewers requests reviews from the given users on a pull request.
func (c *Client) AddReviewers(ctx context.Context, owner, repo string, number int, reviewers []string) error {
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/pulls/%d/requested_reviewers", owner, repo, number)
	payload := map[string]any{"reviewers": reviewers}

	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, payload)
	if err != nil {
		return fmt.Errorf("failed to add reviewers: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("failed to add reviewers: status %d (could not read body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("failed to add reviewers: status %d: %s", resp.StatusCode, string(body))
	}

	slog.Info("Added reviewers to PR", "owner", owner, "repo", repo, "pr", number, "reviewers", reviewers)
	return nil
}

// CreateComment posts an issue comment on a pull request.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/issues/%d/comments", owner, repo, number)
	payload := map[string]any{"body": body}

	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, payload)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to create comment: status %d", resp.StatusCode)
	}

	slog.Info("Posted comment on PR", "owner", owner, "repo", repo, "pr", number)
	return nil
}
