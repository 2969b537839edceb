// Package github provides a small GitHub REST client for the reviewer
// assignment flow: pull request snapshots, changed files, CODEOWNERS,
// contributors, and the write operations an approved plan executes.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/unblocker/pkg/cache"
)

// metadataCacheTTL covers slow-changing repo metadata lookups
// (CODEOWNERS content, contributor lists).
const metadataCacheTTL = 1 * time.Hour

// HTTPDoer is the transport seam; tests swap in a mock.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client handles all GitHub API interactions.
type Client struct {
	httpClient         HTTPDoer
	metaCache          *cache.Cache
	installationTokens map[string]string
	installationExpiry map[string]time.Time
	installationIDs    map[string]int
	token              string
	appID              string
	privateKey         []byte
	currentOrg         string
	tokenExpiry        time.Time
	tokenMutex         sync.RWMutex
	isAppAuth          bool
}

// Config holds configuration for creating a new GitHub client.
type Config struct {
	Token       string // Personal access token (for non-app auth)
	AppID       string
	AppKeyPath  string
	HTTPTimeout time.Duration
	UseAppAuth  bool
}

const defaultHTTPTimeout = 30 * time.Second

// New creates a GitHub API client using token or GitHub App authentication.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.UseAppAuth {
		return newAppAuthClient(cfg.AppID, cfg.AppKeyPath, cfg.HTTPTimeout)
	}
	return newPersonalTokenClient(ctx, cfg.Token, cfg.HTTPTimeout)
}

// SetCurrentOrg sets the organization whose installation token is used
// for subsequent requests under App authentication.
func (c *Client) SetCurrentOrg(org string) {
	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	c.currentOrg = org
}

// Token returns the current GitHub token for external use (e.g., the
// event monitor). For App authentication with an org set, returns the
// installation token; otherwise the base token.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.tokenMutex.RLock()
	isApp, org := c.isAppAuth, c.currentOrg
	c.tokenMutex.RUnlock()
	if isApp && org != "" {
		return c.installationToken(ctx, org)
	}
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token, nil
}

// drainAndCloseBody drains and closes a response body to keep the
// underlying connection reusable.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

// sanitizeURLForLogging strips query parameters so tokens never land in logs.
func sanitizeURLForLogging(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "<unparseable-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// doRequest makes an HTTP request to the GitHub API with retry logic.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body any) (*http.Response, error) {
	if err := c.refreshJWTIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to refresh JWT: %w", err)
	}

	sanitizedURL := sanitizeURLForLogging(apiURL)
	slog.Debug("HTTP request", "component", "http", "method", method, "url", sanitizedURL)

	var resp *http.Response
	err := retryWithBackoff(ctx, method+" "+sanitizedURL, func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyBytes, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		authToken, scheme := c.requestToken(ctx)
		req.Header.Set("Authorization", scheme+" "+authToken)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("User-Agent", "unblocker")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		localResp, err := c.httpClient.Do(req) //nolint:bodyclose // closed by caller or drained below
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if localResp.StatusCode == http.StatusTooManyRequests {
			drainAndCloseBody(localResp.Body)
			slog.Warn("Rate limited - will retry with backoff", "method", method, "url", sanitizedURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: rate limited", localResp.StatusCode)
		}
		if localResp.StatusCode >= http.StatusInternalServerError && localResp.StatusCode < 600 {
			drainAndCloseBody(localResp.Body)
			slog.Warn("Server error - will retry with backoff", "method", method, "url", sanitizedURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: server error", localResp.StatusCode)
		}

		resp = localResp
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("HTTP response", "component", "http", "method", method, "url", sanitizedURL, "status", resp.StatusCode)
	return resp, nil
}

// requestToken picks the token and auth scheme for a single request.
func (c *Client) requestToken(ctx context.Context) (token, scheme string) {
	c.tokenMutex.RLock()
	isApp, org := c.isAppAuth, c.currentOrg
	c.tokenMutex.RUnlock()

	if !isApp {
		c.tokenMutex.RLock()
		defer c.tokenMutex.RUnlock()
		return c.token, "token"
	}
	if org != "" {
		installToken, err := c.installationToken(ctx, org)
		if err == nil {
			return installToken, "Bearer"
		}
		// Graceful degradation: the JWT can still reach app-level endpoints.
		slog.Warn("Failed to get installation token, attempting with JWT", "org", org, "error", err)
	}
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token, "Bearer"
}

// Retry constants.
const (
	maxRetryAttempts  = 8
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 30 * time.Second
)

// retryWithBackoff executes a function with exponential backoff and jitter.
func retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(maxRetryAttempts),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(initialRetryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retry attempt", "component", "retry", "operation", operation, "attempt", n+1, "max_attempts", maxRetryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if err == nil {
				return false
			}
			errStr := err.Error()
			return strings.Contains(errStr, "rate limited") ||
				strings.Contains(errStr, "server error") ||
				strings.Contains(errStr, "connection refused") ||
				strings.Contains(errStr, "timeout") ||
				strings.Contains(errStr, "EOF")
		}),
	)
}
