package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codeGROOVE-dev/unblocker/pkg/cache"
)

// Authentication constants.
const (
	maxTokenLength     = 100
	minTokenLength     = 40
	classicTokenLength = 40
	maxAppID           = 999999999
	jwtLifetime        = 10 * time.Minute // GitHub App JWTs expire after 10 minutes max
	jwtRefreshMargin   = 1 * time.Minute
	filePermReadOnly   = 0o400
	filePermOwnerRW    = 0o600
)

// generateJWT generates a JWT for GitHub App authentication.
func generateJWT(appID string, privateKey []byte) (string, error) {
	block, _ := pem.Decode(privateKey)
	if block == nil {
		return "", errors.New("failed to parse PEM block containing the private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format if PKCS1 fails
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = parsedKey.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("private key is not RSA")
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
		"iss": appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// newAppAuthClient creates a client with GitHub App authentication.
func newAppAuthClient(appID, appKeyPath string, httpTimeout time.Duration) (*Client, error) {
	creds, err := resolveAppCredentials(appID, appKeyPath)
	if err != nil {
		return nil, err
	}
	if err := validateAppID(creds.appID); err != nil {
		return nil, err
	}

	privateKey, err := loadPrivateKey(creds.privateKeyContent, creds.keyPath)
	if err != nil {
		return nil, err
	}

	jwtToken, err := generateJWT(creds.appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	slog.Info("Generated JWT for GitHub App", "component", "auth", "app_id", creds.appID)

	return &Client{
		httpClient:         &http.Client{Timeout: httpTimeout},
		metaCache:          cache.New(metadataCacheTTL),
		token:              jwtToken,
		isAppAuth:          true,
		appID:              creds.appID,
		privateKey:         privateKey,
		tokenExpiry:        time.Now().Add(jwtLifetime - jwtRefreshMargin),
		installationTokens: make(map[string]string),
		installationExpiry: make(map[string]time.Time),
		installationIDs:    make(map[string]int),
	}, nil
}

// newPersonalTokenClient creates a client with personal token authentication.
// With no token provided it falls back to the gh CLI.
func newPersonalTokenClient(ctx context.Context, token string, httpTimeout time.Duration) (*Client, error) {
	if token == "" {
		cmd := exec.CommandContext(ctx, "gh", "auth", "token")
		output, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("failed to get GitHub token: %w", err)
		}
		token = strings.TrimSpace(string(output))
	}

	if err := validateToken(token); err != nil {
		return nil, err
	}

	slog.Info("Using personal access token authentication", "component", "auth")

	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		metaCache:  cache.New(metadataCacheTTL),
		token:      token,
		isAppAuth:  false,
	}, nil
}

// appCredentials holds GitHub App authentication details.
type appCredentials struct {
	appID             string
	keyPath           string
	privateKeyContent []byte
}

// resolveAppCredentials resolves app credentials from arguments or environment.
func resolveAppCredentials(appID, appKeyPath string) (*appCredentials, error) {
	if appID == "" {
		appID = os.Getenv("GITHUB_APP_ID")
	}

	var privateKeyContent []byte
	if appKeyPath == "" {
		if keyContent := os.Getenv("GITHUB_APP_KEY"); keyContent != "" {
			privateKeyContent = []byte(keyContent)
		} else {
			appKeyPath = os.Getenv("GITHUB_APP_KEY_PATH")
		}
	}

	if appID == "" {
		return nil, errors.New("GitHub App ID is required. " +
			"Use --app-id flag or set GITHUB_APP_ID environment variable")
	}
	if len(privateKeyContent) == 0 && appKeyPath == "" {
		return nil, errors.New("GitHub App private key is required. " +
			"Use --app-key-path flag, set GITHUB_APP_KEY (key content), " +
			"or GITHUB_APP_KEY_PATH (file path)")
	}

	return &appCredentials{
		appID:             appID,
		privateKeyContent: privateKeyContent,
		keyPath:           appKeyPath,
	}, nil
}

// validateAppID validates the GitHub App ID.
func validateAppID(appID string) error {
	appIDNum, err := strconv.Atoi(appID)
	if err != nil {
		return fmt.Errorf("GITHUB_APP_ID must be numeric: %w", err)
	}
	if appIDNum <= 0 || appIDNum > maxAppID {
		return errors.New("GITHUB_APP_ID out of valid range")
	}
	return nil
}

// loadPrivateKey loads the private key from content or file path.
func loadPrivateKey(privateKeyContent []byte, keyPath string) ([]byte, error) {
	var privateKey []byte
	var err error

	switch {
	case len(privateKeyContent) > 0:
		privateKey = privateKeyContent
	case keyPath != "":
		privateKey, err = readPrivateKeyFile(keyPath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("no private key provided (neither content nor path)")
	}

	if !bytes.Contains(privateKey, []byte("BEGIN RSA PRIVATE KEY")) &&
		!bytes.Contains(privateKey, []byte("BEGIN PRIVATE KEY")) {
		return nil, errors.New("private key does not appear to be a valid PEM private key")
	}

	return privateKey, nil
}

// readPrivateKeyFile reads and validates a private key file.
func readPrivateKeyFile(keyPath string) ([]byte, error) {
	cleanPath := filepath.Clean(keyPath)
	if !filepath.IsAbs(cleanPath) {
		return nil, errors.New("private key path must be absolute")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access private key file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, errors.New("private key path must be a file, not a directory")
	}

	// Must be exactly 0600 or 0400.
	perm := fileInfo.Mode().Perm()
	if perm != filePermOwnerRW && perm != filePermReadOnly {
		return nil, fmt.Errorf("private key file has insecure permissions %04o (must be 0600 or 0400)", perm)
	}

	return os.ReadFile(cleanPath)
}

// validateToken validates a GitHub personal access token.
func validateToken(token string) error {
	if token == "" {
		return errors.New("no GitHub token found")
	}
	if len(token) > maxTokenLength || len(token) < minTokenLength {
		return errors.New("invalid token length")
	}

	validPrefixes := []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_"}
	for _, prefix := range validPrefixes {
		if strings.HasPrefix(token, prefix) {
			return nil
		}
	}

	// Could be a classic token (40 hex chars).
	if len(token) != classicTokenLength {
		return errors.New("invalid token format")
	}
	for _, r := range token {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return errors.New("invalid classic token format")
		}
	}

	return nil
}

// refreshJWTIfNeeded regenerates the App JWT when it is close to expiry.
func (c *Client) refreshJWTIfNeeded() error {
	c.tokenMutex.RLock()
	needsRefresh := c.isAppAuth && time.Now().After(c.tokenExpiry)
	c.tokenMutex.RUnlock()

	if !needsRefresh {
		return nil
	}

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()

	// Double-check after acquiring the write lock.
	if time.Now().Before(c.tokenExpiry) {
		return nil
	}

	newToken, err := generateJWT(c.appID, c.privateKey)
	if err != nil {
		return fmt.Errorf("failed to generate JWT for refresh: %w", err)
	}

	c.token = newToken
	c.tokenExpiry = time.Now().Add(jwtLifetime - jwtRefreshMargin)
	slog.Info("Refreshed GitHub App JWT", "component", "auth")

	return nil
}

// installationToken returns a cached or freshly minted installation access
// token for an organization.
func (c *Client) installationToken(ctx context.Context, org string) (string, error) {
	c.tokenMutex.RLock()
	if !c.isAppAuth {
		defer c.tokenMutex.RUnlock()
		return c.token, nil
	}
	if token, ok := c.installationTokens[org]; ok {
		if expiry, ok := c.installationExpiry[org]; ok && time.Now().Before(expiry) {
			c.tokenMutex.RUnlock()
			return token, nil
		}
	}
	c.tokenMutex.RUnlock()

	if org == "" {
		return "", errors.New("organization name cannot be empty")
	}
	if err := c.refreshJWTIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to refresh JWT: %w", err)
	}

	installationID, err := c.installationID(ctx, org)
	if err != nil {
		return "", err
	}

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()

	if token, ok := c.installationTokens[org]; ok {
		if expiry, ok := c.installationExpiry[org]; ok && time.Now().Before(expiry) {
			return token, nil
		}
	}

	slog.Info("Creating installation access token", "component", "auth", "org", org, "installation_id", installationID)
	apiURL := fmt.Sprintf("https://api.github.com/app/installations/%d/access_tokens", installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get installation token: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create installation token for %s: status %d: %s", org, resp.StatusCode, string(body))
	}

	var tokenResp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode installation token response: %w", err)
	}

	c.installationTokens[org] = tokenResp.Token
	// Refresh 5 minutes before GitHub's expiry.
	c.installationExpiry[org] = tokenResp.ExpiresAt.Add(-5 * time.Minute)

	return tokenResp.Token, nil
}

// installationID resolves the App installation ID for an org, discovering
// installations on first use.
func (c *Client) installationID(ctx context.Context, org string) (int, error) {
	c.tokenMutex.RLock()
	id, ok := c.installationIDs[org]
	c.tokenMutex.RUnlock()
	if ok {
		return id, nil
	}

	installations, err := c.listInstallations(ctx)
	if err != nil {
		return 0, err
	}

	c.tokenMutex.Lock()
	for account, instID := range installations {
		c.installationIDs[account] = instID
	}
	id, ok = c.installationIDs[org]
	c.tokenMutex.Unlock()

	if !ok {
		return 0, fmt.Errorf("no installation found for organization %s (is the app installed?)", org)
	}
	return id, nil
}

// listInstallations fetches all installations visible to the App JWT.
func (c *Client) listInstallations(ctx context.Context) (map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/app/installations?per_page=100", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.tokenMutex.RLock()
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.tokenMutex.RUnlock()
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list installations: status %d", resp.StatusCode)
	}

	var installations []struct {
		Account struct {
			Login string `json:"login"`
		} `json:"account"`
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&installations); err != nil {
		return nil, fmt.Errorf("failed to decode installations: %w", err)
	}

	result := make(map[string]int, len(installations))
	for _, inst := range installations {
		result[inst.Account.Login] = inst.ID
	}
	return result, nil
}
