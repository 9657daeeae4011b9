// Package github reads documentation trees through the GitHub contents API
// and raw content endpoints. Every fetch degrades to "not found" instead of
// failing, so a single inaccessible file never stops a sync.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/schaermu/docsync/internal/config"
)

const (
	maxListingBytes = 10 << 20
	maxFileBytes    = 50 << 20
)

// EntryType is the kind of a directory listing entry
type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

// Entry is one item of a remote directory listing
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Type        EntryType `json:"type"`
	DownloadURL string    `json:"download_url"`
}

// Client fetches listings and file contents of repositories in one org
type Client struct {
	httpClient *http.Client
	token      string
	org        string
	branch     string
	apiURL     string
	rawURL     string
	userAgent  string
	logger     *slog.Logger

	maxListingBytes int64
	maxFileBytes    int64
}

// NewClient creates a client for the configured org and branch. The token
// may be empty for anonymous access.
func NewClient(cfg config.GitHubConfig, token string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		token:      token,
		org:        cfg.Org,
		branch:     cfg.Branch,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		rawURL:     strings.TrimRight(cfg.RawURL, "/"),
		userAgent:  cfg.UserAgent,
		logger:     logger,

		maxListingBytes: maxListingBytes,
		maxFileBytes:    maxFileBytes,
	}
}

// ListDirectory returns the entries of a directory in repo. It returns
// false on any transport error, non-200 response or a body that is not a
// directory listing.
func (c *Client) ListDirectory(ctx context.Context, repo, dir string) ([]Entry, bool) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.apiURL, url.PathEscape(c.org), url.PathEscape(repo), escapePath(dir), url.QueryEscape(c.branch))

	body, ok := c.get(ctx, u, "application/vnd.github.v3+json", c.maxListingBytes)
	if !ok {
		return nil, false
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		c.logger.Debug("unexpected directory listing", "url", u, "error", err)
		return nil, false
	}
	return entries, true
}

// FetchFile returns the raw text of a file in repo
func (c *Client) FetchFile(ctx context.Context, repo, path string) (string, bool) {
	u := fmt.Sprintf("%s/%s/%s/%s/%s",
		c.rawURL, url.PathEscape(c.org), url.PathEscape(repo), escapePath(c.branch), escapePath(path))

	body, ok := c.get(ctx, u, "", c.maxFileBytes)
	if !ok {
		return "", false
	}
	return string(body), true
}

// FetchBinary downloads an asset by its direct download URL
func (c *Client) FetchBinary(ctx context.Context, downloadURL string) ([]byte, bool) {
	if downloadURL == "" {
		return nil, false
	}
	return c.get(ctx, downloadURL, "", c.maxFileBytes)
}

// get performs an authenticated GET and returns the body on 200 OK. A body
// larger than limit is a failure; a truncated file must never be written.
func (c *Client) get(ctx context.Context, u, accept string, limit int64) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.logger.Debug("invalid request", "url", u, "error", err)
		return nil, false
	}

	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "url", u, "error", err)
		return nil, false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("unexpected status", "url", u, "status", resp.StatusCode)
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		c.logger.Debug("failed to read response body", "url", u, "error", err)
		return nil, false
	}
	if int64(len(body)) > limit {
		c.logger.Debug("response body too large", "url", u, "limit", limit)
		return nil, false
	}
	return body, true
}

// escapePath escapes each segment of a slash-separated repository path
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
