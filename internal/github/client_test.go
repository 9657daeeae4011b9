package github

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/docsync/internal/config"
	"github.com/schaermu/docsync/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(fake *testutil.FakeGitHub, token string) *Client {
	return NewClient(fake.GitHubConfig(), token, testLogger())
}

func TestClient_ListDirectory(t *testing.T) {
	fake := testutil.NewFakeGitHub(t, "org", "main")
	fake.Put("docs-repo", "docs/index.md", []byte("# Home"))
	fake.Put("docs-repo", "docs/_meta.json", []byte("{}"))
	fake.Put("docs-repo", "docs/images/logo.png", []byte{0x89, 'P', 'N', 'G'})

	c := newTestClient(fake, "")
	entries, ok := c.ListDirectory(context.Background(), "docs-repo", "docs")
	require.True(t, ok)
	require.Len(t, entries, 3)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	assert.Equal(t, TypeFile, byName["index.md"].Type)
	assert.Equal(t, "docs/index.md", byName["index.md"].Path)
	assert.NotEmpty(t, byName["index.md"].DownloadURL)
	assert.Equal(t, TypeDir, byName["images"].Type)
	assert.Empty(t, byName["images"].DownloadURL)
}

func TestClient_ListDirectory_Failures(t *testing.T) {
	fake := testutil.NewFakeGitHub(t, "org", "main")
	fake.Put("repo", "docs/index.md", []byte("x"))
	fake.FailListing("repo", "docs/broken")
	c := newTestClient(fake, "")
	ctx := context.Background()

	tests := []struct {
		name string
		repo string
		dir  string
	}{
		{name: "missing repo", repo: "nope", dir: "docs"},
		{name: "missing directory", repo: "repo", dir: "nothing"},
		{name: "server error", repo: "repo", dir: "docs/broken"},
		{name: "path is a file", repo: "repo", dir: "docs/index.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, ok := c.ListDirectory(ctx, tt.repo, tt.dir)
			assert.False(t, ok)
			assert.Nil(t, entries)
		})
	}
}

func TestClient_FetchFile(t *testing.T) {
	fake := testutil.NewFakeGitHub(t, "org", "main")
	fake.Put("repo", "docs/guide.md", []byte("# Guide\n"))
	c := newTestClient(fake, "")

	got, ok := c.FetchFile(context.Background(), "repo", "docs/guide.md")
	require.True(t, ok)
	assert.Equal(t, "# Guide\n", got)

	got, ok = c.FetchFile(context.Background(), "repo", "docs/missing.md")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestClient_FetchBinary(t *testing.T) {
	fake := testutil.NewFakeGitHub(t, "org", "main")
	png := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
	fake.Put("repo", "docs/images/logo.png", png)
	c := newTestClient(fake, "")

	entries, ok := c.ListDirectory(context.Background(), "repo", "docs/images")
	require.True(t, ok)
	require.Len(t, entries, 1)

	got, ok := c.FetchBinary(context.Background(), entries[0].DownloadURL)
	require.True(t, ok)
	assert.Equal(t, png, got)

	_, ok = c.FetchBinary(context.Background(), "")
	assert.False(t, ok)

	_, ok = c.FetchBinary(context.Background(), fake.Server.URL+"/raw/org/repo/main/none.png")
	assert.False(t, ok)
}

func TestClient_OversizedBodyIsRejected(t *testing.T) {
	fake := testutil.NewFakeGitHub(t, "org", "main")
	fake.Put("repo", "docs/page.md", []byte("0123456789"))
	fake.Put("repo", "docs/images/big.png", []byte("0123456789"))
	fake.Put("repo", "docs/images/small.png", []byte("0123"))
	c := newTestClient(fake, "")
	c.maxFileBytes = 8
	ctx := context.Background()

	got, ok := c.FetchFile(ctx, "repo", "docs/page.md")
	assert.False(t, ok, "a page over the limit must not be returned truncated")
	assert.Empty(t, got)

	bin, ok := c.FetchBinary(ctx, fake.Server.URL+"/raw/org/repo/main/docs/images/big.png")
	assert.False(t, ok, "an image over the limit must not be returned truncated")
	assert.Nil(t, bin)

	bin, ok = c.FetchBinary(ctx, fake.Server.URL+"/raw/org/repo/main/docs/images/small.png")
	require.True(t, ok)
	assert.Equal(t, []byte("0123"), bin)

	c.maxFileBytes = 10
	got, ok = c.FetchFile(ctx, "repo", "docs/page.md")
	require.True(t, ok, "a body exactly at the limit is accepted")
	assert.Equal(t, "0123456789", got)
}

func TestClient_FetchBinary_DefaultLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, maxFileBytes+1024))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.GitHubConfig{Org: "o", Branch: "main", APIURL: srv.URL, RawURL: srv.URL}, "", testLogger())
	got, ok := c.FetchBinary(context.Background(), srv.URL+"/huge.png")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestClient_OversizedListingIsRejected(t *testing.T) {
	fake := testutil.NewFakeGitHub(t, "org", "main")
	fake.Put("repo", "docs/index.md", []byte("x"))
	c := newTestClient(fake, "")
	c.maxListingBytes = 16

	_, ok := c.ListDirectory(context.Background(), "repo", "docs")
	assert.False(t, ok)
}

func TestClient_SendsHeaders(t *testing.T) {
	var got http.Header
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewClient(config.GitHubConfig{
		Org:       "org",
		Branch:    "release",
		APIURL:    srv.URL,
		RawURL:    srv.URL,
		UserAgent: "docsync-test",
		Timeout:   time.Second,
	}, "secret", testLogger())

	entries, ok := c.ListDirectory(context.Background(), "repo", "docs")
	require.True(t, ok)
	assert.Empty(t, entries)

	assert.Equal(t, "token secret", got.Get("Authorization"))
	assert.Equal(t, "docsync-test", got.Get("User-Agent"))
	assert.Equal(t, "application/vnd.github.v3+json", got.Get("Accept"))
	assert.Equal(t, "ref=release", gotQuery)
}

func TestClient_AnonymousOmitsAuthorization(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	c := NewClient(config.GitHubConfig{Org: "o", Branch: "main", APIURL: srv.URL, RawURL: srv.URL}, "", testLogger())
	_, ok := c.FetchFile(context.Background(), "r", "a.md")
	require.True(t, ok)
	assert.Empty(t, auth)
}

func TestClient_PrivateRepoNeedsToken(t *testing.T) {
	fake := testutil.NewFakeGitHub(t, "org", "main")
	fake.Token = "s3cret"
	fake.Put("private", "docs/index.md", []byte("# Private"))

	_, ok := newTestClient(fake, "").ListDirectory(context.Background(), "private", "docs")
	assert.False(t, ok, "anonymous listing of a private repo must fail")

	entries, ok := newTestClient(fake, "s3cret").ListDirectory(context.Background(), "private", "docs")
	require.True(t, ok)
	assert.Len(t, entries, 1)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.GitHubConfig{Org: "o", Branch: "main", APIURL: url, RawURL: url, Timeout: time.Second}, "", testLogger())
	_, ok := c.ListDirectory(context.Background(), "r", "docs")
	assert.False(t, ok)
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "docs/my%20file.md", escapePath("/docs/my file.md"))
	assert.Equal(t, "docs", escapePath("docs/"))
}
