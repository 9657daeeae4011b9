// Package testutil provides an in-process stand-in for the GitHub contents
// API and raw content host.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/schaermu/docsync/internal/config"
)

// FakeGitHub serves repositories of a single org from memory
type FakeGitHub struct {
	Server *httptest.Server
	Org    string
	Branch string
	// Token, when set, is required on every request
	Token string

	mu       sync.Mutex
	repos    map[string]map[string][]byte
	failing  map[string]bool
	requests []string
}

// TB is the subset of testing.TB the fake needs; both *testing.T and
// GinkgoT() satisfy it
type TB interface {
	Helper()
	Cleanup(func())
}

type fakeEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url,omitempty"`
}

// NewFakeGitHub starts a server that is closed when the test ends
func NewFakeGitHub(t TB, org, branch string) *FakeGitHub {
	t.Helper()
	f := &FakeGitHub{
		Org:     org,
		Branch:  branch,
		repos:   make(map[string]map[string][]byte),
		failing: make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repos/", f.handleContents)
	mux.HandleFunc("/raw/", f.handleRaw)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// GitHubConfig returns client configuration pointing at the fake
func (f *FakeGitHub) GitHubConfig() config.GitHubConfig {
	return config.GitHubConfig{
		Org:       f.Org,
		Branch:    f.Branch,
		APIURL:    f.Server.URL + "/api",
		RawURL:    f.Server.URL + "/raw",
		UserAgent: "docsync-test",
		Timeout:   5 * time.Second,
	}
}

// Put creates or replaces a file
func (f *FakeGitHub) Put(repo, p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repos[repo] == nil {
		f.repos[repo] = make(map[string][]byte)
	}
	f.repos[repo][strings.Trim(p, "/")] = data
}

// Delete removes a file
func (f *FakeGitHub) Delete(repo, p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.repos[repo], strings.Trim(p, "/"))
}

// FailListing makes listings of dir in repo answer 500
func (f *FakeGitHub) FailListing(repo, dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[repo+":"+strings.Trim(dir, "/")] = true
}

// Requests returns the request paths served so far
func (f *FakeGitHub) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeGitHub) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path)
	f.mu.Unlock()

	if f.Token == "" {
		return true
	}
	if r.Header.Get("Authorization") != "token "+f.Token {
		http.Error(w, "Bad credentials", http.StatusUnauthorized)
		return false
	}
	return true
}

// handleContents serves /api/repos/{org}/{repo}/contents/{path}
func (f *FakeGitHub) handleContents(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/api/repos/"), "/", 4)
	if len(parts) < 3 || parts[0] != f.Org || parts[2] != "contents" {
		http.NotFound(w, r)
		return
	}
	if ref := r.URL.Query().Get("ref"); ref != "" && ref != f.Branch {
		http.NotFound(w, r)
		return
	}

	repo := parts[1]
	dir := ""
	if len(parts) == 4 {
		dir = strings.Trim(parts[3], "/")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[repo+":"+dir] {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	files, ok := f.repos[repo]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if _, isFile := files[dir]; isFile {
		writeJSON(w, f.entry(repo, dir, "file"))
		return
	}

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	children := make(map[string]string)
	for p := range files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			children[prefix+rest[:i]] = "dir"
		} else {
			children[p] = "file"
		}
	}
	if len(children) == 0 {
		http.NotFound(w, r)
		return
	}

	names := make([]string, 0, len(children))
	for p := range children {
		names = append(names, p)
	}
	sort.Strings(names)

	entries := make([]fakeEntry, 0, len(names))
	for _, p := range names {
		entries = append(entries, f.entry(repo, p, children[p]))
	}
	writeJSON(w, entries)
}

func (f *FakeGitHub) entry(repo, p, typ string) fakeEntry {
	e := fakeEntry{Name: path.Base(p), Path: p, Type: typ}
	if typ == "file" {
		e.DownloadURL = f.Server.URL + "/raw/" + f.Org + "/" + repo + "/" + f.Branch + "/" + p
	}
	return e
}

// handleRaw serves /raw/{org}/{repo}/{branch}/{path}
func (f *FakeGitHub) handleRaw(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/raw/"), "/", 4)
	if len(parts) != 4 || parts[0] != f.Org || parts[2] != f.Branch {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	data, ok := f.repos[parts[1]][parts[3]]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
