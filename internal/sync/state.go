package sync

import (
	"context"
	"sort"

	"github.com/schaermu/docsync/internal/github"
)

// Fetcher reads a remote documentation tree. Every method reports failure
// with false; callers skip the item and carry on.
type Fetcher interface {
	ListDirectory(ctx context.Context, repo, dir string) ([]github.Entry, bool)
	FetchFile(ctx context.Context, repo, path string) (string, bool)
	FetchBinary(ctx context.Context, url string) ([]byte, bool)
}

// FileSet is a set of local paths confirmed to exist remotely during a run
type FileSet map[string]struct{}

// NewFileSet creates a set holding paths
func NewFileSet(paths ...string) FileSet {
	s := make(FileSet, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts a path
func (s FileSet) Add(p string) {
	s[p] = struct{}{}
}

// Has reports whether p is in the set
func (s FileSet) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Union returns a new set holding the members of s and other
func (s FileSet) Union(other FileSet) FileSet {
	out := make(FileSet, len(s)+len(other))
	for p := range s {
		out.Add(p)
	}
	for p := range other {
		out.Add(p)
	}
	return out
}

// Sorted returns the members in lexical order
func (s FileSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Options controls a SyncDirectory walk
type Options struct {
	// SkipAPI skips remote directories named "api"
	SkipAPI bool
	// SkipExisting keeps local markdown that already exists. Manifests and
	// images are never overwritten regardless.
	SkipExisting bool
	// DryRun reports writes without performing them
	DryRun bool
	// DocsRoot is the remote docs directory Exclude patterns are relative to
	DocsRoot string
	// Exclude holds doublestar patterns of remote paths to ignore
	Exclude []string
}

// Result is the outcome of reconciling one remote subtree
type Result struct {
	Written int
	Remote  FileSet
}

func (r Result) merge(child Result) Result {
	return Result{
		Written: r.Written + child.Written,
		Remote:  r.Remote.Union(child.Remote),
	}
}

// Report summarizes a synced project
type Report struct {
	Project string
	Written int
	Removed int
	Remote  FileSet
	// Scaffolded lists scaffold files created in this run
	Scaffolded []string
}
