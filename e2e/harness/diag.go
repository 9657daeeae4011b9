//go:build e2e

package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Diagnostics represents collected diagnostic information
type Diagnostics struct {
	CollectedAt time.Time
	Items       []DiagItem
}

// DiagItem is one named block of diagnostic output
type DiagItem struct {
	Name   string
	Output string
}

// CollectDiagnostics gathers the site tree, the requests the fake GitHub
// served and the output of the last invocation
func (s *Suite) CollectDiagnostics() *Diagnostics {
	diag := &Diagnostics{CollectedAt: time.Now()}

	var tree strings.Builder
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(s.Root, p)
		if d.IsDir() {
			fmt.Fprintf(&tree, "%s/\n", rel)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fmt.Fprintf(&tree, "%s (%d bytes)\n", rel, info.Size())
		return nil
	})
	if err != nil {
		fmt.Fprintf(&tree, "walk failed: %v\n", err)
	}
	diag.Items = append(diag.Items, DiagItem{Name: "site-tree", Output: tree.String()})

	diag.Items = append(diag.Items, DiagItem{
		Name:   "github-requests",
		Output: strings.Join(s.GitHub.Requests(), "\n"),
	})

	diag.Items = append(diag.Items, DiagItem{
		Name: "last-run",
		Output: fmt.Sprintf("args: %v\nexit: %d\nstdout:\n%s\nstderr:\n%s",
			s.LastRun.Args, s.LastRun.ExitCode, s.LastRun.Stdout, s.LastRun.Stderr),
	})

	return diag
}

// DumpDiagnostics writes all diagnostics through Logf
func (s *Suite) DumpDiagnostics() {
	diag := s.CollectDiagnostics()
	s.Logf("=== [%s] diagnostics collected at %s ===", s.Name, diag.CollectedAt.Format(time.RFC3339))
	for _, item := range diag.Items {
		s.Logf("--- %s ---\n%s", item.Name, item.Output)
	}
}
