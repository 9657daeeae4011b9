package sync

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/schaermu/docsync/internal/content"
)

// Pruner deletes local markdown that no longer exists remotely
type Pruner struct {
	fs     afero.Fs
	logger *slog.Logger
	out    io.Writer
	dryRun bool
}

// NewPruner creates a pruner reporting each removal to out
func NewPruner(fs afero.Fs, logger *slog.Logger, out io.Writer, dryRun bool) *Pruner {
	if out == nil {
		out = io.Discard
	}
	return &Pruner{fs: fs, logger: logger, out: out, dryRun: dryRun}
}

// Prune walks localDir and removes .mdx files missing from remote, then any
// directories left empty. The api and playground folders, manifests and,
// when remote is empty, the scaffold index page are never touched. A
// missing localDir removes nothing.
func (p *Pruner) Prune(localDir string, remote FileSet) (int, error) {
	removed, _, err := p.prune(localDir, remote)
	return removed, err
}

// prune returns how many entries were removed and how many remain in dir
func (p *Pruner) prune(dir string, remote FileSet) (removed, kept int, err error) {
	infos, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	for _, info := range infos {
		name := info.Name()
		path := filepath.Join(dir, name)

		if p.protected(name, remote) {
			kept++
			continue
		}

		switch {
		case info.IsDir():
			n, left, err := p.prune(path, remote)
			removed += n
			if err != nil {
				return removed, kept, err
			}
			if left > 0 {
				kept++
				continue
			}
			if err := p.remove(path); err != nil {
				return removed, kept, err
			}
			removed++

		case info.Mode().IsRegular() && !remote.Has(path) && content.IsSyncedMarkdown(path):
			if err := p.remove(path); err != nil {
				return removed, kept, err
			}
			removed++
			_, _ = fmt.Fprintf(p.out, "   removed: %s\n", name)

		default:
			kept++
		}
	}

	return removed, kept, nil
}

func (p *Pruner) protected(name string, remote FileSet) bool {
	switch name {
	case content.APIDir, content.PlaygroundDir, content.ManifestName:
		return true
	case content.IndexPage:
		return len(remote) == 0
	}
	return false
}

func (p *Pruner) remove(path string) error {
	if p.dryRun {
		p.logger.Info("[dry-run] would remove", "path", path)
		return nil
	}
	p.logger.Debug("removing orphan", "path", path)
	if err := p.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
