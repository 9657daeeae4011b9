package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/schaermu/docsync/internal/content"
	"github.com/schaermu/docsync/internal/github"
	"github.com/schaermu/docsync/internal/mdx"
)

// Reconciler mirrors a remote docs tree into a local directory
type Reconciler struct {
	fs        afero.Fs
	fetcher   Fetcher
	imagesDir string
	logger    *slog.Logger
	out       io.Writer
}

// NewReconciler creates a reconciler writing images flat into imagesDir and
// reporting each synced page to out
func NewReconciler(fs afero.Fs, fetcher Fetcher, imagesDir string, logger *slog.Logger, out io.Writer) *Reconciler {
	if out == nil {
		out = io.Discard
	}
	return &Reconciler{
		fs:        fs,
		fetcher:   fetcher,
		imagesDir: imagesDir,
		logger:    logger,
		out:       out,
	}
}

// SyncDirectory walks remotePath of repo depth-first and mirrors it into
// localPath. A subtree whose listing fails contributes nothing; only local
// filesystem errors are returned.
func (r *Reconciler) SyncDirectory(ctx context.Context, repo, remotePath, localPath string, opts Options) (Result, error) {
	result := Result{Remote: NewFileSet()}

	entries, ok := r.fetcher.ListDirectory(ctx, repo, remotePath)
	if !ok {
		r.logger.Debug("remote listing unavailable, skipping subtree", "repo", repo, "path", remotePath)
		return result, nil
	}

	for _, entry := range entries {
		if content.IsHidden(entry.Name) {
			continue
		}
		if opts.SkipAPI && entry.Name == content.APIDir {
			continue
		}
		if content.Excluded(opts.Exclude, content.RelativeRemotePath(opts.DocsRoot, entry.Path)) {
			r.logger.Debug("excluded", "repo", repo, "path", entry.Path)
			continue
		}

		localItem := filepath.Join(localPath, entry.Name)

		switch entry.Type {
		case github.TypeDir:
			child, err := r.SyncDirectory(ctx, repo, entry.Path, localItem, opts)
			if err != nil {
				return result, err
			}
			result = result.merge(child)

		case github.TypeFile:
			written, err := r.syncFile(ctx, repo, entry, localItem, opts, result.Remote)
			if err != nil {
				return result, err
			}
			if written {
				result.Written++
			}
		}
	}

	return result, nil
}

// syncFile handles one remote file, recording its local path in remote and
// reporting whether it was written.
func (r *Reconciler) syncFile(ctx context.Context, repo string, entry github.Entry, localItem string, opts Options, remote FileSet) (bool, error) {
	switch content.Classify(entry.Name) {
	case content.KindManifest:
		remote.Add(localItem)
		exists, err := afero.Exists(r.fs, localItem)
		if err != nil || exists {
			return false, err
		}
		data, ok := r.fetcher.FetchFile(ctx, repo, entry.Path)
		if !ok || data == "" {
			return false, nil
		}
		return true, r.write(localItem, []byte(data), opts, content.KindManifest)

	case content.KindMarkdown:
		dest := content.MarkdownDest(localItem)
		remote.Add(dest)
		if opts.SkipExisting {
			exists, err := afero.Exists(r.fs, dest)
			if err != nil || exists {
				return false, err
			}
		}
		data, ok := r.fetcher.FetchFile(ctx, repo, entry.Path)
		if !ok || data == "" {
			return false, nil
		}
		if err := r.write(dest, []byte(mdx.Escape(data)), opts, content.KindMarkdown); err != nil {
			return false, err
		}
		r.reportPage(dest, mdx.Title([]byte(data)), opts.DryRun)
		return true, nil

	case content.KindImage:
		dest := content.ImageDest(r.imagesDir, entry.Name)
		remote.Add(dest)
		exists, err := afero.Exists(r.fs, dest)
		if err != nil || exists {
			return false, err
		}
		data, ok := r.fetcher.FetchBinary(ctx, entry.DownloadURL)
		if !ok {
			return false, nil
		}
		return true, r.write(dest, data, opts, content.KindImage)
	}

	return false, nil
}

func (r *Reconciler) write(dest string, data []byte, opts Options, kind content.Kind) error {
	if opts.DryRun {
		r.logger.Info("[dry-run] would write", "kind", kind.String(), "dest", dest)
		return nil
	}
	r.logger.Debug("writing", "kind", kind.String(), "dest", dest)
	if err := writeFileAtomic(r.fs, dest, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// reportPage prints one progress line per synced page, with its first
// heading when it has one
func (r *Reconciler) reportPage(dest, title string, dryRun bool) {
	verb := "synced"
	if dryRun {
		verb = "would sync"
	}
	name := filepath.Base(dest)
	if title == "" {
		_, _ = fmt.Fprintf(r.out, "   %s: %s\n", verb, name)
		return
	}
	_, _ = fmt.Fprintf(r.out, "   %s: %s (%s)\n", verb, name, title)
}

// writeFileAtomic writes data to dst through a temp file and rename,
// creating parent directories on demand
func writeFileAtomic(fs afero.Fs, dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpFile, err := afero.TempFile(fs, dir, ".docsync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = fs.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := fs.Chmod(tmpPath, 0644); err != nil && !os.IsNotExist(err) {
		return err
	}

	return fs.Rename(tmpPath, dst)
}
