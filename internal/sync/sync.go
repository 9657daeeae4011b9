package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/schaermu/docsync/internal/config"
)

// RunOptions are the per-invocation switches of the CLI
type RunOptions struct {
	// Force refetches and overwrites existing markdown
	Force  bool
	DryRun bool
}

// Engine orchestrates the sync of every configured project
type Engine struct {
	cfg     *config.Config
	fs      afero.Fs
	fetcher Fetcher
	logger  *slog.Logger
	out     io.Writer
	opts    RunOptions
}

// NewEngine creates a new sync engine printing progress to out
func NewEngine(cfg *config.Config, fs afero.Fs, fetcher Fetcher, logger *slog.Logger, out io.Writer, opts RunOptions) *Engine {
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		cfg:     cfg,
		fs:      fs,
		fetcher: fetcher,
		logger:  logger,
		out:     out,
		opts:    opts,
	}
}

// Run executes the complete sync process
func (e *Engine) Run(ctx context.Context) error {
	_, err := e.Sync(ctx)
	return err
}

// Sync runs every project in order and returns their reports. Projects are
// processed one at a time; a failed remote listing only empties that
// subtree, while local filesystem errors abort the run.
func (e *Engine) Sync(ctx context.Context) ([]Report, error) {
	e.printHeader()

	if err := e.prepare(); err != nil {
		return nil, err
	}

	reconciler := NewReconciler(e.fs, e.fetcher, e.cfg.ImagesDir(), e.logger, e.out)
	pruner := NewPruner(e.fs, e.logger, e.out, e.opts.DryRun)
	scaffolder := NewScaffolder(e.fs, e.logger, e.opts.DryRun)

	reports := make([]Report, 0, len(e.cfg.Projects))
	for _, project := range e.cfg.Projects {
		report, err := e.syncProject(ctx, project, reconciler, pruner, scaffolder)
		if err != nil {
			return reports, fmt.Errorf("project %s: %w", project.Name, err)
		}
		reports = append(reports, report)
	}

	_, _ = fmt.Fprintln(e.out, "Sync complete.")
	_, _ = fmt.Fprintln(e.out, "Note: API reference docs are generated separately by the full site build.")
	return reports, nil
}

func (e *Engine) syncProject(ctx context.Context, project config.Project, reconciler *Reconciler, pruner *Pruner, scaffolder *Scaffolder) (Report, error) {
	dest := e.cfg.ProjectDir(project)
	report := Report{Project: project.Name}

	_, _ = fmt.Fprintf(e.out, "%s: fetching from github.com/%s...\n", project.Name, e.cfg.RepoFullName(project))
	e.logger.Info("syncing project", "project", project.Name, "repo", project.Repo, "docs_path", project.DocsPath, "dest", dest)

	result, err := reconciler.SyncDirectory(ctx, project.Repo, project.DocsPath, dest, Options{
		SkipAPI:      true,
		SkipExisting: !e.opts.Force,
		DryRun:       e.opts.DryRun,
		DocsRoot:     project.DocsPath,
		Exclude:      project.Exclude,
	})
	if err != nil {
		return report, err
	}
	report.Written = result.Written
	report.Remote = result.Remote

	// A cancelled run has partial listings; pruning against them would
	// delete pages that still exist upstream.
	if err := ctx.Err(); err != nil {
		return report, err
	}

	removed, err := pruner.Prune(dest, result.Remote)
	if err != nil {
		return report, err
	}
	report.Removed = removed

	created, err := scaffolder.Ensure(dest, project.Title)
	if err != nil {
		return report, err
	}
	report.Scaffolded = created

	e.printSummary(report)
	return report, nil
}

// prepare removes legacy content directories and creates the shared
// image and API directories
func (e *Engine) prepare() error {
	if e.opts.DryRun {
		return nil
	}

	for _, dir := range e.cfg.LegacyDirs() {
		exists, err := afero.DirExists(e.fs, dir)
		if err != nil {
			return fmt.Errorf("failed to inspect legacy directory %s: %w", dir, err)
		}
		if !exists {
			continue
		}
		e.logger.Info("removing legacy directory", "path", dir)
		if err := e.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove legacy directory %s: %w", dir, err)
		}
	}

	for _, dir := range []string{e.cfg.ImagesDir(), e.cfg.APIDir()} {
		if err := e.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func (e *Engine) printHeader() {
	_, _ = fmt.Fprintln(e.out, "Syncing documentation from GitHub...")
	_, _ = fmt.Fprintf(e.out, "   Organization: %s\n", e.cfg.GitHub.Org)
	_, _ = fmt.Fprintf(e.out, "   Branch: %s\n", e.cfg.GitHub.Branch)
	if e.opts.Force {
		_, _ = fmt.Fprintln(e.out, "   Mode: FORCE (overwriting existing pages)")
	}
	if e.opts.DryRun {
		_, _ = fmt.Fprintln(e.out, "   Mode: DRY RUN (no changes are written)")
	}
	_, _ = fmt.Fprintln(e.out)
}

func (e *Engine) printSummary(r Report) {
	synced := "up to date"
	if r.Written > 0 {
		synced = fmt.Sprintf("%d synced", r.Written)
	}
	removed := ""
	if r.Removed > 0 {
		removed = fmt.Sprintf(", %d removed", r.Removed)
	}
	_, _ = fmt.Fprintf(e.out, "   %s%s\n\n", synced, removed)
}
