package sync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/schaermu/docsync/internal/content"
)

type projectMeta struct {
	Index string  `json:"index"`
	API   apiPage `json:"api"`
}

type apiPage struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

type apiMeta struct {
	Reference string `json:"reference"`
}

// Scaffolder guarantees every project has a landing page and manifests
type Scaffolder struct {
	fs     afero.Fs
	logger *slog.Logger
	dryRun bool
}

// NewScaffolder creates a scaffolder
func NewScaffolder(fs afero.Fs, logger *slog.Logger, dryRun bool) *Scaffolder {
	return &Scaffolder{fs: fs, logger: logger, dryRun: dryRun}
}

// Ensure creates dir, dir/api, index.mdx, _meta.json and api/_meta.json
// where missing and returns the files it created. Existing files are never
// modified.
func (s *Scaffolder) Ensure(dir, title string) ([]string, error) {
	apiDir := filepath.Join(dir, content.APIDir)

	if !s.dryRun {
		if err := s.fs.MkdirAll(apiDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", apiDir, err)
		}
	}

	meta, err := marshalMeta(projectMeta{
		Index: title,
		API:   apiPage{Title: "API", Type: "page"},
	})
	if err != nil {
		return nil, err
	}
	refMeta, err := marshalMeta(apiMeta{Reference: "API Reference"})
	if err != nil {
		return nil, err
	}

	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(dir, content.IndexPage), []byte(fmt.Sprintf("# %s\n\nDocumentation coming soon.\n", title))},
		{filepath.Join(dir, content.ManifestName), meta},
		{filepath.Join(apiDir, content.ManifestName), refMeta},
	}

	var created []string
	for _, f := range files {
		exists, err := afero.Exists(s.fs, f.path)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if s.dryRun {
			s.logger.Info("[dry-run] would scaffold", "dest", f.path)
		} else if err := writeFileAtomic(s.fs, f.path, f.data); err != nil {
			return created, fmt.Errorf("failed to scaffold %s: %w", f.path, err)
		}
		created = append(created, f.path)
	}

	return created, nil
}

func marshalMeta(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
