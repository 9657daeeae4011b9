// Package content classifies documentation files and maps remote names to
// their local destinations.
package content

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ManifestName is the per-directory navigation manifest of the docs site
	ManifestName = "_meta.json"
	// IndexPage is the landing page of a project
	IndexPage = "index.mdx"
	// APIDir holds generated API reference pages; it is never synced or pruned
	APIDir = "api"
	// PlaygroundDir holds hand-written local examples; it is never pruned
	PlaygroundDir = "playground"

	// MarkdownExt is the extension synced markdown is stored under
	MarkdownExt = ".mdx"
	plainMarkdownExt = ".md"
)

// ImageExtensions are the asset types copied into the shared images directory
var ImageExtensions = []string{
	".png",
	".jpg",
	".jpeg",
	".gif",
	".svg",
	".webp",
}

// Kind is the sync treatment a remote file gets
type Kind int

const (
	KindOther Kind = iota
	KindManifest
	KindMarkdown
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindManifest:
		return "manifest"
	case KindMarkdown:
		return "markdown"
	case KindImage:
		return "image"
	default:
		return "other"
	}
}

// Classify returns the Kind of a file by its name
func Classify(name string) Kind {
	if name == ManifestName {
		return KindManifest
	}
	ext := filepath.Ext(name)
	if ext == plainMarkdownExt || ext == MarkdownExt {
		return KindMarkdown
	}
	if IsImage(name) {
		return KindImage
	}
	return KindOther
}

// IsImage returns true if the file has a recognized image extension
func IsImage(name string) bool {
	ext := filepath.Ext(name)
	for _, valid := range ImageExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}

// IsHidden returns true for dotfiles and dot-directories
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// MarkdownDest normalizes a local markdown path to the .mdx extension.
// For example: guide.md -> guide.mdx
func MarkdownDest(localPath string) string {
	if strings.HasSuffix(localPath, plainMarkdownExt) {
		return strings.TrimSuffix(localPath, plainMarkdownExt) + MarkdownExt
	}
	return localPath
}

// ImageDest flattens an image into imagesDir by its base name; the remote
// directory structure is not preserved.
func ImageDest(imagesDir, name string) string {
	return filepath.Join(imagesDir, filepath.Base(name))
}

// IsSyncedMarkdown reports whether a local file is a candidate for pruning
func IsSyncedMarkdown(localPath string) bool {
	return strings.HasSuffix(localPath, MarkdownExt)
}

// Excluded reports whether the slash-separated relative path matches any of
// the doublestar patterns. Invalid patterns never match.
func Excluded(patterns []string, rel string) bool {
	rel = path.Clean(strings.TrimPrefix(filepath.ToSlash(rel), "/"))
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// RelativeRemotePath returns p relative to the remote docs root
func RelativeRemotePath(docsRoot, p string) string {
	docsRoot = strings.Trim(docsRoot, "/")
	p = strings.Trim(p, "/")
	if docsRoot == "" {
		return p
	}
	if p == docsRoot {
		return ""
	}
	return strings.TrimPrefix(p, docsRoot+"/")
}
