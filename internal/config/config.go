package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no --config is given
const DefaultFileName = "docsync.yaml"

// Config represents the complete docsync configuration
type Config struct {
	GitHub   GitHubConfig `yaml:"github"`
	Paths    PathsConfig  `yaml:"paths"`
	Projects []Project    `yaml:"projects"`
	Serve    ServeConfig  `yaml:"serve"`
}

// GitHubConfig configures where documentation is fetched from
type GitHubConfig struct {
	Org          string        `yaml:"org"`
	Branch       string        `yaml:"branch"`
	APIURL       string        `yaml:"api_url"`
	RawURL       string        `yaml:"raw_url"`
	UserAgent    string        `yaml:"user_agent"`
	TokenCommand []string      `yaml:"token_command"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PathsConfig configures the local site layout. Relative paths are
// resolved against Root.
type PathsConfig struct {
	Root       string   `yaml:"root"`
	ImagesDir  string   `yaml:"images_dir"`
	APIDir     string   `yaml:"api_dir"`
	LegacyDirs []string `yaml:"legacy_dirs"`
}

// Project is one repository whose docs are mirrored into the site
type Project struct {
	Name     string   `yaml:"name"`
	Repo     string   `yaml:"repo"`
	Title    string   `yaml:"title"`
	DocsPath string   `yaml:"docs_path"`
	Dest     string   `yaml:"dest"`
	Exclude  []string `yaml:"exclude"`
}

// ServeConfig configures the webhook server
type ServeConfig struct {
	Enabled                 bool     `yaml:"enabled"`
	ListenAddr              string   `yaml:"listen_addr"`
	GitHubWebhookSecretFile string   `yaml:"github_webhook_secret_file"`
	AllowedEventTypes       []string `yaml:"allowed_event_types"`
	AllowedRefs             []string `yaml:"allowed_refs"`
}

// Default returns the built-in configuration used when no config file exists
func Default() *Config {
	cfg := &Config{
		GitHub: GitHubConfig{
			Org:    "pentamorfico",
			Branch: "main",
		},
		Projects: []Project{
			{Name: "hoodini", Repo: "hoodini", Title: "Hoodini CLI"},
			{Name: "hoodini-viz", Repo: "hoodini-viz", Title: "Hoodini Viz"},
			{Name: "hoodini-colab", Repo: "hoodini-colab", Title: "Hoodini Colab"},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in path-like string fields
func (c *Config) expandEnv() {
	c.GitHub.Org = os.ExpandEnv(c.GitHub.Org)
	c.GitHub.Branch = os.ExpandEnv(c.GitHub.Branch)
	c.GitHub.APIURL = os.ExpandEnv(c.GitHub.APIURL)
	c.GitHub.RawURL = os.ExpandEnv(c.GitHub.RawURL)
	c.Paths.Root = os.ExpandEnv(c.Paths.Root)
	c.Paths.ImagesDir = os.ExpandEnv(c.Paths.ImagesDir)
	c.Paths.APIDir = os.ExpandEnv(c.Paths.APIDir)
	for i := range c.Paths.LegacyDirs {
		c.Paths.LegacyDirs[i] = os.ExpandEnv(c.Paths.LegacyDirs[i])
	}
	for i := range c.Projects {
		c.Projects[i].Dest = os.ExpandEnv(c.Projects[i].Dest)
	}
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.GitHubWebhookSecretFile = os.ExpandEnv(c.Serve.GitHubWebhookSecretFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.GitHub.Branch == "" {
		c.GitHub.Branch = "main"
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = "https://api.github.com"
	}
	if c.GitHub.RawURL == "" {
		c.GitHub.RawURL = "https://raw.githubusercontent.com"
	}
	c.GitHub.APIURL = strings.TrimRight(c.GitHub.APIURL, "/")
	c.GitHub.RawURL = strings.TrimRight(c.GitHub.RawURL, "/")
	if c.GitHub.UserAgent == "" {
		c.GitHub.UserAgent = "docsync"
	}
	if c.GitHub.TokenCommand == nil {
		c.GitHub.TokenCommand = []string{"gh", "auth", "token"}
	}
	if c.GitHub.Timeout == 0 {
		c.GitHub.Timeout = 30 * time.Second
	}

	if c.Paths.Root == "" {
		c.Paths.Root = "."
	}
	if c.Paths.ImagesDir == "" {
		c.Paths.ImagesDir = "public/images"
	}
	if c.Paths.APIDir == "" {
		c.Paths.APIDir = "public/api"
	}
	if c.Paths.LegacyDirs == nil {
		c.Paths.LegacyDirs = []string{"content/docs"}
	}

	for i := range c.Projects {
		p := &c.Projects[i]
		if p.Repo == "" {
			p.Repo = p.Name
		}
		if p.Title == "" {
			p.Title = p.Name
		}
		if p.DocsPath == "" {
			p.DocsPath = "docs"
		}
		if p.Dest == "" {
			p.Dest = filepath.Join("content", p.Name)
		}
	}

	if len(c.Serve.AllowedRefs) == 0 {
		c.Serve.AllowedRefs = []string{"refs/heads/" + c.GitHub.Branch}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.GitHub.Org == "" {
		return fmt.Errorf("github.org is required")
	}
	if !strings.HasPrefix(c.GitHub.APIURL, "http://") && !strings.HasPrefix(c.GitHub.APIURL, "https://") {
		return fmt.Errorf("github.api_url must be an http(s) URL: %s", c.GitHub.APIURL)
	}
	if !strings.HasPrefix(c.GitHub.RawURL, "http://") && !strings.HasPrefix(c.GitHub.RawURL, "https://") {
		return fmt.Errorf("github.raw_url must be an http(s) URL: %s", c.GitHub.RawURL)
	}
	if c.GitHub.Timeout < 0 {
		return fmt.Errorf("github.timeout must not be negative")
	}

	if len(c.Projects) == 0 {
		return fmt.Errorf("at least one project is required")
	}

	seen := make(map[string]bool)
	for i, p := range c.Projects {
		if p.Name == "" {
			return fmt.Errorf("projects[%d].name is required", i)
		}
		// Names become directories under content/ and are pruned there
		if strings.ContainsAny(p.Name, `/\`) || p.Name == "." || p.Name == ".." {
			return fmt.Errorf("projects[%d].name must be a plain directory name, got %q", i, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate project name: %s", p.Name)
		}
		seen[p.Name] = true

		if strings.Contains(p.Repo, "/") {
			return fmt.Errorf("projects[%d].repo must be a bare repository name, got %q", i, p.Repo)
		}
		for _, pattern := range p.Exclude {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("projects[%d].exclude: invalid pattern %q", i, pattern)
			}
		}
	}

	if c.Serve.Enabled {
		if c.Serve.ListenAddr == "" {
			return fmt.Errorf("serve.listen_addr is required when serve is enabled")
		}
		if c.Serve.GitHubWebhookSecretFile == "" {
			return fmt.Errorf("serve.github_webhook_secret_file is required when serve is enabled")
		}
	}

	return nil
}

// resolve joins a configured path onto the site root unless it is absolute
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.Root, p)
}

// ProjectDir returns the local destination directory of a project
func (c *Config) ProjectDir(p Project) string {
	return c.resolve(p.Dest)
}

// ImagesDir returns the shared directory all synced images are flattened into
func (c *Config) ImagesDir() string {
	return c.resolve(c.Paths.ImagesDir)
}

// APIDir returns the directory the separate API reference build writes to
func (c *Config) APIDir() string {
	return c.resolve(c.Paths.APIDir)
}

// LegacyDirs returns resolved directories that are removed before each run
func (c *Config) LegacyDirs() []string {
	dirs := make([]string, 0, len(c.Paths.LegacyDirs))
	for _, d := range c.Paths.LegacyDirs {
		dirs = append(dirs, c.resolve(d))
	}
	return dirs
}

// RepoFullName returns "org/repo" for a project, the form GitHub uses in
// webhook payloads
func (c *Config) RepoFullName(p Project) string {
	return c.GitHub.Org + "/" + p.Repo
}

// ProjectByRepo finds the project mirroring the given "org/repo"
func (c *Config) ProjectByRepo(fullName string) (Project, bool) {
	for _, p := range c.Projects {
		if strings.EqualFold(c.RepoFullName(p), fullName) {
			return p, true
		}
	}
	return Project{}, false
}
