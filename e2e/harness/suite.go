//go:build e2e

// Package harness runs the docsync binary against a fake GitHub inside a
// throwaway site directory.
package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/docsync/internal/config"
	"github.com/schaermu/docsync/internal/testutil"
)

const (
	defaultOrg     = "acme"
	defaultBranch  = "main"
	defaultToken   = "e2e-token"
	defaultTimeout = 30 * time.Second
)

// TB is what the suite needs from the test framework
type TB interface {
	testutil.TB
	TempDir() string
	Fatalf(format string, args ...any)
}

// Suite is one site root wired to one fake GitHub
type Suite struct {
	// immutable config
	Name    string
	Binary  string
	Timeout time.Duration
	Token   string

	// runtime state
	Root       string
	ConfigPath string
	GitHub     *testutil.FakeGitHub
	LastRun    ExecResult

	// optional logger hook
	Logf func(format string, args ...any)

	t TB
}

// SuiteOption configures a Suite
type SuiteOption func(*Suite)

// WithTimeout sets the per-invocation timeout
func WithTimeout(d time.Duration) SuiteOption {
	return func(s *Suite) { s.Timeout = d }
}

// WithToken sets the token the fake requires and the binary receives
func WithToken(token string) SuiteOption {
	return func(s *Suite) { s.Token = token }
}

// WithLogf sets a custom logger
func WithLogf(logf func(string, ...any)) SuiteOption {
	return func(s *Suite) { s.Logf = logf }
}

// ExecResult is the outcome of one docsync invocation
type ExecResult struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// NewSuite creates a suite for the docsync binary at binary
func NewSuite(name string, t TB, binary string, opts ...SuiteOption) *Suite {
	t.Helper()

	s := &Suite{
		Name:    name,
		Binary:  binary,
		Timeout: defaultTimeout,
		Token:   defaultToken,
		Logf:    func(string, ...any) {},
		t:       t,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Root = t.TempDir()
	s.ConfigPath = filepath.Join(t.TempDir(), config.DefaultFileName)
	s.GitHub = testutil.NewFakeGitHub(t, defaultOrg, defaultBranch)
	s.GitHub.Token = s.Token

	s.Logf("[%s] site root %s, fake github %s", s.Name, s.Root, s.GitHub.Server.URL)
	return s
}

// WriteConfig writes a config for projects pointing at the fake GitHub.
// mutate may adjust the config before it is written.
func (s *Suite) WriteConfig(projects []config.Project, mutate func(*config.Config)) error {
	cfg := config.Config{
		GitHub:   s.GitHub.GitHubConfig(),
		Paths:    config.PathsConfig{Root: s.Root},
		Projects: projects,
	}
	// never fall back to a real credential helper
	cfg.GitHub.TokenCommand = []string{}
	if mutate != nil {
		mutate(&cfg)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(s.ConfigPath, data, 0o600)
}

// Command prepares a docsync invocation with the suite config and token
func (s *Suite) Command(ctx context.Context, args ...string) *exec.Cmd {
	full := append([]string{"--config", s.ConfigPath}, args...)
	cmd := exec.CommandContext(ctx, s.Binary, full...)
	cmd.Dir = s.Root
	cmd.Env = append(os.Environ(), "GITHUB_TOKEN="+s.Token)
	return cmd
}

// Run executes docsync to completion
func (s *Suite) Run(ctx context.Context, args ...string) (ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := s.Command(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.Logf("[%s] docsync %s", s.Name, strings.Join(args, " "))
	err := cmd.Run()

	res := ExecResult{
		Args:   args,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		err = nil
	default:
		res.ExitCode = -1
	}
	s.LastRun = res
	return res, err
}

// MustRun executes docsync and fails on a non-zero exit code
func (s *Suite) MustRun(ctx context.Context, args ...string) ExecResult {
	s.t.Helper()
	res, err := s.Run(ctx, args...)
	if err != nil {
		s.t.Fatalf("run docsync %v: %v", args, err)
	}
	if res.ExitCode != 0 {
		s.t.Fatalf("docsync %v exited %d\nstdout:\n%s\nstderr:\n%s", args, res.ExitCode, res.Stdout, res.Stderr)
	}
	return res
}

// Path resolves a slash-separated path inside the site root
func (s *Suite) Path(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// ReadFile reads a file inside the site root
func (s *Suite) ReadFile(rel string) (string, error) {
	data, err := os.ReadFile(s.Path(rel))
	return string(data), err
}

// WriteFile writes a file inside the site root, creating parents
func (s *Suite) WriteFile(rel, content string) error {
	p := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0o644)
}

// Exists reports whether a path inside the site root exists
func (s *Suite) Exists(rel string) bool {
	_, err := os.Stat(s.Path(rel))
	return err == nil
}
