package github

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TokenEnv is the environment variable checked before the credential helper
const TokenEnv = "GITHUB_TOKEN"

// Token sources
const (
	SourceNone   = ""
	SourceEnv    = "env"
	SourceHelper = "helper"
)

// Token is a resolved GitHub credential. An empty Value means anonymous
// access, which only reaches public repositories.
type Token struct {
	Value  string
	Source string
}

// Anonymous returns true if no credential was found
func (t Token) Anonymous() bool {
	return t.Value == ""
}

// CommandRunner runs an external command and returns its stdout
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner implements CommandRunner with os/exec
type ExecRunner struct{}

// Output executes the command and returns an error with stderr on failure
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// ResolveToken looks up a token in the environment first, then asks the
// credential helper command (for example "gh auth token"). A failing or
// missing helper is not an error: the result is simply anonymous.
func ResolveToken(ctx context.Context, lookupEnv func(string) (string, bool), runner CommandRunner, helper []string) Token {
	if v, ok := lookupEnv(TokenEnv); ok && strings.TrimSpace(v) != "" {
		return Token{Value: strings.TrimSpace(v), Source: SourceEnv}
	}

	if runner == nil || len(helper) == 0 {
		return Token{}
	}

	out, err := runner.Output(ctx, helper[0], helper[1:]...)
	if err != nil {
		return Token{}
	}

	v := strings.TrimSpace(string(out))
	if v == "" {
		return Token{}
	}
	return Token{Value: v, Source: SourceHelper}
}
