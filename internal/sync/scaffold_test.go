package sync

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestScaffolder_Ensure(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewScaffolder(fs, testLogger(), false)

	created, err := s.Ensure("/c/cli", "Acme CLI")
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"/c/cli/index.mdx", "/c/cli/_meta.json", "/c/cli/api/_meta.json"}, created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}

	want := map[string]string{
		"/c/cli/index.mdx":      "# Acme CLI\n\nDocumentation coming soon.\n",
		"/c/cli/_meta.json":     "{\n  \"index\": \"Acme CLI\",\n  \"api\": {\n    \"title\": \"API\",\n    \"type\": \"page\"\n  }\n}\n",
		"/c/cli/api/_meta.json": "{\n  \"reference\": \"API Reference\"\n}\n",
	}
	for p, w := range want {
		if diff := cmp.Diff(w, readFile(t, fs, p)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", p, diff)
		}
	}
}

func TestScaffolder_NeverOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/c/cli/index.mdx")

	created, err := NewScaffolder(fs, testLogger(), false).Ensure("/c/cli", "Acme CLI")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 2 {
		t.Errorf("created=%v, want 2 files", created)
	}
	if got := readFile(t, fs, "/c/cli/index.mdx"); got != "x" {
		t.Errorf("existing index.mdx was modified: %q", got)
	}

	created, err = NewScaffolder(fs, testLogger(), false).Ensure("/c/cli", "Other")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Errorf("second Ensure created %v", created)
	}
}

func TestScaffolder_DryRun(t *testing.T) {
	fs := afero.NewMemMapFs()

	created, err := NewScaffolder(fs, testLogger(), true).Ensure("/c/cli", "Acme CLI")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 3 {
		t.Errorf("created=%v, want 3", created)
	}
	if exists, _ := afero.Exists(fs, "/c/cli"); exists {
		t.Error("dry run must not create the project directory")
	}
}
