//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"

	"github.com/schaermu/docsync/e2e/harness"
	"github.com/schaermu/docsync/internal/config"
)

var cliProject = config.Project{
	Name:     "cli",
	Repo:     "cli",
	Title:    "Acme CLI",
	DocsPath: "docs",
	Dest:     "content/cli",
}

func newSuite(name string) *harness.Suite {
	s := harness.NewSuite(name, GinkgoT(), binaryPath,
		harness.WithLogf(func(format string, args ...any) {
			_, _ = fmt.Fprintf(GinkgoWriter, format+"\n", args...)
		}))
	DeferCleanup(func() {
		if CurrentSpecReport().Failed() {
			s.DumpDiagnostics()
		}
	})
	return s
}

func seedStandardRemote(s *harness.Suite) {
	s.GitHub.Put("cli", "docs/index.md", []byte("# Hi"))
	s.GitHub.Put("cli", "docs/guide.md", []byte("Use <name> here {x}"))
	s.GitHub.Put("cli", "docs/_meta.json", []byte(`{"index":"Home"}`))
	s.GitHub.Put("cli", "docs/images/logo.png", []byte("\x89PNG"))
}

var _ = Describe("docsync", func() {
	var (
		s   *harness.Suite
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("repeated syncs of one project", Ordered, func() {
		BeforeAll(func() {
			s = newSuite("lifecycle")
			seedStandardRemote(s)
			Expect(s.WriteConfig([]config.Project{cliProject}, nil)).To(Succeed())
		})

		It("mirrors the remote tree on the first run", func() {
			res := s.MustRun(ctx)

			Expect(res.Stdout).To(ContainSubstring("Using GitHub token from $GITHUB_TOKEN"))
			Expect(res.Stdout).To(ContainSubstring("cli: fetching from github.com/acme/cli..."))
			Expect(res.Stdout).To(ContainSubstring("4 synced"))

			Expect(s.ReadFile("content/cli/guide.mdx")).To(Equal("Use `<name>` here &#123;x&#125;"))
			Expect(s.ReadFile("content/cli/index.mdx")).To(Equal("# Hi"))
			Expect(s.ReadFile("content/cli/_meta.json")).To(Equal(`{"index":"Home"}`))
			Expect(s.ReadFile("public/images/logo.png")).To(Equal("\x89PNG"))
			Expect(s.ReadFile("content/cli/api/_meta.json")).To(ContainSubstring(`"reference": "API Reference"`))
			Expect(s.Exists("content/cli/images")).To(BeFalse())
			Expect(s.Exists("public/api")).To(BeTrue())
		})

		It("changes nothing on the second run", func() {
			before, err := s.ReadFile("content/cli/guide.mdx")
			Expect(err).NotTo(HaveOccurred())

			res := s.MustRun(ctx)

			Expect(res.Stdout).To(ContainSubstring("up to date"))
			Expect(res.Stdout).NotTo(ContainSubstring("removed"))
			Expect(s.ReadFile("content/cli/guide.mdx")).To(Equal(before))
		})

		It("keeps local edits without --force", func() {
			Expect(s.WriteFile("content/cli/guide.mdx", "local edit")).To(Succeed())

			s.MustRun(ctx)

			Expect(s.ReadFile("content/cli/guide.mdx")).To(Equal("local edit"))
		})

		It("overwrites markdown but not manifests or images with --force", func() {
			Expect(s.WriteFile("content/cli/_meta.json", "local meta")).To(Succeed())

			res := s.MustRun(ctx, "--force")

			Expect(res.Stdout).To(ContainSubstring("FORCE"))
			Expect(s.ReadFile("content/cli/guide.mdx")).To(Equal("Use `<name>` here &#123;x&#125;"))
			Expect(s.ReadFile("content/cli/_meta.json")).To(Equal("local meta"))
		})

		It("prunes a page deleted upstream", func() {
			s.GitHub.Delete("cli", "docs/guide.md")

			res := s.MustRun(ctx)

			Expect(res.Stdout).To(ContainSubstring("removed: guide.mdx"))
			Expect(res.Stdout).To(ContainSubstring(", 1 removed"))
			Expect(s.Exists("content/cli/guide.mdx")).To(BeFalse())
			Expect(s.Exists("content/cli/index.mdx")).To(BeTrue())
		})
	})

	It("leaves the site untouched in dry-run mode", func() {
		s = newSuite("dry-run")
		seedStandardRemote(s)
		Expect(s.WriteConfig([]config.Project{cliProject}, nil)).To(Succeed())
		Expect(s.WriteFile("content/cli/stale.mdx", "old")).To(Succeed())

		res := s.MustRun(ctx, "--dry-run")

		Expect(res.Stdout).To(ContainSubstring("DRY RUN"))
		Expect(s.Exists("content/cli/guide.mdx")).To(BeFalse())
		Expect(s.Exists("public/images")).To(BeFalse())
		Expect(s.ReadFile("content/cli/stale.mdx")).To(Equal("old"))
	})

	It("skips excluded paths", func() {
		s = newSuite("exclude")
		seedStandardRemote(s)
		s.GitHub.Put("cli", "docs/drafts/wip.md", []byte("wip"))

		project := cliProject
		project.Exclude = []string{"drafts/**"}
		Expect(s.WriteConfig([]config.Project{project}, nil)).To(Succeed())

		s.MustRun(ctx)

		Expect(s.Exists("content/cli/guide.mdx")).To(BeTrue())
		Expect(s.Exists("content/cli/drafts")).To(BeFalse())
	})

	It("scaffolds a project whose docs cannot be listed", func() {
		s = newSuite("unreachable")
		s.GitHub.FailListing("cli", "docs")
		Expect(s.WriteConfig([]config.Project{cliProject}, nil)).To(Succeed())

		res := s.MustRun(ctx)

		Expect(res.Stdout).To(ContainSubstring("up to date"))
		Expect(s.ReadFile("content/cli/index.mdx")).To(Equal("# Acme CLI\n\nDocumentation coming soon.\n"))
	})

	It("fails with a banner when the config is invalid", func() {
		s = newSuite("bad-config")
		Expect(s.WriteConfig(nil, nil)).To(Succeed())

		res, err := s.Run(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.ExitCode).NotTo(Equal(0))
		Expect(res.Stderr).To(HavePrefix("Sync failed: "))
	})

	It("re-syncs when a signed push webhook arrives", func() {
		s = newSuite("serve")
		seedStandardRemote(s)

		secretPath := filepath.Join(GinkgoT().TempDir(), "secret")
		Expect(os.WriteFile(secretPath, []byte("hook-secret\n"), 0o600)).To(Succeed())

		addr := freeAddr()
		Expect(s.WriteConfig([]config.Project{cliProject}, func(c *config.Config) {
			c.Serve = config.ServeConfig{
				Enabled:                 true,
				ListenAddr:              addr,
				GitHubWebhookSecretFile: secretPath,
				AllowedEventTypes:       []string{"push"},
			}
		})).To(Succeed())

		session, err := gexec.Start(s.Command(ctx, "serve", "--log-level", "info"), GinkgoWriter, GinkgoWriter)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			session.Interrupt()
			Eventually(session, 10*time.Second).Should(gexec.Exit())
		})

		Eventually(session.Out, 10*time.Second).Should(gbytes.Say("webhook server starting"))
		Expect(s.Exists("content/cli/guide.mdx")).To(BeTrue())

		s.GitHub.Put("cli", "docs/new.md", []byte("# New"))
		body := []byte(`{"ref":"refs/heads/main","after":"abc123","repository":{"full_name":"acme/cli"}}`)

		Eventually(func() (int, error) {
			return postWebhook("http://"+addr+"/", body, "hook-secret")
		}, 5*time.Second, 100*time.Millisecond).Should(Equal(http.StatusOK))

		Eventually(func() bool {
			return s.Exists("content/cli/new.mdx")
		}, 15*time.Second, 200*time.Millisecond).Should(BeTrue())
	})
})

func freeAddr() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := ln.Addr().String()
	Expect(ln.Close()).To(Succeed())
	return addr
}

func postWebhook(url string, body []byte, secret string) (int, error) {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
