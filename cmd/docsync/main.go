package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/schaermu/docsync/internal/activation"
	"github.com/schaermu/docsync/internal/config"
	"github.com/schaermu/docsync/internal/github"
	"github.com/schaermu/docsync/internal/sync"
	"github.com/schaermu/docsync/internal/webhook"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Sync flags
	force  bool
	dryRun bool
)

// errReported marks failures whose message was already printed
var errReported = errors.New("sync failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Synchronize project documentation from GitHub into the docs site",
	Long: `docsync mirrors the docs/ folder of each configured GitHub repository into
content/<project>/ of the documentation site.

Markdown is escaped for MDX, images are collected into public/images, pages
deleted upstream are pruned, and every project gets a minimal landing page.
Existing pages are kept unless --force is given.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Serve performs an initial sync and then listens for GitHub push webhooks,
re-running the sync whenever a configured project repository is updated.

This mode requires the serve section in the config file, including a webhook
secret file. A socket passed by systemd socket activation is used when present.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "docsync %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFileName+", else built-in projects)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.Flags().AddFlagSet(syncFlags())
	serveCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func syncFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	fs.BoolVarP(&force, "force", "f", false, "refetch and overwrite existing pages")
	fs.BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")
	return fs
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	// Setup logger
	logger := setupLogger()

	if err := syncOnce(ctx, cmd.OutOrStdout(), logger); err != nil {
		logger.Error("sync failed", "error", err)
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Sync failed: %v\n", err)
		return errReported
	}
	return nil
}

func syncOnce(ctx context.Context, out io.Writer, logger *slog.Logger) error {
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := newEngine(ctx, cfg, out, logger, sync.RunOptions{Force: force, DryRun: dryRun})
	return engine.Run(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	// Setup logger
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Serve.Enabled {
		return fmt.Errorf("serve mode is not enabled in the configuration (set serve.enabled)")
	}

	engine := newEngine(ctx, cfg, cmd.OutOrStdout(), logger, sync.RunOptions{DryRun: dryRun})

	server, err := webhook.NewServer(cfg, engine, logger)
	if err != nil {
		return err
	}

	ln, inherited, err := activation.Listen(cfg.Serve.ListenAddr)
	if err != nil {
		return err
	}
	if inherited {
		logger.Info("using socket from systemd activation", "addr", ln.Addr().String())
	}

	return server.Start(ctx, ln)
}

// newEngine resolves the GitHub token once and wires the engine to the
// real filesystem
func newEngine(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger, opts sync.RunOptions) *sync.Engine {
	token := github.ResolveToken(ctx, os.LookupEnv, github.ExecRunner{}, cfg.GitHub.TokenCommand)
	reportToken(out, token)

	client := github.NewClient(cfg.GitHub, token.Value, logger)
	return sync.NewEngine(cfg, afero.NewOsFs(), client, logger, out, opts)
}

func reportToken(out io.Writer, token github.Token) {
	if token.Anonymous() {
		_, _ = fmt.Fprintf(out, "Warning: no GitHub token found, only public repositories can be read (set $%s or run `gh auth login`)\n", github.TokenEnv)
		return
	}

	switch token.Source {
	case github.SourceEnv:
		_, _ = fmt.Fprintf(out, "Using GitHub token from $%s\n", github.TokenEnv)
	case github.SourceHelper:
		_, _ = fmt.Fprintln(out, "Using GitHub token from credential helper")
	}
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// loadConfig reads --config, else ./docsync.yaml when present, else falls
// back to the built-in project list
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// Determine config file path
	configPath := cfgFile
	if configPath == "" {
		if _, err := os.Stat(config.DefaultFileName); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			logger.Info("no config file found, using built-in defaults")
			return config.Default(), nil
		}
		configPath = config.DefaultFileName
	}

	logger.Info("loading configuration", "path", configPath)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"org", cfg.GitHub.Org,
		"branch", cfg.GitHub.Branch,
		"projects", len(cfg.Projects),
		"root", cfg.Paths.Root)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle SIGINT and SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
