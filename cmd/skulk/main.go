package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openskulk/skulk/pkg/app"
	"github.com/openskulk/skulk/pkg/config"
	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/tasks"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "skulk",
	Short: "Skulk - free proxy pool manager",
	Long: `Skulk discovers free HTTP/HTTPS/SOCKS proxies from public lists,
validates them continuously, and serves the working set through a small
read API. Multiple workers can share one PostgreSQL store and one Redis
instance.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Skulk version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// setup loads configuration, initializes logging and connects backends.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return app.New(ctx, cfg)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker: scheduler plus read API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		return a.Run(ctx)
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one crawl pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(tasks.Crawl)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run one pending-validation batch and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(tasks.ValidatePending)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Evict exhausted and stale proxies and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(tasks.Cleanup)
	},
}

func runOnce(taskFn func(tasks.Deps) func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return taskFn(a.Deps())(ctx)
}
