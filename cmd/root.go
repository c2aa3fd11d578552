// Package cmd defines the CLI commands for the stackexchange-crawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/app"
	"github.com/JakeFAU/stackexchange-crawler/internal/config"
	"github.com/JakeFAU/stackexchange-crawler/internal/harvest"
	"github.com/JakeFAU/stackexchange-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what commands need from the service container. Tests substitute
// their own.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	HarvestSettings() (harvest.Settings, error)
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "stackexchange-crawler",
		Short: "Harvests Stack Exchange questions and answers into JSON records.",
		Long: `stackexchange-crawler pages through the questions of one or more
Stack Exchange sites, writes one JSON record per question under the output
directory and optionally mirrors each record to S3, GCS or a local directory.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.verbose {
				cfg.Logging.Verbose = true
			}
			if err := applyUploadFlag(cmd, &cfg); err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Verbose)
			if err != nil {
				return err
			}

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "V", false, "log per-page progress")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSitesCmd())
	cmd.AddCommand(newQuestionCmd())
	return cmd
}

// applyUploadFlag turns uploads off when a command defines --no-upload and it
// is set to true.
func applyUploadFlag(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Lookup("no-upload") == nil {
		return nil
	}
	noUpload, err := cmd.Flags().GetBool("no-upload")
	if err != nil {
		return fmt.Errorf("read --no-upload: %w", err)
	}
	if noUpload {
		cfg.Crawler.Upload = false
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
