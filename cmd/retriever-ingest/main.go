// Package main implements retriever-ingest, the operator CLI for running
// ingestions and inspecting tenant collections without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/app"
	"github.com/MatiasPrietoHernan/Retriever/internal/config"
	logpkg "github.com/MatiasPrietoHernan/Retriever/internal/logger"
	"github.com/MatiasPrietoHernan/Retriever/internal/version"
)

var (
	// env selects config/<env>.yaml
	env string
	// company is the tenant all subcommands operate on
	company string
	// outputJSON switches human output to JSON
	outputJSON bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "retriever-ingest",
	Short: "Operate tenant listing collections",
	Long: `retriever-ingest runs listing ingestions and inspects tenant collections
using the same configuration as the retriever server.`,
	Version:      version.String(),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "configuration environment (config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&company, "company", "", "tenant (company) name")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	_ = rootCmd.MarkPersistentFlagRequired("company")
}

// loadConfig reads the configuration and builds the CLI logger.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

// setup loads configuration and connects every component.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize: %w", err)
	}
	return a, logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
