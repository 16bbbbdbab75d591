package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"archmap/internal/config"
	"archmap/internal/logging"
	"archmap/internal/metrics"
	"archmap/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "archmap",
		Short:         "Map the architecture of a Python project",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "archmap.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cyclesCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(showCmd)
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format), nil
}

func runPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger, path string) (*pipeline.Result, error) {
	res, err := pipeline.New(cfg, logger).Run(ctx, path)
	if metricsFile != "" {
		if werr := metrics.WriteTextfile(metricsFile); werr != nil {
			logger.Warn("metrics.write.failed", slog.String("path", metricsFile), slog.String("error", werr.Error()))
		}
	}
	return res, err
}

func pathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func splitFlag(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
