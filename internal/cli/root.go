package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pitpipe/internal/app"
	"pitpipe/internal/config"
	"pitpipe/internal/infrastructure"
	"pitpipe/internal/loaders"
	"pitpipe/internal/services"
	"pitpipe/pkg/contracts"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pitload CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "pitload",
		Short:   "Point-in-time event loads from the command line",
		Long:    "Load point-in-time event columns and business-day factors from the configured sources, and ingest event files into the SQLite store.",
		Version: contracts.GetVersionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to config.yaml (default: search the usual locations)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewDatasetsCommand(opts))
	cmd.AddCommand(NewCalendarCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewFactorCommand(opts))

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context tagged with a trace ID, so
// every log line of one invocation can be correlated
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return infrastructure.EnsureTraceID(ctx)
}

// newLogger logs JSON to stderr; warnings only unless verbose
func newLogger(opts *RootOptions, cmd *cobra.Command) (*slog.Logger, error) {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return infrastructure.NewLogger(config.LoggingConfig{Level: level, Output: "console"}, cmd.ErrOrStderr())
}

// loadConfig loads the configuration named by --config
func loadConfig(opts *RootOptions, f *OutputFormatter) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
	}
	// stdout carries command output
	cfg.Telemetry.TraceExporter = "none"
	return cfg, nil
}

// openApplication builds the services described by the configuration.
// Callers close the application when done.
func openApplication(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*app.Application, error) {
	cfg, err := loadConfig(opts, f)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(opts, cmd)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize logger", err)
	}
	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize services", err)
	}
	f.VerboseLog("Serving %d dataset(s)", len(application.EventService.Datasets()))
	return application, nil
}

// serviceFailure reports a service error with the code its cause maps to
func serviceFailure(f *OutputFormatter, message string, err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownDataset),
		errors.Is(err, services.ErrUnknownFactor),
		errors.Is(err, loaders.ErrUnknownDataset),
		errors.Is(err, loaders.ErrUnknownColumn):
		return f.Fail(ExitCommandError, ErrCodeNotFound, message, err)
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidRange),
		errors.Is(err, services.ErrRequestTooLarge),
		errors.Is(err, loaders.ErrColumnSetMismatch):
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, message, err)
	default:
		return f.Fail(ExitFailure, ErrCodeLoadFailed, message, err)
	}
}

// parseAssets parses a comma separated list of sids
func parseAssets(values []string) ([]int64, error) {
	var assets []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			sid, err := strconv.ParseInt(part, 10, 64)
			if err != nil || sid < 0 {
				return nil, fmt.Errorf("invalid asset %q", part)
			}
			assets = append(assets, sid)
		}
	}
	if len(assets) == 0 {
		return nil, errors.New("at least one asset is required")
	}
	return assets, nil
}
