package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pitpipe/internal/app"
	"pitpipe/internal/config"
	"pitpipe/internal/files"
	"pitpipe/internal/sources"
	"pitpipe/pkg/contracts/domain"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
	Sheet    string
	Dir      string
}

// IngestedFile reports one ingested file.
type IngestedFile struct {
	Dataset string `json:"dataset"`
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
}

// IngestResult is the output of the ingest command.
type IngestResult struct {
	Store string         `json:"store"`
	Files []IngestedFile `json:"files"`
}

// endOfTime admits every row regardless of its timestamp
var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest [<dataset>=<file>...]",
		Short: "Ingest CSV or XLSX event files into the SQLite store",
		Long: `Read CSV or XLSX event files and append their rows to the SQLite
store. Each argument names the dataset a file belongs to; the file kind
follows its extension. With --dir, every CSV or XLSX file in the
directory whose name starts with a dataset name is ingested as well.
Files are read concurrently and every file is stored in its own
transaction.

Example:
  pitload ingest --db events.db CashDividends=dividends.csv
  pitload ingest EarningsCalendar=earnings.xlsx BuybackAuthorizations=buybacks.csv
  pitload ingest --dir ./drop`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: data.store_path)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "sheet to read from XLSX files (default: first sheet)")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory to discover event files in")

	return cmd
}

// ingestJob is one parsed <dataset>=<file> argument
type ingestJob struct {
	config config.SourceConfig
	rows   int
}

func parseIngestArgs(args []string, sheet string) ([]*ingestJob, error) {
	jobs := make([]*ingestJob, 0, len(args))
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("argument %q is not <dataset>=<file>", arg)
		}
		if _, ok := domain.Datasets[name]; !ok {
			return nil, fmt.Errorf("unknown dataset %q", name)
		}
		kind, err := files.KindOf(path)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, &ingestJob{config: config.SourceConfig{
			Dataset: name, Kind: kind, Path: path, Sheet: sheet,
		}})
	}
	return jobs, nil
}

func runIngest(opts *IngestOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	jobs, err := parseIngestArgs(args, opts.Sheet)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid arguments", err)
	}
	if opts.Dir != "" {
		found, err := files.NewDiscovery(".").FindEventFiles(opts.Dir)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to discover event files", err)
		}
		for _, fi := range found {
			f.VerboseLog("Discovered %s (%s, %d bytes)", fi.Path, fi.Dataset, fi.Size)
			jobs = append(jobs, &ingestJob{config: config.SourceConfig{
				Dataset: fi.Dataset, Kind: fi.Kind, Path: fi.Path, Sheet: opts.Sheet,
			}})
		}
	}
	if len(jobs) == 0 {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "no event files to ingest", nil)
	}
	for _, job := range jobs {
		if err := files.ValidateFile(job.config.Path); err != nil {
			return f.Fail(ExitCommandError, ErrCodeNotFound, "invalid event file", err)
		}
	}

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := loadConfig(opts.RootOptions, f)
		if err != nil {
			return err
		}
		dbPath = cfg.Data.StorePath
	}
	if dbPath == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "no store: pass --db or set data.store_path", nil)
	}

	logger, err := newLogger(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize logger", err)
	}

	f.VerboseLog("Opening store %s", dbPath)
	store, err := sources.OpenStore(dbPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeIngest, "failed to open store", err)
	}
	defer store.Close()

	ctx := commandContext(cmd)

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			src, err := app.OpenSource(job.config, nil)
			if err != nil {
				return err
			}
			rows, err := src.Rows(gctx, endOfTime)
			if err != nil {
				return fmt.Errorf("%s: %w", job.config.Path, err)
			}
			// the store has a single connection; inserts queue on it
			if err := store.Insert(gctx, job.config.Dataset, rows); err != nil {
				return fmt.Errorf("%s: %w", job.config.Path, err)
			}

			job.rows = len(rows)
			logger.InfoContext(gctx, "File ingested",
				slog.String("dataset", job.config.Dataset),
				slog.String("path", job.config.Path),
				slog.Int("rows", len(rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return f.Fail(ExitFailure, ErrCodeIngest, "ingest failed", err)
	}

	result := IngestResult{Store: dbPath, Files: make([]IngestedFile, len(jobs))}
	var b strings.Builder
	for i, job := range jobs {
		result.Files[i] = IngestedFile{
			Dataset: job.config.Dataset,
			Path:    job.config.Path,
			Rows:    job.rows,
		}
		fmt.Fprintf(&b, "%s: %d row(s) from %s\n", job.config.Dataset, job.rows, job.config.Path)
	}
	return f.Success(result, b.String())
}
