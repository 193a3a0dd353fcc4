package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	api "pitpipe/pkg/contracts/api/v1"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	From    string
	To      string
	Assets  []string
	Columns []string
	Output  string
	Sheet   string
}

// LoadResult is the output of the load command.
type LoadResult struct {
	Output string `json:"output,omitempty"`
	Rows   int    `json:"rows"`
	// Loads carries the loaded values when no output file was written
	Loads []*api.LoadResponse `json:"loads,omitempty"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load point-in-time columns to CSV or XLSX",
		Long: `Load point-in-time columns for a range of trading days and a list of
assets. Columns are named <dataset>.<column>; columns of different
datasets are loaded concurrently. The result has one row per day and
asset and is written to --output, or to stdout as CSV.

Example:
  pitload load --from 2014-01-02 --to 2014-01-31 --assets 1,2 \
    --columns EarningsCalendar.next_announcement,CashDividends.next_amount
  pitload load --from 2014-01-02 --to 2014-01-31 --assets 1 \
    --columns CashDividends.previous_ex_date --output dividends.xlsx`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day (YYYY-MM-DD, required)")
	cmd.Flags().StringSliceVar(&opts.Assets, "assets", nil, "comma separated sids (required)")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "comma separated <dataset>.<column> names (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "Loads", "sheet name for XLSX output")
	for _, name := range []string{"from", "to", "assets", "columns"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// columnGroup is the columns requested from one dataset
type columnGroup struct {
	dataset string
	columns []string
}

// groupColumns splits qualified column names by dataset, keeping the order
// in which datasets first appear
func groupColumns(qualified []string) ([]columnGroup, error) {
	var groups []columnGroup
	index := map[string]int{}
	for _, q := range qualified {
		dataset, column, ok := strings.Cut(strings.TrimSpace(q), ".")
		if !ok || dataset == "" || column == "" {
			return nil, fmt.Errorf("column %q is not <dataset>.<column>", q)
		}
		i, seen := index[dataset]
		if !seen {
			i = len(groups)
			index[dataset] = i
			groups = append(groups, columnGroup{dataset: dataset})
		}
		groups[i].columns = append(groups[i].columns, column)
	}
	if len(groups) == 0 {
		return nil, errors.New("at least one column is required")
	}
	return groups, nil
}

func runLoad(opts *LoadOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	assets, err := parseAssets(opts.Assets)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid assets", err)
	}
	groups, err := groupColumns(opts.Columns)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid columns", err)
	}

	application, err := openApplication(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())
	svc := application.EventService

	ctx := commandContext(cmd)

	loads := make([]*api.LoadResponse, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			f.VerboseLog("Loading %d column(s) of %s", len(group.columns), group.dataset)
			resp, err := svc.Load(gctx, api.LoadRequest{
				DateRangeRequest: api.DateRangeRequest{From: opts.From, To: opts.To},
				Dataset:          group.dataset,
				Columns:          group.columns,
				Assets:           assets,
			})
			if err != nil {
				return err
			}
			loads[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return serviceFailure(f, "load failed", err)
	}

	table := newTable(loads[0].Dates, assets)
	for _, resp := range loads {
		for _, col := range resp.Columns {
			table.Header = append(table.Header, resp.Dataset+"."+col.Name)
			table.fill(col.Values)
		}
	}
	return emitTable(f, table, opts.Output, opts.Sheet, loads)
}

// emitTable writes table to output when set and reports the result
func emitTable(f *OutputFormatter, table *Table, output, sheet string, loads []*api.LoadResponse) error {
	result := LoadResult{Rows: len(table.Rows)}
	if output == "" {
		result.Loads = loads
		return f.Success(result, table.String())
	}

	if err := writeTable(table, output, sheet); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write output", err)
	}
	result.Output = output
	return f.Success(result, fmt.Sprintf("Wrote %d row(s) to %s\n", result.Rows, output))
}
