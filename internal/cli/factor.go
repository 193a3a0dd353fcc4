package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	api "pitpipe/pkg/contracts/api/v1"
)

// FactorOptions holds flags for the factor command.
type FactorOptions struct {
	*RootOptions
	From   string
	To     string
	Assets []string
	Output string
	Sheet  string
}

// FactorResult is the output of the factor command.
type FactorResult struct {
	Output string              `json:"output,omitempty"`
	Rows   int                 `json:"rows"`
	Factor *api.FactorResponse `json:"factor,omitempty"`
}

// NewFactorCommand creates the factor command.
func NewFactorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FactorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "factor [name]",
		Short: "Compute a business-day distance factor",
		Long: `Compute a named business-day distance factor for a range of trading
days and a list of assets. Without a name, list the factors whose input
dataset is configured.

Example:
  pitload factor
  pitload factor BusinessDaysUntilNextEarnings --from 2014-01-02 --to 2014-01-31 --assets 1,2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListFactors(opts.RootOptions, cmd)
			}
			return runFactor(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&opts.Assets, "assets", nil, "comma separated sids")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "Factors", "sheet name for XLSX output")

	return cmd
}

func runListFactors(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	application, err := openApplication(opts, cmd, f)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	list := application.EventService.Factors("")

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FACTOR\tINPUT\tDIRECTION")
	for _, fi := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", fi.Name, fi.Input, fi.Direction)
	}
	tw.Flush()
	return f.Success(list, b.String())
}

func runFactor(opts *FactorOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.From == "" || opts.To == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "--from and --to are required", nil)
	}
	assets, err := parseAssets(opts.Assets)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid assets", err)
	}

	application, err := openApplication(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	ctx := commandContext(cmd)
	resp, err := application.EventService.ComputeFactor(ctx, api.FactorRequest{
		DateRangeRequest: api.DateRangeRequest{From: opts.From, To: opts.To},
		Factor:           name,
		Assets:           assets,
	})
	if err != nil {
		return serviceFailure(f, "factor failed", err)
	}

	values := make([][]any, len(resp.Values))
	for r, row := range resp.Values {
		values[r] = make([]any, len(row))
		for c, v := range row {
			values[r][c] = v
		}
	}
	table := newTable(resp.Dates, resp.Assets, resp.Factor)
	table.fill(values)

	result := FactorResult{Rows: len(table.Rows)}
	if opts.Output == "" {
		result.Factor = resp
		return f.Success(result, table.String())
	}
	if err := writeTable(table, opts.Output, opts.Sheet); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write output", err)
	}
	result.Output = opts.Output
	return f.Success(result, fmt.Sprintf("Wrote %d row(s) to %s\n", result.Rows, opts.Output))
}
