package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	api "pitpipe/pkg/contracts/api/v1"
)

// NewDatasetsCommand creates the datasets command.
func NewDatasetsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List the configured datasets and their columns",
		Long: `List every dataset with a configured source, the kind of source
it reads and the columns it serves.

Example:
  pitload datasets --config configs/config.yaml
  pitload datasets --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasets(rootOpts, cmd)
		},
	}
}

func runDatasets(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	application, err := openApplication(opts, cmd, f)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	datasets := application.EventService.Datasets()

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tSOURCE\tCOLUMNS")
	for _, ds := range datasets {
		names := make([]string, len(ds.Columns))
		for i, c := range ds.Columns {
			names[i] = c.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ds.Name, ds.Source, strings.Join(names, ","))
	}
	tw.Flush()

	return f.Success(api.DatasetsResponse{Datasets: datasets}, b.String())
}

// NewCalendarCommand creates the calendar command.
func NewCalendarCommand(rootOpts *RootOptions) *cobra.Command {
	var req api.DateRangeRequest

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "List the trading days in a range",
		Long: `List the trading days of the configured calendar between --from and
--to inclusive.

Example:
  pitload calendar --from 2014-01-01 --to 2014-01-31`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			application, err := openApplication(rootOpts, cmd, f)
			if err != nil {
				return err
			}
			defer application.Close(context.Background())

			resp, err := application.EventService.Sessions(req)
			if err != nil {
				return serviceFailure(f, "invalid date range", err)
			}
			text := strings.Join(resp.Dates, "\n")
			if text != "" {
				text += "\n"
			}
			return f.Success(resp, text)
		},
	}

	cmd.Flags().StringVar(&req.From, "from", "", "first day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&req.To, "to", "", "last day (YYYY-MM-DD, required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
