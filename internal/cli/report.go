package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fundledger/internal/services"
)

func newReportCommand(opts *rootOptions) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the budget report for the fiscal year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := opts.openApp(ctx, nil)
			if err != nil {
				return err
			}
			defer closeApp(app)

			snap, err := refreshView(ctx, app, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			report := services.BuildReport(snap, time.Now())
			fmt.Fprint(cmd.OutOrStdout(), services.FormatReport(report))

			if !publish {
				return nil
			}
			pub, err := app.ReportPublisher(ctx)
			if err != nil {
				return err
			}
			ref, err := pub.PublishReport(ctx, report)
			if err != nil {
				return fmt.Errorf("publish report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published to %s\n", ref)
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "also write the report to Google Sheets")
	return cmd
}
