package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fundledger/internal/core"
	"fundledger/internal/services"
)

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Load the fiscal year and print its totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app)

			snap, err := refreshView(cmd.Context(), app, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			printTotals(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

// refreshView loads the configured year and returns the applied snapshot.
func refreshView(ctx context.Context, app *App, errOut io.Writer) (core.BudgetSnapshot, error) {
	if err := app.View.Refresh(ctx, app.FiscalYearLabel()); err != nil {
		fmt.Fprintln(errOut, services.FormatError(app.View.ErrorMessage()))
		return core.BudgetSnapshot{}, err
	}
	return app.View.Snapshot(), nil
}

func printTotals(w io.Writer, s core.BudgetSnapshot) {
	fmt.Fprintf(w, "%s: %d accounts, %d enterprises\n",
		core.FormatFiscalYear(s.FiscalYear), len(s.Accounts), len(s.Enterprises))
	fmt.Fprintf(w, "  Budgeted %s  Actual %s  Variance %s\n",
		core.FormatAmount(s.Totals.TotalBudget),
		core.FormatAmount(s.Totals.TotalActual),
		core.FormatAmount(s.Totals.Variance))
	if over := services.OverBudget(s.Accounts); len(over) > 0 {
		fmt.Fprintln(w, services.FormatError(fmt.Sprintf("  %d accounts over budget", len(over))))
	}
}
