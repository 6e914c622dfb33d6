package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fundledger/internal/core"
)

func newTreeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the account hierarchy of the fiscal year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app)

			nodes, err := app.View.Hierarchy(cmd.Context(), app.FiscalYearLabel())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No accounts")
				return nil
			}
			core.Walk(nodes, func(n *core.BudgetNode) {
				e := n.Entry
				fmt.Fprintf(out, "%s%s %s  %s / %s\n",
					strings.Repeat("  ", n.Depth),
					e.AccountNumber, e.Description,
					core.FormatAmount(e.Actual), core.FormatAmount(e.Budgeted))
			})
			return nil
		},
	}
}
