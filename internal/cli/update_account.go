package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fundledger/internal/core"
	"fundledger/internal/ports"
)

func newUpdateAccountCommand(opts *rootOptions) *cobra.Command {
	var budgeted, actual string

	cmd := &cobra.Command{
		Use:   "update-account <id>",
		Short: "Change the budgeted or actual amount of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid account id %q: %w", args[0], err)
			}
			if budgeted == "" && actual == "" {
				return fmt.Errorf("nothing to change: pass --budgeted or --actual")
			}

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

			account, ok := findAccount(snap.Accounts, id)
			if !ok {
				return fmt.Errorf("account %d in %s: %w", id, core.FormatFiscalYear(snap.FiscalYear), ports.ErrNotFound)
			}
			if account, err = applyAmounts(account, budgeted, actual); err != nil {
				return err
			}

			if err := app.View.SaveAccount(ctx, account); err != nil {
				return err
			}
			saved, _ := findAccount(app.View.Snapshot().Accounts, id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: budgeted %s, actual %s, variance %s\n",
				saved.AccountNumber, saved.Description,
				core.FormatAmount(saved.Budgeted),
				core.FormatAmount(saved.Actual),
				core.FormatAmount(saved.Variance()))
			return nil
		},
	}

	cmd.Flags().StringVar(&budgeted, "budgeted", "", "new budgeted amount")
	cmd.Flags().StringVar(&actual, "actual", "", "new actual amount")
	return cmd
}

func findAccount(accounts []core.BudgetAccount, id int64) (core.BudgetAccount, bool) {
	for _, a := range accounts {
		if a.ID == id {
			return a, true
		}
	}
	return core.BudgetAccount{}, false
}

func applyAmounts(a core.BudgetAccount, budgeted, actual string) (core.BudgetAccount, error) {
	v := core.ValidationErrors{}
	if budgeted != "" {
		d, err := core.ParseAmount(budgeted)
		if err != nil {
			v.Add("budgeted", err.Error())
		} else {
			a.Budgeted = d
		}
	}
	if actual != "" {
		d, err := core.ParseAmount(actual)
		if err != nil {
			v.Add("actual", err.Error())
		} else {
			a.Actual = d
		}
	}
	if err := v.Err(); err != nil {
		return a, err
	}
	return a, nil
}
