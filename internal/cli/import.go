package cli

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fundledger/internal/services"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var (
		newPeriod bool
		year      int
		replace   bool
		sheet     string
	)

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import budget lines and enterprises from a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app)

			ctx, stop := ShutdownContext(cmd.Context(), app.Logger)
			defer stop()

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			printed := 0
			app.Import.OnProgress(func(s services.ImportStatus) {
				mu.Lock()
				defer mu.Unlock()
				for ; printed < len(s.Lines); printed++ {
					fmt.Fprintf(out, "[%3d%%] %s\n", s.Progress, s.Lines[printed])
				}
			})

			finished := make(chan struct{})
			defer close(finished)
			go func() {
				select {
				case <-ctx.Done():
					app.Import.Cancel()
				case <-finished:
				}
			}()

			res, err := app.Import.Run(ctx, services.ImportOptions{
				FilePath:        args[0],
				CreateNewPeriod: newPeriod,
				FiscalYear:      year,
				ReplaceExisting: replace,
				SheetName:       sheet,
			})
			if err != nil {
				if errors.Is(err, services.ErrImportInProgress) {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), services.FormatError(
					fmt.Sprintf("Import failed with %d error(s)", res.Status.ErrorCount)))
				return err
			}

			years := make([]string, len(res.Summary.FiscalYears))
			for i, y := range res.Summary.FiscalYears {
				years[i] = fmt.Sprint(y)
			}
			fmt.Fprintf(out, "Stored %d budget lines (%s), %d enterprises, skipped %d rows\n",
				res.Summary.BudgetLines, strings.Join(years, ", "),
				res.Summary.EnterpriseCount, res.Summary.SkippedRows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&newPeriod, "new-period", false, "start a new fiscal period from the workbook")
	cmd.Flags().IntVar(&year, "fiscal-year", 0, "fiscal year for the imported rows (required with --new-period)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace existing entries of each imported year")
	cmd.Flags().StringVar(&sheet, "sheet", "", "budget sheet name (default: first sheet)")
	return cmd
}
