package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dindion/internal/core"
)

func newMonthsCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "months",
		Short: "Print the reference month options offered by the input form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := core.ParseYearMonth(from)
			if err != nil {
				return err
			}
			end, err := core.ParseYearMonth(to)
			if err != nil {
				return err
			}
			options := core.MonthRange(start, end)
			if len(options) == 0 {
				return fmt.Errorf("%w: --to must not be before --from", core.ErrValidation)
			}

			def := core.DefaultFormMonth(options, core.MonthOf(time.Now(), location()))
			out := cmd.OutOrStdout()
			for _, m := range options {
				marker := " "
				if m == def {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s\n", marker, m, core.FormatMonthLabel(m))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "2025-06", "First month (YYYY-MM)")
	cmd.Flags().StringVar(&to, "to", "2027-12", "Last month (YYYY-MM)")
	return cmd
}
