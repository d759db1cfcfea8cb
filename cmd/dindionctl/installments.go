package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dindion/internal/core"
)

func newInstallmentsCmd() *cobra.Command {
	var amount, date, month, description string
	var count int

	cmd := &cobra.Command{
		Use:   "installments",
		Short: "Print how a credit purchase splits into installments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			total, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			start, err := core.ParseDate(date)
			if err != nil {
				return err
			}
			startMonth := start.YearMonth()
			if month != "" {
				if startMonth, err = core.ParseYearMonth(month); err != nil {
					return err
				}
			}
			if count < 1 || count > core.MaxInstallments {
				return core.ErrInvalidInstallments
			}

			txs, err := core.ExpandInstallments(core.Purchase{
				Description: description,
				Total:       core.SignedAmount(total, core.TypeExpense),
				Count:       count,
				StartDate:   start,
				StartMonth:  startMonth,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DESCRIPTION\tDATE\tREFERENCE MONTH\tAMOUNT")
			for _, tx := range txs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					tx.Description, tx.Date, core.FormatMonthLabel(tx.ReferenceMonth), core.FormatReais(tx.Amount))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Total purchase amount, e.g. 300 or 300,50")
	cmd.Flags().IntVar(&count, "count", 1, "Number of installments")
	cmd.Flags().StringVar(&date, "date", "", "Purchase date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&month, "month", "", "Reference month of the first installment (YYYY-MM), defaults to the purchase month")
	cmd.Flags().StringVar(&description, "description", "Compra", "Purchase description")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
