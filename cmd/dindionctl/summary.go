package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dindion/internal/core"
	"dindion/internal/realtime"
	"dindion/internal/services"
	"dindion/internal/storage"
)

func newSummaryCmd() *cobra.Command {
	var uid, filter, month, dbPath string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a user's filtered ledger view from the SQLite database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := core.ParseFilterType(filter)
			if err != nil {
				return err
			}
			m, err := core.ParseYearMonth(month)
			if err != nil {
				return err
			}

			// Skipped records are reported on stderr so stdout stays a clean table.
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			tree, err := storage.Open(dbPath, storage.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer tree.Close()

			return printSummary(cmd, tree, services.NewView(location(), logger), uid, f, m)
		},
	}

	cmd.Flags().StringVar(&uid, "user", "", "User id")
	cmd.Flags().StringVar(&filter, "type", "all", "Filter: all, cash, credit or recipe")
	cmd.Flags().StringVar(&month, "month", "", "Reference month (YYYY-MM), defaults to the selected month")
	cmd.Flags().StringVar(&dbPath, "db", "./data/dindion.db", "SQLite database path")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printSummary(cmd *cobra.Command, r realtime.Reader, view *services.View, uid string, filter core.FilterType, month core.YearMonth) error {
	state, err := services.LoadView(cmd.Context(), r, view, uid, filter, month)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Filter: %s\n", state.Filter)
	if state.SelectedMonth.IsZero() {
		fmt.Fprintln(out, "Month: (none)")
	} else {
		fmt.Fprintf(out, "Month: %s\n", core.FormatMonthLabel(state.SelectedMonth))
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tTYPE\tAMOUNT")
	for _, tx := range state.Filtered {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tx.Date, tx.Description, kind(tx), core.FormatReais(tx.Amount))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Filtered balance: %s\n", core.FormatReais(state.FilteredBalance))
	fmt.Fprintf(out, "Total balance:    %s\n", core.FormatReais(state.TotalBalance))
	return nil
}

func kind(tx core.Transaction) string {
	if c, ok := tx.Credit(); ok {
		return strings.TrimSpace("credit " + c.CardName)
	}
	if p := tx.Payment(); p != "" {
		return string(p)
	}
	return string(tx.Type())
}
