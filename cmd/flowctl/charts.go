package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"flowtrack/internal/aggregate"
	"flowtrack/internal/core"
)

func weeklyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Print daily expenses for the week containing --date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			txs, loc, err := loadTransactions(ctx)
			if err != nil {
				return err
			}
			date, _ := cmd.Flags().GetString("date")
			now, err := asOf(date, loc)
			if err != nil {
				return err
			}
			logSkipped(ctx, owner(), aggregate.Undated(txs))

			week := aggregate.Weekly(now, txs)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), week)
			}
			return renderWeek(cmd.OutOrStdout(), week)
		},
	}
	cmd.Flags().String("date", "", "any day of the week to print (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("json", false, "print the API representation")
	return cmd
}

func monthlyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Print cashflow for the most recent months with activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			txs, _, err := loadTransactions(ctx)
			if err != nil {
				return err
			}
			logSkipped(ctx, owner(), aggregate.Undated(txs))

			months := aggregate.Monthly(txs)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), months)
			}
			if len(months) == 0 {
				return errNoTransactions
			}
			return renderMonths(cmd.OutOrStdout(), months)
		},
	}
	cmd.Flags().Bool("json", false, "print the API representation")
	return cmd
}

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the full dashboard report as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			txs, loc, err := loadTransactions(ctx)
			if err != nil {
				return err
			}
			date, _ := cmd.Flags().GetString("date")
			now, err := asOf(date, loc)
			if err != nil {
				return err
			}
			report := aggregate.Build(now, txs)
			logSkipped(ctx, owner(), report.Skipped)
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().String("date", "", "moment to compute the report for (YYYY-MM-DD, default today)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderWeek(w io.Writer, week []aggregate.WeekBucket) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Day\tDate\tSpent\t")
	for _, b := range week {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", b.Day, b.Date.Format(time.DateOnly), b.Amount)
	}
	fmt.Fprintf(tw, "Total\t\t%s\t\n", aggregate.WeekTotal(week))
	return tw.Flush()
}

// renderMonths prints one column per expense category, followed by any
// stored category outside the known set so each row adds up to Out.
func renderMonths(w io.Writer, months []aggregate.MonthBucket) error {
	cats := core.ExpenseCategories()
	var extra []core.Category
	for _, m := range months {
		for _, ca := range m.Breakdown() {
			if !ca.Category.IsKnown() && !slices.Contains(extra, ca.Category) {
				extra = append(extra, ca.Category)
			}
		}
	}
	slices.Sort(extra)
	cats = append(cats, extra...)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "Month\tIn\tOut\tNet\t")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t", c)
	}
	fmt.Fprintln(tw)

	for _, m := range months {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t", m.Month, m.MoneyIn, m.MoneyOut, m.NetCashflow)
		for _, c := range cats {
			fmt.Fprintf(tw, "%s\t", m.Amount(c))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
