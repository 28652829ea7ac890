package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"roastline-hq/roastline/pkg/cli"
	"roastline-hq/roastline/pkg/limits/budget"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect monthly API spend",
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show spend for the current month",
	Long: `Show this month's spend against the monthly budget, with a straight-line
projection of month-end spend from the daily average so far.`,
	Args: cobra.NoArgs,
	RunE: runBudgetStatus,
}

var budgetHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show spend for every recorded month",
	Args:  cobra.NoArgs,
	RunE:  runBudgetHistory,
}

func init() {
	budgetCmd.AddCommand(budgetStatusCmd, budgetHistoryCmd)
	rootCmd.AddCommand(budgetCmd)
}

type budgetStatusOutput struct {
	Month          string  `json:"month"`
	SpentCents     float64 `json:"spent_cents"`
	LimitCents     float64 `json:"limit_cents"`
	RemainingCents float64 `json:"remaining_cents"`
	UsagePercent   float64 `json:"usage_percent"`
	RoastCount     int64   `json:"roast_count"`
	ProjectedCents float64 `json:"projected_cents"`
	DayOfMonth     int     `json:"day_of_month"`
	DaysInMonth    int     `json:"days_in_month"`
}

type budgetMonthOutput struct {
	Month      string  `json:"month"`
	SpentCents float64 `json:"spent_cents"`
	RoastCount int64   `json:"roast_count"`
}

func runBudgetStatus(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	counters, store, err := openCounters(cmd, cfg)
	if err != nil {
		return cli.NewCommandError("budget status", err)
	}
	defer counters.Close()

	st, err := budget.NewLedger(counters, store).Status(cmd.Context())
	if err != nil {
		return cli.NewCommandError("budget status", err)
	}

	table := &cli.Table{}
	table.AddRow("Month", st.Month)
	table.AddRow("Spent", dollars(st.SpentCents))
	table.AddRow("Budget", dollars(st.LimitCents))
	table.AddRow("Remaining", dollars(st.RemainingCents))
	table.AddRow("Used", fmt.Sprintf("%.1f%%", st.UsagePercent))
	table.AddRow("Roasts", humanize.Comma(st.RoastCount))
	table.AddRow("Projected", fmt.Sprintf("%s (day %s of %d)",
		dollars(st.ProjectedCents), humanize.Ordinal(st.DayOfMonth), st.DaysInMonth))

	return cli.Render(cmd.OutOrStdout(), format, table, budgetStatusOutput{
		Month:          st.Month,
		SpentCents:     st.SpentCents,
		LimitCents:     st.LimitCents,
		RemainingCents: st.RemainingCents,
		UsagePercent:   st.UsagePercent,
		RoastCount:     st.RoastCount,
		ProjectedCents: st.ProjectedCents,
		DayOfMonth:     st.DayOfMonth,
		DaysInMonth:    st.DaysInMonth,
	})
}

func runBudgetHistory(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	counters, store, err := openCounters(cmd, cfg)
	if err != nil {
		return cli.NewCommandError("budget history", err)
	}
	defer counters.Close()

	months, err := budget.NewLedger(counters, store).MonthlyHistory(cmd.Context())
	if err != nil {
		return cli.NewCommandError("budget history", err)
	}

	table := &cli.Table{Headers: []string{"MONTH", "SPENT", "ROASTS"}}
	out := make([]budgetMonthOutput, 0, len(months))
	for _, m := range months {
		table.AddRow(m.Month, dollars(m.SpentCents), humanize.Comma(m.RoastCount))
		out = append(out, budgetMonthOutput{Month: m.Month, SpentCents: m.SpentCents, RoastCount: m.RoastCount})
	}
	return cli.Render(cmd.OutOrStdout(), format, table, out)
}

// dollars formats cents as a dollar amount with thousands separators.
func dollars(cents float64) string {
	return "$" + humanize.FormatFloat("#,###.##", cents/100)
}
