package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/warp/payplan/api"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/payroll"
	"github.com/warp/payplan/plan"
)

func init() {
	rootCmd.AddCommand(generateCmd, payCmd, seedCmd)

	generateCmd.Flags().String("month", "", "Month to plan, YYYY-MM (default: current month)")

	payCmd.Flags().String("operator", "", "Operator id")
	payCmd.Flags().String("role", "", "Management role code")
	payCmd.Flags().String("month", "", "Pay month, YYYY-MM (default: current month)")
	payCmd.Flags().String("week", "", "Any date of the week to add, YYYY-MM-DD (operators only)")
	payCmd.MarkFlagsMutuallyExclusive("operator", "role")
	payCmd.MarkFlagsOneRequired("operator", "role")

	seedCmd.Flags().String("scenario", "steady-growth", "Scenario id")
	seedCmd.Flags().String("month", "", "Month the scenario prepares, YYYY-MM (default: current month)")
}

// ─── generate ───────────────────────────────────────────────────────────────

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate a month's plan",
	Long: `Forecast the month from the two months before it and rewrite every
generated plan row. Locked rows are kept as they are.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	monthArg, _ := cmd.Flags().GetString("month")
	month, err := a.monthFlag(monthArg)
	if err != nil {
		return err
	}

	out, err := a.planner.GeneratePlan(cmd.Context(), month)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Plan %s: %d written, %d locked kept, %d stale removed\n\n",
		out.Month.MonthString(), out.Written, out.Preserved, out.Pruned)
	return printPlan(w, out.Entries)
}

func printPlan(w io.Writer, entries []plan.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tCOMPANY\tOPERATOR\tROLE\tMONTH TURNOVER\tWEEK TURNOVER\tMONTH SHIFTS\tLOCKED")
	for _, e := range entries {
		r := e.Row()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			r.Key.Entity, dash(string(r.Key.Company)), dash(string(r.Key.Operator)), dash(string(r.Key.Role)),
			r.Targets.MonthTurnover.StringFixed(2), r.Targets.WeekTurnover.StringFixed(2),
			r.Targets.MonthShifts.StringFixed(2), e.IsLocked())
	}
	return tw.Flush()
}

// ─── pay ────────────────────────────────────────────────────────────────────

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Compute operator or role pay",
	Args:  cobra.NoArgs,
	RunE:  runPay,
}

func runPay(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	flags := cmd.Flags()
	operator, _ := flags.GetString("operator")
	role, _ := flags.GetString("role")
	monthArg, _ := flags.GetString("month")
	weekArg, _ := flags.GetString("week")

	month, err := a.monthFlag(monthArg)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	if role != "" {
		if weekArg != "" {
			return errors.New("--week applies to operators only")
		}
		rb, err := a.payroll.RolePay(cmd.Context(), generic.RoleCode(role), month)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Role\t%s\n", rb.Role)
		fmt.Fprintf(tw, "Window\t%s\n", rb.Window)
		fmt.Fprintf(tw, "Fixed salary\t%s\n", rb.FixedSalary.StringFixed(2))
		fmt.Fprintf(tw, "Global turnover\t%s\n", rb.GlobalTurnover.StringFixed(2))
		fmt.Fprintf(tw, "Target\t%s\n", rb.Target.StringFixed(2))
		fmt.Fprintf(tw, "KPI bonus\t%s\n", rb.KPIBonus.StringFixed(2))
		fmt.Fprintf(tw, "Payable\t%s\n", rb.Payable.StringFixed(2))
		return tw.Flush()
	}

	var week generic.TimePoint
	if weekArg != "" {
		week, err = generic.ParseDate(weekArg)
		if err != nil {
			return fmt.Errorf("invalid week %q (use YYYY-MM-DD): %w", weekArg, err)
		}
	}
	report, err := a.payroll.OperatorPay(cmd.Context(), generic.OperatorID(operator), month, week)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s)\n\n", report.Operator.Name, report.Operator.ID)
	if err := printBreakdown(w, report.Month); err != nil {
		return err
	}
	if report.Week != nil {
		fmt.Fprintln(w)
		return printBreakdown(w, *report.Week)
	}
	return nil
}

func printBreakdown(w io.Writer, b payroll.Breakdown) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Window\t%s\n", b.Window)
	fmt.Fprintf(tw, "Turnover\t%s\n", b.PeriodTurnover.StringFixed(2))
	fmt.Fprintf(tw, "Base pay\t%s\n", b.BasePay.StringFixed(2))
	fmt.Fprintf(tw, "Tier bonus\t%s\n", b.TierBonus.StringFixed(2))
	fmt.Fprintf(tw, "Group bonus\t%s\n", b.GroupBonus.StringFixed(2))
	fmt.Fprintf(tw, "KPI bonus\t%s (target %s)\n", b.KPIBonus.StringFixed(2), b.KPITarget.StringFixed(2))
	fmt.Fprintf(tw, "Gross pay\t%s\n", b.GrossPay().StringFixed(2))
	fmt.Fprintf(tw, "Manual plus\t%s\n", b.ManualPlus.StringFixed(2))
	fmt.Fprintf(tw, "Manual minus\t%s\n", b.ManualMinus.StringFixed(2))
	fmt.Fprintf(tw, "Weekly debts\t%s\n", b.AutoDebts.StringFixed(2))
	fmt.Fprintf(tw, "Advances\t%s\n", b.Advances.StringFixed(2))
	fmt.Fprintf(tw, "Payable\t%s\n", b.Payable.StringFixed(2))
	fmt.Fprintf(tw, "Net penalty\t%s\n", b.NetPenalty.StringFixed(2))
	if b.Skipped > 0 {
		fmt.Fprintf(tw, "Skipped entries\t%d\n", b.Skipped)
	}
	return tw.Flush()
}

// ─── seed ───────────────────────────────────────────────────────────────────

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the database and load a demo scenario",
	Long: `Wipe every table and load one of the demo scenarios (steady-growth,
new-company, open-month). Only use against development databases.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	scenario, _ := cmd.Flags().GetString("scenario")
	monthArg, _ := cmd.Flags().GetString("month")
	month, err := a.monthFlag(monthArg)
	if err != nil {
		return err
	}

	if err := api.LoadScenarioData(cmd.Context(), a.store, a.rules, scenario, month); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded scenario %s ahead of %s into %s\n",
		scenario, month.MonthString(), a.cfg.Database.Path)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
