package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

type rangeFlags struct {
	start string
	end   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "Last day, YYYY-MM-DD")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
}

func (f *rangeFlags) parse() (calendar.Date, calendar.Date, error) {
	start, err := calendar.ParseDate(f.start)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, fmt.Errorf("--start: %w", err)
	}
	end, err := calendar.ParseDate(f.end)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, fmt.Errorf("--end: %w", err)
	}
	return start, end, nil
}

func availabilityCmd() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "availability <user>",
		Short: "Show per-day capacity, allocation and availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := rf.parse()
			if err != nil {
				return err
			}
			summary, err := app.engine.GetUserAvailableHours(app.ctx, capacity.UserID(args[0]), start, end)
			if err != nil {
				return err
			}

			fmt.Printf("\nAvailability for %s, %s\n\n", summary.UserID, summary.Period)
			printDays(os.Stdout, summary.Daily)
			fmt.Printf("\nCapacity:    %sh\n", summary.TotalCapacity)
			fmt.Printf("Allocated:   %sh\n", summary.TotalAllocated)
			fmt.Printf("Available:   %sh\n", summary.TotalAvailable)
			fmt.Printf("Utilization: %d%%\n\n", summary.UtilizationPercentage)
			return nil
		},
	}
	rf.register(cmd)
	return cmd
}

func canHandleCmd() *cobra.Command {
	var rf rangeFlags
	var hours float64
	cmd := &cobra.Command{
		Use:   "can-handle <user>",
		Short: "Check whether a user can take on more hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := rf.parse()
			if err != nil {
				return err
			}
			result := app.engine.CanUserHandleTask(app.ctx, capacity.UserID(args[0]), start, end, decimal.NewFromFloat(hours))
			printFeasibility(os.Stdout, result)
			if result.Verdict.Failed() {
				return fmt.Errorf("%s: %s", result.Verdict, result.Error)
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().Float64Var(&hours, "hours", 0, "Hours needed")
	cmd.MarkFlagRequired("hours")
	return cmd
}

func teamCheckCmd() *cobra.Command {
	var rf rangeFlags
	var users []string
	var hours float64
	var strategy string
	cmd := &cobra.Command{
		Use:   "team-check",
		Short: "Check whether a team can share a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := rf.parse()
			if err != nil {
				return err
			}
			ids := make([]capacity.UserID, len(users))
			for i, u := range users {
				ids[i] = capacity.UserID(u)
			}

			result, err := app.engine.CanUsersHandleTask(app.ctx, ids, start, end, decimal.NewFromFloat(hours), strategy)
			if err != nil {
				return err
			}

			fmt.Printf("\nTeam check (%s split): %d/%d users capable\n\n", result.Strategy, result.CapableUsers, result.TotalUsers)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER\tSHARE\tVERDICT\tAVAILABLE\tSURPLUS")
			for i, r := range result.Results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.UserID, result.HoursPerUser[i], r.Verdict, r.TotalAvailable, r.Surplus)
			}
			tw.Flush()

			if result.CanAssignToTeam {
				fmt.Printf("\n✓ Task can be assigned to the team\n\n")
			} else {
				fmt.Printf("\n✗ Cannot assign: %v lack capacity\n\n", result.FailedUsers)
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringSliceVar(&users, "users", nil, "Comma-separated user ids")
	cmd.Flags().Float64Var(&hours, "hours", 0, "Total hours for the task")
	cmd.Flags().StringVar(&strategy, "strategy", capacity.StrategyEqual, fmt.Sprintf("Split strategy %v", capacity.ListStrategies()))
	cmd.MarkFlagRequired("users")
	cmd.MarkFlagRequired("hours")
	return cmd
}

func printDays(w io.Writer, days []capacity.DayAvailability) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tCAPACITY\tALLOCATED\tAVAILABLE\tEXCEPTION")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Date, d.DayName, d.Capacity, d.Allocated, d.Available, d.ExceptionType)
	}
	tw.Flush()
}

func printFeasibility(w io.Writer, r capacity.FeasibilityResult) {
	fmt.Fprintf(w, "\nVerdict: %s\n", r.Verdict)
	if r.Verdict.Failed() {
		return
	}
	fmt.Fprintf(w, "Needed %sh, available %sh (surplus %sh)\n", r.HoursNeeded, r.TotalAvailable, r.Surplus)
	fmt.Fprintf(w, "Utilization %d%% -> %d%% (+%d)\n", r.CurrentUtilization, r.NewUtilization, r.UtilizationIncrease)

	if r.Suggested == nil {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "\nSuggested allocation:\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range r.Suggested.Days {
		fmt.Fprintf(tw, "  %s\t%s\t%sh\t(of %sh)\n", d.Date, d.DayName, d.PlannedHours, d.Available)
	}
	tw.Flush()
	fmt.Fprintln(w)
}
