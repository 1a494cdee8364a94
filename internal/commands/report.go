package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"offer-tracker/internal/charts"
	"offer-tracker/internal/filters"
	"offer-tracker/internal/service"
)

func addStats(topLevel *cobra.Command) {
	var view string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard numbers and the chart series for a period",
		Example: `
offerctl stats
offerctl stats --view quarter
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *service.Runtime) error {
				out := cmd.OutOrStdout()
				s := rt.Summary()

				tbl := newTable()
				tbl.AddRow(bold.Sprint("Offers"), humanize.Comma(int64(s.Total)))
				tbl.AddRow(bold.Sprint("Today"), fmt.Sprintf("%d of %d (%.1f%%)", s.Today, s.DailyGoal, s.GoalProgress))
				tbl.AddRow(bold.Sprint("This week"), s.ThisWeek)
				tbl.AddRow(bold.Sprint("Conversion"), fmt.Sprintf("%.1f%% (%s converted, %s pending, %s not converted)",
					s.ConversionRate, green.Sprint(s.Converted), yellow.Sprint(s.Pending), red.Sprint(s.NotConverted)))
				tbl.AddRow(bold.Sprint("CSAT"), fmt.Sprintf("%d positive, %d neutral, %d negative", s.Positive, s.Neutral, s.Negative))
				tbl.AddRow(bold.Sprint("Follow-ups"), fmt.Sprintf("%d pending, %d overdue", s.PendingFollowups, s.OverdueFollowups))
				tbl.AddRow(bold.Sprint("Streak"), fmt.Sprintf("%d day%s", s.Streak, plural(s.Streak)))
				fmt.Fprintln(out, tbl)
				fmt.Fprintln(out)

				if _, err := rt.Filters.Set(filters.State{Preset: filters.AllTime}); err != nil {
					return err
				}
				points, err := rt.Series(ctx, view, "")
				if err != nil {
					return err
				}
				series := newTable()
				series.AddRow(bold.Sprint("Period"), bold.Sprint("Offers"), bold.Sprint("Converted"), bold.Sprint("Goal"))
				for _, p := range points {
					count := fmt.Sprint(p.Count)
					if p.Goal > 0 && p.Count >= p.Goal {
						count = green.Sprint(p.Count)
					}
					series.AddRow(p.Label, count, p.Converted, p.Goal)
				}
				fmt.Fprintln(out, series)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&view, "view", string(charts.ViewWeek), "week, month, quarter or year")
	topLevel.AddCommand(cmd)
}

func addExport(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the offer report spreadsheet to the export directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *service.Runtime) error {
				res, err := rt.Export(ctx)
				if err != nil {
					return err
				}
				if !res.Success {
					return errors.New(res.Error)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Sprint("Saved"), res.FilePath)
				return nil
			})
		},
	}

	topLevel.AddCommand(cmd)
}

func addReset(topLevel *cobra.Command) {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every offer and restore default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes all data, rerun with --yes to confirm")
			}
			return withRuntime(cmd, func(ctx context.Context, rt *service.Runtime) error {
				if res := rt.Reset(ctx); !res.OK() {
					fmt.Fprintln(cmd.OutOrStdout(), yellow.Sprintf("Reset finished with storage errors: %v", res.Err()))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), red.Sprint("All data cleared."))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all data")
	topLevel.AddCommand(cmd)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
