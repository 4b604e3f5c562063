package main

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	models "github.com/CodeAndHammer/learngames/internal/models"
	"github.com/CodeAndHammer/learngames/internal/report"
	"github.com/CodeAndHammer/learngames/internal/throttle"
)

func newLockCmd(open opener) *cobra.Command {
	lock := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or clear an action lock",
	}
	lock.PersistentFlags().String("action", "", "throttled action, e.g. print")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the lock state of an action",
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := requireFlag(cmd, "action")
			if err != nil {
				return err
			}
			return withProfile(cmd, open, func(app *models.App, prof *models.Profile) error {
				ctx := cmd.Context()
				t := app.Throttles.Get(ctx, prof.ID, action)
				if _, err := t.ReconcileExpiry(ctx); err != nil {
					return err
				}
				snap := t.Snapshot(ctx)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Profile:  %s\n", prof.ID)
				fmt.Fprintf(out, "Action:   %s\n", action)
				fmt.Fprintf(out, "Count:    %d/%d\n", snap.Count, t.Policy().ActionLimit)
				if end := t.LockEndTime(ctx); end > 0 {
					fmt.Fprintf(out, "Locked:   yes, until %s (%s left)\n",
						time.UnixMilli(end).Format(time.RFC3339), t.Remaining(ctx).Round(time.Second))
				} else {
					fmt.Fprintln(out, "Locked:   no")
				}
				return nil
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear the count and any lock on an action",
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := requireFlag(cmd, "action")
			if err != nil {
				return err
			}
			return withProfile(cmd, open, func(app *models.App, prof *models.Profile) error {
				if err := app.Throttles.Get(cmd.Context(), prof.ID, action).Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Lock on %q cleared for %s\n", action, prof.ID)
				return nil
			})
		},
	}

	lock.AddCommand(status, reset)
	return lock
}

func newMathCmd(open opener) *cobra.Command {
	math := &cobra.Command{
		Use:   "math",
		Short: "Math practice progress",
	}
	math.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show accuracy, streaks and difficulty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfile(cmd, open, func(app *models.App, prof *models.Profile) error {
				s := prof.Tracker.Stats(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Profile:     %s\n", prof.ID)
				fmt.Fprintf(out, "Difficulty:  %s\n", s.Difficulty)
				fmt.Fprintf(out, "Accuracy:    %.0f%% (%d/%d)\n", s.Accuracy*100, s.CorrectAnswers, s.TotalAttempts)
				fmt.Fprintf(out, "Streak:      %d (best %d)\n", s.Streak, s.BestStreak)
				return nil
			})
		},
	})
	return math
}

func newProgressCmd(open opener) *cobra.Command {
	progress := &cobra.Command{
		Use:   "progress",
		Short: "Rewards and math progress",
	}
	progress.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear coins, game counts and math progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfile(cmd, open, func(app *models.App, prof *models.Profile) error {
				if err := prof.Rewards.ResetProgress(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Progress reset for %s\n", prof.ID)
				return nil
			})
		},
	})
	return progress
}

func newReportCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a progress workbook (.xlsx)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := requireFlag(cmd, "out")
			if err != nil {
				return err
			}
			actions, _ := cmd.Flags().GetStringSlice("actions")
			return withProfile(cmd, open, func(app *models.App, prof *models.Profile) error {
				actions = lo.Uniq(append(actions, lo.Keys(app.Config.ActionPolicies)...))
				throttles := lo.SliceToMap(actions, func(a string) (string, *throttle.Throttle) {
					return a, app.Throttles.Get(cmd.Context(), prof.ID, a)
				})
				d, err := report.Collect(cmd.Context(), prof.ID, app.Clock.Now(), prof.Tracker, prof.Rewards, throttles)
				if err != nil {
					return err
				}
				if err := report.Save(out, d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report for %s written to %s\n", prof.ID, out)
				return nil
			})
		},
	}
	cmd.Flags().String("out", "", "output .xlsx path")
	cmd.Flags().StringSlice("actions", []string{"print"}, "actions to include on the Locks sheet")
	return cmd
}
