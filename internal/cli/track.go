package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ritim-app/ritim/internal/domain"
)

func init() {
	for _, c := range []*cobra.Command{taskCmd, habitCmd} {
		c.Flags().BoolVar(&trackUndo, "undo", false, "Record an un-completion (no XP, streaks untouched)")
		c.Flags().IntVar(&trackDone, "done", 0, "Items completed today, including this one")
		c.Flags().IntVar(&trackTotal, "total", 0, "Items scheduled today")
	}
	rootCmd.AddCommand(taskCmd, habitCmd, pomodoroCmd)
}

var (
	trackUndo  bool
	trackDone  int
	trackTotal int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Record a completed task",
	Long: `Record a completed task: task XP, the tasks and daily streaks, and any
achievements it unlocks. Pass --done/--total to let the perfect-day
achievement see today's tally.`,
	Args: cobra.NoArgs,
	RunE: runTask,
}

var habitCmd = &cobra.Command{
	Use:   "habit HABIT_ID",
	Short: "Record a completed habit",
	Args:  cobra.ExactArgs(1),
	RunE:  runHabit,
}

var pomodoroCmd = &cobra.Command{
	Use:     "pomodoro",
	Aliases: []string{"focus"},
	Short:   "Record a finished focus session",
	Args:    cobra.NoArgs,
	RunE:    runPomodoro,
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.TrackTaskCompletion(ctx, !trackUndo, domain.DayTally{Done: trackDone, Total: trackTotal})
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runHabit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.TrackHabitCompletion(ctx, args[0], !trackUndo, domain.DayTally{Done: trackDone, Total: trackTotal})
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runPomodoro(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.TrackPomodoroSession(ctx)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}
