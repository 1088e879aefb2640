package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ritim-app/ritim/internal/app/engagement"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show level, XP, streaks and the weekly pass",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	view, err := svc.View(ctx)
	if err != nil {
		return err
	}
	use, err := svc.CanUseWeeklyPass(ctx)
	if err != nil {
		return err
	}

	p := view.Progression
	w := cmd.OutOrStdout()

	var b strings.Builder
	fmt.Fprintln(&b, heading(view.Rank.Icon, fmt.Sprintf("%s · %s", userID, view.Rank.Name)))
	fmt.Fprintln(&b, labelValue("Level", p.Level))
	fmt.Fprintln(&b, labelValue("XP", p.XP))
	fmt.Fprintln(&b, levelLine(view.ProgressPct, view.XPToNextLevel, p.Level+1))
	if view.NextRank != nil {
		fmt.Fprintln(&b, mutedStyle.Render(fmt.Sprintf("next rank: %s %s at level %d", view.NextRank.Name, view.NextRank.Icon, view.NextRank.MinLevel)))
	}
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
	fmt.Fprintln(w)

	fmt.Fprintln(w, h2Style.Render(iconFire+" Streaks"))
	fmt.Fprintf(w, "- %s %d %s\n", keyStyle.Render("Daily:"), view.LiveDaily, mutedStyle.Render(fmt.Sprintf("(best %d)", p.Streaks.Daily.Longest)))
	fmt.Fprintf(w, "- %s %d %s\n", keyStyle.Render("Tasks:"), view.LiveTasks, mutedStyle.Render(fmt.Sprintf("(best %d)", p.Streaks.Tasks.Longest)))
	habits := make([]string, 0, len(view.LiveHabits))
	for id := range view.LiveHabits {
		habits = append(habits, id)
	}
	slices.Sort(habits)
	for _, id := range habits {
		fmt.Fprintf(w, "- %s %d %s\n", keyStyle.Render(id+":"), view.LiveHabits[id], mutedStyle.Render(fmt.Sprintf("(best %d)", p.Streaks.Habits[id].Longest)))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, h2Style.Render(iconShield+" Weekly pass "+mutedStyle.Render(view.WeekKey)))
	switch {
	case p.WeeklyPass.Used && p.WeeklyPass.WeekKey == view.WeekKey:
		fmt.Fprintf(w, "- used on %s\n", p.WeeklyPass.LastUsedDay)
	case use.OK:
		fmt.Fprintf(w, "- %s\n", goodStyle.Render("available"))
	default:
		fmt.Fprintf(w, "- %s %s\n", warnStyle.Render("unavailable"), mutedStyle.Render(use.Reason.Message()))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, labelValue("Totals", fmt.Sprintf("%d tasks · %d habits · %d %s",
		p.TotalTasksCompleted, p.TotalHabitsCompleted, p.PomodoroSessions, iconTimer)))
	fmt.Fprintln(w, labelValue("Achievements", fmt.Sprintf("%d/%d", len(p.Achievements), len(engagement.Catalog()))))
	return nil
}
