package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/daemon"
	"github.com/ritim-app/ritim/internal/domain"
)

// openUser starts a daemon without serving and resolves the --user
// aggregate. Callers must Close the daemon.
func openUser(ctx context.Context) (*daemon.Daemon, *engagement.Service, error) {
	d, err := daemon.New()
	if err != nil {
		return nil, nil, err
	}
	svc, err := d.Users.Get(ctx, userID)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, svc, nil
}

// printOutcome renders the result of a mutation.
func printOutcome(w io.Writer, out domain.Outcome) {
	fmt.Fprintf(w, "%s %s\n",
		goodStyle.Render("✓"),
		labelValue("XP", fmt.Sprintf("%d (level %d, %s %s)", out.XP, out.Level, out.Rank.Name, out.Rank.Icon)))

	streaks := []string{
		fmt.Sprintf("daily %d", out.DailyStreak),
		fmt.Sprintf("tasks %d", out.TaskStreak),
	}
	if out.HabitStreak > 0 {
		streaks = append(streaks, fmt.Sprintf("habit %d", out.HabitStreak))
	}
	fmt.Fprintf(w, "%s %s\n", iconFire, mutedStyle.Render(strings.Join(streaks, " · ")))

	for _, ev := range out.Events {
		switch ev.Type {
		case domain.EventLevelUp:
			fmt.Fprintf(w, "%s %s level %d → %d\n", iconStar, goldStyle.Render("LEVEL UP"), ev.FromLevel, ev.ToLevel)
		case domain.EventRankUp:
			fmt.Fprintf(w, "%s %s %s → %s\n", iconStar, goldStyle.Render("RANK UP"), ev.FromRank, ev.ToRank)
		case domain.EventStreakReset:
			fmt.Fprintf(w, "%s %s\n", iconFire, warnStyle.Render(fmt.Sprintf("%s streak reset", ev.StreakType)))
		}
	}

	for _, id := range out.Unlocked {
		def, ok := engagement.LookupAchievement(id)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", iconTrophy, goldStyle.Render(def.Name), mutedStyle.Render(rewardText(def.RewardXP)))
	}
}

func rewardText(xp int64) string {
	if xp == 0 {
		return ""
	}
	return fmt.Sprintf("(+%d XP)", xp)
}
