package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ritim-app/ritim/internal/app/engagement"
)

func init() {
	rootCmd.AddCommand(achievementsCmd)
}

var achievementsCmd = &cobra.Command{
	Use:     "achievements",
	Aliases: []string{"ach"},
	Short:   "List achievements with progress",
	Args:    cobra.NoArgs,
	RunE:    runAchievements,
}

func runAchievements(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	facts, err := svc.Facts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tREWARD\tPROGRESS\tDESCRIPTION")
	for _, def := range engagement.Catalog() {
		unlocked := p.HasAchievement(def.ID)
		icon := iconLock
		if unlocked {
			icon = def.Icon
		}
		progress := "-"
		if pr, ok := engagement.Progress(def.ID, facts, unlocked); ok && pr.Target > 0 {
			progress = fmt.Sprintf("%d/%d", pr.Value, pr.Target)
		}
		reward := "-"
		if def.RewardXP > 0 {
			reward = fmt.Sprintf("%d XP", def.RewardXP)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", icon, def.Name, reward, progress, def.Description)
	}
	return w.Flush()
}
