package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ritim-app/ritim/internal/app/engagement"
)

func init() {
	xpAwardCmd.Flags().StringVar(&xpSource, "source", engagement.SourceManual, "Where the XP came from")
	xpCmd.AddCommand(xpAwardCmd, xpSpendCmd)
	rootCmd.AddCommand(xpCmd, weekCmd)
}

var xpSource string

var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "Award or spend XP directly",
}

var xpAwardCmd = &cobra.Command{
	Use:   "award AMOUNT",
	Short: "Grant XP",
	Args:  cobra.ExactArgs(1),
	RunE:  runXPAward,
}

var xpSpendCmd = &cobra.Command{
	Use:   "spend AMOUNT",
	Short: "Spend XP; levels are recomputed from what is left",
	Args:  cobra.ExactArgs(1),
	RunE:  runXPSpend,
}

var weekCmd = &cobra.Command{
	Use:   "week PERCENT",
	Short: "Report the weekly completion rate (0-100)",
	Long:  `Report last week's completion rate. 80% or more unlocks the productive week achievement.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWeek,
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a whole number", s)
	}
	return n, nil
}

func runXPAward(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.AwardXP(ctx, amount, xpSource)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runXPSpend(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.SpendXP(ctx, amount)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runWeek(cmd *cobra.Command, args []string) error {
	pct, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("percent %q is not a number", args[0])
	}
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.TrackWeeklySummary(ctx, pct)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}
