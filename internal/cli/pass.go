package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	passCmd.AddCommand(passUseCmd, passUndoCmd)
	rootCmd.AddCommand(passCmd)
}

var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Show weekly pass eligibility",
	Long: `The weekly pass counts today as active for every streak, once per ISO
week and only on weekdays. It can be undone on the same day.`,
	Args: cobra.NoArgs,
	RunE: runPassStatus,
}

var passUseCmd = &cobra.Command{
	Use:   "use",
	Short: "Use this week's pass for today",
	Args:  cobra.NoArgs,
	RunE:  runPassUse,
}

var passUndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo today's pass and restore the streaks it touched",
	Args:  cobra.NoArgs,
	RunE:  runPassUndo,
}

func runPassStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	use, err := svc.CanUseWeeklyPass(ctx)
	if err != nil {
		return err
	}
	undo, err := svc.CanUndoWeeklyPass(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, heading(iconShield, "Weekly pass"))
	fmt.Fprintln(w, labelValue("Use", eligibilityText(use.OK, use.Reason.Message())))
	fmt.Fprintln(w, labelValue("Undo", eligibilityText(undo.OK, undo.Reason.Message())))
	return nil
}

func eligibilityText(ok bool, why string) string {
	if ok {
		return goodStyle.Render("yes")
	}
	return warnStyle.Render("no") + " " + mutedStyle.Render(why)
}

func runPassUse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.UseWeeklyPass(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), heading(iconShield, "Pass used, your streaks are safe today"))
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runPassUndo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, svc, err := openUser(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := svc.UndoWeeklyPass(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), heading(iconShield, "Pass undone"))
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}
