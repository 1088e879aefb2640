package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritim-app/ritim/internal/daemon"
)

func init() {
	inboxCmd.Flags().IntVar(&inboxLimit, "limit", 20, "Maximum notifications to show")
	inboxCmd.Flags().BoolVar(&inboxAck, "ack", false, "Mark the listed notifications as shown")
	rootCmd.AddCommand(inboxCmd)
}

var (
	inboxLimit int
	inboxAck   bool
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Show pending notifications",
	Args:  cobra.NoArgs,
	RunE:  runInbox,
}

func runInbox(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if d.Notifications == nil {
		return errors.New("notifications are disabled (notify.enabled = false)")
	}
	pending, err := d.Notifications.Pending(ctx, userID, inboxLimit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(pending) == 0 {
		fmt.Fprintln(w, "No new notifications.")
		return nil
	}
	for _, n := range pending {
		fmt.Fprintf(w, "%s %s %s\n", iconBell, keyStyle.Render(n.Title), mutedStyle.Render(n.CreatedAt.Format("2006-01-02 15:04")))
		if n.Body != "" {
			fmt.Fprintf(w, "  %s\n", n.Body)
		}
		if inboxAck {
			if err := d.Notifications.MarkShown(ctx, n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
