// Package cli implements the ritim command-line interface using Cobra.
// Tracking commands open the local store directly; serve runs the HTTP API.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritim-app/ritim/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "ritim",
	Short: "ritim: streaks, XP and achievements for your day",
	Long: `ritim turns completed tasks, habits and focus sessions into XP,
levels, streaks and achievements.

Days end at the configured cutoff (02:00 by default), and one weekly pass
per ISO week can protect your streaks on a missed weekday.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var userID string

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", defaultUser(), "User whose progression to track (env RITIM_USER)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

// describe turns expected rejections into their user-facing message.
func describe(err error) string {
	var reason domain.Reason
	if errors.As(err, &reason) {
		return reason.Message()
	}
	return err.Error()
}

func defaultUser() string {
	if u := os.Getenv("RITIM_USER"); u != "" {
		return u
	}
	return "local"
}
