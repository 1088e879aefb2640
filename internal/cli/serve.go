package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ritim-app/ritim/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ritim API server",
	Long: `Start the progression API server at localhost:8787.

The server also runs the daily rollover shortly after the day cutoff and
records notifications for unlocks, level-ups and rank-ups.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	d, err := daemon.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return err
	}
	d.Server.SetVersion(rootCmd.Version)

	return d.Serve(context.Background())
}
