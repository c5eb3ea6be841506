package cli

import (
	"fmt"

	"github.com/harun/drawerq/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	serveHost   string
	servePort   int
	serveSecret string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the drawer queue to remote renderers",
	Long: `Run the drawer queue in the foreground behind the gateway.
Renderers connect to /ws to mirror the current overlay and acknowledge close
transitions; producers call drawer.* and nav.* over WebSocket or POST /rpc.
Prometheus metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "gateway host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "gateway port (overrides config)")
	serveCmd.Flags().StringVar(&serveSecret, "secret", "", "shared secret required from clients (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		cfg.Gateway.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Gateway.Port = servePort
	}
	if cmd.Flags().Changed("secret") {
		cfg.Gateway.SharedSecret = serveSecret
	}

	log, err := newLogger(cmd, cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "drawerq gateway listening on %s\n", d.Status().Addr)

	d.Wait(cmd.Context())
	return nil
}
