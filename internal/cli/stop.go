package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/drawerq/internal/daemon"
	"github.com/spf13/cobra"
)

var stopTimeout time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running drawerq daemon",
	Long: `Stop the drawerq daemon recorded in the data directory.
Sends SIGTERM, waits for the daemon to remove its runtime file and sends
SIGKILL if it is still alive after --timeout.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 30*time.Second, "how long to wait before killing the daemon")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	info, err := daemon.SignalStop(cfg.DataDir)
	if errors.Is(err, daemon.ErrNotRunning) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Stopping daemon (pid %d)...\n", info.PID)

	ctx, cancel := context.WithTimeout(cmd.Context(), stopTimeout)
	defer cancel()

	err = daemon.WaitStopped(ctx, cfg.DataDir, 100*time.Millisecond)
	if err == nil {
		fmt.Fprintln(out, "Daemon stopped successfully")
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	fmt.Fprintln(out, "Timeout reached, sending SIGKILL...")
	if err := daemon.Kill(cfg.DataDir, info); err != nil {
		return err
	}
	fmt.Fprintln(out, "Daemon killed")
	return nil
}
