package cli

import (
	"time"

	"github.com/harun/drawerq/internal/tui"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/harun/drawerq/pkg/navigation"
	"github.com/spf13/cobra"
)

var demoExitMs int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Play with the drawer queue in the terminal",
	Long: `Open an interactive terminal demo. Number keys toggle drawers on the
current screen, f forces one, n and p navigate, l locks the queue and c closes
the visible drawer. Closing drawers play an exit transition before the queue
moves on.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVar(&demoExitMs, "exit-ms", -1, "exit transition in milliseconds (overrides config)")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if demoExitMs >= 0 {
		cfg.Demo.ExitTransitionMs = demoExitMs
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the renderer; only file logging stays on.
	log, err := newLogger(cmd, cfg, false)
	if err != nil {
		return err
	}
	defer log.Close()

	ctrl := drawer.New(
		drawer.WithLogger(log.GetZerolog()),
		drawer.WithInvariantChecks(cfg.Queue.Strict),
		drawer.WithRefCountedLock(cfg.Queue.RefCountedLock),
	)
	defer ctrl.Close()

	nav := navigation.NewStack(log.GetZerolog())
	ctrl.BindNavigation(nav)

	return tui.Run(cmd.Context(), tui.Options{
		Controller:     ctrl,
		Navigation:     nav,
		Routes:         cfg.Demo.Routes,
		ExitTransition: time.Duration(cfg.Demo.ExitTransitionMs) * time.Millisecond,
		Logger:         log.GetZerolog(),
	})
}
