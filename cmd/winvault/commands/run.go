package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ARTM2000/winvault/diagnostics"
	"github.com/ARTM2000/winvault/internal/app"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start every service and wait for a stop signal",
	Long: `Start the WinVault services in dependency order and keep them running
until SIGINT or SIGTERM, then stop them in reverse order.

Examples:
  # Run with defaults
  winvault run

  # Run with the status endpoint enabled
  WINVAULT_STATUS_ENABLED=true winvault run`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths := cfg.Paths()
	if err := paths.Ensure(); err != nil {
		return err
	}

	return diagnostics.Guard(paths.Diagnostics, func() error {
		ctx, stop := signal.NotifyContext(rootContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		_ = diagnostics.Log(paths.Diagnostics, "startup: services starting")

		if cfg.Status.Enabled {
			cmd.Printf("Status endpoint: http://%s/healthz\n", cfg.Status.Addr)
		}
		cmd.Println("WinVault is running. Press Ctrl+C to stop.")

		err = a.Run(ctx)
		_ = diagnostics.Log(paths.Diagnostics, "shutdown: services stopped")
		return err
	})
}

// rootContext is used when cobra runs without a caller context.
func rootContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
