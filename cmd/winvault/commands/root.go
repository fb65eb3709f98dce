// Package commands implements the winvault command line.
package commands

import (
	"fmt"

	"github.com/ARTM2000/winvault/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:   "winvault",
	Short: "WinVault - system utility and diagnostics toolkit",
	Long: `WinVault runs a small set of local services: persistent settings, daily
rotated logs, a system sampler, an optional status endpoint and a catalog of
diagnostic console commands.

Use "winvault [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: per-user cache directory)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(diagnosticsCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("winvault %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}
