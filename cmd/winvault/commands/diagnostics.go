package commands

import (
	"github.com/ARTM2000/winvault/diagnostics"
	"github.com/spf13/cobra"
)

var diagnosticsSave bool

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Print the startup diagnostics report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		paths := cfg.Paths()
		report := diagnostics.Collect(rootContext(cmd), paths.Root, paths.Settings, paths.Logs)

		if diagnosticsSave {
			if err := paths.Ensure(); err != nil {
				return err
			}
			if err := diagnostics.WriteReport(paths.Diagnostics, report); err != nil {
				return err
			}
			cmd.Printf("Report appended to %s\n", paths.Diagnostics)
			return nil
		}
		_, err = report.WriteTo(cmd.OutOrStdout())
		return err
	},
}

func init() {
	diagnosticsCmd.Flags().BoolVar(&diagnosticsSave, "save", false, "append the report to the diagnostics log instead of printing it")
}
