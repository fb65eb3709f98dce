package commands

import (
	"github.com/ARTM2000/winvault/sysinfo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Collect and print one system snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		snap, err := sysinfo.NewCollector(sysinfo.WithDiskPath(cfg.Sampler.DiskPath)).Collect(rootContext(cmd))
		if err != nil {
			PrintErr("Warning: %v", err)
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(snap)
	},
}
