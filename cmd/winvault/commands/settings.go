package commands

import (
	"encoding/json"
	"fmt"

	"github.com/ARTM2000/winvault/settings"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and edit persisted settings",
	Long: `Read and write the settings file in the data directory. Values are
parsed as YAML scalars, so true, 42 and 1.5 keep their types.

Examples:
  winvault settings list
  winvault settings get Theme
  winvault settings set WindowWidth 1280
  winvault settings reset`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}
		all := store.All()
		table := newTable(cmd)
		table.SetHeader([]string{"Key", "Value"})
		for _, k := range store.Keys() {
			table.Append([]string{k, formatValue(all[k])})
		}
		table.Render()
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}
		if !store.Has(args[0]) {
			return fmt.Errorf("setting %q is not set", args[0])
		}
		cmd.Println(formatValue(store.All()[args[0]]))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}
		return store.Set(args[0], parseValue(args[1]))
	},
}

var settingsRemoveCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Delete one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}
		return store.Remove(args[0])
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}
		return store.Reset()
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd, settingsGetCmd, settingsSetCmd, settingsRemoveCmd, settingsResetCmd)
}

func openSettings() (*settings.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return settings.Open(cfg.Paths().Settings)
}

// parseValue decodes a YAML scalar, falling back to the raw text.
func parseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
