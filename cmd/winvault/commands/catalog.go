package commands

import (
	"github.com/ARTM2000/winvault/command"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	catalogCategory string
	catalogSearch   string
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the built-in diagnostic commands",
	Long: `List the diagnostic console commands available on this platform.

Examples:
  # Everything
  winvault commands

  # Network commands mentioning dns
  winvault commands --category network --search dns`,
	RunE: runCommands,
}

func init() {
	commandsCmd.Flags().StringVarP(&catalogCategory, "category", "c", command.AllCategories, "category filter")
	commandsCmd.Flags().StringVarP(&catalogSearch, "search", "s", "", "case-insensitive search text")
}

func runCommands(cmd *cobra.Command, args []string) error {
	cat, err := command.DefaultCatalog()
	if err != nil {
		return err
	}
	entries := cat.Filter(catalogCategory, catalogSearch)
	if len(entries) == 0 {
		cmd.Println("No matching commands.")
		return nil
	}

	table := newTable(cmd)
	table.SetHeader([]string{"Name", "Category", "Command", "Description"})
	category := color.New(color.FgCyan).SprintFunc()
	for _, e := range entries {
		table.Append([]string{e.Name, category(e.Category), e.Command, e.Description})
	}
	table.Render()
	return nil
}

func newTable(cmd *cobra.Command) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}
