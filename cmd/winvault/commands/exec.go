package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/ARTM2000/winvault/command"
	"github.com/ARTM2000/winvault/internal/app"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var execEntry bool

var execCmd = &cobra.Command{
	Use:   "exec <command line | entry name>",
	Short: "Run a console command and print its output",
	Long: `Run one command line through the system shell with the configured timeout
and output encoding.

Examples:
  # Run an arbitrary command
  winvault exec ipconfig /all

  # Run a catalog entry by name
  winvault exec --entry "Disk usage"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().BoolVar(&execEntry, "entry", false, "treat the argument as a catalog entry name")
	// Flags after the first argument belong to the command line.
	execCmd.Flags().SetInterspersed(false)
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	line := strings.Join(args, " ")
	if execEntry {
		cat, err := command.DefaultCatalog()
		if err != nil {
			return err
		}
		e, ok := cat.Lookup(line)
		if !ok {
			return fmt.Errorf("no catalog entry named %q", line)
		}
		line = e.Command
	}

	a, err := app.New(rootContext(cmd), cfg)
	if err != nil {
		return err
	}
	defer a.Logger().Close()

	res, err := a.Exec(rootContext(cmd), line)
	if res.Stdout != "" {
		cmd.Print(res.Stdout)
	}
	if res.Stderr != "" {
		cmd.PrintErr(res.Stderr)
	}
	if err != nil {
		return err
	}

	status := color.New(color.FgGreen).Sprintf("exit %d", res.ExitCode)
	if !res.Success() {
		status = color.New(color.FgRed, color.Bold).Sprintf("exit %d", res.ExitCode)
	}
	cmd.PrintErrf("%s in %s\n", status, res.Duration.Round(time.Millisecond))
	if !res.Success() {
		return fmt.Errorf("command exited with code %d", res.ExitCode)
	}
	return nil
}
