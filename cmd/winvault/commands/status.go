package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ARTM2000/winvault"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statusAddr   string
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running instance",
	Long: `Query the status endpoint of a running "winvault run" and print the
state of every service.

Examples:
  winvault status
  winvault status --addr 127.0.0.1:7420 --output json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "status endpoint address (default: from config)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format (table|json)")
}

type healthBody struct {
	Status   string                   `json:"status"`
	Services []winvault.ServiceStatus `json:"services"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Status.Addr
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		return fmt.Errorf("WinVault is not reachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	var body healthBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	if statusOutput == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(body)
	}

	overall := color.New(color.FgGreen, color.Bold).Sprint(body.Status)
	if body.Status != "ok" {
		overall = color.New(color.FgRed, color.Bold).Sprint(body.Status)
	}
	cmd.Printf("Status: %s\n\n", overall)

	table := newTable(cmd)
	table.SetHeader([]string{"Order", "Service", "State", "Error"})
	for _, s := range body.Services {
		state := s.StateName
		switch {
		case s.Error != "":
			state = color.RedString(state)
		case s.StateName == winvault.Initialized.String():
			state = color.GreenString(state)
		}
		table.Append([]string{fmt.Sprint(s.Order), s.Name, state, s.Error})
	}
	table.Render()
	return nil
}
