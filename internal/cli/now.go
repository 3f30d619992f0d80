package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ppiankov/policydeck/internal/config"
	"github.com/ppiankov/policydeck/internal/monitor"
	"github.com/ppiankov/policydeck/internal/remote"
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show the current policy collection",
	Long: `Fetch the policy collection from the read endpoint and display it.

By default an interactive table opens: press r to refresh, / to filter,
q to quit. Each policy carries a triage badge derived from its fields
(High Risk Policy, Unidentified App, Active & Enforced). Use --plain or
--output json when piping.`,
	Example: `  # Interactive dashboard against the configured endpoint
  policydeck now

  # One-shot plain table for scripts
  policydeck now --url http://localhost:8000/policies --plain`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)
	nowCmd.Flags().String("config", "", "Path to config file")
	nowCmd.Flags().String("url", "", "Policy read endpoint (overrides config)")
	nowCmd.Flags().Bool("plain", false, "Print a plain table instead of the interactive view")
	nowCmd.Flags().String("output", "", "Output format: json")
}

func runNow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	urlFlag, _ := cmd.Flags().GetString("url") //nolint:errcheck // flag registered above
	if urlFlag != "" {
		cfg.URL = urlFlag
	}

	source := &remote.Source{URL: cfg.URL}

	plain, _ := cmd.Flags().GetBool("plain")     //nolint:errcheck // flag registered above
	output, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag registered above
	if plain || output == "json" {
		snap, err := source.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		if output == "json" {
			return monitor.WriteJSON(cmd.OutOrStdout(), snap)
		}
		fmt.Fprint(cmd.OutOrStdout(), monitor.PlainText(snap)) //nolint:errcheck // best-effort output
		return nil
	}

	model := monitor.NewModel(source, cfg.URL)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

// loadConfig resolves the --config flag against defaults. A missing file
// at an explicitly given path is an error; otherwise defaults apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if cfgPath == "" {
		return config.Defaults(), nil
	}
	if _, statErr := os.Stat(cfgPath); statErr != nil {
		return nil, fmt.Errorf("config file not found: %s", cfgPath)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
