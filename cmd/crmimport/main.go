// Package main provides the crmimport CLI for importing spreadsheet contacts into a CRM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rpattn/crmimport/internal/config"
	"github.com/rpattn/crmimport/internal/logging"
)

// Global flags
var (
	configPath string
	webhook    string
	verbose    bool
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"})
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"})
	boldStyle  = lipgloss.NewStyle().Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "crmimport",
	Short: "Import spreadsheet contacts into a CRM through its webhook",
	Long: `crmimport reads a CSV or XLSX file, maps its columns to CRM contact fields
and creates one contact per row, optionally skipping rows whose e-mail or
phone already exists.

Examples:
  crmimport fields --webhook https://example.bitrix24.com/rest/1/token
  crmimport run --webhook ... --file people.xlsx --map Name=NAME --map Email=EMAIL
  crmimport run --webhook ... --file people.csv --interactive --check-duplicates`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if !verbose {
			return nil
		}
		return logging.Init("development")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&webhook, "webhook", "", "CRM incoming webhook address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log remote calls to stderr")

	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if webhook != "" {
		cfg.CRM.Webhook = webhook
	}
	if cfg.CRM.Webhook == "" {
		return cfg, fmt.Errorf("a webhook address is required (--webhook or CRMIMPORT_CRM_WEBHOOK)")
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logging.Close()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		stop()
		logging.Close()
		os.Exit(1)
	}
}
