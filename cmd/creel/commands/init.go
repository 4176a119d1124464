package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/creel/internal/printer"
)

var forceInit bool

const starterConfig = `version: "1.0"
instance: default
redis:
  url: redis://localhost:6379
log_level: info

correlator:
  quiet_period_ms: 1500
  binding_ttl_ms: 300000

prompts:
  ttl_ms: 600000

notify:
  max_album: 10
  send_timeout_ms: 5000
  policy:
    managers: all
    include_client: true
    exclude_author: true
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter creel.yml",
	Long: `Write a starter creel.yml with the default correlation timings and
notification policy in the current directory.

Use --force to overwrite an existing creel.yml.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing creel.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if _, err := os.Stat("creel.yml"); err == nil {
			return printer.Error(
				"creel.yml already exists",
				"An existing configuration was found in the current directory.",
				[]string{
					"Edit creel.yml directly, or",
					"Re-run with --force to overwrite it",
				})
		}
	}

	if err := os.WriteFile("creel.yml", []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("failed to write creel.yml: %w", err)
	}

	printer.Success("Created creel.yml\n")
	printer.Info("Edit the redis url and instance name, then start the engine with 'creel run'.\n")
	return nil
}
