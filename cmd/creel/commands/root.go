package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "creel",
	Short: "Creel - Shipment report correlation and fanout engine",
	Long: `Creel turns raw chat traffic from a warehouse floor into structured
shipment records and notifies the people who care about them.

It correlates photo bursts into single shipments, matches free-form
replies to the prompts that requested them, computes the recipient set
per client, and fans announcements out over the transport bridge.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
