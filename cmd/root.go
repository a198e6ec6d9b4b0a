package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "cycle-arb",
	Short: "Cross-venue cyclic arbitrage engine",
	Long: `Cross-venue cyclic arbitrage engine that keeps the freshest price per
asset and venue, searches the exchange-rate graph for profitable cycles,
sizes each opportunity through a risk gate and executes approved routes
leg by leg.

Use "run" to start the engine, "scan" to evaluate a snapshot file once and
"status" to query a running engine.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
