package cmd

import (
	"fmt"

	"github.com/mselser95/cycle-arb/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage engine",
	Long: `Starts the engine, which will:
1. Poll every configured venue (and the optional websocket feed) into the price cache
2. Detect negative cycles and two-venue spreads on each pass
3. Score, risk-check and size the opportunities
4. Execute the best approved route leg by leg

--mode overrides EXECUTION_MODE (paper, live or dry-run).`,
	Args: cobra.NoArgs,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("mode", "m", "", "Execution mode override: paper, live or dry-run")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	mode, _ := cmd.Flags().GetString("mode")

	application, err := app.New(cfg, logger, &app.Options{ExecutionMode: mode})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
