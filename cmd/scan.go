package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/cycle-arb/internal/app"
	"github.com/mselser95/cycle-arb/internal/engine"
	"github.com/mselser95/cycle-arb/internal/storage"
	"github.com/mselser95/cycle-arb/pkg/config"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan <samples.json>",
	Short: "Run one dry-run detection pass over a snapshot file",
	Long: `Reads a JSON array of price samples, runs a single detection and risk
assessment pass over them and prints every opportunity found. Nothing is
executed.

Each sample looks like:
  {"asset":"SOL","quote":"USDC","venue":"Orca","price":100.0,"liquidity":1000000}

Examples:
  # Scan a captured snapshot, treating every sample as fresh
  go run . scan snapshot.json

  # Keep the captured timestamps
  go run . scan snapshot.json --restamp=false`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("restamp", true, "Stamp every sample with the current time")
}

// staticSource serves the same snapshot on every call.
type staticSource struct {
	samples []types.PriceSample
}

func (s staticSource) Snapshot(now time.Time) (types.Snapshot, error) {
	return types.NewSnapshot(now, s.samples), nil
}

func runScan(cmd *cobra.Command, args []string) error {
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

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open samples: %w", err)
	}
	defer f.Close()

	restamp, _ := cmd.Flags().GetBool("restamp")
	samples, err := readSamples(f, cfg.Numeraire, restamp, time.Now())
	if err != nil {
		return err
	}

	report, err := scanSamples(cmd.Context(), cfg, logger, samples, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

// readSamples decodes and validates a samples file. Quotes default to the
// numeraire.
func readSamples(r io.Reader, numeraire string, restamp bool, now time.Time) ([]types.PriceSample, error) {
	var raw []types.PriceSample
	err := json.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}

	samples := make([]types.PriceSample, 0, len(raw))
	for i, s := range raw {
		s = s.WithQuote(numeraire)
		if restamp || s.CapturedAt.IsZero() {
			s.CapturedAt = now
		}
		err = s.Validate()
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// scanSamples runs a single dry-run cycle. Opportunities are written to out
// through the console storage as they are found.
func scanSamples(ctx context.Context, cfg *config.Config, logger *zap.Logger, samples []types.PriceSample, out io.Writer) (*engine.CycleReport, error) {
	scanCfg := *cfg
	scanCfg.ExecutionMode = engine.ModeDryRun

	sink := storage.NewAsyncSink(&storage.AsyncSinkConfig{
		Storage:    storage.NewConsoleStorageWriter(out, logger),
		BufferSize: 256,
		Logger:     logger,
	})

	eng, err := app.NewEngine(&scanCfg, logger, app.EngineDeps{
		Source: staticSource{samples: samples},
		Sink:   sink,
	})
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	report, err := eng.RunCycle(ctx)
	closeErr := sink.Close()
	if err != nil {
		return nil, fmt.Errorf("run cycle: %w", err)
	}
	if closeErr != nil {
		logger.Warn("sink-close-error", zap.Error(closeErr))
	}
	return report, nil
}

func printReport(out io.Writer, report *engine.CycleReport) {
	fmt.Fprintf(out, "\nSamples: %d   Cycles: %d   Opportunities: %d\n",
		report.Samples, report.Cycles, len(report.Opportunities))

	for _, a := range report.Assessments {
		verdict := "REJECTED"
		if a.Approved {
			verdict = "APPROVED"
		}
		fmt.Fprintf(out, "  %s %s  size %.2f -> %.2f  risk %.2f\n",
			verdict, shortID(a.OpportunityID), a.OriginalSize, a.AdjustedSize, a.RiskScore)
		for _, reason := range a.Reasons {
			fmt.Fprintf(out, "    - %s\n", reason)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
