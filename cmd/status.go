package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/cycle-arb/internal/engine"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running engine",
	Long: `Queries /api/status on a running engine and prints the mode, the
halted and breaker flags, the daily risk counters and the cycle counters.

Examples:
  go run . status
  go run . status --addr http://10.0.0.5:8080`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("addr", "http://localhost:8080", "Base URL of the engine's HTTP server")
	statusCmd.Flags().Duration("timeout", 5*time.Second, "Request timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	status, err := fetchStatus(ctx, http.DefaultClient, addr)
	if err != nil {
		return err
	}

	printStatus(cmd.OutOrStdout(), status)
	return nil
}

func fetchStatus(ctx context.Context, client *http.Client, addr string) (*engine.Status, error) {
	url := strings.TrimRight(addr, "/") + "/api/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get status: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status engine.Status
	err = json.NewDecoder(resp.Body).Decode(&status)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func printStatus(out io.Writer, s *engine.Status) {
	fmt.Fprintf(out, "Mode:           %s\n", s.Mode)
	fmt.Fprintf(out, "Halted:         %t\n", s.Halted)
	fmt.Fprintf(out, "Emergency stop: %t\n", s.Risk.EmergencyStop)
	fmt.Fprintf(out, "Loop breaker:   enabled=%t consecutive_errors=%d\n",
		s.Breaker.Enabled, s.Breaker.ConsecutiveErrors)
	fmt.Fprintf(out, "Cycles:         %d (%d failed)\n", s.Cycles, s.FailedCycles)
	fmt.Fprintf(out, "Opportunities:  %d\n", s.Opportunities)
	fmt.Fprintf(out, "Executions:     %d\n", s.Executions)
	fmt.Fprintf(out, "Daily trades:   %d\n", s.Risk.DailyTrades)
	fmt.Fprintf(out, "Daily P&L:      +$%.2f / -$%.2f\n", s.Risk.DailyProfit, s.Risk.DailyLoss)
	fmt.Fprintf(out, "Total P&L:      $%.2f\n", s.Risk.TotalPnL)
	if s.LastError != "" {
		fmt.Fprintf(out, "Last error:     %s\n", s.LastError)
	}
}
