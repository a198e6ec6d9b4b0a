package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleStorage implements Storage by pretty-printing to a writer.
type ConsoleStorage struct {
	out    io.Writer
	mu     sync.Mutex
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return NewConsoleStorageWriter(os.Stdout, logger)
}

// NewConsoleStorageWriter creates a console storage writing to out.
func NewConsoleStorageWriter(out io.Writer, logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    out,
		logger: logger,
	}
}

// StoreOpportunity pretty-prints an opportunity.
func (c *ConsoleStorage) StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	var b strings.Builder

	fmt.Fprintln(&b, "\n"+rule)
	fmt.Fprintf(&b, "🎯 %s OPPORTUNITY DETECTED\n", strings.ToUpper(string(opp.Kind)))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "ID:         %s\n", shortID(opp.ID))
	fmt.Fprintf(&b, "Path:       %s\n", opp.Path())
	fmt.Fprintf(&b, "Venues:     %s\n", strings.Join(opp.Venues(), ", "))
	fmt.Fprintf(&b, "Time:       %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "📊 LEGS\n")
	for i, leg := range opp.Legs {
		fmt.Fprintf(&b, "  %d. %-4s %s/%s on %-8s @ %.6f (liq %.0f)\n",
			i+1, leg.Side, leg.Asset, leg.Quote, leg.Venue, leg.Price, leg.Liquidity)
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "💰 PROFIT ANALYSIS\n")
	fmt.Fprintf(&b, "  Trade Size:      $%.2f\n", opp.TradeSize)
	fmt.Fprintf(&b, "  Profit:          %.4f%% (%d bps)\n", opp.ProfitPercent*100, opp.ProfitBPS)
	fmt.Fprintf(&b, "  Est. Profit:     $%.2f\n", opp.EstimatedProfit)
	fmt.Fprintf(&b, "  Confidence:      %.2f\n", opp.Confidence)
	fmt.Fprintln(&b, rule)

	return c.write(b.String())
}

// StoreExecution pretty-prints an execution result.
func (c *ConsoleStorage) StoreExecution(ctx context.Context, result *types.ExecutionResult) error {
	var b strings.Builder

	icon := "✅"
	if result.Outcome != types.OutcomeSettled {
		icon = "❌"
	}

	fmt.Fprintln(&b, "\n"+rule)
	fmt.Fprintf(&b, "%s EXECUTION %s (%s)\n", icon, strings.ToUpper(string(result.Outcome)), result.Mode)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Opportunity: %s\n", shortID(result.OpportunityID))
	fmt.Fprintf(&b, "Duration:    %s\n", result.CompletedAt.Sub(result.ExecutedAt))
	for _, att := range result.Attempts {
		fmt.Fprintf(&b, "  leg %d %-8s %s->%s %-9s fee $%.4f %s\n",
			att.Index+1, att.Venue, att.FromAsset, att.ToAsset, att.Status, att.FeeCost, att.Reason)
	}
	fmt.Fprintf(&b, "  Estimated:  $%.2f\n", result.EstimatedProfit)
	fmt.Fprintf(&b, "  Fees:       $%.2f\n", result.TotalFees)
	fmt.Fprintf(&b, "  Net:        $%.2f\n", result.NetProfit)
	if result.RealizedLoss > 0 {
		fmt.Fprintf(&b, "  Loss:       $%.2f\n", result.RealizedLoss)
	}
	if result.InsufficientProfit {
		fmt.Fprintf(&b, "  ⚠️  insufficient profit after fees\n")
	}
	if result.Reason != "" {
		fmt.Fprintf(&b, "  Reason:     %s\n", result.Reason)
	}
	fmt.Fprintln(&b, rule)

	return c.write(b.String())
}

func (c *ConsoleStorage) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := io.WriteString(c.out, s)
	if err != nil {
		return fmt.Errorf("write console: %w", err)
	}
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
