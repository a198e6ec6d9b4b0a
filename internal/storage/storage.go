package storage

import (
	"context"

	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/pkg/types"
)

// Storage is the interface for persisting opportunities and execution results.
type Storage interface {
	// StoreOpportunity stores a scored opportunity.
	StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error

	// StoreExecution stores the terminal result of an execution.
	StoreExecution(ctx context.Context, result *types.ExecutionResult) error

	// Close closes the storage connection.
	Close() error
}
