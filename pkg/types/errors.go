package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by detection, risk and execution.
var (
	ErrStaleData          = errors.New("stale data")
	ErrMalformedSample    = errors.New("malformed sample")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrRiskRejected       = errors.New("risk rejected")
	ErrLegExecution       = errors.New("leg execution failure")
	ErrUnbalancedPosition = errors.New("unbalanced position")
	ErrEmergencyStop      = errors.New("emergency stop activated")
)

// LegError represents a failure while executing one leg of an opportunity.
type LegError struct {
	Leg     int    // 1-based leg number
	Venue   string // venue the leg was routed to
	Receipt string // receipt if the swap was submitted
	Message string // human-readable reason
	Err     error  // sentinel, usually ErrLegExecution
}

func (e *LegError) Error() string {
	if e.Receipt != "" {
		return fmt.Sprintf("leg %d on %s failed (receipt: %s): %s", e.Leg, e.Venue, e.Receipt, e.Message)
	}

	return fmt.Sprintf("leg %d on %s failed: %s", e.Leg, e.Venue, e.Message)
}

func (e *LegError) Unwrap() error {
	return e.Err
}
