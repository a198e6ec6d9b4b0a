package storage

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testResult(at time.Time) *types.ExecutionResult {
	return &types.ExecutionResult{
		OpportunityID:   "7d1c8f5e-3f3c-4f0e-9d4b-0a1b2c3d4e5f",
		Mode:            "paper",
		ExecutedAt:      at,
		CompletedAt:     at.Add(1200 * time.Millisecond),
		Outcome:         types.OutcomeUnbalanced,
		EstimatedProfit: 75,
		TotalFees:       3,
		RealizedLoss:    3,
		Reason:          "leg 2 failed: confirmation timeout",
		Attempts: []*types.ExecutionAttempt{
			{Index: 0, Venue: "Orca", FromAsset: "USDC", ToAsset: "SOL", Status: types.LegConfirmed, FeeCost: 3},
			{Index: 1, Venue: "Raydium", FromAsset: "SOL", ToAsset: "USDC", Status: types.LegFailed, Reason: "confirmation timeout"},
		},
	}
}

func TestConsoleStorage_StoreOpportunity(t *testing.T) {
	var buf bytes.Buffer
	storage := NewConsoleStorageWriter(&buf, zaptest.NewLogger(t))

	opp := arbitrage.NewTestOpportunity(time.Now())
	err := storage.StoreOpportunity(context.Background(), opp)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"SPREAD OPPORTUNITY DETECTED",
		opp.ID[:8],
		"USDC->SOL->USDC",
		"Orca, Raydium",
		"(150 bps)",
		"$75.00",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q\n%s", want, output)
		}
	}
}

func TestConsoleStorage_StoreExecution(t *testing.T) {
	var buf bytes.Buffer
	storage := NewConsoleStorageWriter(&buf, zaptest.NewLogger(t))

	err := storage.StoreExecution(context.Background(), testResult(time.Now()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	output := buf.String()
	for _, want := range []string{"EXECUTION UNBALANCED (paper)", "Loss:       $3.00", "confirmation timeout", "1.2s"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q\n%s", want, output)
		}
	}
}

func TestConsoleStorage_Close(t *testing.T) {
	storage := NewConsoleStorage(zap.NewNop())

	err := storage.Close()
	if err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
}

func TestPostgresStorage_StoreOpportunity(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}
	opp := arbitrage.NewTestOpportunity(time.Now())

	mock.ExpectExec("INSERT INTO arbitrage_opportunities").
		WithArgs(
			opp.ID,
			"spread",
			"USDC->SOL->USDC",
			sqlmock.AnyArg(), // detected_at
			"0.015",
			150,
			"0.85",
			"5000",
			"75",
			"1000000",
			sqlmock.AnyArg(), // legs
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = storage.StoreOpportunity(context.Background(), opp)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_StoreOpportunity_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}

	mock.ExpectExec("INSERT INTO arbitrage_opportunities").
		WillReturnError(sqlmock.ErrCancelled)

	err = storage.StoreOpportunity(context.Background(), arbitrage.NewTestOpportunity(time.Now()))
	if err == nil {
		t.Error("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_StoreExecution(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}
	result := testResult(time.Now())

	mock.ExpectExec("INSERT INTO arbitrage_executions").
		WithArgs(
			result.OpportunityID,
			"paper",
			"unbalanced",
			sqlmock.AnyArg(), // executed_at
			sqlmock.AnyArg(), // completed_at
			"75",
			"3",
			"0",
			"3",
			false,
			result.Reason,
			sqlmock.AnyArg(), // attempts
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = storage.StoreExecution(context.Background(), result)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS arbitrage_opportunities").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = storage.Migrate(context.Background())
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}

	mock.ExpectClose()

	err = storage.Close()
	if err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		places int32
		want   string
	}{
		{"rounds", 0.123456789, 4, "0.1235"},
		{"integer", 5000, 8, "5000"},
		{"nan", math.NaN(), 8, "0"},
		{"inf", math.Inf(1), 8, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := numeric(tt.value, tt.places)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("numeric(%v, %d) = %s, want %s", tt.value, tt.places, got, tt.want)
			}
		})
	}
}

// memoryStorage records writes and can block until released.
type memoryStorage struct {
	mu      sync.Mutex
	opps    []*arbitrage.Opportunity
	results []*types.ExecutionResult
	release chan struct{}
	failErr error
	closed  bool
}

func (m *memoryStorage) StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opps = append(m.opps, opp)
	return m.failErr
}

func (m *memoryStorage) StoreExecution(ctx context.Context, result *types.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return m.failErr
}

func (m *memoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestAsyncSink_WritesAndDrainsOnClose(t *testing.T) {
	mem := &memoryStorage{}
	sink := NewAsyncSink(&AsyncSinkConfig{Storage: mem, BufferSize: 8, Logger: zaptest.NewLogger(t)})

	sink.PublishOpportunity(arbitrage.NewTestOpportunity(time.Now()))
	sink.PublishExecution(testResult(time.Now()))

	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(mem.opps) != 1 || len(mem.results) != 1 {
		t.Errorf("expected 1 opportunity and 1 result, got %d and %d", len(mem.opps), len(mem.results))
	}
	if !mem.closed {
		t.Error("expected underlying storage to be closed")
	}

	// publishing after close is a silent drop
	sink.PublishOpportunity(arbitrage.NewTestOpportunity(time.Now()))
	if err := sink.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestAsyncSink_DropsWhenFull(t *testing.T) {
	mem := &memoryStorage{release: make(chan struct{})}
	sink := NewAsyncSink(&AsyncSinkConfig{Storage: mem, BufferSize: 1, Logger: zaptest.NewLogger(t)})

	done := make(chan struct{})
	go func() {
		// the writer takes at most one record off the queue while blocked,
		// so at most two of these can be accepted
		for i := 0; i < 5; i++ {
			sink.PublishOpportunity(arbitrage.NewTestOpportunity(time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}

	close(mem.release)
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if n := len(mem.opps); n < 1 || n > 2 {
		t.Errorf("expected 1 or 2 stored opportunities, got %d", n)
	}
}

func TestAsyncSink_WriteErrorsAreAbsorbed(t *testing.T) {
	mem := &memoryStorage{failErr: errors.New("connection reset")}
	sink := NewAsyncSink(&AsyncSinkConfig{Storage: mem, Logger: zaptest.NewLogger(t)})

	sink.PublishExecution(testResult(time.Now()))
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(mem.results) != 1 {
		t.Errorf("expected write attempt, got %d", len(mem.results))
	}
}

func TestStorage_Interface(t *testing.T) {
	var _ Storage = NewConsoleStorage(zap.NewNop())

	db, _, _ := sqlmock.New()
	defer db.Close()

	var _ Storage = &PostgresStorage{db: db, logger: zap.NewNop()}
}
