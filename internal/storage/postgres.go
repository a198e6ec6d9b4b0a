package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Schema creates the tables PostgresStorage writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
	id               UUID PRIMARY KEY,
	kind             TEXT NOT NULL,
	path             TEXT NOT NULL,
	detected_at      TIMESTAMPTZ NOT NULL,
	profit_percent   NUMERIC(20, 10) NOT NULL,
	profit_bps       INTEGER NOT NULL,
	confidence       NUMERIC(6, 4) NOT NULL,
	trade_size       NUMERIC(28, 8) NOT NULL,
	estimated_profit NUMERIC(28, 8) NOT NULL,
	min_liquidity    NUMERIC(28, 8) NOT NULL,
	legs             JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS arbitrage_executions (
	opportunity_id      UUID NOT NULL,
	mode                TEXT NOT NULL,
	outcome             TEXT NOT NULL,
	executed_at         TIMESTAMPTZ NOT NULL,
	completed_at        TIMESTAMPTZ NOT NULL,
	estimated_profit    NUMERIC(28, 8) NOT NULL,
	total_fees          NUMERIC(28, 8) NOT NULL,
	net_profit          NUMERIC(28, 8) NOT NULL,
	realized_loss       NUMERIC(28, 8) NOT NULL,
	insufficient_profit BOOLEAN NOT NULL,
	reason              TEXT NOT NULL,
	attempts            JSONB NOT NULL
);
`

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	// Migrate runs Schema after connecting.
	Migrate bool
	Logger  *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}

	if cfg.Migrate {
		err = p.Migrate(context.Background())
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return p, nil
}

// Migrate creates the tables if they do not exist.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// StoreOpportunity stores an opportunity. Money and ratio columns go through
// decimal so NUMERIC values are not subject to float formatting.
func (p *PostgresStorage) StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	legs, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	query := `
		INSERT INTO arbitrage_opportunities (
			id, kind, path, detected_at, profit_percent, profit_bps,
			confidence, trade_size, estimated_profit, min_liquidity, legs
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err = p.db.ExecContext(ctx, query,
		opp.ID,
		string(opp.Kind),
		opp.Path(),
		opp.DetectedAt,
		numeric(opp.ProfitPercent, 10),
		opp.ProfitBPS,
		numeric(opp.Confidence, 4),
		numeric(opp.TradeSize, 8),
		numeric(opp.EstimatedProfit, 8),
		numeric(opp.MinLiquidity, 8),
		string(legs),
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	p.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("path", opp.Path()))

	return nil
}

// StoreExecution stores an execution result with its per-leg attempts.
func (p *PostgresStorage) StoreExecution(ctx context.Context, result *types.ExecutionResult) error {
	attempts, err := json.Marshal(result.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}

	query := `
		INSERT INTO arbitrage_executions (
			opportunity_id, mode, outcome, executed_at, completed_at,
			estimated_profit, total_fees, net_profit, realized_loss,
			insufficient_profit, reason, attempts
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err = p.db.ExecContext(ctx, query,
		result.OpportunityID,
		result.Mode,
		string(result.Outcome),
		result.ExecutedAt,
		result.CompletedAt,
		numeric(result.EstimatedProfit, 8),
		numeric(result.TotalFees, 8),
		numeric(result.NetProfit, 8),
		numeric(result.RealizedLoss, 8),
		result.InsufficientProfit,
		result.Reason,
		string(attempts),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	p.logger.Debug("execution-stored",
		zap.String("opportunity-id", result.OpportunityID),
		zap.String("outcome", string(result.Outcome)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

// numeric rounds v for a NUMERIC column. NaN and infinities store as zero.
func numeric(v float64, places int32) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(places)
}
