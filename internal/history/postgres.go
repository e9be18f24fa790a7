package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/runstate"
)

const schema = `
	CREATE TABLE IF NOT EXISTS treasury_cycles (
		run_id            TEXT PRIMARY KEY,
		ran_at            TIMESTAMPTZ NOT NULL,
		claimed_primary   NUMERIC NOT NULL,
		claimed_secondary NUMERIC NOT NULL,
		secondary_in      NUMERIC NOT NULL,
		primary_out       NUMERIC NOT NULL,
		restaked          NUMERIC NOT NULL,
		total_usd_value   NUMERIC NOT NULL,
		apr               DOUBLE PRECISION NOT NULL,
		tweeted           BOOLEAN NOT NULL
	)
`

// PostgresSink implements Sink using PostgreSQL.
type PostgresSink struct {
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
	Logger   *zap.Logger
}

// NewPostgresSink connects, pings and ensures the table exists.
func NewPostgresSink(ctx context.Context, cfg *PostgresConfig) (*PostgresSink, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sink := &PostgresSink{
		db:     db,
		logger: cfg.Logger,
	}

	err = sink.EnsureSchema(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-history-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return sink, nil
}

// EnsureSchema creates the treasury_cycles table if missing.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// RecordCycle inserts one row per cycle.
func (p *PostgresSink) RecordCycle(ctx context.Context, snap *runstate.Snapshot) error {
	ranAt, err := snap.LastRunTime()
	if err != nil {
		return fmt.Errorf("parse run time: %w", err)
	}

	query := `
		INSERT INTO treasury_cycles (
			run_id, ran_at, claimed_primary, claimed_secondary,
			secondary_in, primary_out, restaked, total_usd_value,
			apr, tweeted
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err = p.db.ExecContext(ctx, query,
		snap.RunID,
		ranAt,
		snap.Claimed.Primary,
		snap.Claimed.Secondary,
		snap.Buyback.SecondaryIn,
		snap.Buyback.PrimaryOut,
		snap.Restaked,
		snap.TotalUSDValue,
		snap.APR,
		snap.Tweeted,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	p.logger.Debug("cycle-recorded", zap.String("run-id", snap.RunID))

	return nil
}

// Recent returns the latest cycles, newest first.
func (p *PostgresSink) Recent(ctx context.Context, limit int) (snaps []*runstate.Snapshot, err error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT run_id, ran_at, claimed_primary, claimed_secondary,
			secondary_in, primary_out, restaked, total_usd_value, apr, tweeted
		FROM treasury_cycles
		ORDER BY ran_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap  runstate.Snapshot
			ranAt time.Time
		)
		err = rows.Scan(
			&snap.RunID, &ranAt,
			&snap.Claimed.Primary, &snap.Claimed.Secondary,
			&snap.Buyback.SecondaryIn, &snap.Buyback.PrimaryOut,
			&snap.Restaked, &snap.TotalUSDValue, &snap.APR, &snap.Tweeted,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		snap.LastRun = runstate.FormatTimestamp(ranAt)
		snaps = append(snaps, &snap)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}

	return snaps, nil
}

// Close closes the database connection.
func (p *PostgresSink) Close() error {
	p.logger.Info("closing-postgres-history")
	return p.db.Close()
}
