package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/marketchat/server/internal/assistant/model"
	errx "github.com/marketchat/server/internal/core/error"
	logx "github.com/marketchat/server/pkg/logger"
)

// CycleRecord is one completed or failed request cycle, archived for offline
// review.
type CycleRecord struct {
	SessionID     string             `db:"session_id"`
	RequestKind   model.RequestKind  `db:"request_kind"`
	Ticker        string             `db:"ticker"`
	TickerSource  model.TickerSource `db:"ticker_source"`
	FinalState    string             `db:"final_state"`
	Confidence    string             `db:"confidence"`
	FieldCount    int                `db:"field_count"`
	Warnings      []string           `db:"-"`
	ErrorMessage  string             `db:"error_message"`
	ErrorAttempts int                `db:"error_attempts"`
	CompletedAt   time.Time          `db:"completed_at"`
}

// CycleStore archives request cycles to Postgres. The store is optional; a
// nil *CycleStore is safe to call and does nothing.
type CycleStore struct {
	db *sqlx.DB
}

func NewCycleStore(dsn string) (*CycleStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &CycleStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *CycleStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS request_cycles (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		request_kind TEXT NOT NULL,
		ticker TEXT NOT NULL DEFAULT '',
		ticker_source TEXT NOT NULL DEFAULT '',
		final_state TEXT NOT NULL,
		confidence TEXT NOT NULL DEFAULT '',
		field_count INT NOT NULL DEFAULT 0,
		warnings JSONB NOT NULL DEFAULT '[]',
		error_message TEXT NOT NULL DEFAULT '',
		error_attempts INT NOT NULL DEFAULT 0,
		completed_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return errx.WrapPostgres(err)
	}
	return nil
}

// Archive inserts one cycle record. Archiving is best effort from the
// caller's point of view; failures are returned but should not fail the
// user-facing request.
func (s *CycleStore) Archive(ctx context.Context, rec CycleRecord) error {
	if s == nil {
		return nil
	}
	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	query := `
		INSERT INTO request_cycles (
			session_id, request_kind, ticker, ticker_source, final_state,
			confidence, field_count, warnings, error_message, error_attempts, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		rec.SessionID,
		rec.RequestKind,
		rec.Ticker,
		rec.TickerSource,
		rec.FinalState,
		rec.Confidence,
		rec.FieldCount,
		warnings,
		rec.ErrorMessage,
		rec.ErrorAttempts,
		rec.CompletedAt,
	)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", rec.SessionID).Msg("failed to archive request cycle")
		return errx.WrapPostgres(err)
	}
	return nil
}

// CountBySession returns how many cycles have been archived for a session.
func (s *CycleStore) CountBySession(ctx context.Context, sessionID string) (int, error) {
	if s == nil {
		return 0, nil
	}
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM request_cycles WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, errx.WrapPostgres(err)
	}
	return n, nil
}

func (s *CycleStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
