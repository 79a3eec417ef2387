// Package usage keeps a SQLite ledger of the token usage of every provider
// round-trip.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/aschepis/backscratcher/switchboard/migrations"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const table = "response_steps"

// StepRecord is one recorded round-trip.
type StepRecord struct {
	ID           int64
	Provider     llm.Provider
	Model        string
	ResponseID   string
	StepIndex    int
	FinishReason llm.FinishReason
	Usage        llm.Usage
	CreatedAt    time.Time
}

// Store handles persistence of response usage.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a Store over a migrated database.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "usage").Logger(),
		now:    time.Now,
	}
}

// Open opens the SQLite database at path, creating it and its directory if
// needed, and applies the ledger migrations.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create usage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrations.RunEmbedded(db, logger); err != nil {
		_ = db.Close() //nolint:errcheck // Cleanup on error
		return nil, err
	}
	return NewStore(db, logger), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordResponse saves one row per step of resp.
func (s *Store) RecordResponse(ctx context.Context, provider llm.Provider, model string, resp *llm.Response) error {
	if resp == nil || len(resp.Steps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().Unix()
	query := sq.Insert(table).
		Columns("provider", "model", "response_id", "step_index", "finish_reason",
			"prompt_tokens", "completion_tokens", "cache_write_tokens", "cache_read_tokens", "created_at")
	for i, step := range resp.Steps {
		stepModel := step.Meta.Model
		if stepModel == "" {
			stepModel = model
		}
		query = query.Values(string(provider), stepModel, step.Meta.ID, i, string(step.FinishReason),
			step.Usage.PromptTokens, step.Usage.CompletionTokens,
			step.Usage.CacheWriteInputTokens, step.Usage.CacheReadInputTokens, now)
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("steps", len(resp.Steps)).
		Msg("Recorded response usage")
	return nil
}

// Totals sums the recorded usage. An empty provider sums every provider.
func (s *Store) Totals(ctx context.Context, provider llm.Provider) (llm.Usage, error) {
	query := sq.Select(
		"COALESCE(SUM(prompt_tokens), 0)",
		"COALESCE(SUM(completion_tokens), 0)",
		"COALESCE(SUM(cache_write_tokens), 0)",
		"COALESCE(SUM(cache_read_tokens), 0)",
	).From(table)
	if provider != "" {
		query = query.Where(sq.Eq{"provider": string(provider)})
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return llm.Usage{}, fmt.Errorf("build query: %w", err)
	}

	var usage llm.Usage
	err = s.db.QueryRowContext(ctx, queryStr, args...).Scan(
		&usage.PromptTokens, &usage.CompletionTokens,
		&usage.CacheWriteInputTokens, &usage.CacheReadInputTokens,
	)
	if err != nil {
		return llm.Usage{}, fmt.Errorf("query totals: %w", err)
	}
	return usage, nil
}

// RecentSteps returns up to limit records, newest first.
func (s *Store) RecentSteps(ctx context.Context, limit int) ([]StepRecord, error) {
	query := sq.Select("id", "provider", "model", "response_id", "step_index", "finish_reason",
		"prompt_tokens", "completion_tokens", "cache_write_tokens", "cache_read_tokens", "created_at").
		From(table).
		OrderBy("id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck // Rows close error can be ignored

	var records []StepRecord
	for rows.Next() {
		var (
			rec                    StepRecord
			provider, finishReason string
			createdAt              int64
		)
		if err := rows.Scan(&rec.ID, &provider, &rec.Model, &rec.ResponseID, &rec.StepIndex, &finishReason,
			&rec.Usage.PromptTokens, &rec.Usage.CompletionTokens,
			&rec.Usage.CacheWriteInputTokens, &rec.Usage.CacheReadInputTokens, &createdAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec.Provider = llm.Provider(provider)
		rec.FinishReason = llm.FinishReason(finishReason)
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Middleware records every successful response of a client for provider.
// Recording failures are logged and never fail the call.
func (s *Store) Middleware(provider llm.Provider) llm.Middleware {
	return llm.MiddlewareFunc{
		AfterResponseFunc: func(ctx context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
			if err := s.RecordResponse(ctx, provider, req.Model, resp); err != nil {
				s.logger.Warn().Err(err).Str("provider", string(provider)).Msg("Failed to record usage")
			}
			return resp, nil
		},
	}
}
