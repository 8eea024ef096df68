package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/types"
	"github.com/okian/posfit/pkg/logger"
	"github.com/okian/posfit/pkg/metrics"
)

const resultsTable = "position_fit_results"

// Layouts accepted when reading scored_at back from the database.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// resultColumns lists the table columns in write order.
var resultColumns = buildColumns()

func buildColumns() []string {
	cols := []string{"player_id", "natural_pos", "ovr"}
	for _, pos := range position.Outfield() {
		p := pos.Lower()
		cols = append(cols, p+"_fit", p+"_rel", p+"_combo")
	}
	return append(cols, "best_pos", "best_score", "gk_fit", "fallback", "run_id", "scored_at")
}

// SQLStore persists results in a relational table with replace-by-key semantics.
type SQLStore struct {
	db      *sqlx.DB
	timeout time.Duration
	log     logger.Logger

	upsertQuery string
}

// NewSQLStore wraps an open connection. The schema must already exist.
func NewSQLStore(db *sqlx.DB, opts ...SQLOption) *SQLStore {
	s := &SQLStore{
		db:      db,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("result_store")
	}
	s.upsertQuery = db.Rebind(upsertSQL())
	return s
}

func upsertSQL() string {
	marks := make([]string, len(resultColumns))
	updates := make([]string, 0, len(resultColumns)-1)
	for i, c := range resultColumns {
		marks[i] = "?"
		if c != "player_id" {
			updates = append(updates, c+" = excluded."+c)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (player_id) DO UPDATE SET %s",
		resultsTable,
		strings.Join(resultColumns, ", "),
		strings.Join(marks, ", "),
		strings.Join(updates, ", "))
}

// Upsert writes all results in one transaction.
func (s *SQLStore) Upsert(ctx context.Context, results ...model.Result) error {
	if len(results) == 0 {
		return nil
	}
	for _, r := range results {
		if r.PlayerID == "" {
			metrics.RecordStoreError("upsert")
			return fmt.Errorf("%w: empty player id", ErrInvalidResult)
		}
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError("upsert")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, s.upsertQuery)
	if err != nil {
		metrics.RecordStoreError("upsert")
		return errors.Join(fmt.Errorf("failed to prepare upsert: %w", err), tx.Rollback())
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, resultArgs(r)...); err != nil {
			metrics.RecordStoreError("upsert")
			return errors.Join(fmt.Errorf("failed to upsert result %s: %w", r.PlayerID, err), tx.Rollback())
		}
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError("upsert")
		return fmt.Errorf("failed to commit results: %w", err)
	}
	s.log.Debug(ctx, "results written", logger.Int("count", len(results)))
	return nil
}

func resultArgs(r model.Result) []any {
	args := make([]any, 0, len(resultColumns))
	args = append(args, r.PlayerID, nullString(r.NaturalPosition), nullFloat(r.Overall))
	for _, pos := range position.Outfield() {
		args = append(args, r.Fit[pos], r.Rel[pos], r.Combo[pos])
	}
	var scoredAt any
	if !r.ScoredAt.IsZero() {
		scoredAt = r.ScoredAt.UTC().Format(time.RFC3339Nano)
	}
	return append(args,
		string(r.BestPosition), r.BestScore, nullFloat(r.GoalkeeperFit),
		r.Fallback, nullString(r.RunID), scoredAt)
}

// Get reads one stored result.
func (s *SQLStore) Get(ctx context.Context, playerID string) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE player_id = ?",
		strings.Join(resultColumns, ", "), resultsTable))
	r, err := scanResult(s.db.QueryRowxContext(ctx, query, playerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Result{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
		}
		metrics.RecordStoreError("get")
		return model.Result{}, fmt.Errorf("failed to get result %s: %w", playerID, err)
	}
	return r, nil
}

func scanResult(row *sqlx.Row) (model.Result, error) {
	var (
		r                    model.Result
		natural, runID, when sql.NullString
		ovr, gk              sql.NullFloat64
		best                 string
		scores               = make([]float64, 3*position.Count)
	)
	dest := []any{&r.PlayerID, &natural, &ovr}
	for i := range scores {
		dest = append(dest, &scores[i])
	}
	dest = append(dest, &best, &r.BestScore, &gk, &r.Fallback, &runID, &when)
	if err := row.Scan(dest...); err != nil {
		return model.Result{}, err
	}

	r.NaturalPosition = natural.String
	r.RunID = runID.String
	r.BestPosition = position.Position(best)
	if ovr.Valid {
		r.Overall = model.Float(ovr.Float64)
	}
	if gk.Valid {
		r.GoalkeeperFit = model.Float(gk.Float64)
	}
	r.Fit = make(map[position.Position]float64, position.Count)
	r.Rel = make(map[position.Position]float64, position.Count)
	r.Combo = make(map[position.Position]float64, position.Count)
	for i, pos := range position.Outfield() {
		r.Fit[pos] = scores[3*i]
		r.Rel[pos] = scores[3*i+1]
		r.Combo[pos] = scores[3*i+2]
	}
	if when.Valid {
		t, err := parseTime(when.String)
		if err != nil {
			return model.Result{}, err
		}
		r.ScoredAt = t
	}
	return r, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// TopN returns the ranking at pos from the database.
func (s *SQLStore) TopN(ctx context.Context, pos position.Position, n int) ([]types.Entry, error) {
	if n < 1 {
		metrics.RecordStoreError("top_n")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	if !pos.IsOutfield() {
		metrics.RecordStoreError("top_n")
		return nil, fmt.Errorf("%w: %q", position.ErrUnknownPosition, pos)
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p := pos.Lower()
	query := s.db.Rebind(fmt.Sprintf(
		"SELECT player_id, %[1]s_combo, %[1]s_fit FROM %[2]s ORDER BY %[1]s_combo DESC, player_id ASC LIMIT ?",
		p, resultsTable))
	rows, err := s.db.QueryxContext(ctx, query, n)
	if err != nil {
		metrics.RecordStoreError("top_n")
		return nil, fmt.Errorf("failed to query ranking for %s: %w", pos, err)
	}
	defer rows.Close()

	out := make([]types.Entry, 0, n)
	for rows.Next() {
		e := types.Entry{Position: pos}
		if err := rows.Scan(&e.PlayerID, &e.Combo, &e.Fit); err != nil {
			metrics.RecordStoreError("top_n")
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError("top_n")
		return nil, fmt.Errorf("failed to read ranking for %s: %w", pos, err)
	}
	assignRanks(out)
	return out, nil
}

// Rank returns the competition rank of playerID at pos.
func (s *SQLStore) Rank(ctx context.Context, pos position.Position, playerID string) (types.Entry, error) {
	if !pos.IsOutfield() {
		return types.Entry{}, fmt.Errorf("%w: %q", position.ErrUnknownPosition, pos)
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p := pos.Lower()
	e := types.Entry{PlayerID: playerID, Position: pos}
	query := s.db.Rebind(fmt.Sprintf("SELECT %[1]s_combo, %[1]s_fit FROM %[2]s WHERE player_id = ?", p, resultsTable))
	if err := s.db.QueryRowxContext(ctx, query, playerID).Scan(&e.Combo, &e.Fit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
		}
		metrics.RecordStoreError("rank")
		return types.Entry{}, fmt.Errorf("failed to get %s score for %s: %w", pos, playerID, err)
	}

	var above int
	query = s.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s_combo > ?", resultsTable, p))
	if err := s.db.GetContext(ctx, &above, query, e.Combo); err != nil {
		metrics.RecordStoreError("rank")
		return types.Entry{}, fmt.Errorf("failed to rank %s at %s: %w", playerID, pos, err)
	}
	e.Rank = above + 1
	return e, nil
}

// Count returns the number of stored results.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+resultsTable); err != nil {
		metrics.RecordStoreError("count")
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	metrics.UpdateStoreRecords(n)
	return n, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
