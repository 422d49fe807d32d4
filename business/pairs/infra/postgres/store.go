// Package postgres implements the pairs app.Store against PostgreSQL, grounded
// in the reference engine's repo-per-collection pattern (duplicate-key
// detection via pq.Error code 23505).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/pairs/app"
	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
)

var _ app.Store = (*Store)(nil)

// Store persists monitoring pairs in the "pairs" table.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// New builds a pairs Store.
func New(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

type pairRow struct {
	PairID          string          `db:"pair_id"`
	Leg1Venue       string          `db:"leg1_venue"`
	Leg1Symbol      string          `db:"leg1_symbol"`
	Leg1Category    string          `db:"leg1_category"`
	Leg1Side        string          `db:"leg1_side"`
	Leg2Venue       string          `db:"leg2_venue"`
	Leg2Symbol      string          `db:"leg2_symbol"`
	Leg2Category    string          `db:"leg2_category"`
	Leg2Side        string          `db:"leg2_side"`
	Threshold       string          `db:"threshold"`
	SliceQty        string          `db:"slice_qty"`
	MaxExecs        int             `db:"max_execs"`
	ExecsDone       int             `db:"execs_done"`
	Enabled         bool            `db:"enabled"`
	CreatedAt       time.Time       `db:"created_at"`
	LastTriggeredAt sql.NullTime    `db:"last_triggered_at"`
	TotalTriggers   int             `db:"total_triggers"`
	Attributes      json.RawMessage `db:"attributes"`
}

func toRow(p domain.MonitoringPair) (pairRow, error) {
	attrs, err := json.Marshal(map[string]any{})
	if err != nil {
		return pairRow{}, err
	}
	row := pairRow{
		PairID:        p.PairID,
		Leg1Venue:     string(p.Leg1.Venue),
		Leg1Symbol:    string(p.Leg1.Symbol),
		Leg1Category:  string(p.Leg1.Category),
		Leg1Side:      string(p.Leg1.Side),
		Leg2Venue:     string(p.Leg2.Venue),
		Leg2Symbol:    string(p.Leg2.Symbol),
		Leg2Category:  string(p.Leg2.Category),
		Leg2Side:      string(p.Leg2.Side),
		Threshold:     p.Threshold.String(),
		SliceQty:      p.SliceQty.String(),
		MaxExecs:      p.MaxExecs,
		ExecsDone:     p.ExecsDone,
		Enabled:       p.Enabled,
		CreatedAt:     p.CreatedAt,
		TotalTriggers: p.TotalTriggers,
		Attributes:    attrs,
	}
	if p.LastTriggeredAt != nil {
		row.LastTriggeredAt = sql.NullTime{Time: *p.LastTriggeredAt, Valid: true}
	}
	return row, nil
}

func fromRow(row pairRow) (domain.MonitoringPair, error) {
	threshold, err := decimal.NewFromString(row.Threshold)
	if err != nil {
		return domain.MonitoringPair{}, err
	}
	sliceQty, err := decimal.NewFromString(row.SliceQty)
	if err != nil {
		return domain.MonitoringPair{}, err
	}
	p := domain.MonitoringPair{
		PairID: row.PairID,
		Leg1: domain.LegSpec{
			Venue: domain.VenueId(row.Leg1Venue), Symbol: domain.Symbol(row.Leg1Symbol),
			Category: domain.Category(row.Leg1Category), Side: domain.Side(row.Leg1Side),
		},
		Leg2: domain.LegSpec{
			Venue: domain.VenueId(row.Leg2Venue), Symbol: domain.Symbol(row.Leg2Symbol),
			Category: domain.Category(row.Leg2Category), Side: domain.Side(row.Leg2Side),
		},
		Threshold:     threshold,
		SliceQty:      sliceQty,
		MaxExecs:      row.MaxExecs,
		ExecsDone:     row.ExecsDone,
		Enabled:       row.Enabled,
		CreatedAt:     row.CreatedAt,
		TotalTriggers: row.TotalTriggers,
	}
	if row.LastTriggeredAt.Valid {
		t := row.LastTriggeredAt.Time
		p.LastTriggeredAt = &t
	}
	return p, nil
}

// Insert adds a new pair. A duplicate pairId surfaces as CodeStoreConflict.
func (s *Store) Insert(ctx context.Context, p domain.MonitoringPair) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := toRow(p)
	if err != nil {
		return apperror.Internal(apperror.CodeStoreUnavailable, "marshal pair attributes", err)
	}

	const query = `
		INSERT INTO pairs (
			pair_id, leg1_venue, leg1_symbol, leg1_category, leg1_side,
			leg2_venue, leg2_symbol, leg2_category, leg2_side,
			threshold, slice_qty, max_execs, execs_done, enabled,
			created_at, last_triggered_at, total_triggers, attributes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)`

	_, err = s.db.ExecContext(ctx, query,
		row.PairID, row.Leg1Venue, row.Leg1Symbol, row.Leg1Category, row.Leg1Side,
		row.Leg2Venue, row.Leg2Symbol, row.Leg2Category, row.Leg2Side,
		row.Threshold, row.SliceQty, row.MaxExecs, row.ExecsDone, row.Enabled,
		row.CreatedAt, row.LastTriggeredAt, row.TotalTriggers, row.Attributes)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperror.Conflict(apperror.CodeStoreConflict, fmt.Sprintf("pair %s already exists", p.PairID))
		}
		return apperror.Internal(apperror.CodeStoreUnavailable, "insert pair", err)
	}
	return nil
}

// Update replaces a pair's mutable fields.
func (s *Store) Update(ctx context.Context, p domain.MonitoringPair) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := toRow(p)
	if err != nil {
		return apperror.Internal(apperror.CodeStoreUnavailable, "marshal pair attributes", err)
	}

	const query = `
		UPDATE pairs SET
			leg1_venue=$2, leg1_symbol=$3, leg1_category=$4, leg1_side=$5,
			leg2_venue=$6, leg2_symbol=$7, leg2_category=$8, leg2_side=$9,
			threshold=$10, slice_qty=$11, max_execs=$12, execs_done=$13, enabled=$14,
			last_triggered_at=$15, total_triggers=$16, attributes=$17
		WHERE pair_id=$1`

	res, err := s.db.ExecContext(ctx, query,
		row.PairID, row.Leg1Venue, row.Leg1Symbol, row.Leg1Category, row.Leg1Side,
		row.Leg2Venue, row.Leg2Symbol, row.Leg2Category, row.Leg2Side,
		row.Threshold, row.SliceQty, row.MaxExecs, row.ExecsDone, row.Enabled,
		row.LastTriggeredAt, row.TotalTriggers, row.Attributes)
	if err != nil {
		return apperror.Internal(apperror.CodeStoreUnavailable, "update pair", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound(apperror.CodePairNotFound, p.PairID)
	}
	return nil
}

// Delete removes a pair.
func (s *Store) Delete(ctx context.Context, pairID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM pairs WHERE pair_id=$1`, pairID)
	if err != nil {
		return apperror.Internal(apperror.CodeStoreUnavailable, "delete pair", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound(apperror.CodePairNotFound, pairID)
	}
	return nil
}

// Get fetches one pair by id.
func (s *Store) Get(ctx context.Context, pairID string) (domain.MonitoringPair, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row pairRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM pairs WHERE pair_id=$1`, pairID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MonitoringPair{}, apperror.NotFound(apperror.CodePairNotFound, pairID)
	}
	if err != nil {
		return domain.MonitoringPair{}, apperror.Internal(apperror.CodeStoreUnavailable, "get pair", err)
	}
	return fromRow(row)
}

// List returns every pair, oldest first.
func (s *Store) List(ctx context.Context) ([]domain.MonitoringPair, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []pairRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM pairs ORDER BY created_at ASC`); err != nil {
		return nil, apperror.Internal(apperror.CodeStoreUnavailable, "list pairs", err)
	}

	out := make([]domain.MonitoringPair, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, apperror.Internal(apperror.CodeStoreUnavailable, "decode pair row", err)
		}
		out = append(out, p)
	}
	return out, nil
}
