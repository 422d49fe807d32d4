// Package postgres implements the twap app.Store against PostgreSQL, following
// the same repo pattern as business/pairs/infra/postgres.
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/twap/app"
	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
)

var _ app.Store = (*Store)(nil)

// Store persists TWAP plans in the "twap_plans" table.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// New builds a twap Store.
func New(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

type planRow struct {
	PlanID         string    `db:"plan_id"`
	Leg1Venue      string    `db:"leg1_venue"`
	Leg1Symbol     string    `db:"leg1_symbol"`
	Leg1Category   string    `db:"leg1_category"`
	Leg1Side       string    `db:"leg1_side"`
	Leg2Venue      string    `db:"leg2_venue"`
	Leg2Symbol     string    `db:"leg2_symbol"`
	Leg2Category   string    `db:"leg2_category"`
	Leg2Side       string    `db:"leg2_side"`
	TotalQty       string    `db:"total_qty"`
	SliceQty       string    `db:"slice_qty"`
	IntervalMs     int64     `db:"interval_ms"`
	SlicesTotal    int       `db:"slices_total"`
	State          string    `db:"state"`
	SlicesDone     int       `db:"slices_done"`
	Remaining      int       `db:"remaining"`
	NextDispatchTs time.Time `db:"next_dispatch_ts"`
	CreatedAt      time.Time `db:"created_at"`
}

func toRow(p domain.TwapPlan) planRow {
	return planRow{
		PlanID:         p.PlanID,
		Leg1Venue:      string(p.Legs[0].Venue),
		Leg1Symbol:     string(p.Legs[0].Symbol),
		Leg1Category:   string(p.Legs[0].Category),
		Leg1Side:       string(p.Legs[0].Side),
		Leg2Venue:      string(p.Legs[1].Venue),
		Leg2Symbol:     string(p.Legs[1].Symbol),
		Leg2Category:   string(p.Legs[1].Category),
		Leg2Side:       string(p.Legs[1].Side),
		TotalQty:       p.TotalQty.String(),
		SliceQty:       p.SliceQty.String(),
		IntervalMs:     p.IntervalMs,
		SlicesTotal:    p.SlicesTotal,
		State:          string(p.State),
		SlicesDone:     p.Progress.SlicesDone,
		Remaining:      p.Progress.Remaining,
		NextDispatchTs: p.Progress.NextDispatchTs,
		CreatedAt:      p.CreatedAt,
	}
}

func fromRow(row planRow) (domain.TwapPlan, error) {
	totalQty, err := decimal.NewFromString(row.TotalQty)
	if err != nil {
		return domain.TwapPlan{}, err
	}
	sliceQty, err := decimal.NewFromString(row.SliceQty)
	if err != nil {
		return domain.TwapPlan{}, err
	}
	return domain.TwapPlan{
		PlanID: row.PlanID,
		Legs: [2]domain.LegSpec{
			{Venue: domain.VenueId(row.Leg1Venue), Symbol: domain.Symbol(row.Leg1Symbol), Category: domain.Category(row.Leg1Category), Side: domain.Side(row.Leg1Side)},
			{Venue: domain.VenueId(row.Leg2Venue), Symbol: domain.Symbol(row.Leg2Symbol), Category: domain.Category(row.Leg2Category), Side: domain.Side(row.Leg2Side)},
		},
		TotalQty:    totalQty,
		SliceQty:    sliceQty,
		IntervalMs:  row.IntervalMs,
		SlicesTotal: row.SlicesTotal,
		State:       domain.TwapState(row.State),
		Progress: domain.TwapProgress{
			SlicesDone:     row.SlicesDone,
			Remaining:      row.Remaining,
			NextDispatchTs: row.NextDispatchTs,
		},
		CreatedAt: row.CreatedAt,
	}, nil
}

// Insert adds a new plan.
func (s *Store) Insert(ctx context.Context, p domain.TwapPlan) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := toRow(p)
	const query = `
		INSERT INTO twap_plans (
			plan_id, leg1_venue, leg1_symbol, leg1_category, leg1_side,
			leg2_venue, leg2_symbol, leg2_category, leg2_side,
			total_qty, slice_qty, interval_ms, slices_total, state,
			slices_done, remaining, next_dispatch_ts, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)`

	_, err := s.db.ExecContext(ctx, query,
		row.PlanID, row.Leg1Venue, row.Leg1Symbol, row.Leg1Category, row.Leg1Side,
		row.Leg2Venue, row.Leg2Symbol, row.Leg2Category, row.Leg2Side,
		row.TotalQty, row.SliceQty, row.IntervalMs, row.SlicesTotal, row.State,
		row.SlicesDone, row.Remaining, row.NextDispatchTs, row.CreatedAt)
	if err != nil {
		return apperror.Internal(apperror.CodeStoreUnavailable, "insert twap plan", err)
	}
	return nil
}

// Update persists a plan's mutable fields.
func (s *Store) Update(ctx context.Context, p domain.TwapPlan) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := toRow(p)
	const query = `
		UPDATE twap_plans SET
			state=$2, slices_done=$3, remaining=$4, next_dispatch_ts=$5
		WHERE plan_id=$1`

	res, err := s.db.ExecContext(ctx, query, row.PlanID, row.State, row.SlicesDone, row.Remaining, row.NextDispatchTs)
	if err != nil {
		return apperror.Internal(apperror.CodeStoreUnavailable, "update twap plan", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound(apperror.CodePlanNotFound, p.PlanID)
	}
	return nil
}

// List returns every plan, oldest first.
func (s *Store) List(ctx context.Context) ([]domain.TwapPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []planRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM twap_plans ORDER BY created_at ASC`); err != nil {
		return nil, apperror.Internal(apperror.CodeStoreUnavailable, "list twap plans", err)
	}

	out := make([]domain.TwapPlan, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, apperror.Internal(apperror.CodeStoreUnavailable, "decode twap plan row", err)
		}
		out = append(out, p)
	}
	return out, nil
}
