package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func testPair() domain.MonitoringPair {
	return domain.MonitoringPair{
		PairID: "p1",
		Leg1:   domain.LegSpec{Venue: "binance", Symbol: "BTCUSDT", Category: domain.CategorySpot, Side: domain.SideBuy},
		Leg2:   domain.LegSpec{Venue: "bybit", Symbol: "BTCUSDT", Category: domain.CategorySpot, Side: domain.SideSell},
		Threshold: decimal.NewFromFloat(0.002),
		SliceQty:  decimal.NewFromInt(1),
		MaxExecs:  10,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestStore_Insert_Success(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO pairs").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Insert(context.Background(), testPair()); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStore_Insert_DuplicateKeyIsConflict(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO pairs").WillReturnError(&pq.Error{Code: "23505"})

	err := store.Insert(context.Background(), testPair())
	if err == nil {
		t.Fatal("expected an error for a duplicate pair_id")
	}
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != apperror.CodeStoreConflict {
		t.Errorf("Code = %v, want %v", appErr.Code, apperror.CodeStoreConflict)
	}
}

func TestStore_Update_NoRowsAffectedIsNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("UPDATE pairs SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), testPair())
	if err == nil {
		t.Fatal("expected an error when no rows are updated")
	}
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != apperror.CodePairNotFound {
		t.Errorf("Code = %v, want %v", appErr.Code, apperror.CodePairNotFound)
	}
}

func TestStore_Delete_NoRowsAffectedIsNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("DELETE FROM pairs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error when no rows are deleted")
	}
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != apperror.CodePairNotFound {
		t.Errorf("Code = %v, want %v", appErr.Code, apperror.CodePairNotFound)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM pairs").WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for an unknown pair")
	}
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != apperror.CodePairNotFound {
		t.Errorf("Code = %v, want %v", appErr.Code, apperror.CodePairNotFound)
	}
}

func TestStore_List_DecodesRows(t *testing.T) {
	store, mock := newTestStore(t)
	cols := []string{
		"pair_id", "leg1_venue", "leg1_symbol", "leg1_category", "leg1_side",
		"leg2_venue", "leg2_symbol", "leg2_category", "leg2_side",
		"threshold", "slice_qty", "max_execs", "execs_done", "enabled",
		"created_at", "last_triggered_at", "total_triggers", "attributes",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"p1", "binance", "BTCUSDT", "spot", "buy",
		"bybit", "BTCUSDT", "spot", "sell",
		"0.002", "1", 10, 0, true,
		time.Now(), nil, 0, []byte(`{}`),
	)
	mock.ExpectQuery("SELECT \\* FROM pairs ORDER BY").WillReturnRows(rows)

	got, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].PairID != "p1" {
		t.Errorf("got = %+v", got)
	}
}
