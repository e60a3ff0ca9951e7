package slots

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestClaimFlipsFreeRow(t *testing.T) {
	mock := newMock(t)
	doctor := uuid.New()
	k := key(t, "2031-06-01", "10:00")

	mock.ExpectExec("UPDATE doctor_slots").
		WithArgs(doctor, k.Date, k.Time).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, Claim(context.Background(), mock, doctor, k, 20))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimInsertsWhenAbsent(t *testing.T) {
	mock := newMock(t)
	doctor := uuid.New()
	k := key(t, "2031-06-01", "10:00")

	mock.ExpectExec("UPDATE doctor_slots").
		WithArgs(doctor, k.Date, k.Time).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO doctor_slots").
		WithArgs(doctor, k.Date, k.Time, 20).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, Claim(context.Background(), mock, doctor, k, 20))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimBookedRowConflicts(t *testing.T) {
	mock := newMock(t)
	doctor := uuid.New()
	k := key(t, "2031-06-01", "10:00")

	mock.ExpectExec("UPDATE doctor_slots").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO doctor_slots").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT booked FROM doctor_slots").
		WithArgs(doctor, k.Date, k.Time).
		WillReturnRows(pgxmock.NewRows([]string{"booked"}).AddRow(true))

	err := Claim(context.Background(), mock, doctor, k, 20)
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)
	assert.ErrorContains(t, err, "already booked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimFullLedgerConflicts(t *testing.T) {
	mock := newMock(t)
	doctor := uuid.New()
	k := key(t, "2031-06-01", "10:00")

	mock.ExpectExec("UPDATE doctor_slots").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO doctor_slots").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT booked FROM doctor_slots").
		WillReturnError(pgx.ErrNoRows)

	err := Claim(context.Background(), mock, doctor, k, 1)
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)
	assert.ErrorContains(t, err, "ledger full")
}

func TestReleaseIgnoresMissingRow(t *testing.T) {
	mock := newMock(t)
	doctor := uuid.New()
	k := key(t, "2031-06-01", "10:00")

	mock.ExpectExec("UPDATE doctor_slots\\s+SET booked = false").
		WithArgs(doctor, k.Date, k.Time).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, Release(context.Background(), mock, doctor, k))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreAddRollsBackOverCap(t *testing.T) {
	mock := newMock(t)
	doctor := uuid.New()
	a, b := key(t, "2031-06-01", "10:00"), key(t, "2031-06-01", "11:00")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count").
		WithArgs(doctor).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("INSERT INTO doctor_slots").
		WithArgs(doctor, a.Date, a.Time).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO doctor_slots").
		WithArgs(doctor, b.Date, b.Time).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	n, err := NewPgStore(mock).Add(context.Background(), doctor, []Key{a, b}, 2)
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreLoad(t *testing.T) {
	mock := newMock(t)
	doctor := uuid.New()
	day := time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT slot_date, slot_time, booked").
		WithArgs(doctor).
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "slot_time", "booked"}).
			AddRow(day, "10:00", true).
			AddRow(day, "11:00", false))

	l, err := NewPgStore(mock).Load(context.Background(), doctor, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.IsFree(Key{Date: day, Time: "10:00"}))
	assert.True(t, l.IsFree(Key{Date: day, Time: "11:00"}))
}

func TestPgStorePruneBefore(t *testing.T) {
	mock := newMock(t)
	day := time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM doctor_slots").
		WithArgs(day).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := NewPgStore(mock).PruneBefore(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
