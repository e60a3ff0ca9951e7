package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/db"
)

type Store interface {
	Load(ctx context.Context, doctorID uuid.UUID, max int) (*Ledger, error)
	Add(ctx context.Context, doctorID uuid.UUID, keys []Key, max int) (int, error)
	PruneBefore(ctx context.Context, date time.Time) (int64, error)
}

// Claim books one entry with conditional writes so two callers can never both
// observe it free. It runs on q, normally the transaction that inserts the appointment.
func Claim(ctx context.Context, q db.Querier, doctorID uuid.UUID, k Key, max int) error {
	tag, err := q.Exec(ctx, `
		UPDATE doctor_slots
		SET booked = true
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND slot_time = $3
		  AND booked = false
	`, doctorID, k.Date, k.Time)
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	tag, err = q.Exec(ctx, `
		INSERT INTO doctor_slots (doctor_id, slot_date, slot_time, booked)
		SELECT $1, $2, $3, true
		WHERE (SELECT count(*) FROM doctor_slots WHERE doctor_id = $1) < $4
		ON CONFLICT DO NOTHING
	`, doctorID, k.Date, k.Time, max)
	if err != nil {
		return fmt.Errorf("insert claimed slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var booked bool
	err = q.QueryRow(ctx, `
		SELECT booked FROM doctor_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
	`, doctorID, k.Date, k.Time).Scan(&booked)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.SlotConflict(doctorID.String(), "ledger full")
	case err != nil:
		return fmt.Errorf("check slot: %w", err)
	default:
		return apperr.SlotConflict(doctorID.String(), "slot "+k.String()+" is already booked")
	}
}

// Release frees one entry. Unknown or already free entries are left alone.
func Release(ctx context.Context, q db.Querier, doctorID uuid.UUID, k Key) error {
	_, err := q.Exec(ctx, `
		UPDATE doctor_slots
		SET booked = false
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND slot_time = $3
	`, doctorID, k.Date, k.Time)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

type PgStore struct {
	db db.DB
}

func NewPgStore(d db.DB) *PgStore {
	return &PgStore{db: d}
}

func (s *PgStore) Load(ctx context.Context, doctorID uuid.UUID, max int) (*Ledger, error) {
	rows, err := s.db.Query(ctx, `
		SELECT slot_date, slot_time, booked
		FROM doctor_slots
		WHERE doctor_id = $1
		ORDER BY slot_date, slot_time
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Date, &e.Time, &e.Booked); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Date = civil(e.Date)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return NewLedger(max, entries...), nil
}

func (s *PgStore) Add(ctx context.Context, doctorID uuid.UUID, keys []Key, max int) (int, error) {
	added := 0
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM doctor_slots WHERE doctor_id = $1`, doctorID,
		).Scan(&count); err != nil {
			return fmt.Errorf("count ledger: %w", err)
		}

		for _, k := range keys {
			tag, err := tx.Exec(ctx, `
				INSERT INTO doctor_slots (doctor_id, slot_date, slot_time, booked)
				VALUES ($1, $2, $3, false)
				ON CONFLICT DO NOTHING
			`, doctorID, k.Date, k.Time)
			if err != nil {
				return fmt.Errorf("add slot: %w", err)
			}
			added += int(tag.RowsAffected())
		}

		if max > 0 && count+added > max {
			return apperr.SlotConflict(doctorID.String(), "ledger full")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// PruneBefore deletes free entries dated before date. Booked entries stay with their appointments.
func (s *PgStore) PruneBefore(ctx context.Context, date time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM doctor_slots
		WHERE booked = false
		  AND slot_date < $1
	`, date)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return tag.RowsAffected(), nil
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
