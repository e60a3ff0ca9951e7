package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/db"
	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

type PgRepository struct {
	db db.DB
}

func NewPgRepository(d db.DB) *PgRepository {
	return &PgRepository{db: d}
}

const appointmentColumns = `a.id, a.kind, a.patient_id, a.center_id, a.subject_id, a.appt_date, a.appt_time,
	a.amount, a.status, a.payment_status, a.payment_intent_id, a.invoice_generated,
	a.patient_name, a.patient_email, a.subject_name, a.subject_detail, a.subject_email,
	a.center_name, a.center_address, a.created_at, a.updated_at`

// Helpers

func scanAppointment(row pgx.Row, extra ...any) (*Appointment, error) {
	var a Appointment
	dest := []any{
		&a.ID, &a.Kind, &a.PatientID, &a.CenterID, &a.SubjectID, &a.Date, &a.Time,
		&a.Amount, &a.Status, &a.PaymentStatus, &a.PaymentIntentID, &a.InvoiceGenerated,
		&a.Snapshot.PatientName, &a.Snapshot.PatientEmail, &a.Snapshot.SubjectName,
		&a.Snapshot.SubjectDetail, &a.Snapshot.SubjectEmail,
		&a.Snapshot.CenterName, &a.Snapshot.CenterAddress, &a.CreatedAt, &a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	y, m, d := a.Date.Date()
	a.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &a, nil
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func insertAppointment(ctx context.Context, q db.Querier, a *Appointment) error {
	err := q.QueryRow(ctx, `
		INSERT INTO appointments (
			id, kind, patient_id, center_id, subject_id, appt_date, appt_time,
			amount, status, payment_status, payment_intent_id, invoice_generated,
			patient_name, patient_email, subject_name, subject_detail, subject_email,
			center_name, center_address, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, now(), now())
		RETURNING created_at, updated_at
	`,
		a.ID, a.Kind, a.PatientID, a.CenterID, a.SubjectID, a.Date, a.Time,
		a.Amount, a.Status, a.PaymentStatus, a.PaymentIntentID, a.InvoiceGenerated,
		a.Snapshot.PatientName, a.Snapshot.PatientEmail, a.Snapshot.SubjectName,
		a.Snapshot.SubjectDetail, a.Snapshot.SubjectEmail,
		a.Snapshot.CenterName, a.Snapshot.CenterAddress,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.SlotConflict(a.SubjectID.String(), "slot "+a.SlotKey().String()+" is already booked")
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.id = ANY($1::uuid[])
		ORDER BY a.created_at
	`, idStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("get appointments: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE ($1::uuid IS NULL OR a.patient_id = $1)
		  AND ($2::uuid IS NULL OR (a.kind = 'doctor' AND a.subject_id = $2))
		  AND ($3::uuid IS NULL OR a.center_id = $3)
		  AND (NOT $4 OR a.payment_status = 'paid')
		ORDER BY a.created_at DESC
		LIMIT $5 OFFSET $6
	`, f.PatientID, f.DoctorID, f.CenterID, f.PaidOnly, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) CreateDoctor(ctx context.Context, a *Appointment, maxSlots int) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := slots.Claim(ctx, tx, a.SubjectID, a.SlotKey(), maxSlots); err != nil {
			return err
		}
		return insertAppointment(ctx, tx, a)
	})
}

func (r *PgRepository) CreateTest(ctx context.Context, a *Appointment) error {
	return insertAppointment(ctx, r.db, a)
}

func (r *PgRepository) TestSlotTaken(ctx context.Context, testID uuid.UUID, date time.Time, clock string) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE kind = 'test'
			  AND subject_id = $1
			  AND appt_date = $2
			  AND appt_time = $3
			  AND status <> 'cancelled'
		)
	`, testID, date, clock).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check test slot: %w", err)
	}
	return taken, nil
}

func (r *PgRepository) Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments a
		SET status = $3,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = $2
		RETURNING `+appointmentColumns, id, from, to)

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStaleState
	}
	return updated, err
}

func (r *PgRepository) Cancel(ctx context.Context, a *Appointment, allowPaid bool) (*Appointment, error) {
	var updated *Appointment
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments a
			SET status = 'cancelled',
			    payment_status = CASE
			        WHEN a.kind = 'test' AND a.payment_status <> 'paid' THEN 'cancelled'
			        ELSE a.payment_status
			    END,
			    updated_at = now()
			WHERE a.id = $1
			  AND a.status = $2
			  AND ($3 OR a.payment_status <> 'paid')
			RETURNING `+appointmentColumns, a.ID, a.Status, allowPaid)

		var err error
		updated, err = scanAppointment(row)
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrStaleState
		}
		if err != nil {
			return err
		}

		if updated.Kind == KindDoctor {
			return slots.Release(ctx, tx, updated.SubjectID, updated.SlotKey())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkPaid locks the rows before updating them, so concurrent replays of one
// confirmation queue behind each other and only the first reports NewlyPaid.
func (r *PgRepository) MarkPaid(ctx context.Context, ids []uuid.UUID, intentID string) ([]PaidRecord, error) {
	var result []PaidRecord
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, payment_status = 'paid'
			FROM appointments
			WHERE id = ANY($1::uuid[])
			ORDER BY id
			FOR UPDATE
		`, idStrings(ids))
		if err != nil {
			return fmt.Errorf("lock appointments: %w", err)
		}
		wasPaid := make(map[uuid.UUID]bool, len(ids))
		for rows.Next() {
			var id uuid.UUID
			var paid bool
			if err := rows.Scan(&id, &paid); err != nil {
				rows.Close()
				return fmt.Errorf("scan locked appointment: %w", err)
			}
			wasPaid[id] = paid
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = tx.Query(ctx, `
			UPDATE appointments a
			SET status = 'booked',
			    payment_status = 'paid',
			    payment_intent_id = CASE WHEN a.payment_status = 'paid' THEN a.payment_intent_id ELSE $2 END,
			    invoice_generated = a.invoice_generated OR a.kind = 'test',
			    updated_at = CASE WHEN a.payment_status = 'paid' THEN a.updated_at ELSE now() END
			WHERE a.id = ANY($1::uuid[])
			  AND a.status IN ('pending', 'booked')
			RETURNING `+appointmentColumns, idStrings(ids), intentID)
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		updated, err := collect(rows)
		if err != nil {
			return err
		}

		result = make([]PaidRecord, 0, len(updated))
		for _, a := range updated {
			result = append(result, PaidRecord{Appointment: a, NewlyPaid: !wasPaid[a.ID]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) AttachPaymentIntent(ctx context.Context, ids []uuid.UUID, intentID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET payment_intent_id = $2,
		    updated_at = now()
		WHERE id = ANY($1::uuid[])
		  AND payment_status = 'unpaid'
	`, idStrings(ids), intentID)
	if err != nil {
		return fmt.Errorf("attach payment intent: %w", err)
	}
	return nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, createdBefore time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.kind = 'doctor'
		  AND a.status = 'pending'
		  AND a.payment_status = 'unpaid'
		  AND a.created_at < $1
		ORDER BY a.created_at
		LIMIT 500
	`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("find expired pending: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
