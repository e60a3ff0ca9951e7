package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Hasnainmunshi/diagnostic-management/internal/db"
)

type PgRepository struct {
	db db.DB
}

func NewPgRepository(d db.DB) *PgRepository {
	return &PgRepository{db: d}
}

const invoiceColumns = `id, patient_id, appointment_id, items, total, payment_status, due_date, document_key, created_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv   Invoice
		items []byte
	)
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.AppointmentID, &items, &inv.Total,
		&inv.PaymentStatus, &inv.DueDate, &inv.DocumentKey, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	return &inv, nil
}

func (r *PgRepository) CreateInvoice(ctx context.Context, inv *Invoice) (bool, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return false, fmt.Errorf("encode invoice items: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO invoices (id, patient_id, appointment_id, items, total, payment_status, due_date, document_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (appointment_id) WHERE appointment_id IS NOT NULL DO NOTHING
	`, inv.ID, inv.PatientID, inv.AppointmentID, items, inv.Total, inv.PaymentStatus, inv.DueDate, inv.DocumentKey, inv.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert invoice: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

func (r *PgRepository) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE appointment_id = $1`, appointmentID))
}

func (r *PgRepository) ListInvoices(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r *PgRepository) SetInvoiceDocument(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET document_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("set invoice document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *PgRepository) SetInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET payment_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

const prescriptionColumns = `id, appointment_id, doctor_id, patient_id, center_id, symptoms, examinations, medicines, notes, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var (
		p         Prescription
		medicines []byte
	)
	err := row.Scan(&p.ID, &p.AppointmentID, &p.DoctorID, &p.PatientID, &p.CenterID,
		&p.Symptoms, &p.Examinations, &medicines, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(medicines, &p.Medicines); err != nil {
		return nil, fmt.Errorf("decode medicines: %w", err)
	}
	return &p, nil
}

func (r *PgRepository) CreatePrescription(ctx context.Context, p *Prescription) error {
	medicines, err := json.Marshal(p.Medicines)
	if err != nil {
		return fmt.Errorf("encode medicines: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO prescriptions (id, appointment_id, doctor_id, patient_id, center_id, symptoms, examinations, medicines, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.ID, p.AppointmentID, p.DoctorID, p.PatientID, p.CenterID, p.Symptoms, p.Examinations, medicines, p.Notes).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrPrescriptionExists
		}
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *PgRepository) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.db.QueryRow(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id))
}

func (r *PgRepository) UpdatePrescription(ctx context.Context, p *Prescription) error {
	medicines, err := json.Marshal(p.Medicines)
	if err != nil {
		return fmt.Errorf("encode medicines: %w", err)
	}

	var updated time.Time
	err = r.db.QueryRow(ctx, `
		UPDATE prescriptions
		SET symptoms = $2,
		    examinations = $3,
		    medicines = $4,
		    notes = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Symptoms, p.Examinations, medicines, p.Notes).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPrescriptionNotFound
		}
		return fmt.Errorf("update prescription: %w", err)
	}
	p.UpdatedAt = updated
	return nil
}

func (r *PgRepository) ListPrescriptions(ctx context.Context, f PrescriptionFilter) ([]Prescription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR doctor_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, f.PatientID, f.DoctorID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var out []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
