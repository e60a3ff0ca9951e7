package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrStaleState means a compare-and-set write found the row in a different status.
	ErrStaleState = errors.New("appointment changed concurrently")
)

type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	CenterID  *uuid.UUID
	PaidOnly  bool
	Limit     int
	Offset    int
}

// PaidRecord is an appointment after a payment update. NewlyPaid is false
// when the appointment was already paid before this update.
type PaidRecord struct {
	Appointment
	NewlyPaid bool
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]Appointment, error)
	List(ctx context.Context, f ListFilter) ([]Appointment, error)

	// CreateDoctor claims the doctor's ledger entry and inserts a in one
	// transaction. A lost claim returns apperr.ErrSlotConflict and writes nothing.
	CreateDoctor(ctx context.Context, a *Appointment, maxSlots int) error
	// CreateTest inserts a; a live appointment on the same test slot yields apperr.ErrSlotConflict.
	CreateTest(ctx context.Context, a *Appointment) error
	TestSlotTaken(ctx context.Context, testID uuid.UUID, date time.Time, clock string) (bool, error)

	// Transition moves id from one status to another, or returns ErrStaleState.
	Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// Cancel moves a from its current status to cancelled and frees its ledger
	// entry. Paid rows are only touched when allowPaid is set.
	Cancel(ctx context.Context, a *Appointment, allowPaid bool) (*Appointment, error)

	// MarkPaid sets payment fields on every pending or booked appointment in ids.
	MarkPaid(ctx context.Context, ids []uuid.UUID, intentID string) ([]PaidRecord, error)
	AttachPaymentIntent(ctx context.Context, ids []uuid.UUID, intentID string) error

	// Expiry worker
	FindExpiredPending(ctx context.Context, createdBefore time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
