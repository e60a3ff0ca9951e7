package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrPrescriptionExists   = errors.New("prescription already exists for appointment")
)

type PrescriptionFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Limit     int
	Offset    int
}

type Repository interface {
	// CreateInvoice inserts inv. For an appointment that already has an
	// invoice it leaves the table alone and returns false.
	CreateInvoice(ctx context.Context, inv *Invoice) (bool, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Invoice, error)
	SetInvoiceDocument(ctx context.Context, id uuid.UUID, key string) error
	SetInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error

	CreatePrescription(ctx context.Context, p *Prescription) error
	GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error)
	UpdatePrescription(ctx context.Context, p *Prescription) error
	ListPrescriptions(ctx context.Context, f PrescriptionFilter) ([]Prescription, error)
}
