package records

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
)

// InvoiceItem is a line item copied from an appointment when the invoice is issued.
type InvoiceItem struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	SubjectID     uuid.UUID `json:"subjectId"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Price         int64     `json:"price"`
}

type Invoice struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	// AppointmentID is set for invoices issued automatically on payment.
	AppointmentID *uuid.UUID
	Items         []InvoiceItem
	Total         int64
	PaymentStatus InvoiceStatus
	DueDate       time.Time
	DocumentKey   string
	CreatedAt     time.Time
}

type Medicine struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage"`
	Duration string `json:"duration"`
}

type Prescription struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	CenterID      uuid.UUID
	Symptoms      []string
	Examinations  []string
	Medicines     []Medicine
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
