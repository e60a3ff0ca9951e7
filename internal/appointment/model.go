package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

// Kind tags which slot source an appointment books against.
type Kind string

const (
	KindDoctor Kind = "doctor"
	KindTest   Kind = "test"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Snapshot holds display fields copied at booking time so later catalog edits
// do not rewrite history.
type Snapshot struct {
	PatientName   string
	PatientEmail  string
	SubjectName   string // doctor or test name
	SubjectDetail string // specialty or test category
	SubjectEmail  string // doctor email, empty for tests
	CenterName    string
	CenterAddress string
}

type Appointment struct {
	ID        uuid.UUID
	Kind      Kind
	PatientID uuid.UUID
	CenterID  uuid.UUID
	// SubjectID is the doctor for doctor appointments and the test offering for test appointments.
	SubjectID        uuid.UUID
	Date             time.Time
	Time             string
	Amount           int64 // minor units, snapshotted at booking
	Status           Status
	PaymentStatus    PaymentStatus
	PaymentIntentID  *string
	InvoiceGenerated bool
	Snapshot         Snapshot
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *Appointment) Paid() bool { return a.PaymentStatus == PaymentPaid }

func (a *Appointment) SlotKey() slots.Key { return slots.Key{Date: a.Date, Time: a.Time} }

func (a *Appointment) DateString() string { return a.Date.Format(slots.DateLayout) }

// StartsAt combines the civil date and clock time in loc.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	clock, err := time.Parse("15:04", a.Time)
	if err != nil {
		return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(), 0, 0, 0, 0, loc)
	}
	return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// SideEffectFailure records one document or notification step that failed
// after the appointment change it belonged to was committed.
type SideEffectFailure struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	Stage         string    `json:"stage"`
	Message       string    `json:"message"`
}

// Result is a committed transition plus any side effects that failed after it.
type Result struct {
	Appointment *Appointment
	Failed      []SideEffectFailure
}
