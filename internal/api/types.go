package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/payment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/records"
	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Auth

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type ProfileUpdateRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type TokenResponse struct {
	Token  string         `json:"token"`
	Person PersonResponse `json:"person"`
}

// Catalog

type PersonResponse struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	Phone    string     `json:"phone,omitempty"`
	Address  string     `json:"address,omitempty"`
	CenterID *uuid.UUID `json:"centerId,omitempty"`
}

func personResponse(p catalog.Person) PersonResponse {
	return PersonResponse{
		ID:       p.ID,
		Name:     p.Name,
		Email:    p.Email,
		Role:     string(p.Role),
		Phone:    p.Phone,
		Address:  p.Address,
		CenterID: p.CenterID,
	}
}

type StaffRequest struct {
	RegisterRequest
	Role string `json:"role"`
}

type DoctorRequest struct {
	RegisterRequest
	Specialty  string `json:"specialty"`
	Degree     string `json:"degree"`
	Experience int    `json:"experience"`
	Fees       int64  `json:"fees"`
	MaxSlots   int    `json:"maxSlots"`
}

type DoctorUpdateRequest struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	Specialty  *string `json:"specialty"`
	Degree     *string `json:"degree"`
	Experience *int    `json:"experience"`
	Fees       *int64  `json:"fees"`
	MaxSlots   *int    `json:"maxSlots"`
}

type DoctorResponse struct {
	PersonResponse
	Specialty  string `json:"specialty"`
	Degree     string `json:"degree"`
	Experience int    `json:"experience"`
	Fees       int64  `json:"fees"`
	MaxSlots   int    `json:"maxSlots"`
}

func doctorResponse(d catalog.Doctor) DoctorResponse {
	return DoctorResponse{
		PersonResponse: personResponse(d.Person),
		Specialty:      d.Specialty,
		Degree:         d.Degree,
		Experience:     d.ExperienceYears,
		Fees:           d.Fee,
		MaxSlots:       d.MaxSlots,
	}
}

type CenterRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

type CenterResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Contact   string    `json:"contact"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func centerResponse(c catalog.Center) CenterResponse {
	return CenterResponse{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		Contact:   c.Contact,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}

type LinkDoctorRequest struct {
	DoctorID string `json:"doctorId"`
}

type TestRequest struct {
	CenterID    string `json:"centerId"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

type TestUpdateRequest struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Price       *int64  `json:"price"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type TestResponse struct {
	ID          uuid.UUID `json:"id"`
	CenterID    uuid.UUID `json:"centerId"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       int64     `json:"price"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
}

func testResponse(t catalog.TestOffering) TestResponse {
	return TestResponse{
		ID:          t.ID,
		CenterID:    t.CenterID,
		Name:        t.Name,
		Category:    t.Category,
		Price:       t.Price,
		Description: t.Description,
		Status:      string(t.Status),
	}
}

// Slots

type SlotRequest struct {
	Date string `json:"slotDate"`
	Time string `json:"slotTime"`
}

type AddSlotsRequest struct {
	Slots []SlotRequest `json:"slots"`
}

type AddSlotsResponse struct {
	Added int `json:"added"`
}

type SlotResponse struct {
	Date string `json:"slotDate"`
	Time string `json:"slotTime"`
}

func slotResponse(e slots.Entry) SlotResponse {
	return SlotResponse{Date: e.Date.Format(slots.DateLayout), Time: e.Time}
}

// Appointments

type BookDoctorRequest struct {
	PatientID string `json:"userId"`
	DoctorID  string `json:"docId"`
	CenterID  string `json:"centerId"`
	SlotDate  string `json:"slotDate"`
	SlotTime  string `json:"slotTime"`
}

type BookTestRequest struct {
	PatientID       string `json:"userId"`
	TestID          string `json:"testId"`
	CenterID        string `json:"centerId"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	PaymentStatus   string `json:"paymentStatus"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	Kind             string    `json:"kind"`
	PatientID        uuid.UUID `json:"userId"`
	CenterID         uuid.UUID `json:"centerId"`
	SubjectID        uuid.UUID `json:"subjectId"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	Amount           int64     `json:"amount"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"paymentStatus"`
	Payment          bool      `json:"payment"`
	Cancelled        bool      `json:"cancelled"`
	IsCompleted      bool      `json:"isCompleted"`
	PaymentIntentID  *string   `json:"paymentIntentId,omitempty"`
	InvoiceGenerated bool      `json:"invoiceGenerated"`
	PatientName      string    `json:"patientName"`
	SubjectName      string    `json:"subjectName"`
	SubjectDetail    string    `json:"subjectDetail,omitempty"`
	CenterName       string    `json:"centerName"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func appointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		Kind:             string(a.Kind),
		PatientID:        a.PatientID,
		CenterID:         a.CenterID,
		SubjectID:        a.SubjectID,
		Date:             a.DateString(),
		Time:             a.Time,
		Amount:           a.Amount,
		Status:           string(a.Status),
		PaymentStatus:    string(a.PaymentStatus),
		Payment:          a.Paid(),
		Cancelled:        a.Status == appointment.StatusCancelled,
		IsCompleted:      a.Status == appointment.StatusCompleted,
		PaymentIntentID:  a.PaymentIntentID,
		InvoiceGenerated: a.InvoiceGenerated,
		PatientName:      a.Snapshot.PatientName,
		SubjectName:      a.Snapshot.SubjectName,
		SubjectDetail:    a.Snapshot.SubjectDetail,
		CenterName:       a.Snapshot.CenterName,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func appointmentList(in []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(in))
	for i, a := range in {
		out[i] = appointmentResponse(a)
	}
	return out
}

type TransitionResponse struct {
	Appointment       AppointmentResponse             `json:"appointment"`
	FailedSideEffects []appointment.SideEffectFailure `json:"failedSideEffects"`
}

func transitionResponse(res *appointment.Result) TransitionResponse {
	failed := res.Failed
	if failed == nil {
		failed = []appointment.SideEffectFailure{}
	}
	return TransitionResponse{Appointment: appointmentResponse(*res.Appointment), FailedSideEffects: failed}
}

// Payments

type AppointmentIDsRequest struct {
	AppointmentIDs []string `json:"appointmentIds"`
}

type ConfirmPaymentRequest struct {
	SessionID       string   `json:"sessionId"`
	PaymentIntentID string   `json:"paymentIntentId"`
	AppointmentIDs  []string `json:"appointmentIds"`
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type IntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
}

type ConfirmationResponse struct {
	PaymentIntentID string                          `json:"paymentIntentId"`
	Updated         []AppointmentResponse           `json:"updated"`
	Omitted         []payment.Omission              `json:"omitted"`
	FailedInvoices  []appointment.SideEffectFailure `json:"failedInvoices"`
}

func confirmationResponse(c *payment.Confirmation) ConfirmationResponse {
	resp := ConfirmationResponse{
		PaymentIntentID: c.IntentID,
		Updated:         appointmentList(c.Updated),
		Omitted:         c.Omitted,
		FailedInvoices:  c.Failed,
	}
	if resp.Omitted == nil {
		resp.Omitted = []payment.Omission{}
	}
	if resp.FailedInvoices == nil {
		resp.FailedInvoices = []appointment.SideEffectFailure{}
	}
	return resp
}

// Records

type InvoiceRequest struct {
	PatientID        string   `json:"userId"`
	TestAppointments []string `json:"testAppointments"`
}

type InvoiceUpdateRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

type InvoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	PatientID     uuid.UUID             `json:"userId"`
	AppointmentID *uuid.UUID            `json:"appointmentId,omitempty"`
	Items         []records.InvoiceItem `json:"items"`
	TotalPrice    int64                 `json:"totalPrice"`
	PaymentStatus string                `json:"paymentStatus"`
	DueDate       time.Time             `json:"dueDate"`
	CreatedAt     time.Time             `json:"createdAt"`
}

func invoiceResponse(inv records.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID,
		PatientID:     inv.PatientID,
		AppointmentID: inv.AppointmentID,
		Items:         inv.Items,
		TotalPrice:    inv.Total,
		PaymentStatus: string(inv.PaymentStatus),
		DueDate:       inv.DueDate,
		CreatedAt:     inv.CreatedAt,
	}
}

type PrescriptionRequest struct {
	AppointmentID string             `json:"appointmentId"`
	Symptoms      []string           `json:"symptoms"`
	Examinations  []string           `json:"examinations"`
	Medicines     []records.Medicine `json:"medicines"`
	Notes         string             `json:"notes"`
}

type PrescriptionUpdateRequest struct {
	Symptoms     *[]string           `json:"symptoms"`
	Examinations *[]string           `json:"examinations"`
	Medicines    *[]records.Medicine `json:"medicines"`
	Notes        *string             `json:"notes"`
}

type PrescriptionResponse struct {
	ID            uuid.UUID          `json:"id"`
	AppointmentID uuid.UUID          `json:"appointmentId"`
	DoctorID      uuid.UUID          `json:"doctorId"`
	PatientID     uuid.UUID          `json:"userId"`
	CenterID      uuid.UUID          `json:"centerId"`
	Symptoms      []string           `json:"symptoms"`
	Examinations  []string           `json:"examinations"`
	Medicines     []records.Medicine `json:"medicines"`
	Notes         string             `json:"notes"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func prescriptionResponse(p records.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		DoctorID:      p.DoctorID,
		PatientID:     p.PatientID,
		CenterID:      p.CenterID,
		Symptoms:      p.Symptoms,
		Examinations:  p.Examinations,
		Medicines:     p.Medicines,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type CreatePrescriptionResponse struct {
	Prescription      PrescriptionResponse            `json:"prescription"`
	FailedSideEffects []appointment.SideEffectFailure `json:"failedSideEffects"`
}
