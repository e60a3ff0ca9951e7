package api

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
	"github.com/Hasnainmunshi/diagnostic-management/internal/payment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/records"
	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

type CatalogService interface {
	RegisterPatient(ctx context.Context, in catalog.PersonInput) (*catalog.Person, error)
	Authenticate(ctx context.Context, email, password string) (*catalog.Person, error)
	GetPerson(ctx context.Context, id uuid.UUID) (*catalog.Person, error)
	UpdateProfile(ctx context.Context, caller auth.Caller, id uuid.UUID, up catalog.ProfileUpdate) (*catalog.Person, error)
	CreateStaff(ctx context.Context, caller auth.Caller, centerID uuid.UUID, role auth.Role, in catalog.PersonInput) (*catalog.Person, error)
	CreateDoctor(ctx context.Context, caller auth.Caller, in catalog.DoctorInput) (*catalog.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*catalog.Doctor, error)
	UpdateDoctor(ctx context.Context, caller auth.Caller, id uuid.UUID, up catalog.DoctorUpdate) (*catalog.Doctor, error)
	DeleteDoctor(ctx context.Context, caller auth.Caller, id uuid.UUID) error
	ListDoctors(ctx context.Context, f catalog.DoctorFilter) ([]catalog.Doctor, error)
	CreateCenter(ctx context.Context, caller auth.Caller, in catalog.CenterInput) (*catalog.Center, error)
	GetCenter(ctx context.Context, id uuid.UUID) (*catalog.Center, error)
	UpdateCenter(ctx context.Context, caller auth.Caller, id uuid.UUID, in catalog.CenterInput) (*catalog.Center, error)
	DeleteCenter(ctx context.Context, caller auth.Caller, id uuid.UUID) error
	ListCenters(ctx context.Context, limit, offset int) ([]catalog.Center, error)
	AddDoctorToCenter(ctx context.Context, caller auth.Caller, centerID, doctorID uuid.UUID) error
	CreateTest(ctx context.Context, caller auth.Caller, in catalog.TestInput) (*catalog.TestOffering, error)
	GetTest(ctx context.Context, id uuid.UUID) (*catalog.TestOffering, error)
	UpdateTest(ctx context.Context, caller auth.Caller, id uuid.UUID, up catalog.TestUpdate) (*catalog.TestOffering, error)
	DeleteTest(ctx context.Context, caller auth.Caller, id uuid.UUID) error
	ListTests(ctx context.Context, centerID uuid.UUID) ([]catalog.TestOffering, error)
}

type SlotService interface {
	AddSlots(ctx context.Context, caller auth.Caller, doctorID uuid.UUID, inputs []slots.SlotInput) (int, error)
	ListAvailable(ctx context.Context, doctorID uuid.UUID) (iter.Seq[slots.Entry], error)
}

type AppointmentService interface {
	BookDoctorAppointment(ctx context.Context, caller auth.Caller, in appointment.DoctorBooking) (*appointment.Appointment, error)
	BookTestAppointment(ctx context.Context, caller auth.Caller, in appointment.TestBooking) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (*appointment.Result, error)
	CompleteDoctorAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (*appointment.Result, error)
	CompleteTestAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (*appointment.Result, error)
	ListAppointmentsByPatient(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, caller auth.Caller, doctorID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	ListAppointmentsByCenter(ctx context.Context, caller auth.Caller, centerID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	PaymentHistory(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
}

type PaymentService interface {
	CreateCheckout(ctx context.Context, caller auth.Caller, rawIDs []string) (*payment.Checkout, error)
	CreatePaymentIntent(ctx context.Context, caller auth.Caller, rawIDs []string) (*payment.Intent, error)
	ConfirmPayment(ctx context.Context, caller auth.Caller, ref string, rawIDs []string) (*payment.Confirmation, error)
}

type RecordService interface {
	CreateInvoice(ctx context.Context, caller auth.Caller, patientID uuid.UUID, rawIDs []string) (*records.Invoice, error)
	ListInvoices(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]records.Invoice, error)
	GetInvoice(ctx context.Context, caller auth.Caller, id uuid.UUID) (*records.Invoice, error)
	InvoicePDF(ctx context.Context, caller auth.Caller, id uuid.UUID) ([]byte, string, error)
	MarkInvoicePaid(ctx context.Context, caller auth.Caller, id uuid.UUID) (*records.Invoice, error)
	CreatePrescription(ctx context.Context, caller auth.Caller, in records.PrescriptionInput) (*records.PrescriptionResult, error)
	UpdatePrescription(ctx context.Context, caller auth.Caller, id uuid.UUID, up records.PrescriptionUpdate) (*records.Prescription, error)
	GetPrescription(ctx context.Context, caller auth.Caller, id uuid.UUID) (*records.Prescription, error)
	PrescriptionPDF(ctx context.Context, caller auth.Caller, id uuid.UUID) ([]byte, string, error)
	ListPrescriptionsByPatient(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]records.Prescription, error)
	ListPrescriptionsByDoctor(ctx context.Context, caller auth.Caller, doctorID uuid.UUID, limit, offset int) ([]records.Prescription, error)
}

type RouterConfig struct {
	Catalog      CatalogService
	Slots        SlotService
	Appointments AppointmentService
	Payments     PaymentService
	Records      RecordService
	Verifier     *auth.Verifier
	TokenTTL     time.Duration
	Postgres     Pinger
	Redis        Pinger
	Metrics      *metrics.Recorder
	MetricsPage  http.Handler
	Logger       zerolog.Logger
	Env          string
	Version      string
}

type handlers struct {
	catalog      CatalogService
	slots        SlotService
	appointments AppointmentService
	payments     PaymentService
	records      RecordService
	verifier     *auth.Verifier
	tokenTTL     time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := &handlers{
		catalog:      cfg.Catalog,
		slots:        cfg.Slots,
		appointments: cfg.Appointments,
		payments:     cfg.Payments,
		records:      cfg.Records,
		verifier:     cfg.Verifier,
		tokenTTL:     cfg.TokenTTL,
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = 24 * time.Hour
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.MetricsPage != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsPage)
	}

	// Public endpoints
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Get("/centers", h.listCenters)
	r.Get("/centers/{id}", h.getCenter)
	r.Get("/centers/{id}/tests", h.listCenterTests)
	r.Get("/doctors", h.listDoctors)
	r.Get("/doctors/{id}", h.getDoctor)
	r.Get("/doctors/{id}/slots", h.listSlots)
	r.Get("/tests/{id}", h.getTest)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Verifier.Middleware(writeError))

		r.Get("/me", h.me)
		r.Patch("/patients/{id}", h.updateProfile)

		// Catalog
		r.Post("/centers", h.createCenter)
		r.Patch("/centers/{id}", h.updateCenter)
		r.Delete("/centers/{id}", h.deleteCenter)
		r.Post("/centers/{id}/doctors", h.linkDoctor)
		r.Post("/centers/{id}/staff", h.createStaff)
		r.Post("/doctors", h.createDoctor)
		r.Patch("/doctors/{id}", h.updateDoctor)
		r.Delete("/doctors/{id}", h.deleteDoctor)
		r.Post("/doctors/{id}/slots", h.addSlots)
		r.Post("/tests", h.createTest)
		r.Patch("/tests/{id}", h.updateTest)
		r.Delete("/tests/{id}", h.deleteTest)

		// Appointment endpoints
		r.Post("/appointments/doctor", h.bookDoctor)
		r.Post("/appointments/test", h.bookTest)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Post("/appointments/doctor/{id}/complete", h.completeDoctor)
		r.Post("/appointments/test/{id}/complete", h.completeTest)
		r.Get("/patients/{id}/appointments", h.listPatientAppointments)
		r.Get("/patients/{id}/payments", h.paymentHistory)
		r.Get("/doctors/{id}/appointments", h.listDoctorAppointments)
		r.Get("/centers/{id}/appointments", h.listCenterAppointments)

		// Payments
		r.Post("/payments/checkout", h.createCheckout)
		r.Post("/payments/intent", h.createPaymentIntent)
		r.Post("/payments/confirm", h.confirmPayment)

		// Records
		r.Post("/invoices", h.createInvoice)
		r.Get("/invoices/{id}", h.getInvoice)
		r.Patch("/invoices/{id}", h.updateInvoice)
		r.Get("/invoices/{id}/pdf", h.invoicePDF)
		r.Get("/patients/{id}/invoices", h.listInvoices)
		r.Post("/prescriptions", h.createPrescription)
		r.Get("/prescriptions/{id}", h.getPrescription)
		r.Patch("/prescriptions/{id}", h.updatePrescription)
		r.Get("/prescriptions/{id}/pdf", h.prescriptionPDF)
		r.Get("/patients/{id}/prescriptions", h.listPatientPrescriptions)
		r.Get("/doctors/{id}/prescriptions", h.listDoctorPrescriptions)
	})

	return r
}
