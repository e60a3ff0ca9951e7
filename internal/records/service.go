// Package records issues invoices and prescriptions for appointments.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/documents"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
	"github.com/Hasnainmunshi/diagnostic-management/internal/notify"
)

// Side effect stages reported for prescriptions.
const (
	StagePrescriptionPDF   = "prescription_pdf"
	StagePrescriptionStore = "prescription_store"
	StagePrescriptionEmail = "prescription_email"
)

type Appointments interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]appointment.Appointment, error)
}

type Patients interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*catalog.Person, error)
}

type Service struct {
	repo     Repository
	appts    Appointments
	patients Patients
	renderer documents.Renderer
	store    documents.Store
	mailer   notify.Mailer
	metrics  *metrics.Recorder
	cfg      config.Config
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(
	repo Repository,
	appts Appointments,
	patients Patients,
	renderer documents.Renderer,
	store documents.Store,
	mailer notify.Mailer,
	cfg config.Config,
	logger zerolog.Logger,
	rec *metrics.Recorder,
) *Service {
	return &Service{
		repo:     repo,
		appts:    appts,
		patients: patients,
		renderer: renderer,
		store:    store,
		mailer:   mailer,
		metrics:  rec,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) dueDate(issued time.Time) time.Time {
	days := s.cfg.InvoiceDueDays
	if days <= 0 {
		days = 7
	}
	return issued.AddDate(0, 0, days)
}

func itemOf(a appointment.Appointment) InvoiceItem {
	return InvoiceItem{
		AppointmentID: a.ID,
		SubjectID:     a.SubjectID,
		Name:          a.Snapshot.SubjectName,
		Category:      a.Snapshot.SubjectDetail,
		Price:         a.Amount,
	}
}

// Invoices

// InvoiceForAppointment issues the paid invoice for a, renders it and stores
// the PDF. Calling it again for the same appointment returns the existing
// invoice.
func (s *Service) InvoiceForAppointment(ctx context.Context, a appointment.Appointment) (*Invoice, []byte, error) {
	now := s.now().UTC()
	apptID := a.ID
	inv := &Invoice{
		ID:            uuid.New(),
		PatientID:     a.PatientID,
		AppointmentID: &apptID,
		Items:         []InvoiceItem{itemOf(a)},
		Total:         a.Amount,
		PaymentStatus: InvoicePaid,
		DueDate:       s.dueDate(now),
		CreatedAt:     now,
	}

	created, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, nil, err
	}
	if !created {
		inv, err = s.repo.GetInvoiceByAppointment(ctx, a.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	pdf, err := s.renderInvoice(ctx, inv, &a.Snapshot, false)
	if err != nil {
		return inv, nil, err
	}
	return inv, pdf, nil
}

// renderInvoice renders inv and stores the result when it has not been
// stored yet, or always when replace is set.
func (s *Service) renderInvoice(ctx context.Context, inv *Invoice, snap *appointment.Snapshot, replace bool) ([]byte, error) {
	data := documents.InvoiceData{
		Number:   inv.ID.String(),
		Items:    make([]documents.InvoiceLine, 0, len(inv.Items)),
		Total:    inv.Total,
		Paid:     inv.PaymentStatus == InvoicePaid,
		Currency: s.cfg.Stripe.Currency,
		IssuedAt: inv.CreatedAt,
		DueDate:  inv.DueDate,
	}
	for _, it := range inv.Items {
		data.Items = append(data.Items, documents.InvoiceLine{Name: it.Name, Category: it.Category, Price: it.Price})
	}

	if snap != nil {
		data.PatientName = snap.PatientName
		data.PatientEmail = snap.PatientEmail
		data.CenterName = snap.CenterName
		data.CenterAddress = snap.CenterAddress
	} else if p, err := s.patients.GetPatient(ctx, inv.PatientID); err == nil {
		data.PatientName = p.Name
		data.PatientEmail = p.Email
		data.PatientAddress = p.Address
	}

	pdf, err := s.renderer.Invoice(data)
	if err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}

	if inv.DocumentKey == "" || replace {
		key := documents.InvoiceKey(inv.ID.String())
		if err := s.store.Put(ctx, key, "application/pdf", pdf); err != nil {
			return pdf, fmt.Errorf("store invoice: %w", err)
		}
		if inv.DocumentKey != key {
			if err := s.repo.SetInvoiceDocument(ctx, inv.ID, key); err != nil {
				return pdf, err
			}
			inv.DocumentKey = key
		}
	}
	return pdf, nil
}

// canSeePatient reports whether caller may act on a patient's invoices at
// all. Center staff pass here and are narrowed to their own center by
// canSeeInvoice.
func canSeePatient(c auth.Caller, patientID uuid.UUID) bool {
	return c.Role == auth.RoleAdmin || c.IsCenterStaff() || (c.Role == auth.RoleUser && c.ID == patientID)
}

// billsCenter reports whether inv bills at least one appointment held at centerID.
func (s *Service) billsCenter(ctx context.Context, inv *Invoice, centerID uuid.UUID) (bool, error) {
	if centerID == uuid.Nil {
		return false, nil
	}
	ids := make([]uuid.UUID, 0, len(inv.Items))
	for _, it := range inv.Items {
		ids = append(ids, it.AppointmentID)
	}
	appts, err := s.appts.GetMany(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("load appointments: %w", err)
	}
	for _, a := range appts {
		if a.CenterID == centerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) canSeeInvoice(ctx context.Context, c auth.Caller, inv *Invoice) (bool, error) {
	switch {
	case c.Role == auth.RoleAdmin:
		return true, nil
	case c.Role == auth.RoleUser:
		return c.ID == inv.PatientID, nil
	case c.IsCenterStaff():
		return s.billsCenter(ctx, inv, c.CenterID)
	}
	return false, nil
}

// CreateInvoice bills a patient's test appointments on one invoice. The
// invoice is paid only when every appointment on it is paid. Repeated ids
// are billed once. Center staff may only bill appointments at their center.
func (s *Service) CreateInvoice(ctx context.Context, caller auth.Caller, patientID uuid.UUID, rawIDs []string) (*Invoice, error) {
	if !canSeePatient(caller, patientID) {
		return nil, apperr.Ownership(patientID.String())
	}
	if len(rawIDs) == 0 {
		return nil, apperr.Validation("testAppointments", "at least one test appointment is required")
	}

	ids := make([]uuid.UUID, 0, len(rawIDs))
	seen := make(map[uuid.UUID]bool, len(rawIDs))
	for _, r := range rawIDs {
		id, err := uuid.Parse(strings.TrimSpace(r))
		if err != nil {
			return nil, apperr.Validation("testAppointments", fmt.Sprintf("%q is not a valid UUID", r))
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	appts, err := s.appts.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	byID := make(map[uuid.UUID]appointment.Appointment, len(appts))
	for _, a := range appts {
		byID[a.ID] = a
	}

	now := s.now().UTC()
	inv := &Invoice{
		ID:            uuid.New(),
		PatientID:     patientID,
		PaymentStatus: InvoicePaid,
		DueDate:       s.dueDate(now),
		CreatedAt:     now,
	}
	for _, id := range ids {
		a, ok := byID[id]
		switch {
		case !ok:
			return nil, apperr.NotFound("appointment", id.String())
		case a.Kind != appointment.KindTest:
			return nil, apperr.Validation("testAppointments", fmt.Sprintf("appointment %s is not a test appointment", id))
		case a.PatientID != patientID:
			return nil, apperr.Ownership(id.String())
		case caller.IsCenterStaff() && a.CenterID != caller.CenterID:
			return nil, apperr.Ownership(id.String())
		case a.Status == appointment.StatusCancelled:
			return nil, apperr.AlreadyTerminal(id.String(), string(a.Status))
		}
		inv.Items = append(inv.Items, itemOf(a))
		inv.Total += a.Amount
		if !a.Paid() {
			inv.PaymentStatus = InvoiceUnpaid
		}
	}

	if _, err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("patient_id", patientID.String()).
		Int64("total", inv.Total).
		Msg("invoice created")
	return inv, nil
}

// ListInvoices lists a patient's invoices, newest first. Center staff only
// see the invoices that bill their center.
func (s *Service) ListInvoices(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]Invoice, error) {
	if !canSeePatient(caller, patientID) {
		return nil, apperr.Ownership(patientID.String())
	}
	limit, offset = clampPage(limit, offset)
	invoices, err := s.repo.ListInvoices(ctx, patientID, limit, offset)
	if err != nil || !caller.IsCenterStaff() {
		return invoices, err
	}

	out := invoices[:0]
	for i := range invoices {
		ok, err := s.billsCenter(ctx, &invoices[i], caller.CenterID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, invoices[i])
		}
	}
	return out, nil
}

func (s *Service) GetInvoice(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if errors.Is(err, ErrInvoiceNotFound) {
		return nil, apperr.NotFound("invoice", id.String())
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.canSeeInvoice(ctx, caller, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Ownership(id.String())
	}
	return inv, nil
}

// MarkInvoicePaid settles an invoice collected outside the payment gateway,
// for example at the center's front desk, and replaces its stored document.
// Marking a paid invoice again is a no-op.
func (s *Service) MarkInvoicePaid(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Invoice, error) {
	if err := auth.Require(caller, auth.RoleAdmin, auth.RoleDiagnostic, auth.RoleEmployee); err != nil {
		return nil, err
	}
	inv, err := s.GetInvoice(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if inv.PaymentStatus == InvoicePaid {
		return inv, nil
	}

	if err := s.repo.SetInvoiceStatus(ctx, inv.ID, InvoicePaid); err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, apperr.NotFound("invoice", id.String())
		}
		return nil, err
	}
	inv.PaymentStatus = InvoicePaid

	if _, err := s.renderInvoice(ctx, inv, nil, true); err != nil {
		s.logger.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("failed to replace stored invoice")
	}

	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("by", caller.ID.String()).
		Msg("invoice marked paid")
	return inv, nil
}

// InvoicePDF returns the stored document, rendering it again when the stored copy is missing.
func (s *Service) InvoicePDF(ctx context.Context, caller auth.Caller, id uuid.UUID) ([]byte, string, error) {
	inv, err := s.GetInvoice(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}
	filename := "invoice_" + inv.ID.String() + ".pdf"

	if inv.DocumentKey != "" {
		data, err := s.store.Get(ctx, inv.DocumentKey)
		if err == nil {
			return data, filename, nil
		}
		if !errors.Is(err, documents.ErrNotFound) {
			s.logger.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("stored invoice unreadable, rendering again")
		}
		inv.DocumentKey = ""
	}

	pdf, err := s.renderInvoice(ctx, inv, nil, false)
	if pdf == nil {
		return nil, "", err
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("failed to store rendered invoice")
	}
	return pdf, filename, nil
}

// Prescriptions

type PrescriptionInput struct {
	AppointmentID string
	Symptoms      []string
	Examinations  []string
	Medicines     []Medicine
	Notes         string
}

type PrescriptionResult struct {
	Prescription *Prescription
	Failed       []appointment.SideEffectFailure
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validateContent(symptoms []string, medicines []Medicine) error {
	if len(symptoms) == 0 {
		return apperr.Validation("symptoms", "at least one symptom is required")
	}
	if len(medicines) == 0 {
		return apperr.Validation("medicines", "at least one medicine is required")
	}
	for i, m := range medicines {
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Dosage) == "" || strings.TrimSpace(m.Duration) == "" {
			return apperr.Validation(fmt.Sprintf("medicines[%d]", i), "name, dosage and duration are required")
		}
	}
	return nil
}

// CreatePrescription records a prescription for a completed doctor
// appointment and emails it to the patient. Email and document failures are
// returned in the result and do not undo the prescription.
func (s *Service) CreatePrescription(ctx context.Context, caller auth.Caller, in PrescriptionInput) (*PrescriptionResult, error) {
	if err := auth.Require(caller, auth.RoleDoctor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.AppointmentID) == "" {
		return nil, apperr.Validation("appointmentId", "appointmentId is required")
	}
	apptID, err := uuid.Parse(in.AppointmentID)
	if err != nil {
		return nil, apperr.Validation("appointmentId", "appointmentId must be a valid UUID")
	}

	symptoms := cleanList(in.Symptoms)
	if err := validateContent(symptoms, in.Medicines); err != nil {
		return nil, err
	}

	a, err := s.appts.GetByID(ctx, apptID)
	if errors.Is(err, appointment.ErrAppointmentNotFound) {
		return nil, apperr.NotFound("appointment", apptID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	switch {
	case a.Kind != appointment.KindDoctor:
		return nil, apperr.Validation("appointmentId", "prescriptions belong to doctor appointments")
	case a.SubjectID != caller.ID:
		return nil, apperr.Ownership(apptID.String())
	case a.Status != appointment.StatusCompleted:
		return nil, apperr.Validation("appointmentId", "appointment must be completed before prescribing")
	}

	p := &Prescription{
		ID:            uuid.New(),
		AppointmentID: a.ID,
		DoctorID:      a.SubjectID,
		PatientID:     a.PatientID,
		CenterID:      a.CenterID,
		Symptoms:      symptoms,
		Examinations:  cleanList(in.Examinations),
		Medicines:     in.Medicines,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if err := s.repo.CreatePrescription(ctx, p); err != nil {
		if errors.Is(err, ErrPrescriptionExists) {
			return nil, apperr.Validation("appointmentId", "a prescription already exists for this appointment")
		}
		return nil, err
	}

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("appointment_id", a.ID.String()).
		Msg("prescription created")

	return &PrescriptionResult{Prescription: p, Failed: s.deliverPrescription(ctx, p, *a)}, nil
}

func (s *Service) prescriptionData(p *Prescription, a appointment.Appointment) documents.PrescriptionData {
	meds := make([]documents.Medicine, len(p.Medicines))
	for i, m := range p.Medicines {
		meds[i] = documents.Medicine{Name: m.Name, Dosage: m.Dosage, Duration: m.Duration}
	}
	return documents.PrescriptionData{
		ID:              p.ID.String(),
		PatientName:     a.Snapshot.PatientName,
		DoctorName:      a.Snapshot.SubjectName,
		DoctorSpecialty: a.Snapshot.SubjectDetail,
		CenterName:      a.Snapshot.CenterName,
		VisitDate:       a.DateString() + " " + a.Time,
		Symptoms:        p.Symptoms,
		Examinations:    p.Examinations,
		Medicines:       meds,
		Notes:           p.Notes,
		IssuedAt:        p.UpdatedAt,
	}
}

func (s *Service) deliverPrescription(ctx context.Context, p *Prescription, a appointment.Appointment) []appointment.SideEffectFailure {
	timeout := s.cfg.SideEffectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var failed []appointment.SideEffectFailure
	fail := func(stage string, err error) {
		s.metrics.SideEffect(stage, err)
		if err == nil {
			return
		}
		s.logger.Warn().Err(err).Str("prescription_id", p.ID.String()).Str("stage", stage).Msg("prescription side effect failed")
		failed = append(failed, appointment.SideEffectFailure{AppointmentID: a.ID, Stage: stage, Message: err.Error()})
	}

	pdf, err := s.renderer.Prescription(s.prescriptionData(p, a))
	fail(StagePrescriptionPDF, err)
	if err != nil {
		return failed
	}

	fail(StagePrescriptionStore, s.store.Put(ctx, documents.PrescriptionKey(p.ID.String()), "application/pdf", pdf))

	err = s.mailer.Send(ctx, notify.PrescriptionReady(notify.VisitOf(a, s.cfg.Stripe.Currency), pdf, "prescription_"+p.ID.String()+".pdf"))
	if errors.As(err, &notify.ErrDisabled{}) {
		err = nil
	}
	fail(StagePrescriptionEmail, err)

	return failed
}

type PrescriptionUpdate struct {
	Symptoms     *[]string
	Examinations *[]string
	Medicines    *[]Medicine
	Notes        *string
}

// UpdatePrescription corrects a prescription. Only its doctor or an admin may change it.
func (s *Service) UpdatePrescription(ctx context.Context, caller auth.Caller, id uuid.UUID, up PrescriptionUpdate) (*Prescription, error) {
	p, err := s.loadPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RoleAdmin && !(caller.Role == auth.RoleDoctor && caller.ID == p.DoctorID) {
		return nil, apperr.Ownership(id.String())
	}

	if up.Symptoms != nil {
		p.Symptoms = cleanList(*up.Symptoms)
	}
	if up.Examinations != nil {
		p.Examinations = cleanList(*up.Examinations)
	}
	if up.Medicines != nil {
		p.Medicines = *up.Medicines
	}
	if up.Notes != nil {
		p.Notes = strings.TrimSpace(*up.Notes)
	}
	if err := validateContent(p.Symptoms, p.Medicines); err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePrescription(ctx, p); err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return nil, apperr.NotFound("prescription", id.String())
		}
		return nil, err
	}

	if err := s.storePrescription(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("prescription_id", p.ID.String()).Msg("failed to replace stored prescription")
	}
	return p, nil
}

// storePrescription renders p from its current content and replaces the
// stored document. When rendering or storing fails the stale copy is
// removed so downloads render from the record instead.
func (s *Service) storePrescription(ctx context.Context, p *Prescription) error {
	key := documents.PrescriptionKey(p.ID.String())
	pdf, err := s.renderPrescription(ctx, p)
	if err == nil {
		err = s.store.Put(ctx, key, "application/pdf", pdf)
	}
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return errors.Join(err, delErr)
		}
		return err
	}
	return nil
}

func (s *Service) renderPrescription(ctx context.Context, p *Prescription) ([]byte, error) {
	a, err := s.appts.GetByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	pdf, err := s.renderer.Prescription(s.prescriptionData(p, *a))
	if err != nil {
		return nil, fmt.Errorf("render prescription: %w", err)
	}
	return pdf, nil
}

func (s *Service) loadPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetPrescription(ctx, id)
	if errors.Is(err, ErrPrescriptionNotFound) {
		return nil, apperr.NotFound("prescription", id.String())
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func canSeePrescription(c auth.Caller, p *Prescription) bool {
	switch c.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleUser:
		return c.ID == p.PatientID
	case auth.RoleDoctor:
		return c.ID == p.DoctorID
	case auth.RoleDiagnostic, auth.RoleEmployee:
		return c.CenterID == p.CenterID
	}
	return false
}

func (s *Service) GetPrescription(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Prescription, error) {
	p, err := s.loadPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeePrescription(caller, p) {
		return nil, apperr.Ownership(id.String())
	}
	return p, nil
}

// PrescriptionPDF returns the stored prescription document, rendering it
// from the record when no stored copy exists.
func (s *Service) PrescriptionPDF(ctx context.Context, caller auth.Caller, id uuid.UUID) ([]byte, string, error) {
	p, err := s.GetPrescription(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}
	filename := "prescription_" + p.ID.String() + ".pdf"

	if data, err := s.store.Get(ctx, documents.PrescriptionKey(p.ID.String())); err == nil {
		return data, filename, nil
	}

	pdf, err := s.renderPrescription(ctx, p)
	if err != nil {
		return nil, "", err
	}
	return pdf, filename, nil
}

func (s *Service) ListPrescriptionsByPatient(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]Prescription, error) {
	if caller.Role != auth.RoleAdmin && !(caller.Role == auth.RoleUser && caller.ID == patientID) {
		return nil, apperr.Ownership(patientID.String())
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPrescriptions(ctx, PrescriptionFilter{PatientID: &patientID, Limit: limit, Offset: offset})
}

func (s *Service) ListPrescriptionsByDoctor(ctx context.Context, caller auth.Caller, doctorID uuid.UUID, limit, offset int) ([]Prescription, error) {
	if caller.Role != auth.RoleAdmin && !(caller.Role == auth.RoleDoctor && caller.ID == doctorID) {
		return nil, apperr.Ownership(doctorID.String())
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPrescriptions(ctx, PrescriptionFilter{DoctorID: &doctorID, Limit: limit, Offset: offset})
}
