package records

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/documents"
	"github.com/Hasnainmunshi/diagnostic-management/internal/notify"
)

type memRepo struct {
	mu            sync.Mutex
	invoices      map[uuid.UUID]*Invoice
	prescriptions map[uuid.UUID]*Prescription
}

func newMemRepo() *memRepo {
	return &memRepo{
		invoices:      map[uuid.UUID]*Invoice{},
		prescriptions: map[uuid.UUID]*Prescription{},
	}
}

func (m *memRepo) CreateInvoice(_ context.Context, inv *Invoice) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.AppointmentID != nil {
		for _, existing := range m.invoices {
			if existing.AppointmentID != nil && *existing.AppointmentID == *inv.AppointmentID {
				return false, nil
			}
		}
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return true, nil
}

func (m *memRepo) GetInvoice(_ context.Context, id uuid.UUID) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memRepo) GetInvoiceByAppointment(_ context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.AppointmentID != nil && *inv.AppointmentID == appointmentID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (m *memRepo) ListInvoices(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) SetInvoiceDocument(_ context.Context, id uuid.UUID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.DocumentKey = key
	return nil
}

func (m *memRepo) SetInvoiceStatus(_ context.Context, id uuid.UUID, status InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.PaymentStatus = status
	return nil
}

func (m *memRepo) CreatePrescription(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.prescriptions {
		if existing.AppointmentID == p.AppointmentID {
			return ErrPrescriptionExists
		}
	}
	p.CreatedAt = fixedNow
	p.UpdatedAt = fixedNow
	cp := *p
	m.prescriptions[p.ID] = &cp
	return nil
}

func (m *memRepo) GetPrescription(_ context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) UpdatePrescription(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prescriptions[p.ID]; !ok {
		return ErrPrescriptionNotFound
	}
	p.UpdatedAt = fixedNow.Add(time.Hour)
	cp := *p
	m.prescriptions[p.ID] = &cp
	return nil
}

func (m *memRepo) ListPrescriptions(_ context.Context, f PrescriptionFilter) ([]Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Prescription
	for _, p := range m.prescriptions {
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && p.DoctorID != *f.DoctorID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

type memAppts map[uuid.UUID]appointment.Appointment

func (m memAppts) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := m[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (m memAppts) GetMany(_ context.Context, ids []uuid.UUID) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, id := range ids {
		if a, ok := m[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type memPatients map[uuid.UUID]catalog.Person

func (m memPatients) GetPatient(_ context.Context, id uuid.UUID) (*catalog.Person, error) {
	p, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("patient", id.String())
	}
	return &p, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

// capturingRenderer records the data of the last rendered document.
type capturingRenderer struct {
	documents.Renderer
	mu           sync.Mutex
	prescription documents.PrescriptionData
	invoice      documents.InvoiceData
}

func (r *capturingRenderer) Invoice(d documents.InvoiceData) ([]byte, error) {
	r.mu.Lock()
	r.invoice = d
	r.mu.Unlock()
	return r.Renderer.Invoice(d)
}

func (r *capturingRenderer) Prescription(d documents.PrescriptionData) ([]byte, error) {
	r.mu.Lock()
	r.prescription = d
	r.mu.Unlock()
	return r.Renderer.Prescription(d)
}

var fixedNow = time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *memRepo
	appts   memAppts
	store   *documents.FileStore
	mailer  *recordingMailer
	render  *capturingRenderer
	patient uuid.UUID
	doctor  uuid.UUID
	center  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := documents.NewFileStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		repo:    newMemRepo(),
		appts:   memAppts{},
		store:   store,
		mailer:  &recordingMailer{},
		render:  &capturingRenderer{Renderer: documents.NewPDFRenderer("Test Clinic")},
		patient: uuid.New(),
		doctor:  uuid.New(),
		center:  uuid.New(),
	}
	patients := memPatients{f.patient: {ID: f.patient, Name: "Ada Patient", Email: "ada@example.com", Address: "1 Main St"}}

	cfg := config.Config{InvoiceDueDays: 7, SideEffectTimeout: time.Second}
	cfg.Stripe.Currency = "usd"

	f.svc = NewService(f.repo, f.appts, patients, f.render, store, f.mailer, cfg, zerolog.Nop(), nil)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) add(kind appointment.Kind, status appointment.Status, pay appointment.PaymentStatus, amount int64) appointment.Appointment {
	subject := uuid.New()
	name, detail := "Blood Panel", "Pathology"
	if kind == appointment.KindDoctor {
		subject, name, detail = f.doctor, "Dr. Who", "Cardiology"
	}
	a := appointment.Appointment{
		ID:            uuid.New(),
		Kind:          kind,
		PatientID:     f.patient,
		CenterID:      f.center,
		SubjectID:     subject,
		Date:          time.Date(2030, 1, 12, 0, 0, 0, 0, time.UTC),
		Time:          "10:00",
		Amount:        amount,
		Status:        status,
		PaymentStatus: pay,
		Snapshot: appointment.Snapshot{
			PatientName:   "Ada Patient",
			PatientEmail:  "ada@example.com",
			SubjectName:   name,
			SubjectDetail: detail,
			CenterName:    "Central Lab",
		},
	}
	f.appts[a.ID] = a
	return a
}

func (f *fixture) patientCaller() auth.Caller { return auth.Caller{ID: f.patient, Role: auth.RoleUser} }
func (f *fixture) doctorCaller() auth.Caller  { return auth.Caller{ID: f.doctor, Role: auth.RoleDoctor} }
func (f *fixture) staffCaller(center uuid.UUID) auth.Caller {
	return auth.Caller{ID: uuid.New(), Role: auth.RoleEmployee, CenterID: center}
}

func validInput(apptID uuid.UUID) PrescriptionInput {
	return PrescriptionInput{
		AppointmentID: apptID.String(),
		Symptoms:      []string{" cough ", ""},
		Examinations:  []string{"chest x-ray"},
		Medicines:     []Medicine{{Name: "Amoxicillin", Dosage: "500mg", Duration: "7 days"}},
		Notes:         "rest",
	}
}

func TestInvoiceForAppointmentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindTest, appointment.StatusBooked, appointment.PaymentPaid, 4500)

	inv, pdf, err := f.svc.InvoiceForAppointment(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, inv.PaymentStatus)
	assert.Equal(t, int64(4500), inv.Total)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), inv.DueDate)
	assert.Equal(t, "%PDF-", string(pdf[:5]))

	stored, err := f.store.Get(context.Background(), documents.InvoiceKey(inv.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, pdf, stored)

	again, _, err := f.svc.InvoiceForAppointment(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)
	assert.Len(t, f.repo.invoices, 1)
}

func TestCreateInvoiceStatusFollowsItems(t *testing.T) {
	f := newFixture(t)
	paid := f.add(appointment.KindTest, appointment.StatusBooked, appointment.PaymentPaid, 1000)
	unpaid := f.add(appointment.KindTest, appointment.StatusPending, appointment.PaymentUnpaid, 2500)

	inv, err := f.svc.CreateInvoice(context.Background(), f.patientCaller(), f.patient, []string{paid.ID.String(), unpaid.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, InvoiceUnpaid, inv.PaymentStatus)
	assert.Equal(t, int64(3500), inv.Total)
	assert.Len(t, inv.Items, 2)
	assert.Nil(t, inv.AppointmentID)

	inv, err = f.svc.CreateInvoice(context.Background(), f.patientCaller(), f.patient, []string{paid.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, inv.PaymentStatus)
}

func TestCreateInvoiceRejections(t *testing.T) {
	f := newFixture(t)
	doctorAppt := f.add(appointment.KindDoctor, appointment.StatusPending, appointment.PaymentUnpaid, 1000)
	test := f.add(appointment.KindTest, appointment.StatusPending, appointment.PaymentUnpaid, 1000)

	cases := []struct {
		name   string
		caller auth.Caller
		ids    []string
		kind   error
	}{
		{"empty", f.patientCaller(), nil, apperr.ErrValidation},
		{"bad uuid", f.patientCaller(), []string{"nope"}, apperr.ErrValidation},
		{"doctor appointment", f.patientCaller(), []string{doctorAppt.ID.String()}, apperr.ErrValidation},
		{"unknown", f.patientCaller(), []string{uuid.NewString()}, apperr.ErrNotFound},
		{"other patient", auth.Caller{ID: uuid.New(), Role: auth.RoleUser}, []string{test.ID.String()}, apperr.ErrOwnership},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateInvoice(context.Background(), tc.caller, f.patient, tc.ids)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestCreateInvoiceBillsRepeatedIDsOnce(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindTest, appointment.StatusBooked, appointment.PaymentPaid, 1200)

	inv, err := f.svc.CreateInvoice(context.Background(), f.patientCaller(), f.patient,
		[]string{a.ID.String(), " " + a.ID.String() + " ", a.ID.String()})
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, a.ID, inv.Items[0].AppointmentID)
	assert.Equal(t, int64(1200), inv.Total)
}

func TestCreateInvoiceRejectsCancelledAppointment(t *testing.T) {
	f := newFixture(t)
	live := f.add(appointment.KindTest, appointment.StatusPending, appointment.PaymentUnpaid, 1000)
	cancelled := f.add(appointment.KindTest, appointment.StatusCancelled, appointment.PaymentUnpaid, 1000)

	_, err := f.svc.CreateInvoice(context.Background(), f.patientCaller(), f.patient,
		[]string{live.ID.String(), cancelled.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrAlreadyTerminal)
	assert.Empty(t, f.repo.invoices)
}

func TestInvoicesAreScopedToStaffCenter(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindTest, appointment.StatusBooked, appointment.PaymentPaid, 1000)
	ctx := context.Background()
	own, other := f.staffCaller(f.center), f.staffCaller(uuid.New())

	_, err := f.svc.CreateInvoice(ctx, other, f.patient, []string{a.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrOwnership)

	inv, err := f.svc.CreateInvoice(ctx, own, f.patient, []string{a.ID.String()})
	require.NoError(t, err)

	_, err = f.svc.GetInvoice(ctx, own, inv.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetInvoice(ctx, other, inv.ID)
	assert.ErrorIs(t, err, apperr.ErrOwnership)
	_, _, err = f.svc.InvoicePDF(ctx, other, inv.ID)
	assert.ErrorIs(t, err, apperr.ErrOwnership)

	listed, err := f.svc.ListInvoices(ctx, own, f.patient, 10, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	listed, err = f.svc.ListInvoices(ctx, other, f.patient, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = f.svc.ListInvoices(ctx, auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}, f.patient, 10, 0)
	assert.ErrorIs(t, err, apperr.ErrOwnership)
}

func TestMarkInvoicePaidReplacesDocument(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindTest, appointment.StatusPending, appointment.PaymentUnpaid, 1000)
	ctx := context.Background()

	inv, err := f.svc.CreateInvoice(ctx, f.patientCaller(), f.patient, []string{a.ID.String()})
	require.NoError(t, err)
	require.Equal(t, InvoiceUnpaid, inv.PaymentStatus)

	before, _, err := f.svc.InvoicePDF(ctx, f.patientCaller(), inv.ID)
	require.NoError(t, err)
	assert.False(t, f.render.invoice.Paid)

	_, err = f.svc.MarkInvoicePaid(ctx, f.patientCaller(), inv.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.MarkInvoicePaid(ctx, f.staffCaller(uuid.New()), inv.ID)
	assert.ErrorIs(t, err, apperr.ErrOwnership)
	_, err = f.svc.MarkInvoicePaid(ctx, f.staffCaller(f.center), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	paid, err := f.svc.MarkInvoicePaid(ctx, f.staffCaller(f.center), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, paid.PaymentStatus)
	assert.Equal(t, InvoicePaid, f.repo.invoices[inv.ID].PaymentStatus)
	assert.True(t, f.render.invoice.Paid)

	after, _, err := f.svc.InvoicePDF(ctx, f.patientCaller(), inv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	stored, err := f.store.Get(ctx, documents.InvoiceKey(inv.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, stored, after)

	again, err := f.svc.MarkInvoicePaid(ctx, auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin}, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, again.PaymentStatus)
}

func TestInvoicePDFRendersWhenStoredCopyMissing(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindTest, appointment.StatusPending, appointment.PaymentUnpaid, 1000)

	inv, err := f.svc.CreateInvoice(context.Background(), f.patientCaller(), f.patient, []string{a.ID.String()})
	require.NoError(t, err)

	pdf, name, err := f.svc.InvoicePDF(context.Background(), f.patientCaller(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice_"+inv.ID.String()+".pdf", name)
	assert.Equal(t, "%PDF-", string(pdf[:5]))
	assert.Equal(t, documents.InvoiceKey(inv.ID.String()), f.repo.invoices[inv.ID].DocumentKey)

	_, _, err = f.svc.InvoicePDF(context.Background(), auth.Caller{ID: uuid.New(), Role: auth.RoleUser}, inv.ID)
	assert.ErrorIs(t, err, apperr.ErrOwnership)

	_, _, err = f.svc.InvoicePDF(context.Background(), f.patientCaller(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListInvoicesOwnership(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListInvoices(context.Background(), auth.Caller{ID: uuid.New(), Role: auth.RoleUser}, f.patient, 10, 0)
	assert.ErrorIs(t, err, apperr.ErrOwnership)

	_, err = f.svc.ListInvoices(context.Background(), auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin}, f.patient, 10, 0)
	assert.NoError(t, err)
}

func TestCreatePrescriptionEmailsPatient(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindDoctor, appointment.StatusCompleted, appointment.PaymentPaid, 5000)

	res, err := f.svc.CreatePrescription(context.Background(), f.doctorCaller(), validInput(a.ID))
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{"cough"}, res.Prescription.Symptoms)
	assert.Equal(t, f.patient, res.Prescription.PatientID)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "prescription_"+res.Prescription.ID.String()+".pdf", msg.Attachments[0].Filename)

	_, err = f.store.Get(context.Background(), documents.PrescriptionKey(res.Prescription.ID.String()))
	assert.NoError(t, err)

	_, err = f.svc.CreatePrescription(context.Background(), f.doctorCaller(), validInput(a.ID))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreatePrescriptionReportsEmailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = notify.ErrSend{Provider: "test", Err: errors.New("relay down")}
	a := f.add(appointment.KindDoctor, appointment.StatusCompleted, appointment.PaymentPaid, 5000)

	res, err := f.svc.CreatePrescription(context.Background(), f.doctorCaller(), validInput(a.ID))
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, StagePrescriptionEmail, res.Failed[0].Stage)
	assert.Contains(t, f.repo.prescriptions, res.Prescription.ID)
}

func TestCreatePrescriptionDisabledMailIsNotAFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = notify.ErrDisabled{}
	a := f.add(appointment.KindDoctor, appointment.StatusCompleted, appointment.PaymentPaid, 5000)

	res, err := f.svc.CreatePrescription(context.Background(), f.doctorCaller(), validInput(a.ID))
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
}

func TestCreatePrescriptionRules(t *testing.T) {
	f := newFixture(t)
	completed := f.add(appointment.KindDoctor, appointment.StatusCompleted, appointment.PaymentPaid, 5000)
	booked := f.add(appointment.KindDoctor, appointment.StatusBooked, appointment.PaymentPaid, 5000)
	test := f.add(appointment.KindTest, appointment.StatusCompleted, appointment.PaymentPaid, 5000)

	noSymptoms := validInput(completed.ID)
	noSymptoms.Symptoms = []string{"  "}
	badMedicine := validInput(completed.ID)
	badMedicine.Medicines = []Medicine{{Name: "Ibuprofen"}}

	cases := []struct {
		name   string
		caller auth.Caller
		in     PrescriptionInput
		kind   error
	}{
		{"patient caller", f.patientCaller(), validInput(completed.ID), apperr.ErrForbidden},
		{"missing id", f.doctorCaller(), PrescriptionInput{}, apperr.ErrValidation},
		{"no symptoms", f.doctorCaller(), noSymptoms, apperr.ErrValidation},
		{"incomplete medicine", f.doctorCaller(), badMedicine, apperr.ErrValidation},
		{"unknown appointment", f.doctorCaller(), validInput(uuid.New()), apperr.ErrNotFound},
		{"test appointment", f.doctorCaller(), validInput(test.ID), apperr.ErrValidation},
		{"not completed", f.doctorCaller(), validInput(booked.ID), apperr.ErrValidation},
		{"other doctor", auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}, validInput(completed.ID), apperr.ErrOwnership},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePrescription(context.Background(), tc.caller, tc.in)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
	assert.Empty(t, f.repo.prescriptions)
}

func TestUpdateAndReadPrescription(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindDoctor, appointment.StatusCompleted, appointment.PaymentPaid, 5000)
	res, err := f.svc.CreatePrescription(context.Background(), f.doctorCaller(), validInput(a.ID))
	require.NoError(t, err)
	id := res.Prescription.ID

	notes := "  follow up in a week "
	updated, err := f.svc.UpdatePrescription(context.Background(), f.doctorCaller(), id, PrescriptionUpdate{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "follow up in a week", updated.Notes)

	empty := []Medicine{}
	_, err = f.svc.UpdatePrescription(context.Background(), f.doctorCaller(), id, PrescriptionUpdate{Medicines: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.UpdatePrescription(context.Background(), f.patientCaller(), id, PrescriptionUpdate{Notes: &notes})
	assert.ErrorIs(t, err, apperr.ErrOwnership)

	got, err := f.svc.GetPrescription(context.Background(), f.patientCaller(), id)
	require.NoError(t, err)
	assert.Equal(t, "follow up in a week", got.Notes)

	staff := auth.Caller{ID: uuid.New(), Role: auth.RoleEmployee, CenterID: f.center}
	_, err = f.svc.GetPrescription(context.Background(), staff, id)
	assert.NoError(t, err)

	staff.CenterID = uuid.New()
	_, err = f.svc.GetPrescription(context.Background(), staff, id)
	assert.ErrorIs(t, err, apperr.ErrOwnership)

	pdf, name, err := f.svc.PrescriptionPDF(context.Background(), f.patientCaller(), id)
	require.NoError(t, err)
	assert.Equal(t, "prescription_"+id.String()+".pdf", name)
	assert.Equal(t, "%PDF-", string(pdf[:5]))

	meds := []Medicine{{Name: "Azithromycin", Dosage: "250mg", Duration: "5 days"}}
	_, err = f.svc.UpdatePrescription(context.Background(), f.doctorCaller(), id, PrescriptionUpdate{Medicines: &meds})
	require.NoError(t, err)
	require.Len(t, f.render.prescription.Medicines, 1)
	assert.Equal(t, "Azithromycin", f.render.prescription.Medicines[0].Name)
	assert.Equal(t, "follow up in a week", f.render.prescription.Notes)

	changed, _, err := f.svc.PrescriptionPDF(context.Background(), f.patientCaller(), id)
	require.NoError(t, err)
	assert.NotEqual(t, pdf, changed)
	stored, err := f.store.Get(context.Background(), documents.PrescriptionKey(id.String()))
	require.NoError(t, err)
	assert.Equal(t, stored, changed)
}

// failingStore accepts reads and deletes but rejects every write.
type failingStore struct {
	documents.Store
}

func (failingStore) Put(context.Context, string, string, []byte) error {
	return errors.New("bucket unavailable")
}

func TestUpdatePrescriptionDropsStaleCopyWhenStoreFails(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindDoctor, appointment.StatusCompleted, appointment.PaymentPaid, 5000)
	res, err := f.svc.CreatePrescription(context.Background(), f.doctorCaller(), validInput(a.ID))
	require.NoError(t, err)
	id := res.Prescription.ID

	f.svc.store = failingStore{Store: f.store}
	notes := "double the dose"
	_, err = f.svc.UpdatePrescription(context.Background(), f.doctorCaller(), id, PrescriptionUpdate{Notes: &notes})
	require.NoError(t, err)

	_, err = f.store.Get(context.Background(), documents.PrescriptionKey(id.String()))
	assert.ErrorIs(t, err, documents.ErrNotFound)

	_, _, err = f.svc.PrescriptionPDF(context.Background(), f.patientCaller(), id)
	require.NoError(t, err)
	assert.Equal(t, "double the dose", f.render.prescription.Notes)
}

func TestListPrescriptions(t *testing.T) {
	f := newFixture(t)
	a := f.add(appointment.KindDoctor, appointment.StatusCompleted, appointment.PaymentPaid, 5000)
	_, err := f.svc.CreatePrescription(context.Background(), f.doctorCaller(), validInput(a.ID))
	require.NoError(t, err)

	byPatient, err := f.svc.ListPrescriptionsByPatient(context.Background(), f.patientCaller(), f.patient, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byPatient, 1)

	byDoctor, err := f.svc.ListPrescriptionsByDoctor(context.Background(), f.doctorCaller(), f.doctor, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byDoctor, 1)

	_, err = f.svc.ListPrescriptionsByDoctor(context.Background(), f.patientCaller(), f.doctor, 0, 0)
	assert.ErrorIs(t, err, apperr.ErrOwnership)
}
