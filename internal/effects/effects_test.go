package effects

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
	"github.com/Hasnainmunshi/diagnostic-management/internal/notify"
	"github.com/Hasnainmunshi/diagnostic-management/internal/records"
)

type fakeInvoicer struct {
	err   error
	calls int
}

func (f *fakeInvoicer) InvoiceForAppointment(_ context.Context, a appointment.Appointment) (*records.Invoice, []byte, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return &records.Invoice{ID: uuid.New(), PatientID: a.PatientID, Total: a.Amount}, []byte("%PDF-fake"), nil
}

type mailer struct {
	mu     sync.Mutex
	sent   []notify.Message
	failTo string
	err    error
}

func (m *mailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.failTo != "" && msg.To[0] == m.failTo {
		return notify.ErrSend{Provider: "test", Err: errors.New("mailbox full")}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func appt(kind appointment.Kind) appointment.Appointment {
	return appointment.Appointment{
		ID:        uuid.New(),
		Kind:      kind,
		PatientID: uuid.New(),
		Date:      time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC),
		Time:      "09:30",
		Amount:    2000,
		Snapshot: appointment.Snapshot{
			PatientName:   "Pat",
			PatientEmail:  "pat@example.com",
			SubjectName:   "Dr. House",
			SubjectDetail: "Diagnostics",
			SubjectEmail:  "house@example.com",
			CenterName:    "Princeton",
		},
	}
}

func newDispatcher(inv Invoicer, m notify.Mailer, rec *metrics.Recorder) *Dispatcher {
	cfg := config.Config{}
	cfg.Stripe.Currency = "usd"
	d := NewDispatcher(inv, m, cfg, zerolog.Nop(), rec)
	d.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return d
}

func TestPaidDoctorEmailsPatientAndDoctor(t *testing.T) {
	inv := &fakeInvoicer{}
	m := &mailer{}
	failed := newDispatcher(inv, m, nil).Paid(context.Background(), appt(appointment.KindDoctor))

	assert.Empty(t, failed)
	assert.Equal(t, 1, inv.calls)
	require.Len(t, m.sent, 2)
	assert.Equal(t, []string{"pat@example.com"}, m.sent[0].To)
	require.Len(t, m.sent[0].Attachments, 1)
	assert.True(t, strings.Contains(string(m.sent[0].Attachments[0].Data), "BEGIN:VCALENDAR"))
	assert.Equal(t, []string{"house@example.com"}, m.sent[1].To)
}

func TestPaidTestAttachesInvoice(t *testing.T) {
	m := &mailer{}
	a := appt(appointment.KindTest)
	a.Snapshot.SubjectEmail = ""

	failed := newDispatcher(&fakeInvoicer{}, m, nil).Paid(context.Background(), a)
	assert.Empty(t, failed)
	require.Len(t, m.sent, 1)
	require.Len(t, m.sent[0].Attachments, 1)
	assert.Equal(t, "application/pdf", m.sent[0].Attachments[0].ContentType)
}

func TestPaidReportsEachFailureIndependently(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	m := &mailer{failTo: "house@example.com"}
	a := appt(appointment.KindDoctor)

	failed := newDispatcher(&fakeInvoicer{err: errors.New("disk full")}, m, rec).Paid(context.Background(), a)

	require.Len(t, failed, 2)
	assert.Equal(t, StageInvoice, failed[0].Stage)
	assert.Equal(t, a.ID, failed[0].AppointmentID)
	assert.Equal(t, StageDoctorEmail, failed[1].Stage)
	assert.Len(t, m.sent, 1, "patient email still goes out")
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "side_effects_total"))
}

func TestDisabledMailerIsNotAFailure(t *testing.T) {
	m := &mailer{err: notify.ErrDisabled{}}
	d := newDispatcher(&fakeInvoicer{}, m, nil)

	assert.Empty(t, d.Paid(context.Background(), appt(appointment.KindDoctor)))
	assert.Empty(t, d.Completed(context.Background(), appt(appointment.KindDoctor)))
	assert.Empty(t, d.Cancelled(context.Background(), appt(appointment.KindTest)))
}

func TestCompletedAndCancelledEmails(t *testing.T) {
	m := &mailer{}
	d := newDispatcher(&fakeInvoicer{}, m, nil)

	assert.Empty(t, d.Completed(context.Background(), appt(appointment.KindDoctor)))
	assert.Empty(t, d.Completed(context.Background(), appt(appointment.KindTest)))
	assert.Empty(t, d.Cancelled(context.Background(), appt(appointment.KindDoctor)))

	require.Len(t, m.sent, 3)
	assert.Len(t, m.sent[0].Attachments, 1)
	assert.Empty(t, m.sent[1].Attachments)
	assert.Equal(t, "Appointment Cancelled", m.sent[2].Subject)

	m.err = notify.ErrSend{Provider: "test", Err: errors.New("down")}
	failed := d.Cancelled(context.Background(), appt(appointment.KindDoctor))
	require.Len(t, failed, 1)
	assert.Equal(t, StageCancelledEmail, failed[0].Stage)
}
