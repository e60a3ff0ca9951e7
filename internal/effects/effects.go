// Package effects runs the document and email work that follows a committed
// appointment change. Failures are reported to the caller and never undo the change.
package effects

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/documents"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
	"github.com/Hasnainmunshi/diagnostic-management/internal/notify"
	"github.com/Hasnainmunshi/diagnostic-management/internal/records"
)

const (
	StageInvoice        = "invoice"
	StagePatientEmail   = "patient_email"
	StageDoctorEmail    = "doctor_email"
	StageCompletedEmail = "completed_email"
	StageCancelledEmail = "cancelled_email"
)

// Invoicer issues the paid invoice for an appointment and returns the rendered PDF.
type Invoicer interface {
	InvoiceForAppointment(ctx context.Context, a appointment.Appointment) (*records.Invoice, []byte, error)
}

type Dispatcher struct {
	invoices Invoicer
	mailer   notify.Mailer
	metrics  *metrics.Recorder
	currency string
	loc      *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(invoices Invoicer, mailer notify.Mailer, cfg config.Config, logger zerolog.Logger, rec *metrics.Recorder) *Dispatcher {
	return &Dispatcher{
		invoices: invoices,
		mailer:   mailer,
		metrics:  rec,
		currency: cfg.Stripe.Currency,
		loc:      cfg.Zone(),
		logger:   logger.With().Str("component", "effects").Logger(),
		now:      time.Now,
	}
}

type run struct {
	d      *Dispatcher
	a      appointment.Appointment
	failed []appointment.SideEffectFailure
}

func (d *Dispatcher) start(a appointment.Appointment) *run {
	return &run{d: d, a: a}
}

// step records the outcome of one stage. A disabled mailer counts as skipped.
func (r *run) step(stage string, err error) bool {
	if errors.As(err, &notify.ErrDisabled{}) {
		r.d.logger.Debug().Str("appointment_id", r.a.ID.String()).Str("stage", stage).Msg("email disabled, skipped")
		return true
	}
	r.d.metrics.SideEffect(stage, err)
	if err == nil {
		return true
	}

	r.d.logger.Warn().
		Err(err).
		Str("appointment_id", r.a.ID.String()).
		Str("kind", string(r.a.Kind)).
		Str("stage", stage).
		Msg("side effect failed")
	r.failed = append(r.failed, appointment.SideEffectFailure{
		AppointmentID: r.a.ID,
		Stage:         stage,
		Message:       err.Error(),
	})
	return false
}

func (d *Dispatcher) invite(a appointment.Appointment) []byte {
	return documents.CalendarInvite(documents.CalendarEvent{
		UID:            a.ID.String(),
		Summary:        "Appointment with " + a.Snapshot.SubjectName,
		Description:    a.Snapshot.SubjectDetail,
		Location:       joinNonEmpty(a.Snapshot.CenterName, a.Snapshot.CenterAddress),
		Start:          a.StartsAt(d.loc),
		OrganizerName:  a.Snapshot.CenterName,
		OrganizerEmail: a.Snapshot.SubjectEmail,
		AttendeeEmails: []string{a.Snapshot.PatientEmail},
	}, d.now())
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + ", " + b
}

// Paid issues the invoice and sends payment confirmations.
func (d *Dispatcher) Paid(ctx context.Context, a appointment.Appointment) []appointment.SideEffectFailure {
	r := d.start(a)
	v := notify.VisitOf(a, d.currency)

	inv, pdf, err := d.invoices.InvoiceForAppointment(ctx, a)
	r.step(StageInvoice, err)

	switch a.Kind {
	case appointment.KindDoctor:
		r.step(StagePatientEmail, d.mailer.Send(ctx, notify.DoctorPaymentPatient(v, d.invite(a))))
		if a.Snapshot.SubjectEmail != "" {
			r.step(StageDoctorEmail, d.mailer.Send(ctx, notify.DoctorPaymentDoctor(v)))
		}
	case appointment.KindTest:
		name := ""
		if inv != nil && len(pdf) > 0 {
			name = "invoice_" + inv.ID.String() + ".pdf"
		}
		r.step(StagePatientEmail, d.mailer.Send(ctx, notify.TestPaymentReceipt(v, pdf, name)))
	}
	return r.failed
}

func (d *Dispatcher) Completed(ctx context.Context, a appointment.Appointment) []appointment.SideEffectFailure {
	r := d.start(a)
	var invite []byte
	if a.Kind == appointment.KindDoctor {
		invite = d.invite(a)
	}
	r.step(StageCompletedEmail, d.mailer.Send(ctx, notify.AppointmentCompleted(notify.VisitOf(a, d.currency), invite)))
	return r.failed
}

func (d *Dispatcher) Cancelled(ctx context.Context, a appointment.Appointment) []appointment.SideEffectFailure {
	r := d.start(a)
	r.step(StageCancelledEmail, d.mailer.Send(ctx, notify.AppointmentCancelled(notify.VisitOf(a, d.currency))))
	return r.failed
}
