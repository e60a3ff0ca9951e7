package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
)

func render(t *testing.T, m Message) string {
	t.Helper()
	msg, err := buildMessage("clinic@example.com", m)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBuildMessageValidation(t *testing.T) {
	ok := Message{To: []string{"a@example.com"}, Subject: "Hi", TextBody: "body"}

	_, err := buildMessage("", ok)
	assert.ErrorAs(t, err, &ErrInvalidMessage{})

	noTo := ok
	noTo.To = []string{"  "}
	_, err = buildMessage("x@example.com", noTo)
	assert.ErrorAs(t, err, &ErrInvalidMessage{})

	noBody := ok
	noBody.TextBody = ""
	_, err = buildMessage("x@example.com", noBody)
	assert.ErrorAs(t, err, &ErrInvalidMessage{})

	badAttachment := ok
	badAttachment.Attachments = []Attachment{{Filename: "empty.pdf"}}
	_, err = buildMessage("x@example.com", badAttachment)
	assert.ErrorAs(t, err, &ErrInvalidMessage{})
}

func TestBuildMessageWithAttachment(t *testing.T) {
	raw := render(t, Message{
		To:       []string{" ada@example.com "},
		Subject:  "Invoice",
		TextBody: "see attached",
		Attachments: []Attachment{
			{Filename: "invoice_1.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
		},
	})

	assert.Contains(t, raw, "To: ada@example.com")
	assert.Contains(t, raw, "Subject: Invoice")
	assert.Contains(t, raw, `filename="invoice_1.pdf"`)
	assert.Contains(t, raw, "Content-Type: application/pdf")
}

func TestSendDisabled(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Enabled: false})
	err := m.Send(context.Background(), Message{})
	assert.True(t, errors.As(err, &ErrDisabled{}))
}

func TestTemplates(t *testing.T) {
	v := Visit{
		PatientName:   "Ada <script>",
		PatientEmail:  "ada@example.com",
		ProviderName:  "Dr. Kim",
		ProviderEmail: "kim@example.com",
		CenterName:    "North Lab",
		Date:          "2030-01-15",
		Time:          "10:00",
		Amount:        "USD 50.00",
	}

	patient := DoctorPaymentPatient(v, []byte("BEGIN:VCALENDAR"))
	assert.Equal(t, []string{"ada@example.com"}, patient.To)
	assert.Contains(t, patient.TextBody, "booked with Dr. Kim at North Lab")
	assert.Contains(t, patient.TextBody, "Amount: USD 50.00")
	assert.Contains(t, patient.HTMLBody, "Ada &lt;script&gt;")
	require.Len(t, patient.Attachments, 1)
	assert.Equal(t, "appointment.ics", patient.Attachments[0].Filename)

	doctor := DoctorPaymentDoctor(v)
	assert.Equal(t, []string{"kim@example.com"}, doctor.To)
	assert.Contains(t, doctor.TextBody, "Patient Name: Ada <script>")
	assert.Empty(t, doctor.Attachments)

	noInvoice := TestPaymentReceipt(v, nil, "invoice.pdf")
	assert.Empty(t, noInvoice.Attachments)

	cancelled := AppointmentCancelled(Visit{PatientName: "Bo", PatientEmail: "bo@example.com", Date: "2030-01-15"})
	assert.NotContains(t, cancelled.TextBody, "Time:")
	assert.True(t, strings.HasPrefix(cancelled.TextBody, "Dear Bo,"))

	rx := PrescriptionReady(v, []byte("%PDF"), "prescription_1.pdf")
	require.Len(t, rx.Attachments, 1)
	_, err := buildMessage("clinic@example.com", rx)
	assert.NoError(t, err)
}
