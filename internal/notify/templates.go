package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Visit is the appointment data shown in emails.
type Visit struct {
	PatientName   string
	PatientEmail  string
	ProviderName  string // doctor name, or the test name for test appointments
	ProviderEmail string
	CenterName    string
	Date          string
	Time          string
	Amount        string
}

type detail struct {
	Label string
	Value string
}

type body struct {
	Name       string
	Paragraphs []string
	Details    []detail
	Footer     string
}

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Dear {{.Name}},</h2>
    {{range .Paragraphs}}<p>{{.}}</p>
    {{end}}{{if .Details}}<table style="border-collapse: collapse;">
    {{range .Details}}<tr><td style="padding: 2px 12px 2px 0;"><b>{{.Label}}</b></td><td>{{.Value}}</td></tr>
    {{end}}</table>{{end}}
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">{{.Footer}}</p>
</body>
</html>`))

func (b body) render() (text, html string) {
	if b.Footer == "" {
		b.Footer = "Thank you for using our service!"
	}

	var t strings.Builder
	fmt.Fprintf(&t, "Dear %s,\n\n", b.Name)
	for _, p := range b.Paragraphs {
		t.WriteString(p)
		t.WriteString("\n\n")
	}
	for _, d := range b.Details {
		if d.Value != "" {
			fmt.Fprintf(&t, "%s: %s\n", d.Label, d.Value)
		}
	}
	t.WriteString("\n")
	t.WriteString(b.Footer)

	details := b.Details[:0:0]
	for _, d := range b.Details {
		if d.Value != "" {
			details = append(details, d)
		}
	}
	b.Details = details

	var h bytes.Buffer
	if err := layout.Execute(&h, b); err != nil {
		return t.String(), ""
	}
	return t.String(), h.String()
}

func message(to []string, subject string, b body, attachments ...Attachment) Message {
	text, html := b.render()
	return Message{
		To:          to,
		Subject:     subject,
		TextBody:    text,
		HTMLBody:    html,
		Attachments: attachments,
	}
}

func (v Visit) when() []detail {
	return []detail{
		{"Date", v.Date},
		{"Time", v.Time},
	}
}

// DoctorPaymentPatient confirms a paid doctor appointment to the patient.
func DoctorPaymentPatient(v Visit, invite []byte) Message {
	var att []Attachment
	if len(invite) > 0 {
		att = append(att, Attachment{Filename: "appointment.ics", ContentType: "text/calendar; method=REQUEST", Data: invite})
	}
	return message([]string{v.PatientEmail}, "Appointment Booking", body{
		Name: v.PatientName,
		Paragraphs: []string{
			fmt.Sprintf("Your payment was successful! Your appointment is booked with %s at %s.", v.ProviderName, v.CenterName),
		},
		Details: append(v.when(), detail{"Amount", v.Amount}),
	}, att...)
}

// DoctorPaymentDoctor tells the doctor a new appointment is confirmed.
func DoctorPaymentDoctor(v Visit) Message {
	return message([]string{v.ProviderEmail}, "New Appointment Confirmation", body{
		Name:       v.ProviderName,
		Paragraphs: []string{"A new appointment has been confirmed."},
		Details:    append([]detail{{"Patient Name", v.PatientName}}, v.when()...),
		Footer:     "Please check your dashboard for more details.",
	})
}

func TestPaymentReceipt(v Visit, invoice []byte, invoiceName string) Message {
	var att []Attachment
	if len(invoice) > 0 {
		att = append(att, Attachment{Filename: invoiceName, ContentType: "application/pdf", Data: invoice})
	}
	return message([]string{v.PatientEmail}, "Payment received for "+v.ProviderName, body{
		Name: v.PatientName,
		Paragraphs: []string{
			fmt.Sprintf("We received your payment for %s at %s. Your invoice is attached.", v.ProviderName, v.CenterName),
		},
		Details: append(v.when(), detail{"Amount", v.Amount}),
	}, att...)
}

func AppointmentCompleted(v Visit, invite []byte) Message {
	var att []Attachment
	if len(invite) > 0 {
		att = append(att, Attachment{Filename: "appointment.ics", ContentType: "text/calendar; method=REQUEST", Data: invite})
	}
	return message([]string{v.PatientEmail}, "Appointment Completed", body{
		Name: v.PatientName,
		Paragraphs: []string{
			fmt.Sprintf("Your appointment with %s at %s has been marked as completed.", v.ProviderName, v.CenterName),
		},
		Details: v.when(),
	}, att...)
}

func AppointmentCancelled(v Visit) Message {
	return message([]string{v.PatientEmail}, "Appointment Cancelled", body{
		Name: v.PatientName,
		Paragraphs: []string{
			fmt.Sprintf("Your appointment with %s at %s has been cancelled.", v.ProviderName, v.CenterName),
		},
		Details: v.when(),
	})
}

func PrescriptionReady(v Visit, pdf []byte, filename string) Message {
	return message([]string{v.PatientEmail}, "Your Prescription", body{
		Name: v.PatientName,
		Paragraphs: []string{
			fmt.Sprintf("%s has issued a prescription for your visit. It is attached to this email.", v.ProviderName),
		},
		Details: v.when(),
	}, Attachment{Filename: filename, ContentType: "application/pdf", Data: pdf})
}
