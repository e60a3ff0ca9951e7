package documents

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "USD 12.05", FormatMoney(1205, "usd"))
	assert.Equal(t, "USD 0.00", FormatMoney(0, "usd"))
	assert.Equal(t, "EUR -1.50", FormatMoney(-150, "eur"))
}

func TestInvoicePDF(t *testing.T) {
	r := NewPDFRenderer("")
	issued := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	data, err := r.Invoice(InvoiceData{
		Number:      "INV-1",
		PatientName: "Zoë Patient",
		Items: []InvoiceLine{
			{Name: "CBC", Category: "Blood", Price: 1200},
			{Name: "Lipid panel", Category: "Blood", Price: 2500},
		},
		Total:    3700,
		Paid:     true,
		Currency: "usd",
		IssuedAt: issued,
		DueDate:  issued.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = r.Invoice(InvoiceData{Number: "INV-2"})
	assert.Error(t, err)
}

func TestPrescriptionPDF(t *testing.T) {
	data, err := NewPDFRenderer("North Lab").Prescription(PrescriptionData{
		ID:              "rx-1",
		PatientName:     "Ada",
		DoctorName:      "Dr. Kim",
		DoctorSpecialty: "Cardiology",
		Symptoms:        []string{"chest pain"},
		Medicines:       []Medicine{{Name: "Aspirin", Dosage: "100mg", Duration: "7 days"}},
		Notes:           "Rest.",
		IssuedAt:        time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestCalendarInvite(t *testing.T) {
	start := time.Date(2030, 1, 15, 10, 0, 0, 0, time.UTC)
	ics := string(CalendarInvite(CalendarEvent{
		UID:            "appt-1@diagnostic-management",
		Summary:        "Appointment with Dr. Kim",
		Location:       "North Lab",
		Start:          start,
		OrganizerName:  "Dr. Kim",
		OrganizerEmail: "kim@example.com",
		AttendeeEmails: []string{"ada@example.com", ""},
	}, start.Add(-time.Hour)))
	// unfold continuation lines
	ics = strings.ReplaceAll(ics, "\r\n ", "")

	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "METHOD:REQUEST")
	assert.Contains(t, ics, "UID:appt-1@diagnostic-management")
	assert.Contains(t, ics, "DTSTART:20300115T100000Z")
	assert.Contains(t, ics, "DTEND:20300115T103000Z")
	assert.Contains(t, ics, "mailto:ada@example.com")
	assert.Equal(t, 1, strings.Count(ics, "ATTENDEE"))
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, InvoiceKey("abc"), "application/pdf", []byte("pdf")))
	got, err := s.Get(ctx, InvoiceKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), got)

	_, err = s.Get(ctx, InvoiceKey("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, InvoiceKey("abc")))
	_, err = s.Get(ctx, InvoiceKey("abc"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, InvoiceKey("abc")))

	assert.Error(t, s.Put(ctx, "../escape.pdf", "application/pdf", nil))
}

// s3Stub is a path-style bucket that keeps objects in memory.
func s3Stub(t *testing.T) *httptest.Server {
	t.Helper()
	var (
		mu      sync.Mutex
		objects = map[string][]byte{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[r.URL.Path]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
				return
			}
			_, _ = w.Write(body)
		case http.MethodDelete:
			delete(objects, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3Store(t *testing.T) {
	srv := s3Stub(t)
	ctx := context.Background()

	s, err := NewStore(ctx, config.StorageConfig{
		Driver:            "s3",
		S3Endpoint:        srv.URL,
		S3Region:          "us-east-1",
		S3Bucket:          "docs",
		S3AccessKeyID:     "test",
		S3SecretAccessKey: "test",
	})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, PrescriptionKey("rx"), "application/pdf", []byte("%PDF-1.3")))
	got, err := s.Get(ctx, PrescriptionKey("rx"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.3"), got)

	_, err = s.Get(ctx, PrescriptionKey("nope"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, PrescriptionKey("rx")))
	_, err = s.Get(ctx, PrescriptionKey("rx"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewStoreUnknownDriver(t *testing.T) {
	_, err := NewStore(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
