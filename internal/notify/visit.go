package notify

import (
	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/documents"
)

// VisitOf builds email data from an appointment's booking snapshot.
func VisitOf(a appointment.Appointment, currency string) Visit {
	return Visit{
		PatientName:   a.Snapshot.PatientName,
		PatientEmail:  a.Snapshot.PatientEmail,
		ProviderName:  a.Snapshot.SubjectName,
		ProviderEmail: a.Snapshot.SubjectEmail,
		CenterName:    a.Snapshot.CenterName,
		Date:          a.DateString(),
		Time:          a.Time,
		Amount:        documents.FormatMoney(a.Amount, currency),
	}
}
