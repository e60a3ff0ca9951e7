// Package documents renders invoices, prescriptions and calendar invites and
// stores the rendered files.
package documents

import (
	"fmt"
	"strings"
	"time"
)

type InvoiceLine struct {
	Name     string
	Category string
	Price    int64 // minor units
}

type InvoiceData struct {
	Number         string
	PatientName    string
	PatientEmail   string
	PatientAddress string
	CenterName     string
	CenterAddress  string
	Items          []InvoiceLine
	Total          int64
	Paid           bool
	Currency       string
	IssuedAt       time.Time
	DueDate        time.Time
}

type Medicine struct {
	Name     string
	Dosage   string
	Duration string
}

type PrescriptionData struct {
	ID              string
	PatientName     string
	DoctorName      string
	DoctorSpecialty string
	CenterName      string
	VisitDate       string
	Symptoms        []string
	Examinations    []string
	Medicines       []Medicine
	Notes           string
	IssuedAt        time.Time
}

// FormatMoney renders minor units as "USD 12.50".
func FormatMoney(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s %s%d.%02d", strings.ToUpper(currency), sign, amount/100, amount%100)
}

func InvoiceKey(id string) string { return "invoices/invoice_" + id + ".pdf" }

func PrescriptionKey(id string) string { return "prescriptions/prescription_" + id + ".pdf" }
