package documents

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Renderer turns document snapshots into PDF bytes.
type Renderer interface {
	Invoice(d InvoiceData) ([]byte, error)
	Prescription(d PrescriptionData) ([]byte, error)
}

// PDFRenderer draws fixed A4 layouts with the PDF core fonts, so no font
// files are needed at runtime.
type PDFRenderer struct {
	Title string // printed in every header
}

func NewPDFRenderer(title string) *PDFRenderer {
	if title == "" {
		title = "Diagnostic Center"
	}
	return &PDFRenderer{Title: title}
}

type page struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (r *PDFRenderer) newPage(heading string) *page {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(heading, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	p := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, p.tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, p.tr(heading), "B", 1, "L", false, 0, "")
	pdf.Ln(4)
	return p
}

func (p *page) field(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	p.pdf.SetFont("Helvetica", "B", 10)
	p.pdf.CellFormat(40, 6, p.tr(label), "", 0, "L", false, 0, "")
	p.pdf.SetFont("Helvetica", "", 10)
	p.pdf.MultiCell(0, 6, p.tr(value), "", "L", false)
}

func (p *page) section(title string) {
	p.pdf.Ln(3)
	p.pdf.SetFont("Helvetica", "B", 12)
	p.pdf.CellFormat(0, 8, p.tr(title), "", 1, "L", false, 0, "")
}

func (p *page) bullets(items []string) {
	p.pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		p.pdf.MultiCell(0, 6, p.tr("- "+it), "", "L", false)
	}
}

func (p *page) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) Invoice(d InvoiceData) ([]byte, error) {
	if len(d.Items) == 0 {
		return nil, fmt.Errorf("invoice %s has no line items", d.Number)
	}

	p := r.newPage("Invoice")
	p.field("Invoice No.", d.Number)
	p.field("Issued", d.IssuedAt.Format("2006-01-02"))
	p.field("Due", d.DueDate.Format("2006-01-02"))
	status := "UNPAID"
	if d.Paid {
		status = "PAID"
	}
	p.field("Status", status)

	p.section("Billed to")
	p.field("Name", d.PatientName)
	p.field("Email", d.PatientEmail)
	p.field("Address", d.PatientAddress)

	if d.CenterName != "" {
		p.section("Center")
		p.field("Name", d.CenterName)
		p.field("Address", d.CenterAddress)
	}

	p.section("Items")
	pdf := p.pdf
	pdf.SetFillColor(235, 235, 235)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 7, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range d.Items {
		pdf.CellFormat(90, 7, p.tr(it.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, p.tr(it.Category), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, FormatMoney(it.Price, d.Currency), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(140, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, FormatMoney(d.Total, d.Currency), "1", 1, "R", false, 0, "")

	return p.bytes()
}

func (r *PDFRenderer) Prescription(d PrescriptionData) ([]byte, error) {
	p := r.newPage("Prescription")
	p.field("Date", d.IssuedAt.Format("2006-01-02"))
	p.field("Patient", d.PatientName)
	p.field("Doctor", strings.TrimSpace(d.DoctorName+" "+parens(d.DoctorSpecialty)))
	p.field("Center", d.CenterName)
	p.field("Visit", d.VisitDate)

	p.section("Symptoms")
	p.bullets(d.Symptoms)

	if len(d.Examinations) > 0 {
		p.section("Examinations")
		p.bullets(d.Examinations)
	}

	p.section("Medicines")
	pdf := p.pdf
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(80, 7, "Medicine", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, "Dosage", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, "Duration", "1", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, m := range d.Medicines {
		pdf.CellFormat(80, 7, p.tr(m.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, p.tr(m.Dosage), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, p.tr(m.Duration), "1", 1, "L", false, 0, "")
	}

	if strings.TrimSpace(d.Notes) != "" {
		p.section("Notes")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, p.tr(d.Notes), "", "L", false)
	}

	return p.bytes()
}

func parens(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
