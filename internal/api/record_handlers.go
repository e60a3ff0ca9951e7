package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/records"
)

func (h *handlers) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: "userId must be a valid UUID", Field: "userId"})
		return
	}

	inv, err := h.records.CreateInvoice(r.Context(), caller(r), patientID, req.TestAppointments)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoiceResponse(*inv))
}

func (h *handlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.records.GetInvoice(r.Context(), caller(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponse(*inv))
}

// updateInvoice accepts {"paymentStatus":"paid"}. Invoices never go back to unpaid.
func (h *handlers) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req InvoiceUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if records.InvoiceStatus(req.PaymentStatus) != records.InvoicePaid {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: "paymentStatus can only be set to paid", Field: "paymentStatus"})
		return
	}
	inv, err := h.records.MarkInvoicePaid(r.Context(), caller(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponse(*inv))
}

func (h *handlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	patientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	invoices, err := h.records.ListInvoices(r.Context(), caller(r), patientID, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		out[i] = invoiceResponse(inv)
	}
	writeJSON(w, http.StatusOK, out)
}

type pdfFunc func(r *http.Request, c auth.Caller, id uuid.UUID) ([]byte, string, error)

func servePDF(fn pdfFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		data, name, err := fn(r, caller(r), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writePDF(w, name, data)
	}
}

func (h *handlers) invoicePDF(w http.ResponseWriter, r *http.Request) {
	servePDF(func(r *http.Request, c auth.Caller, id uuid.UUID) ([]byte, string, error) {
		return h.records.InvoicePDF(r.Context(), c, id)
	})(w, r)
}

func (h *handlers) prescriptionPDF(w http.ResponseWriter, r *http.Request) {
	servePDF(func(r *http.Request, c auth.Caller, id uuid.UUID) ([]byte, string, error) {
		return h.records.PrescriptionPDF(r.Context(), c, id)
	})(w, r)
}

func (h *handlers) createPrescription(w http.ResponseWriter, r *http.Request) {
	var req PrescriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.records.CreatePrescription(r.Context(), caller(r), records.PrescriptionInput{
		AppointmentID: req.AppointmentID,
		Symptoms:      req.Symptoms,
		Examinations:  req.Examinations,
		Medicines:     req.Medicines,
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	failed := res.Failed
	if failed == nil {
		failed = []appointment.SideEffectFailure{}
	}
	writeJSON(w, http.StatusCreated, CreatePrescriptionResponse{
		Prescription:      prescriptionResponse(*res.Prescription),
		FailedSideEffects: failed,
	})
}

func (h *handlers) updatePrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PrescriptionUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.records.UpdatePrescription(r.Context(), caller(r), id, records.PrescriptionUpdate{
		Symptoms:     req.Symptoms,
		Examinations: req.Examinations,
		Medicines:    req.Medicines,
		Notes:        req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prescriptionResponse(*p))
}

func (h *handlers) getPrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.records.GetPrescription(r.Context(), caller(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prescriptionResponse(*p))
}

type prescriptionListFunc func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]records.Prescription, error)

func listPrescriptions(fn prescriptionListFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		limit, offset, ok := page(w, r)
		if !ok {
			return
		}
		list, err := fn(r, caller(r), id, limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		out := make([]PrescriptionResponse, len(list))
		for i, p := range list {
			out[i] = prescriptionResponse(p)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *handlers) listPatientPrescriptions(w http.ResponseWriter, r *http.Request) {
	listPrescriptions(func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]records.Prescription, error) {
		return h.records.ListPrescriptionsByPatient(r.Context(), c, id, limit, offset)
	})(w, r)
}

func (h *handlers) listDoctorPrescriptions(w http.ResponseWriter, r *http.Request) {
	listPrescriptions(func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]records.Prescription, error) {
		return h.records.ListPrescriptionsByDoctor(r.Context(), c, id, limit, offset)
	})(w, r)
}
