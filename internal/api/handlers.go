package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
)

// caller returns the identity set by the bearer middleware.
func caller(r *http.Request) auth.Caller {
	c, _ := auth.FromContext(r.Context())
	return c
}

func (h *handlers) bookDoctor(w http.ResponseWriter, r *http.Request) {
	var req BookDoctorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	appt, err := h.appointments.BookDoctorAppointment(r.Context(), caller(r), appointment.DoctorBooking{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		CenterID:  req.CenterID,
		SlotDate:  req.SlotDate,
		SlotTime:  req.SlotTime,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse(*appt))
}

func (h *handlers) bookTest(w http.ResponseWriter, r *http.Request) {
	var req BookTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	appt, err := h.appointments.BookTestAppointment(r.Context(), caller(r), appointment.TestBooking{
		PatientID:     req.PatientID,
		TestID:        req.TestID,
		CenterID:      req.CenterID,
		Date:          req.AppointmentDate,
		Time:          req.AppointmentTime,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse(*appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.appointments.GetAppointment(r.Context(), caller(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse(*appt))
}

type transitionFunc func(r *http.Request, c auth.Caller, id uuid.UUID) (*appointment.Result, error)

func serveTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		res, err := fn(r, caller(r), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, transitionResponse(res))
	}
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	serveTransition(func(r *http.Request, c auth.Caller, id uuid.UUID) (*appointment.Result, error) {
		return h.appointments.CancelAppointment(r.Context(), c, id)
	})(w, r)
}

func (h *handlers) completeDoctor(w http.ResponseWriter, r *http.Request) {
	serveTransition(func(r *http.Request, c auth.Caller, id uuid.UUID) (*appointment.Result, error) {
		return h.appointments.CompleteDoctorAppointment(r.Context(), c, id)
	})(w, r)
}

func (h *handlers) completeTest(w http.ResponseWriter, r *http.Request) {
	serveTransition(func(r *http.Request, c auth.Caller, id uuid.UUID) (*appointment.Result, error) {
		return h.appointments.CompleteTestAppointment(r.Context(), c, id)
	})(w, r)
}

type listFunc func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]appointment.Appointment, error)

func serveList(fn listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		limit, offset, ok := page(w, r)
		if !ok {
			return
		}
		appts, err := fn(r, caller(r), id, limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentList(appts))
	}
}

func (h *handlers) listPatientAppointments(w http.ResponseWriter, r *http.Request) {
	serveList(func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
		return h.appointments.ListAppointmentsByPatient(r.Context(), c, id, limit, offset)
	})(w, r)
}

func (h *handlers) listDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	serveList(func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
		return h.appointments.ListAppointmentsByDoctor(r.Context(), c, id, limit, offset)
	})(w, r)
}

func (h *handlers) listCenterAppointments(w http.ResponseWriter, r *http.Request) {
	serveList(func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
		return h.appointments.ListAppointmentsByCenter(r.Context(), c, id, limit, offset)
	})(w, r)
}

func (h *handlers) paymentHistory(w http.ResponseWriter, r *http.Request) {
	serveList(func(r *http.Request, c auth.Caller, id uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
		return h.appointments.PaymentHistory(r.Context(), c, id, limit, offset)
	})(w, r)
}
