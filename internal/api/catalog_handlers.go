package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

func (req RegisterRequest) input() catalog.PersonInput {
	return catalog.PersonInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	}
}

func (h *handlers) issue(w http.ResponseWriter, r *http.Request, status int, p *catalog.Person) {
	c := auth.Caller{ID: p.ID, Role: p.Role}
	if p.CenterID != nil {
		c.CenterID = *p.CenterID
	}
	token, err := h.verifier.Issue(c, h.tokenTTL)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, TokenResponse{Token: token, Person: personResponse(*p)})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.catalog.RegisterPatient(r.Context(), req.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.issue(w, r, http.StatusCreated, p)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.catalog.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, catalog.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.issue(w, r, http.StatusOK, p)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetPerson(r.Context(), caller(r).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, personResponse(*p))
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ProfileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.catalog.UpdateProfile(r.Context(), caller(r), id, catalog.ProfileUpdate{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, personResponse(*p))
}

// deleteBy serves a DELETE that answers 204 on success.
func deleteBy(fn func(r *http.Request, c auth.Caller, id uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := fn(r, caller(r), id); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) deleteCenter(w http.ResponseWriter, r *http.Request) {
	deleteBy(func(r *http.Request, c auth.Caller, id uuid.UUID) error {
		return h.catalog.DeleteCenter(r.Context(), c, id)
	})(w, r)
}

func (h *handlers) deleteDoctor(w http.ResponseWriter, r *http.Request) {
	deleteBy(func(r *http.Request, c auth.Caller, id uuid.UUID) error {
		return h.catalog.DeleteDoctor(r.Context(), c, id)
	})(w, r)
}

func (h *handlers) deleteTest(w http.ResponseWriter, r *http.Request) {
	deleteBy(func(r *http.Request, c auth.Caller, id uuid.UUID) error {
		return h.catalog.DeleteTest(r.Context(), c, id)
	})(w, r)
}

// Centers

func (req CenterRequest) input() catalog.CenterInput {
	return catalog.CenterInput{Name: req.Name, Address: req.Address, Contact: req.Contact, Email: req.Email}
}

func (h *handlers) createCenter(w http.ResponseWriter, r *http.Request) {
	var req CenterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.catalog.CreateCenter(r.Context(), caller(r), req.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, centerResponse(*c))
}

func (h *handlers) updateCenter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CenterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.catalog.UpdateCenter(r.Context(), caller(r), id, req.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, centerResponse(*c))
}

func (h *handlers) getCenter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.catalog.GetCenter(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, centerResponse(*c))
}

func (h *handlers) listCenters(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	centers, err := h.catalog.ListCenters(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]CenterResponse, len(centers))
	for i, c := range centers {
		out[i] = centerResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) linkDoctor(w http.ResponseWriter, r *http.Request) {
	centerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req LinkDoctorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: "doctorId must be a valid UUID", Field: "doctorId"})
		return
	}
	if err := h.catalog.AddDoctorToCenter(r.Context(), caller(r), centerID, doctorID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) createStaff(w http.ResponseWriter, r *http.Request) {
	centerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req StaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.catalog.CreateStaff(r.Context(), caller(r), centerID, auth.Role(req.Role), req.RegisterRequest.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, personResponse(*p))
}

// Doctors

func (h *handlers) createDoctor(w http.ResponseWriter, r *http.Request) {
	var req DoctorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.catalog.CreateDoctor(r.Context(), caller(r), catalog.DoctorInput{
		PersonInput:     req.RegisterRequest.input(),
		Specialty:       req.Specialty,
		Degree:          req.Degree,
		ExperienceYears: req.Experience,
		Fee:             req.Fees,
		MaxSlots:        req.MaxSlots,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doctorResponse(*d))
}

func (h *handlers) updateDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req DoctorUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.catalog.UpdateDoctor(r.Context(), caller(r), id, catalog.DoctorUpdate{
		Name:            req.Name,
		Phone:           req.Phone,
		Address:         req.Address,
		Specialty:       req.Specialty,
		Degree:          req.Degree,
		ExperienceYears: req.Experience,
		Fee:             req.Fees,
		MaxSlots:        req.MaxSlots,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doctorResponse(*d))
}

func (h *handlers) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.catalog.GetDoctor(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doctorResponse(*d))
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	f := catalog.DoctorFilter{Specialty: r.URL.Query().Get("specialty"), Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("centerId"); raw != "" {
		centerID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: "centerId must be a valid UUID", Field: "centerId"})
			return
		}
		f.CenterID = &centerID
	}

	doctors, err := h.catalog.ListDoctors(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]DoctorResponse, len(doctors))
	for i, d := range doctors {
		out[i] = doctorResponse(d)
	}
	writeJSON(w, http.StatusOK, out)
}

// Slots

func (h *handlers) addSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req AddSlotsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inputs := make([]slots.SlotInput, len(req.Slots))
	for i, s := range req.Slots {
		inputs[i] = slots.SlotInput{Date: s.Date, Time: s.Time}
	}

	added, err := h.slots.AddSlots(r.Context(), caller(r), doctorID, inputs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddSlotsResponse{Added: added})
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.slots.ListAvailable(r.Context(), doctorID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := []SlotResponse{}
	for e := range entries {
		out = append(out, slotResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// Tests

func (h *handlers) createTest(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	centerID, err := uuid.Parse(req.CenterID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: "centerId must be a valid UUID", Field: "centerId"})
		return
	}
	t, err := h.catalog.CreateTest(r.Context(), caller(r), catalog.TestInput{
		CenterID:    centerID,
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, testResponse(*t))
}

func (h *handlers) updateTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req TestUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	up := catalog.TestUpdate{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
	}
	if req.Status != nil {
		status := catalog.TestStatus(*req.Status)
		up.Status = &status
	}

	t, err := h.catalog.UpdateTest(r.Context(), caller(r), id, up)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, testResponse(*t))
}

func (h *handlers) getTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.catalog.GetTest(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, testResponse(*t))
}

func (h *handlers) listCenterTests(w http.ResponseWriter, r *http.Request) {
	centerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tests, err := h.catalog.ListTests(r.Context(), centerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]TestResponse, len(tests))
	for i, t := range tests {
		out[i] = testResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}
