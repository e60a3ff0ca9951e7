package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// statusFor maps a domain error kind to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest, "validation_error"
	case apperr.ErrPastDate:
		return http.StatusBadRequest, "past_date"
	case apperr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.ErrSlotConflict:
		return http.StatusConflict, "slot_conflict"
	case apperr.ErrOwnership:
		return http.StatusForbidden, "ownership"
	case apperr.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.ErrAlreadyTerminal:
		return http.StatusConflict, "already_terminal"
	case apperr.ErrAlreadyPaid:
		return http.StatusConflict, "already_paid"
	case apperr.ErrPaymentNotCompleted:
		return http.StatusPaymentRequired, "payment_not_completed"
	case apperr.ErrPaymentLookup:
		return http.StatusBadGateway, "payment_lookup_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeDomainError renders err. Infrastructure errors are logged and hidden from the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, status, code, "internal server error")
		return
	}

	field, id := apperr.Details(err)
	writeJSON(w, status, ErrorResponse{Error: code, Details: err.Error(), Field: field, ID: id})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Details: name + " must be a valid UUID",
			Field:   name,
		})
		return uuid.Nil, false
	}
	return id, true
}

// page reads limit and offset query parameters. Missing values are zero.
func page(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Details: p.name + " must be a non-negative integer",
				Field:   p.name,
			})
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}
