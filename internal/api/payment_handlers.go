package api

import (
	"net/http"
)

func (h *handlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req AppointmentIDsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	co, err := h.payments.CreateCheckout(r.Context(), caller(r), req.AppointmentIDs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResponse{SessionID: co.SessionID, URL: co.URL})
}

func (h *handlers) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req AppointmentIDsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := h.payments.CreatePaymentIntent(r.Context(), caller(r), req.AppointmentIDs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IntentResponse{PaymentIntentID: in.ID, ClientSecret: in.ClientSecret, Amount: in.Amount})
}

// confirmPayment accepts either a checkout session id or a payment intent id.
func (h *handlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ref := req.SessionID
	if ref == "" {
		ref = req.PaymentIntentID
	}
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Details: "sessionId or paymentIntentId is required",
			Field:   "sessionId",
		})
		return
	}

	res, err := h.payments.ConfirmPayment(r.Context(), caller(r), ref, req.AppointmentIDs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse(res))
}
