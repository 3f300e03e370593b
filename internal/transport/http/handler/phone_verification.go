package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reservation-app/api/internal/application/account"
	"github.com/reservation-app/api/internal/application/phonecode"
)

// PhoneVerificationHandler handles the phone one-time-code flow: request a
// code by SMS or call, then validate it. These endpoints are public — the
// code flow doubles as passwordless login — so they sit behind the sensitive
// rate limiter.
type PhoneVerificationHandler struct {
	codes    phonecode.Service
	accounts account.Service
}

func NewPhoneVerificationHandler(codes phonecode.Service, accounts account.Service) *PhoneVerificationHandler {
	return &PhoneVerificationHandler{codes: codes, accounts: accounts}
}

func (h *PhoneVerificationHandler) Action(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
		Code  string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone required")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request":
		if err := h.codes.Request(r.Context(), body.Phone); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification SMS sent"})
	case "call":
		if err := h.codes.RequestCall(r.Context(), body.Phone); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification call placed"})
	case "validate-code":
		if body.Code == "" {
			writeError(w, http.StatusBadRequest, "token required")
			return
		}
		res, err := h.accounts.VerifyPhoneLogin(r.Context(), body.Phone, body.Code)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, authEnvelope(res))
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
