package handler

import (
	"net/http"

	"github.com/reservation-app/api/internal/application/emailverify"
	"github.com/reservation-app/api/internal/transport/http/middleware"
)

// EmailConfirmHandler handles the email verification flow.
type EmailConfirmHandler struct {
	svc emailverify.Service
}

func NewEmailConfirmHandler(svc emailverify.Service) *EmailConfirmHandler {
	return &EmailConfirmHandler{svc: svc}
}

// Request re-sends a verification link to the authenticated account's email.
// Any previously issued link stops working.
func (h *EmailConfirmHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Request(r.Context(), claims.AccountID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "confirmation email sent"})
}

// Verify redeems the token from a clicked link. Public: the token itself is
// the capability, no session required.
func (h *EmailConfirmHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	if err := h.svc.Consume(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email confirmed"})
}
