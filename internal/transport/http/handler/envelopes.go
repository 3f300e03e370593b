package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reservation-app/api/internal/application/session"
	"github.com/reservation-app/api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// AuthEnvelope wraps login/register responses.
type AuthEnvelope struct {
	AccessToken  string          `json:"access_token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
	Account      *domain.Account `json:"account,omitempty"`
}

// ExistsEnvelope wraps credential existence probes.
type ExistsEnvelope struct {
	Exists bool `json:"exists"`
}

// PaginatedAccountsEnvelope wraps paginated account list responses.
type PaginatedAccountsEnvelope struct {
	Data       []domain.Account `json:"data"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func authEnvelope(res *session.Result) AuthEnvelope {
	return AuthEnvelope{
		AccessToken:  res.Bearer,
		RefreshToken: res.RefreshToken,
		Session:      res.Session,
		Account:      res.Session.Account,
	}
}

// httpError maps a domain error kind to a status code and a stable message.
// The message is derived from the kind alone so responses never leak store
// state beyond the documented kinds.
func httpError(w http.ResponseWriter, err error) {
	var (
		status  int
		errType string
		msg     string
	)
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		status, errType, msg = http.StatusBadRequest, "invalid_token", "the provided token is not valid"
	case errors.Is(err, domain.ErrAttemptsExceeded):
		status, errType, msg = http.StatusBadRequest, "token_attempts_exceeded", "the provided token attempts exceeded"
	case errors.Is(err, domain.ErrAlreadyVerified):
		status, errType, msg = http.StatusBadRequest, "already_verified", "already verified"
	case errors.Is(err, domain.ErrCredentialExists):
		status, errType, msg = http.StatusConflict, "user_already_exists", "the provided user already exists"
	case errors.Is(err, domain.ErrValidationFailed):
		status, errType, msg = http.StatusUnprocessableEntity, "invalid_request", "the provided request is not valid"
	case errors.Is(err, domain.ErrNotFound):
		status, errType, msg = http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, domain.ErrUnauthorized):
		status, errType, msg = http.StatusUnauthorized, "invalid_credentials", "the provided credentials are not valid"
	case errors.Is(err, domain.ErrForbidden):
		status, errType, msg = http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, domain.ErrTransient):
		status, errType, msg = http.StatusServiceUnavailable, "temporarily_unavailable", "temporarily unavailable, retry"
	default:
		status, errType, msg = http.StatusInternalServerError, "internal_error", "internal error"
	}
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorType: errType})
}
