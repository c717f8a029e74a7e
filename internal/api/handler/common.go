package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/api/validation"
)

const maxBodyBytes = 1 << 20

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// decodeJSON reads a bounded JSON body into dst. It writes the error response
// and returns false when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Err(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body is too large", requestID)
			return false
		}
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

// validationFailed writes a 400 with field details when errs is not empty.
func validationFailed(w http.ResponseWriter, r *http.Request, errs []validation.FieldError) bool {
	if len(errs) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, middleware.GetRequestID(r.Context()))
	return true
}

// uuidParam parses the named URL parameter, writing a 400 when malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", name+" must be a valid UUID", middleware.GetRequestID(r.Context()))
		return uuid.Nil, false
	}
	return id, true
}

// caller returns the authenticated identity, writing a 401 when absent.
func caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", middleware.GetRequestID(r.Context()))
		return uuid.Nil, false
	}
	return identity.UserID, true
}

// internalError logs err and writes a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error, kv ...any) {
	middleware.Logger(r.Context()).Errorw(msg, append([]any{"error", err}, kv...)...)
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", middleware.GetRequestID(r.Context()))
}
