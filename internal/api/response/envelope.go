package response

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Body is a JSON object response.
type Body map[string]any

// Error is the body of every error response.
type Error struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("failed to encode response", "error", err)
	}
}

// Success writes a mutation result: body plus "success": true.
func Success(w http.ResponseWriter, status int, body Body) {
	if body == nil {
		body = Body{}
	}
	body["success"] = true
	JSON(w, status, body)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Err writes an error JSON response.
func Err(w http.ResponseWriter, status int, code string, message string, requestID string) {
	JSON(w, status, Error{
		Error:     message,
		Code:      code,
		RequestID: requestID,
	})
}

// ErrWithDetails writes an error JSON response with additional details.
func ErrWithDetails(w http.ResponseWriter, status int, code string, message string, details any, requestID string) {
	JSON(w, status, Error{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestID,
	})
}
