package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxRequestBodySize is the maximum accepted JSON request body (1 MB).
const maxRequestBodySize = 1 << 20

// Client-facing messages.
const (
	msgInvalidRequest     = "Invalid request body"
	msgValidation         = "Validation error"
	msgInvalidCredentials = "Invalid email or password"
	msgUnauthorized       = "Unauthorized"
	msgForbidden          = "Forbidden: Insufficient permissions"
	msgUserNotFound       = "User not found."
	msgEmailTaken         = "An account with this email already exists."
	msgInternal           = "Internal server error"
)

// ErrorResponse is the payload of every failed request.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// MessageResponse is the payload of requests that only report success.
type MessageResponse struct {
	Message string `json:"message"`
}

var errEmptyBody = errors.New("empty body")

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

func writeValidationError(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: msgValidation, Errors: errs})
}

// writeInternalError logs err and answers with an opaque 500.
func writeInternalError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(r.Context(), msg, "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
