package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/retriever"
	"github.com/ziadkadry99/productassist/internal/session"
)

var (
	errBadRequest = errors.New("bad request")
	errTimeout    = errors.New("request timed out")
)

// AppError carries the status and client-facing message for an error.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...any) *AppError {
	return &AppError{Err: errBadRequest, Message: fmt.Sprintf(format, args...), StatusCode: http.StatusBadRequest}
}

// toAppError maps service errors to responses. Internal details are
// logged, never returned to clients.
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, session.ErrMissingSessionID):
		return &AppError{Err: err, Message: "Session ID is required", StatusCode: http.StatusBadRequest}
	case errors.Is(err, retriever.ErrNotReady):
		return &AppError{Err: err, Message: "Catalog index is not ready", StatusCode: http.StatusServiceUnavailable}
	case errors.Is(err, session.ErrCredentials):
		return &AppError{Err: err, Message: "Model provider credentials expired", StatusCode: http.StatusBadGateway}
	case errors.Is(err, errTimeout):
		return &AppError{Err: err, Message: "Request timed out", StatusCode: http.StatusGatewayTimeout}
	default:
		return &AppError{Err: err, Message: "Internal Server Error", StatusCode: http.StatusInternalServerError}
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= 500 {
		logging.FromContext(r.Context()).Error("request failed",
			"component", "server", "status", appErr.StatusCode, "error", err)
	}
	writeJSON(w, appErr.StatusCode, errorResponse{Detail: appErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
