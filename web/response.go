package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nasermirzaei89/agora/authentication"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type pageResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type InvalidBodyError struct {
	Err error
}

func (err InvalidBodyError) Error() string {
	return fmt.Sprintf("invalid request body: %s", err.Err)
}

func (err InvalidBodyError) Unwrap() error {
	return err.Err
}

func (err InvalidBodyError) InvalidInput() bool { return true }

type InvalidQueryError struct {
	Name  string
	Value string
}

func (err InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query parameter %s: %q", err.Name, err.Value)
}

func (err InvalidQueryError) InvalidInput() bool { return true }

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		return &InvalidBodyError{Err: err}
	}

	return nil
}

type (
	notFoundError     interface{ NotFound() bool }
	forbiddenError    interface{ Forbidden() bool }
	invalidStateError interface{ InvalidState() bool }
	invalidInputError interface{ InvalidInput() bool }
)

// statusFromError maps the error taxonomy to HTTP statuses.
func statusFromError(err error) int {
	var (
		forbiddenErr    forbiddenError
		notFoundErr     notFoundError
		invalidStateErr invalidStateError
		invalidInputErr invalidInputError
	)

	switch {
	case errors.Is(err, authentication.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.As(err, &forbiddenErr) && forbiddenErr.Forbidden():
		return http.StatusForbidden
	case errors.As(err, &notFoundErr) && notFoundErr.NotFound():
		return http.StatusNotFound
	case errors.As(err, &invalidStateErr) && invalidStateErr.InvalidState():
		return http.StatusConflict
	case errors.As(err, &invalidInputErr) && invalidInputErr.InvalidInput():
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFromError(err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), msg, "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, r, status, errorResponse{Error: "internal error occurred"})

		return
	}

	slog.DebugContext(r.Context(), msg, "status", status, "error", err)
	writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		return 0, &InvalidQueryError{Name: "limit", Value: v}
	}

	return limit, nil
}
