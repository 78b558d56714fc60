package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"spendwise/internal/core"
	"spendwise/internal/services"
	"spendwise/internal/store"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusForError maps domain errors to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrMissingInfo),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrTitleTooLong),
		errors.Is(err, core.ErrInvalidWindow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// windowParam parses ?window=. ok is false when the parameter is absent.
func windowParam(r *http.Request) (w core.TimeWindow, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get("window"))
	if raw == "" {
		return "", false, nil
	}
	w, err = core.ParseWindow(raw)
	return w, err == nil, err
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func nonNil(records []core.ExpenseRecord) []core.ExpenseRecord {
	if records == nil {
		return []core.ExpenseRecord{}
	}
	return records
}
