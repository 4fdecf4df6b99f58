package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// errorMessages are the human-readable texts of the domain sentinels.
var errorMessages = map[error]string{
	domain.ErrInstrumentNotFound:      "Stock not found",
	domain.ErrInstrumentAlreadyExists: "Stock already exists",
	domain.ErrUserNotFound:            "User not found",
	domain.ErrUserAlreadyExists:       "Username is already taken",
	domain.ErrEventNotFound:           "Event not found",
	domain.ErrInvalidQuantity:         "Quantity must be a positive integer",
	domain.ErrInsufficientFunds:       "Insufficient funds",
	domain.ErrInsufficientShares:      "Insufficient shares",
	domain.ErrAlreadyInWatchlist:      "Stock already in watchlist",
	domain.ErrNotInWatchlist:          "Stock not in watchlist",
	domain.ErrVersionConflict:         "Account was modified concurrently, retry the request",
	domain.ErrPersistence:             "Storage is temporarily unavailable",
}

// mapError maps service and domain errors to HTTP responses.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	var status int
	var sentinel error
	switch {
	case errors.Is(err, domain.ErrInstrumentNotFound):
		status, sentinel = http.StatusNotFound, domain.ErrInstrumentNotFound
	case errors.Is(err, domain.ErrUserNotFound):
		status, sentinel = http.StatusNotFound, domain.ErrUserNotFound
	case errors.Is(err, domain.ErrEventNotFound):
		status, sentinel = http.StatusNotFound, domain.ErrEventNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		status, sentinel = http.StatusBadRequest, domain.ErrInvalidQuantity
	case errors.Is(err, domain.ErrInsufficientFunds):
		status, sentinel = http.StatusUnprocessableEntity, domain.ErrInsufficientFunds
	case errors.Is(err, domain.ErrInsufficientShares):
		status, sentinel = http.StatusUnprocessableEntity, domain.ErrInsufficientShares
	case errors.Is(err, domain.ErrNotInWatchlist):
		status, sentinel = http.StatusBadRequest, domain.ErrNotInWatchlist
	case errors.Is(err, domain.ErrUserAlreadyExists):
		status, sentinel = http.StatusConflict, domain.ErrUserAlreadyExists
	case errors.Is(err, domain.ErrInstrumentAlreadyExists):
		status, sentinel = http.StatusConflict, domain.ErrInstrumentAlreadyExists
	case errors.Is(err, domain.ErrAlreadyInWatchlist):
		status, sentinel = http.StatusConflict, domain.ErrAlreadyInWatchlist
	case errors.Is(err, domain.ErrVersionConflict):
		status, sentinel = http.StatusConflict, domain.ErrVersionConflict
	case errors.Is(err, domain.ErrPersistence):
		status, sentinel = http.StatusServiceUnavailable, domain.ErrPersistence
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	WriteError(w, status, sentinel.Error(), errorMessages[sentinel])
}

// queryInt reads an optional integer query parameter. A missing value
// yields 0 so the service can apply its default.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ValidationError{Message: name + " must be a valid integer"}
	}
	return n, nil
}
