package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInstrumentNotFound      = errors.New("instrument_not_found")
	ErrInstrumentAlreadyExists = errors.New("instrument_already_exists")
	ErrUserNotFound            = errors.New("user_not_found")
	ErrUserAlreadyExists       = errors.New("user_already_exists")
	ErrEventNotFound           = errors.New("event_not_found")
	ErrInvalidQuantity         = errors.New("invalid_quantity")
	ErrInsufficientFunds       = errors.New("insufficient_funds")
	ErrInsufficientShares      = errors.New("insufficient_shares")
	ErrAlreadyInWatchlist      = errors.New("already_in_watchlist")
	ErrNotInWatchlist          = errors.New("not_in_watchlist")
	ErrVersionConflict         = errors.New("version_conflict")
	ErrPersistence             = errors.New("persistence_failure")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsNotFound reports whether err denotes a missing instrument, user, or event.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInstrumentNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrEventNotFound)
}
