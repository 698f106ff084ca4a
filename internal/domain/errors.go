package domain

import (
	"errors"
	"fmt"
	"time"
)

// Common domain errors
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// Catalog errors
	ErrInvalidCategory  = errors.New("invalid catalog category")
	ErrInvalidPageRange = errors.New("invalid page range")

	// Rating errors
	ErrInvalidRatingScore = errors.New("rating score must be between 1 and 5")

	// Normalization errors
	ErrMissingExternalID  = errors.New("record has no external id")
	ErrExternalIDMismatch = errors.New("provider returned a different external id")
)

// FetchErrorKind classifies failures returned by the catalog provider.
type FetchErrorKind int

const (
	FetchTransient FetchErrorKind = iota
	FetchRateLimited
	FetchNotFound
	FetchInvalidPage
	FetchAuthError
)

// String returns the kind name used in logs and page failure reasons
func (k FetchErrorKind) String() string {
	switch k {
	case FetchRateLimited:
		return "rate_limited"
	case FetchNotFound:
		return "not_found"
	case FetchInvalidPage:
		return "invalid_page"
	case FetchAuthError:
		return "auth_error"
	default:
		return "transient"
	}
}

// FetchError is returned by the catalog provider for a single request.
type FetchError struct {
	Kind       FetchErrorKind
	Category   Category
	Page       int
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

// Error returns the error message
func (e *FetchError) Error() string {
	msg := "fetch " + e.Kind.String()
	if e.Category != "" {
		msg += fmt.Sprintf(" [%s page %d]", e.Category, e.Page)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error of the given kind
func NewFetchError(kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

// FetchKindOf returns the fetch error kind carried by err.
func FetchKindOf(err error) (FetchErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsFetchKind reports whether err is a FetchError of the given kind
func IsFetchKind(err error, kind FetchErrorKind) bool {
	k, ok := FetchKindOf(err)
	return ok && k == kind
}

// NormalizationError is returned when a raw record cannot become a Movie.
type NormalizationError struct {
	Err    error
	Reason string
}

// Error returns the error message
func (e *NormalizationError) Error() string {
	if e.Reason != "" {
		return "normalize: " + e.Reason + ": " + e.Err.Error()
	}
	return "normalize: " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// StoreErrorKind classifies metadata store failures.
type StoreErrorKind int

const (
	StoreUnavailable StoreErrorKind = iota
	StoreConstraintViolation
)

// String returns the kind name
func (k StoreErrorKind) String() string {
	if k == StoreConstraintViolation {
		return "constraint_violation"
	}
	return "unavailable"
}

// StoreError wraps a persistence failure with its classification.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

// Error returns the error message
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreKind reports whether err is a StoreError of the given kind
func IsStoreKind(err error, kind StoreErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}

// SkippableError represents an error that can be logged and skipped.
// Processing can continue with the next item when this error occurs.
type SkippableError struct {
	Err     error
	Context string
}

// Error returns the error message
func (e *SkippableError) Error() string {
	if e.Context != "" {
		if e.Err != nil {
			return e.Context + ": " + e.Err.Error()
		}
		return e.Context
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "skippable error"
}

// Unwrap returns the underlying error
func (e *SkippableError) Unwrap() error {
	return e.Err
}

// NewSkippableError creates a new skippable error
func NewSkippableError(err error, context string) *SkippableError {
	return &SkippableError{Err: err, Context: context}
}

// IsSkippable returns true if the error can be skipped
func IsSkippable(err error) bool {
	var se *SkippableError
	return errors.As(err, &se)
}

// IsRetryable returns true if the sync orchestrator should try the
// operation again: transient or rate-limited fetches and an unavailable store.
func IsRetryable(err error) bool {
	if k, ok := FetchKindOf(err); ok {
		return k == FetchTransient || k == FetchRateLimited
	}
	return IsStoreKind(err, StoreUnavailable)
}

// GetRetryAfter returns the provider-specified cool-down if err carries one
func GetRetryAfter(err error) (time.Duration, bool) {
	var fe *FetchError
	if errors.As(err, &fe) && fe.RetryAfter > 0 {
		return fe.RetryAfter, true
	}
	return 0, false
}
