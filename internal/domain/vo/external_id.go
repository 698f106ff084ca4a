package vo

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ExternalID represents the catalog provider's identifier for a movie.
// It is the stable upsert key and never changes once assigned.
type ExternalID struct {
	value string
}

var (
	ErrEmptyExternalID   = errors.New("external ID cannot be empty")
	ErrInvalidExternalID = errors.New("invalid external ID")
)

// NewExternalID creates a new ExternalID value object.
func NewExternalID(id string) (ExternalID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ExternalID{}, ErrEmptyExternalID
	}
	return ExternalID{value: id}, nil
}

// NewExternalIDFromNumber creates an ExternalID from a JSON number.
// Only positive integral values are accepted.
func NewExternalIDFromNumber(n float64) (ExternalID, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 || n != math.Trunc(n) || n > 1<<53 {
		return ExternalID{}, ErrInvalidExternalID
	}
	return ExternalID{value: strconv.FormatInt(int64(n), 10)}, nil
}

// String returns the string representation of the ID.
func (id ExternalID) String() string {
	return id.value
}
