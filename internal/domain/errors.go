package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable signals that the embedding backend failed to
	// initialize or infer. Fatal for the current query; never substituted
	// with a zero vector.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrDimensionMismatch signals an embedding whose length disagrees with
	// the query embedding.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidFilter signals a filter the corpus accessor cannot interpret.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrPassageNotFound signals a missing passage.
	ErrPassageNotFound = errors.New("passage not found")
)

// DimensionMismatchError wraps ErrDimensionMismatch with both lengths.
type DimensionMismatchError struct {
	Want, Got int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}
