// Package pagination validates and applies offset-based listing flags.
package pagination

import (
	"errors"
	"fmt"
)

// Limits.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Validation errors.
var (
	ErrInvalidLimit  = fmt.Errorf("limit must be between 1 and %d", MaxLimit)
	ErrInvalidOffset = errors.New("offset must be non-negative")
)

// Params holds --limit and --offset.
type Params struct {
	Limit  int
	Offset int
}

// New returns Params with the default limit.
func New() Params {
	return Params{Limit: DefaultLimit}
}

// Validate checks the bounds.
func (p Params) Validate() error {
	if p.Limit < 1 || p.Limit > MaxLimit {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, p.Limit)
	}
	if p.Offset < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidOffset, p.Offset)
	}
	return nil
}

// Page is one slice of a listing with the total it came from.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// Apply returns the page of items selected by p. An offset past the end
// yields an empty page.
func Apply[T any](items []T, p Params) Page[T] {
	total := len(items)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	page := make([]T, end-start)
	copy(page, items[start:end])
	return Page[T]{
		Items:   page,
		Total:   total,
		Offset:  p.Offset,
		Limit:   p.Limit,
		HasMore: end < total,
	}
}
