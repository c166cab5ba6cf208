package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the id is malformed or the upstream has no such entry
	ErrNotFound = errors.New("anime not found")

	// ErrInvalidParams indicates a request parameter failed validation
	ErrInvalidParams = errors.New("invalid request parameters")

	// ErrAllSectionsFailed indicates every section of a page failed to load
	ErrAllSectionsFailed = errors.New("all sections failed to load")
)

// StatusError is returned for a non-success HTTP status other than throttling
type StatusError struct {
	Path       string
	StatusCode int
	Status     string // Status text, e.g. "500 Internal Server Error"
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s failed: %s", e.Path, e.Status)
}
