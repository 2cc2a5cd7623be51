package entity

import (
	"errors"
	"fmt"
)

// Upstream failure kinds
var (
	ErrUnreachable  = errors.New("upstream unreachable")
	ErrBadResponse  = errors.New("upstream bad response")
	ErrUnauthorized = errors.New("upstream unauthorized")
)

// UpstreamError is returned by the flight provider for any failed fetch
type UpstreamError struct {
	Kind       error
	StatusCode int
	Err        error
}

// NewUpstreamError wraps err with the given kind
func NewUpstreamError(kind error, statusCode int, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, StatusCode: statusCode, Err: err}
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *UpstreamError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
