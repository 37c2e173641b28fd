package monitor

import (
	"errors"
	"fmt"
)

// FetchError is a network failure, timeout or non-2xx response.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a malformed payload or a missing required field.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// NotificationError is a failed send or edit for one tenant.
type NotificationError struct {
	Op     string // announce | open | update | close
	Tenant int64
	Err    error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s for tenant %d: %v", e.Op, e.Tenant, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// PanicError wraps a recovered panic from a poll cycle.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// StoreError is a failure reading the tenant channel map.
type StoreError struct{ Err error }

func (e *StoreError) Error() string { return "channel store: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// ErrorKind classifies err for reports and metrics.
func ErrorKind(err error) string {
	var (
		fe *FetchError
		pe *ParseError
		ne *NotificationError
		pa *PanicError
		se *StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pa):
		return "panic"
	case errors.As(err, &se):
		return "store"
	case errors.As(err, &fe):
		return "fetch"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &ne):
		return "notify"
	default:
		return "unknown"
	}
}
