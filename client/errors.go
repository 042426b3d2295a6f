package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when an operation needs a verified table
	// session and none exists; the caller must route to verification.
	ErrNoSession = errors.New("no active table session")

	// ErrEmptyCart is returned when compiling an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
)

// TransportError wraps a network/timeout failure on a boundary call.
// Verification flows treat it as recoverable: state rolls back, the
// guest retries.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DispatchError reports a failed (possibly partially persisted) order
// submission. PersistedRefs names the rows that did land, so a retry of
// the full batch converges instead of duplicating.
type DispatchError struct {
	Message       string
	PersistedRefs []string
	Err           error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("dispatch failed: %s", e.Message)
}

func (e *DispatchError) Unwrap() error { return e.Err }
