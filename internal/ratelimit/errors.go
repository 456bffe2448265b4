package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionConflict is returned by CompareAndSwap when the stored version moved
	ErrVersionConflict = errors.New("counter version conflict")

	// ErrStoreFault marks a counter read that failed for a reason other than absence
	ErrStoreFault = errors.New("counter store fault")

	// ErrIncrementExhausted marks an increment that ran out of attempts
	ErrIncrementExhausted = errors.New("counter increment exhausted")
)

// StoreFaultError wraps the backend error of a failed usage read
type StoreFaultError struct {
	Window Window
	Key    string
	Err    error
}

func (e *StoreFaultError) Error() string {
	return fmt.Sprintf("read %s counter %q: %v", e.Window, e.Key, e.Err)
}

func (e *StoreFaultError) Unwrap() error {
	return e.Err
}

func (e *StoreFaultError) Is(target error) bool {
	return target == ErrStoreFault
}

// IncrementExhaustedError reports a window whose counter could not be committed.
// The request it belongs to has already been decided.
type IncrementExhaustedError struct {
	Window   Window
	Key      string
	Attempts int
	LastErr  error
}

func (e *IncrementExhaustedError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("increment %s counter %q: gave up after %d attempts", e.Window, e.Key, e.Attempts)
	}
	return fmt.Sprintf("increment %s counter %q: gave up after %d attempts: %v", e.Window, e.Key, e.Attempts, e.LastErr)
}

func (e *IncrementExhaustedError) Unwrap() error {
	return e.LastErr
}

func (e *IncrementExhaustedError) Is(target error) bool {
	return target == ErrIncrementExhausted
}

// IsStoreFault reports whether err came from a failed counter read
func IsStoreFault(err error) bool {
	return errors.Is(err, ErrStoreFault)
}
