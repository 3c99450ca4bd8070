package domain

import (
	"errors"
	"fmt"
)

// ErrAuth marks "no usable token" failures. Fatal to the current user's pass,
// never to a whole orchestrator run; callers must treat it as "user must
// reconnect".
var ErrAuth = errors.New("no valid access token")

// ProviderAPIError wraps a non-2xx response from the Google REST surface.
// Stage-fatal: the stage aborts, records a failed history entry and relies on
// the next scheduled run for retry.
type ProviderAPIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider API error in %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider API error in %s: %v", e.Op, e.Err)
}

func (e *ProviderAPIError) Unwrap() error { return e.Err }

// PersistenceError wraps a database write failure. Surfaced to manual callers
// as a failed action; isolated per user on the scheduled path.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}

func IsProviderAPIError(err error) bool {
	var p *ProviderAPIError
	return errors.As(err, &p)
}
