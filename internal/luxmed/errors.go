package luxmed

import (
	"errors"
	"fmt"
)

// AuthError reports a credential or session rejection by the portal.
// Locked marks an account lock; hammering a locked account can make the
// lock permanent, so callers must stop polling entirely when it is set.
type AuthError struct {
	Locked  bool
	Message string
}

func (e *AuthError) Error() string {
	if e.Locked {
		return fmt.Sprintf("luxmed: account locked: %s", e.Message)
	}
	return fmt.Sprintf("luxmed: authentication rejected: %s", e.Message)
}

// TransientError is a network or server-side failure, recoverable by
// waiting for the next poll cycle.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("luxmed: %s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsLocked(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Locked
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
