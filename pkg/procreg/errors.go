package procreg

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/procreg/pkg/procreg/proc"
)

// Sentinel errors for registry operations.
var (
	// ErrAlreadyRegistered indicates a unique-mode key is held by another
	// owner. Races to claim a name are normal; callers should treat this
	// as a recoverable outcome, not a failure.
	ErrAlreadyRegistered = errors.New("key already registered")

	// ErrNotFound indicates no live entry exists for the key.
	ErrNotFound = errors.New("key not found")

	// ErrRegistryStopped indicates an operation on a stopped registry.
	ErrRegistryStopped = errors.New("registry stopped")

	// ErrBadOptions indicates Start was called with invalid options.
	ErrBadOptions = errors.New("invalid registry options")
)

// errNilCallback reports a nil dispatch callback.
var errNilCallback = errors.New("callback must not be nil")

// AlreadyRegisteredError reports the owner currently holding a unique key.
type AlreadyRegisteredError struct {
	// Key is the contested key.
	Key any
	// Owner is the process holding the key.
	Owner proc.Process
}

// Error implements the error interface.
func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("key %v already registered by %s", e.Key, e.Owner.ID())
}

// Unwrap returns ErrAlreadyRegistered for errors.Is support.
func (e *AlreadyRegisteredError) Unwrap() error {
	return ErrAlreadyRegistered
}

// OptionError reports which Start option was invalid.
type OptionError struct {
	// Option names the offending option.
	Option string
	// Err describes the problem.
	Err error
}

// Error implements the error interface.
func (e *OptionError) Error() string {
	return fmt.Sprintf("option %s: %v", e.Option, e.Err)
}

// Unwrap returns ErrBadOptions for errors.Is support.
func (e *OptionError) Unwrap() error {
	return ErrBadOptions
}
