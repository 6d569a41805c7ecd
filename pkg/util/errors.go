// Package util provides logging helpers and the common error taxonomy.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// branch with errors.Is regardless of how much context was attached.
var (
	// Transport layer
	ErrUnreachable    = errors.New("host unreachable")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrTimeout        = errors.New("operation timed out")
	ErrCommandFailed  = errors.New("remote command failed")
	ErrTransferFailed = errors.New("file transfer failed")

	// Parsers
	ErrParse = errors.New("unparseable device output")

	// Orchestrator preconditions
	ErrDuplicate = errors.New("resource already exists")
	ErrNotFound  = errors.New("resource not found")

	// Persistence
	ErrPersistence = errors.New("persistence failure")

	// Concurrency
	ErrDeviceLocked = errors.New("device is locked by another operation")

	// Capability
	ErrUnsupported = errors.New("operation not supported by this dialect")
)

// CommandError carries enough context to show an operator which command
// failed on which device.
type CommandError struct {
	Device  string
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q on %s: %v", e.Command, e.Device, e.Err)
	if e.Output != "" {
		msg += " (output: " + e.Output + ")"
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCommandFailed
}

// NewCommandError wraps a failed remote command with device context.
func NewCommandError(device, command, output string, err error) *CommandError {
	if err == nil {
		err = ErrCommandFailed
	}
	return &CommandError{Device: device, Command: command, Output: output, Err: err}
}

// ParseError reports structurally nonsensical parser input. Inputs that
// merely yield zero records are not errors.
type ParseError struct {
	Parser string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s output: %s", e.Parser, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError creates a parse error for the named parser.
func NewParseError(parser, reason string) *ParseError {
	return &ParseError{Parser: parser, Reason: reason}
}

// DuplicateError reports an attempt to register a resource that already
// exists, distinct from generic failure so callers can render a
// non-alarming "already exists" message.
type DuplicateError struct {
	Resource string
	Key      string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Key)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// NewDuplicateError creates a duplicate-resource error.
func NewDuplicateError(resource, key string) *DuplicateError {
	return &DuplicateError{Resource: resource, Key: key}
}

// NotFoundError reports a missing resource referenced by id or natural key.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a not-found error.
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}
