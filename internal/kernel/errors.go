package kernel

import (
	"errors"
	"fmt"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
)

// Configuration errors. They are returned while the module set and the link
// graph are built, before any simulation work happens.
var (
	// ErrDuplicateLinkTarget indicates a second link into an input that already has a writer.
	ErrDuplicateLinkTarget = errors.New("kernel: input already linked")

	// ErrUnknownModule indicates a module that was never added to the orchestrator.
	ErrUnknownModule = errors.New("kernel: unknown module")

	// ErrUnknownField indicates a field name the module does not declare.
	ErrUnknownField = errors.New("kernel: unknown field")

	// ErrDuplicateModule indicates two modules registered under one name.
	ErrDuplicateModule = errors.New("kernel: duplicate module name")

	// ErrInvalidRole indicates a link whose endpoints have incompatible roles.
	ErrInvalidRole = errors.New("kernel: invalid field role for link")

	// ErrInvalidAddress indicates a malformed "module.field[index]" address.
	ErrInvalidAddress = errors.New("kernel: invalid field address")

	// ErrTypeMismatch indicates linked fields whose value types differ.
	ErrTypeMismatch = field.ErrTypeMismatch
)

// DuplicateLinkError reports a rejected link and the link that already feeds
// the same input.
type DuplicateLinkError struct {
	Existing Link
	Rejected Link
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("kernel: input %s.%s already linked from %s.%s (rejected %s.%s)",
		e.Existing.ToModule, e.Existing.ToField,
		e.Existing.FromModule, e.Existing.FromField,
		e.Rejected.FromModule, e.Rejected.FromField)
}

func (e *DuplicateLinkError) Unwrap() error {
	return ErrDuplicateLinkTarget
}

// ModuleError wraps an error raised by a module with scheduling context.
type ModuleError struct {
	Module    string
	Phase     string
	TimeStep  int
	Iteration int
	Wrapped   error
}

func (e *ModuleError) Error() string {
	if e.Phase == "initialize" {
		return fmt.Sprintf("kernel: %s: initialize: %v", e.Module, e.Wrapped)
	}
	return fmt.Sprintf("kernel: %s: %s at step %d (iteration %d): %v",
		e.Module, e.Phase, e.TimeStep, e.Iteration, e.Wrapped)
}

func (e *ModuleError) Unwrap() error {
	return e.Wrapped
}
