package runtime

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is against a returned *Error.
var (
	// ErrDivisionByZero is returned when the right operand of / is zero
	ErrDivisionByZero = errors.New("division by zero")

	// ErrModuloByZero is returned when the right operand of % is zero
	ErrModuloByZero = errors.New("modulo by zero")

	// ErrTypeMismatch is returned when an operator receives operands it cannot combine
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrIndexOutOfBounds is returned for array indices outside the array
	ErrIndexOutOfBounds = errors.New("index out of bounds")

	// ErrUnknownFunction is returned for unresolvable builtins, plugins and methods
	ErrUnknownFunction = errors.New("unknown function")

	// ErrInvalidArguments is returned when a builtin receives the wrong argument count
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrInvalidNumber is returned when arithmetic overflows to an infinity or NaN
	ErrInvalidNumber = errors.New("invalid number")

	// ErrPluginFailed is returned when a provider reports a failure
	ErrPluginFailed = errors.New("plugin failed")

	// ErrConstraintViolated is returned when an assert or ensure is falsy
	ErrConstraintViolated = errors.New("constraint violated")

	// ErrReadonlyField is returned when updating a readonly input after execution
	ErrReadonlyField = errors.New("readonly field")

	// ErrUnknownField is returned when updating a field the specification does not declare
	ErrUnknownField = errors.New("unknown field")
)

// ErrorKind is the runtime error category.
type ErrorKind string

const (
	KindExecution  ErrorKind = "execution"
	KindPlugin     ErrorKind = "plugin"
	KindEvaluation ErrorKind = "evaluation"
	KindEvent      ErrorKind = "event"
	KindLifecycle  ErrorKind = "lifecycle"
)

// Error is a runtime failure.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	// Err is the underlying cause, such as a provider error.
	Err      error
	sentinel error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the sentinel the error was built from.
func (e *Error) Is(target error) bool {
	return e.sentinel != nil && e.sentinel == target
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCategory reports the error category used by tooling.
func (e *Error) ErrorCategory() string {
	return string(e.Kind)
}

// ErrorCode reports the stable error code.
func (e *Error) ErrorCode() string {
	return e.Code
}

func evalError(sentinel error, code, format string, args ...any) *Error {
	return &Error{
		Kind:     KindEvaluation,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		sentinel: sentinel,
	}
}

func divisionByZero() *Error {
	return evalError(ErrDivisionByZero, "EVL001", "Division by zero")
}

func moduloByZero() *Error {
	return evalError(ErrModuloByZero, "EVL002", "Modulo by zero")
}

func typeMismatch(format string, args ...any) *Error {
	return evalError(ErrTypeMismatch, "EVL003", format, args...)
}

func indexOutOfBounds(index, length int) *Error {
	return evalError(ErrIndexOutOfBounds, "EVL004", "Index %d out of bounds for array of length %d", index, length)
}

func unknownFunction(name string) *Error {
	return evalError(ErrUnknownFunction, "EVL005", "Unknown function: %s", name)
}

func invalidArguments(format string, args ...any) *Error {
	return evalError(ErrInvalidArguments, "EVL006", format, args...)
}

func invalidNumber(op fmt.Stringer) *Error {
	return evalError(ErrInvalidNumber, "EVL007", "Result of %s is not a valid number", op)
}

func pluginFailed(object, method string, err error) *Error {
	return &Error{
		Kind:     KindPlugin,
		Code:     "PLG004",
		Message:  fmt.Sprintf("%s.%s failed", object, method),
		Err:      err,
		sentinel: ErrPluginFailed,
	}
}

func constraintViolated(kind, expr string) *Error {
	return &Error{
		Kind:     KindExecution,
		Code:     "EXE002",
		Message:  fmt.Sprintf("%s failed: %s", kind, expr),
		sentinel: ErrConstraintViolated,
	}
}

func eventFailed(event string, err error) *Error {
	return &Error{
		Kind:    KindEvent,
		Code:    "EVT001",
		Message: fmt.Sprintf("handler for %s failed", event),
		Err:     err,
	}
}

func lifecycleFailed(phase string, err error) *Error {
	return &Error{
		Kind:    KindLifecycle,
		Code:    "LFC001",
		Message: fmt.Sprintf("%s action failed", phase),
		Err:     err,
	}
}

func fieldError(sentinel error, code, format string, args ...any) *Error {
	return &Error{
		Kind:     KindExecution,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		sentinel: sentinel,
	}
}
