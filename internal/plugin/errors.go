package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors, matched with errors.Is.
var (
	// ErrInitializationFailed is returned when a provider cannot set itself up
	ErrInitializationFailed = errors.New("initialization failed")

	// ErrNotInitialized is returned when Execute runs before Initialize
	ErrNotInitialized = errors.New("not initialized")

	// ErrMethodNotFound is returned for methods a provider does not implement
	ErrMethodNotFound = errors.New("method not found")

	// ErrExecutionFailed is returned when a method call fails
	ErrExecutionFailed = errors.New("execution failed")

	// ErrInvalidConfiguration is returned when provider configuration is rejected
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNetwork is returned for transport failures
	ErrNetwork = errors.New("network error")

	// ErrSerialization is returned when values cannot be encoded or decoded
	ErrSerialization = errors.New("serialization error")

	// ErrNotFound is returned when no provider is registered under a name or alias
	ErrNotFound = errors.New("plugin not found")

	// ErrAlreadyRegistered is returned when a name or alias is already taken
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrDisabled is returned when executing a disabled provider
	ErrDisabled = errors.New("plugin disabled")
)

var errorCodes = map[error]string{
	ErrInitializationFailed: "PLG001",
	ErrNotInitialized:       "PLG002",
	ErrMethodNotFound:       "PLG003",
	ErrExecutionFailed:      "PLG004",
	ErrInvalidConfiguration: "PLG005",
	ErrNetwork:              "PLG006",
	ErrSerialization:        "PLG007",
	ErrNotFound:             "PLG008",
	ErrAlreadyRegistered:    "PLG009",
	ErrDisabled:             "PLG010",
}

// Error is a provider failure. Kind is one of the sentinel errors above.
type Error struct {
	Plugin string
	Method string
	Kind   error
	Detail string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plugin '%s'", e.Plugin)
	if e.Method != "" {
		fmt.Fprintf(&b, " method '%s'", e.Method)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is matches the error's kind sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCategory reports the error category used by tooling.
func (e *Error) ErrorCategory() string {
	return "plugin"
}

// ErrorCode reports a stable code for the error kind.
func (e *Error) ErrorCode() string {
	if code, ok := errorCodes[e.Kind]; ok {
		return code
	}
	return "PLG000"
}

// NotInitialized reports Execute before Initialize.
func NotInitialized(plugin string) error {
	return &Error{Plugin: plugin, Kind: ErrNotInitialized}
}

// MethodNotFound reports an unknown method.
func MethodNotFound(plugin, method string) error {
	return &Error{Plugin: plugin, Method: method, Kind: ErrMethodNotFound}
}

// ExecutionFailed wraps a failure inside a method call.
func ExecutionFailed(plugin, method string, err error) error {
	return &Error{Plugin: plugin, Method: method, Kind: ErrExecutionFailed, Err: err}
}

// InvalidConfiguration reports a rejected provider configuration.
func InvalidConfiguration(plugin, detail string) error {
	return &Error{Plugin: plugin, Kind: ErrInvalidConfiguration, Detail: detail}
}

// InitializationFailed wraps a setup failure.
func InitializationFailed(plugin string, err error) error {
	return &Error{Plugin: plugin, Kind: ErrInitializationFailed, Err: err}
}

// NetworkError wraps a transport failure.
func NetworkError(plugin, method string, err error) error {
	return &Error{Plugin: plugin, Method: method, Kind: ErrNetwork, Err: err}
}

// SerializationError wraps an encoding failure.
func SerializationError(plugin, method string, err error) error {
	return &Error{Plugin: plugin, Method: method, Kind: ErrSerialization, Err: err}
}

// InvalidArgument reports a missing or mistyped method argument.
func InvalidArgument(plugin, method, detail string) error {
	return &Error{Plugin: plugin, Method: method, Kind: ErrExecutionFailed, Detail: detail}
}

// InitializationErrors collects per-provider failures from InitializeAll.
type InitializationErrors struct {
	Failures map[string]error
}

// Error implements the error interface
func (e *InitializationErrors) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = e.Failures[name].Error()
	}
	return fmt.Sprintf("%d plugin(s) failed to initialize: %s", len(names), strings.Join(parts, "; "))
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *InitializationErrors) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}
