// Package errors provides structured error reporting for SIGMOS tooling. It
// classifies the typed errors raised by the lexer, parser, type checker and
// runtime into one shape with codes and categories, formatted either for the
// terminal or as JSON.
package errors

import (
	"encoding/json"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
)

// ErrorCode represents a unique error code
type ErrorCode string

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryGrammar covers lexical and structural parse failures (GRM001-099)
	CategoryGrammar ErrorCategory = "grammar"
	// CategorySemantic covers invalid declarations (TYP200-299, TYP600)
	CategorySemantic ErrorCategory = "semantic"
	// CategoryType covers inference and compatibility failures (TYP100-599)
	CategoryType ErrorCategory = "type"
	// CategoryEvaluation covers runtime expression failures (EVL001-099)
	CategoryEvaluation ErrorCategory = "evaluation"
	// CategoryPlugin covers provider-reported failures (PLG001-099)
	CategoryPlugin ErrorCategory = "plugin"
	// CategoryExecution covers execution-level failures (EXE001-099)
	CategoryExecution ErrorCategory = "execution"
	// CategoryEvent covers event dispatch failures (EVT001-099)
	CategoryEvent ErrorCategory = "event"
	// CategoryLifecycle covers lifecycle action failures (LFC001-099)
	CategoryLifecycle ErrorCategory = "lifecycle"
)

// ErrorSeverity indicates the severity level of an error
type ErrorSeverity string

const (
	// SeverityError indicates an error that rejects the specification
	SeverityError ErrorSeverity = "error"
	// SeverityWarning indicates a warning that suggests potential issues
	SeverityWarning ErrorSeverity = "warning"
)

// ErrorContext provides source code context for an error
type ErrorContext struct {
	// Current is the line of code where the error occurred
	Current string `json:"current"`
	// SourceLines is a snippet of source code (before, error line, after)
	SourceLines []string `json:"source_lines"`
}

// CompilerError is the common shape every SIGMOS error is reported in
type CompilerError struct {
	Code       ErrorCode          `json:"code"`
	Category   ErrorCategory      `json:"category"`
	Severity   ErrorSeverity      `json:"severity"`
	Message    string             `json:"message"`
	Location   ast.SourceLocation `json:"location"`
	File       string             `json:"file,omitempty"`
	Context    *ErrorContext      `json:"context,omitempty"`
	Expected   string             `json:"expected,omitempty"`
	Actual     string             `json:"actual,omitempty"`
	Suggestion string             `json:"suggestion,omitempty"`

	cause error
}

// Error implements the error interface
func (e *CompilerError) Error() string {
	return FormatCompact(e)
}

// Unwrap returns the error this one was classified from.
func (e *CompilerError) Unwrap() error {
	return e.cause
}

// Format returns a human-readable error message for terminal output
func (e *CompilerError) Format() string {
	return FormatError(e)
}

// ToJSON returns the error as a JSON string
func (e *CompilerError) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WithFile sets the source file name for the error
func (e *CompilerError) WithFile(file string) *CompilerError {
	e.File = file
	return e
}

// WithContext sets the source code context for the error
func (e *CompilerError) WithContext(current string, sourceLines []string) *CompilerError {
	e.Context = &ErrorContext{
		Current:     current,
		SourceLines: sourceLines,
	}
	return e
}

// ErrorList is a collection of compiler errors
type ErrorList []*CompilerError

// Error implements the error interface
func (el ErrorList) Error() string {
	if len(el) == 0 {
		return "no errors"
	}
	return FormatErrorList(el)
}

// HasErrors returns true if the list contains any errors (excludes warnings)
func (el ErrorList) HasErrors() bool {
	for _, err := range el {
		if err.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ToJSON returns all errors as a JSON array
func (el ErrorList) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(el, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// ErrorCount returns the number of errors and warnings
func (el ErrorList) ErrorCount() (errors, warnings int) {
	for _, err := range el {
		switch err.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		}
	}
	return
}
