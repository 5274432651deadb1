// Package parser implements the SIGMOS parser, transforming token streams into
// a specification AST. It is a single-pass recursive descent parser with one
// forward cursor; parsing stops at the first structural error.
package parser

import (
	"fmt"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/compiler/lexer"
)

// ParseError represents a grammar error encountered during parsing
type ParseError struct {
	Message  string
	Expected string
	Found    string
	Location ast.SourceLocation
	Token    lexer.Token
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse error at %d:%d: %s (near '%s')",
		e.Location.Line, e.Location.Column, e.Message, e.Token.Lexeme)
}

// NewParseError creates a new parse error
func NewParseError(message string, token lexer.Token) *ParseError {
	return &ParseError{
		Message:  message,
		Found:    token.Describe(),
		Location: ast.TokenLocation(token),
		Token:    token,
	}
}

// newExpectedError reports a mismatch between the required and actual token.
func newExpectedError(expected string, token lexer.Token) *ParseError {
	err := NewParseError(fmt.Sprintf("Expected %s, found %s", expected, token.Describe()), token)
	err.Expected = expected
	return err
}
