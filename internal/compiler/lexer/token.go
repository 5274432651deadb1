package lexer

import "fmt"

// TokenType represents the type of a token in the SIGMOS language
type TokenType int

const (
	// TOKEN_EOF marks the end of the token stream.
	TOKEN_EOF TokenType = iota

	// Keywords
	TOKEN_SPEC        // spec
	TOKEN_DESCRIPTION // description
	TOKEN_INPUTS      // inputs
	TOKEN_COMPUTED    // computed
	TOKEN_EVENTS      // events
	TOKEN_CONSTRAINTS // constraints
	TOKEN_LIFECYCLE   // lifecycle
	TOKEN_EXTENSIONS  // extensions
	TOKEN_TYPES       // types

	// Literals
	TOKEN_IDENTIFIER
	TOKEN_STRING
	TOKEN_INT
	TOKEN_FLOAT
	// TOKEN_VERSION is the composite v<major>.<minor>[.<patch>] literal.
	TOKEN_VERSION

	// Punctuation
	TOKEN_LBRACE // {
	TOKEN_RBRACE // }
	TOKEN_LPAREN // (
	TOKEN_RPAREN // )
	TOKEN_COLON  // :
	TOKEN_COMMA  // ,
	TOKEN_DOT    // .
	TOKEN_ARROW  // ->
	TOKEN_LT     // <
	TOKEN_GT     // >
)

// TokenTypeNames maps token types to their human-readable names
var TokenTypeNames = map[TokenType]string{
	TOKEN_EOF: "EOF",

	TOKEN_SPEC:        "spec",
	TOKEN_DESCRIPTION: "description",
	TOKEN_INPUTS:      "inputs",
	TOKEN_COMPUTED:    "computed",
	TOKEN_EVENTS:      "events",
	TOKEN_CONSTRAINTS: "constraints",
	TOKEN_LIFECYCLE:   "lifecycle",
	TOKEN_EXTENSIONS:  "extensions",
	TOKEN_TYPES:       "types",

	TOKEN_IDENTIFIER: "IDENTIFIER",
	TOKEN_STRING:     "STRING",
	TOKEN_INT:        "INT",
	TOKEN_FLOAT:      "FLOAT",
	TOKEN_VERSION:    "VERSION",

	TOKEN_LBRACE: "{",
	TOKEN_RBRACE: "}",
	TOKEN_LPAREN: "(",
	TOKEN_RPAREN: ")",
	TOKEN_COLON:  ":",
	TOKEN_COMMA:  ",",
	TOKEN_DOT:    ".",
	TOKEN_ARROW:  "->",
	TOKEN_LT:     "<",
	TOKEN_GT:     ">",
}

// String returns the string representation of a token type
func (t TokenType) String() string {
	if name, ok := TokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// Keywords maps keyword strings to their token types
var Keywords = map[string]TokenType{
	"spec":        TOKEN_SPEC,
	"description": TOKEN_DESCRIPTION,
	"inputs":      TOKEN_INPUTS,
	"computed":    TOKEN_COMPUTED,
	"events":      TOKEN_EVENTS,
	"constraints": TOKEN_CONSTRAINTS,
	"lifecycle":   TOKEN_LIFECYCLE,
	"extensions":  TOKEN_EXTENSIONS,
	"types":       TOKEN_TYPES,
}

// Token represents a single lexical token
type Token struct {
	Type    TokenType   // Token type
	Lexeme  string      // Raw text from source
	Literal interface{} // Parsed literal value (string, int64, float64, Version)
	Line    int         // Line number (1-indexed)
	Column  int         // Column number (1-indexed)
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s '%s' %v at %d:%d", t.Type, t.Lexeme, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s '%s' at %d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}

// Describe renders the token for "expected X, found Y" messages.
func (t Token) Describe() string {
	switch t.Type {
	case TOKEN_EOF:
		return "end of input"
	case TOKEN_IDENTIFIER:
		return fmt.Sprintf("identifier '%s'", t.Lexeme)
	case TOKEN_STRING:
		return fmt.Sprintf("string %s", t.Lexeme)
	case TOKEN_INT, TOKEN_FLOAT:
		return fmt.Sprintf("number %s", t.Lexeme)
	case TOKEN_VERSION:
		return fmt.Sprintf("version %s", t.Lexeme)
	}
	return fmt.Sprintf("'%s'", t.Type)
}

// Version is the literal carried by TOKEN_VERSION tokens.
type Version struct {
	Major int
	Minor int
	Patch *int
}

// LexError represents a lexical error. Lexing stops at the first one.
type LexError struct {
	Message string // Error message
	Line    int    // Line number where error occurred
	Column  int    // Column number where error occurred
	Lexeme  string // The problematic text
}

// Error implements the error interface
func (e *LexError) Error() string {
	return fmt.Sprintf("Lexical error at %d:%d: %s (near '%s')",
		e.Line, e.Column, e.Message, e.Lexeme)
}
