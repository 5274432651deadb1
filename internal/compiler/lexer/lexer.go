// Package lexer provides lexical analysis for SIGMOS source code.
// It tokenizes .sigmos files into a stream of tokens for the parser.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer tokenizes SIGMOS source code.
//
// Thread Safety: Lexer instances are NOT thread-safe. Each goroutine must
// create its own Lexer instance via New().
type Lexer struct {
	source  string  // Source code to tokenize
	start   int     // Start position of current token
	current int     // Current position in source
	line    int     // Current line number (1-indexed)
	column  int     // Current column number (1-indexed)
	tokens  []Token // Collected tokens
	err     *LexError
}

// New creates a new Lexer for the given source code
func New(source string) *Lexer {
	return &Lexer{
		source: source,
		line:   1,
		column: 1,
		tokens: make([]Token, 0),
	}
}

// Tokenize scans source and returns the token stream terminated by TOKEN_EOF.
func Tokenize(source string) ([]Token, error) {
	return New(source).ScanTokens()
}

// ScanTokens tokenizes the entire source. Scanning stops at the first
// lexical error, which is returned as a *LexError.
func (l *Lexer) ScanTokens() ([]Token, error) {
	for !l.isAtEnd() && l.err == nil {
		l.start = l.current
		l.scanToken()
	}
	if l.err != nil {
		return nil, l.err
	}

	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_EOF,
		Lexeme: "",
		Line:   l.line,
		Column: l.column,
	})

	return l.tokens, nil
}

func (l *Lexer) scanToken() {
	c := l.advance()

	switch c {
	case '{':
		l.addToken(TOKEN_LBRACE)
	case '}':
		l.addToken(TOKEN_RBRACE)
	case '(':
		l.addToken(TOKEN_LPAREN)
	case ')':
		l.addToken(TOKEN_RPAREN)
	case ':':
		l.addToken(TOKEN_COLON)
	case ',':
		l.addToken(TOKEN_COMMA)
	case '.':
		l.addToken(TOKEN_DOT)
	case '<':
		l.addToken(TOKEN_LT)
	case '>':
		l.addToken(TOKEN_GT)
	case '-':
		if l.match('>') {
			l.addToken(TOKEN_ARROW)
		} else {
			l.addError("Unexpected character '-'")
		}
	case '"':
		l.string()
	case ' ', '\r', '\t':
		// Ignore whitespace
	case '\n':
		l.line++
		l.column = 1
	default:
		switch {
		case l.isDigit(c):
			l.number()
		case l.isAlpha(c):
			l.identifier()
		default:
			l.unexpected(c)
		}
	}
}

// unexpected reports the offending character, decoding multi-byte runes so
// the message carries the character rather than a stray byte.
func (l *Lexer) unexpected(c byte) {
	if c < utf8.RuneSelf {
		l.addError(fmt.Sprintf("Unexpected character %q", rune(c)))
		return
	}
	r, size := utf8.DecodeRuneInString(l.source[l.start:])
	// advance() already consumed the first byte
	for i := 1; i < size && !l.isAtEnd(); i++ {
		l.advance()
	}
	if r == utf8.RuneError {
		l.addError("Invalid UTF-8 byte in source")
		return
	}
	l.addError(fmt.Sprintf("Unexpected character %q", r))
}

// string scans a double-quoted string literal
func (l *Lexer) string() {
	var value strings.Builder
	startLine, startColumn := l.line, l.column-1

	for !l.isAtEnd() && l.peek() != '"' {
		c := l.advance()
		switch c {
		case '\n':
			l.line++
			l.column = 1
			value.WriteByte(c)
		case '\\':
			if l.isAtEnd() {
				continue
			}
			escaped := l.advance()
			switch escaped {
			case 'n':
				value.WriteByte('\n')
			case 't':
				value.WriteByte('\t')
			case 'r':
				value.WriteByte('\r')
			case '"', '\\':
				value.WriteByte(escaped)
			default:
				value.WriteByte('\\')
				value.WriteByte(escaped)
			}
		default:
			value.WriteByte(c)
		}
	}

	if l.isAtEnd() {
		l.err = &LexError{
			Message: "Unterminated string",
			Line:    startLine,
			Column:  startColumn,
			Lexeme:  truncate(l.source[l.start:l.current]),
		}
		return
	}

	l.advance() // closing "

	l.tokens = append(l.tokens, Token{
		Type:    TOKEN_STRING,
		Lexeme:  l.source[l.start:l.current],
		Literal: value.String(),
		Line:    startLine,
		Column:  startColumn,
	})
}

// number scans an integer or floating-point literal
func (l *Lexer) number() {
	for l.isDigit(l.peek()) {
		l.advance()
	}

	isFloat := false
	if l.peek() == '.' && l.isDigit(l.peekNext()) {
		isFloat = true
		l.advance() // consume .
		for l.isDigit(l.peek()) {
			l.advance()
		}
	}

	lexeme := l.source[l.start:l.current]
	if isFloat {
		value, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			l.addError(fmt.Sprintf("Invalid float literal: %s", lexeme))
			return
		}
		l.addTokenWithLiteral(TOKEN_FLOAT, value)
		return
	}

	value, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		l.addError(fmt.Sprintf("Integer literal out of range: %s", lexeme))
		return
	}
	l.addTokenWithLiteral(TOKEN_INT, value)
}

// identifier scans an identifier, keyword or version literal
func (l *Lexer) identifier() {
	for l.isAlphaNumeric(l.peek()) {
		l.advance()
	}

	text := l.source[l.start:l.current]

	if isVersionPrefix(text) && l.peek() == '.' && l.isDigit(l.peekNext()) {
		l.version()
		return
	}

	tokenType, isKeyword := Keywords[text]
	if !isKeyword {
		tokenType = TOKEN_IDENTIFIER
	}
	l.addToken(tokenType)
}

// version folds v<major>.<minor>[.<patch>] into a single token. The major
// component has already been consumed by identifier().
func (l *Lexer) version() {
	components := []string{l.source[l.start+1 : l.current]}

	for len(components) < 3 && l.peek() == '.' && l.isDigit(l.peekNext()) {
		l.advance() // consume .
		begin := l.current
		for l.isDigit(l.peek()) {
			l.advance()
		}
		components = append(components, l.source[begin:l.current])
	}

	numbers := make([]int, len(components))
	for i, component := range components {
		n, err := strconv.Atoi(component)
		if err != nil {
			l.addError(fmt.Sprintf("Version component out of range: %s", component))
			return
		}
		numbers[i] = n
	}

	version := Version{Major: numbers[0], Minor: numbers[1]}
	if len(numbers) == 3 {
		patch := numbers[2]
		version.Patch = &patch
	}
	l.addTokenWithLiteral(TOKEN_VERSION, version)
}

func isVersionPrefix(text string) bool {
	if len(text) < 2 || text[0] != 'v' {
		return false
	}
	for i := 1; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}

// Helper methods

// isAtEnd returns true if we've consumed all characters
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance consumes and returns the current character
func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	c := l.source[l.current]
	l.current++
	l.column++
	return c
}

// match checks if the current character matches expected and consumes it
func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.current] != expected {
		return false
	}
	l.current++
	l.column++
	return true
}

// peek returns the current character without consuming it
func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

// peekNext returns the character after the current one
func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

func (l *Lexer) isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *Lexer) isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func (l *Lexer) isAlphaNumeric(c byte) bool {
	return l.isAlpha(c) || l.isDigit(c)
}

// addToken adds a token without a literal value
func (l *Lexer) addToken(tokenType TokenType) {
	l.addTokenWithLiteral(tokenType, nil)
}

// addTokenWithLiteral adds a token with a literal value
func (l *Lexer) addTokenWithLiteral(tokenType TokenType, literal interface{}) {
	l.tokens = append(l.tokens, Token{
		Type:    tokenType,
		Lexeme:  l.source[l.start:l.current],
		Literal: literal,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
	})
}

// addError records the lexical error that stops scanning
func (l *Lexer) addError(message string) {
	l.err = &LexError{
		Message: message,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
		Lexeme:  truncate(l.source[l.start:l.current]),
	}
}

func truncate(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}

// IsKeyword checks if a string is a SIGMOS keyword
func IsKeyword(s string) bool {
	_, ok := Keywords[s]
	return ok
}
