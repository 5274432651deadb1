package lexer

import (
	"errors"
	"strings"
	"testing"
)

// Helper to check if tokens match expected types
func checkTokenTypes(t *testing.T, tokens []Token, expected []TokenType) {
	t.Helper()

	// Remove EOF token for comparison
	actual := tokens
	if len(actual) > 0 && actual[len(actual)-1].Type == TOKEN_EOF {
		actual = actual[:len(actual)-1]
	}

	if len(actual) != len(expected) {
		t.Errorf("Expected %d tokens, got %d", len(expected), len(actual))
		t.Logf("Expected: %v", expected)
		t.Logf("Got: %v", tokensToTypes(actual))
		return
	}

	for i, token := range actual {
		if token.Type != expected[i] {
			t.Errorf("Token %d: expected %s, got %s", i, expected[i], token.Type)
		}
	}
}

func tokensToTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, t := range tokens {
		types[i] = t.Type
	}
	return types
}

func TestLexer_Punctuation(t *testing.T) {
	tokens, err := Tokenize("{ } ( ) : , . -> < >")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_LBRACE, TOKEN_RBRACE,
		TOKEN_LPAREN, TOKEN_RPAREN,
		TOKEN_COLON, TOKEN_COMMA, TOKEN_DOT,
		TOKEN_ARROW, TOKEN_LT, TOKEN_GT,
	})
}

func TestLexer_Keywords(t *testing.T) {
	source := "spec description inputs computed events constraints lifecycle extensions types spectre"
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_SPEC, TOKEN_DESCRIPTION, TOKEN_INPUTS, TOKEN_COMPUTED,
		TOKEN_EVENTS, TOKEN_CONSTRAINTS, TOKEN_LIFECYCLE, TOKEN_EXTENSIONS,
		TOKEN_TYPES, TOKEN_IDENTIFIER,
	})
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		source   string
		types    []TokenType
		literals []interface{}
	}{
		{"42", []TokenType{TOKEN_INT}, []interface{}{int64(42)}},
		{"3.14", []TokenType{TOKEN_FLOAT}, []interface{}{3.14}},
		{"1.2.3", []TokenType{TOKEN_FLOAT, TOKEN_DOT, TOKEN_INT}, []interface{}{1.2, nil, int64(3)}},
		{"7.", []TokenType{TOKEN_INT, TOKEN_DOT}, []interface{}{int64(7), nil}},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			tokens, err := Tokenize(tt.source)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			checkTokenTypes(t, tokens, tt.types)
			for i, literal := range tt.literals {
				if tokens[i].Literal != literal {
					t.Errorf("Token %d: expected literal %v, got %v", i, literal, tokens[i].Literal)
				}
			}
		})
	}
}

func TestLexer_Strings(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"say \"hi\""`, `say "hi"`},
		{`"a\nb"`, "a\nb"},
		{`"Hello ${name}"`, "Hello ${name}"},
		{`"héllo"`, "héllo"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			tokens, err := Tokenize(tt.source)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			checkTokenTypes(t, tokens, []TokenType{TOKEN_STRING})
			if tokens[0].Literal != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, tokens[0].Literal)
			}
		})
	}
}

func TestLexer_UnterminatedString(t *testing.T) {
	_, err := Tokenize(`spec "Agent`)
	if err == nil {
		t.Fatal("Expected error for unterminated string")
	}

	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("Expected *LexError, got %T", err)
	}
	if !strings.Contains(lexErr.Message, "Unterminated string") {
		t.Errorf("Unexpected message: %s", lexErr.Message)
	}
	if lexErr.Column != 6 {
		t.Errorf("Expected column 6, got %d", lexErr.Column)
	}
}

func TestLexer_Versions(t *testing.T) {
	tests := []struct {
		source string
		major  int
		minor  int
		patch  *int
	}{
		{"v1.0", 1, 0, nil},
		{"v2.1.3", 2, 1, intPtr(3)},
		{"v10.20.30", 10, 20, intPtr(30)},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			tokens, err := Tokenize(tt.source)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			checkTokenTypes(t, tokens, []TokenType{TOKEN_VERSION})

			version, ok := tokens[0].Literal.(Version)
			if !ok {
				t.Fatalf("Expected Version literal, got %T", tokens[0].Literal)
			}
			if version.Major != tt.major || version.Minor != tt.minor {
				t.Errorf("Expected %d.%d, got %d.%d", tt.major, tt.minor, version.Major, version.Minor)
			}
			if (version.Patch == nil) != (tt.patch == nil) {
				t.Fatalf("Patch presence mismatch: %v", version.Patch)
			}
			if tt.patch != nil && *version.Patch != *tt.patch {
				t.Errorf("Expected patch %d, got %d", *tt.patch, *version.Patch)
			}
			if tokens[0].Lexeme != tt.source {
				t.Errorf("Expected lexeme %q, got %q", tt.source, tokens[0].Lexeme)
			}
		})
	}
}

func TestLexer_VersionLikeIdentifiers(t *testing.T) {
	tests := []struct {
		source string
		types  []TokenType
	}{
		{"v1", []TokenType{TOKEN_IDENTIFIER}},
		{"v1.x", []TokenType{TOKEN_IDENTIFIER, TOKEN_DOT, TOKEN_IDENTIFIER}},
		{"version.1", []TokenType{TOKEN_IDENTIFIER, TOKEN_DOT, TOKEN_INT}},
		{"v1.2.3.4", []TokenType{TOKEN_VERSION, TOKEN_DOT, TOKEN_INT}},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			tokens, err := Tokenize(tt.source)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			checkTokenTypes(t, tokens, tt.types)
		})
	}
}

func TestLexer_UnexpectedCharacters(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"@", "'@'"},
		{"a + b", "'+'"},
		{"x - y", "'-'"},
		{"名前", "'名'"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := Tokenize(tt.source)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %s, got %v", tt.want, err)
			}
		})
	}
}

func TestLexer_Positions(t *testing.T) {
	source := "spec \"A\" v1.0 {\n  inputs:\n}"
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []struct {
		typ    TokenType
		line   int
		column int
	}{
		{TOKEN_SPEC, 1, 1},
		{TOKEN_STRING, 1, 6},
		{TOKEN_VERSION, 1, 10},
		{TOKEN_LBRACE, 1, 15},
		{TOKEN_INPUTS, 2, 3},
		{TOKEN_COLON, 2, 9},
		{TOKEN_RBRACE, 3, 1},
		{TOKEN_EOF, 3, 2},
	}

	if len(tokens) != len(expected) {
		t.Fatalf("Expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, want := range expected {
		got := tokens[i]
		if got.Type != want.typ || got.Line != want.line || got.Column != want.column {
			t.Errorf("Token %d: expected %s at %d:%d, got %s at %d:%d",
				i, want.typ, want.line, want.column, got.Type, got.Line, got.Column)
		}
	}
}

func TestLexer_AlwaysEndsWithEOF(t *testing.T) {
	for _, source := range []string{"", "   \n\t", "spec"} {
		tokens, err := Tokenize(source)
		if err != nil {
			t.Fatalf("Unexpected error for %q: %v", source, err)
		}
		if tokens[len(tokens)-1].Type != TOKEN_EOF {
			t.Errorf("Expected trailing EOF for %q", source)
		}
	}
}

// Arbitrary byte soup must never panic.
func TestLexer_Totality(t *testing.T) {
	inputs := []string{
		"\x00\x01\x02",
		"\"\\",
		"v",
		"v1.",
		"->->-",
		"\xff\xfe",
		strings.Repeat("{", 1000),
		"99999999999999999999999",
		"spec \"x\" v1.0 { ☃ }",
	}

	for _, input := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Tokenize panicked on %q: %v", input, r)
				}
			}()
			_, _ = Tokenize(input)
		}()
	}
}

func intPtr(n int) *int { return &n }
