package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/copyleftdev/sigmos/internal/compiler/parser"
	"github.com/copyleftdev/sigmos/internal/compiler/typechecker"
)

type fakeRuntimeError struct{}

func (fakeRuntimeError) Error() string         { return "Division by zero" }
func (fakeRuntimeError) ErrorCategory() string { return "evaluation" }
func (fakeRuntimeError) ErrorCode() string     { return "EVL001" }

func TestClassify(t *testing.T) {
	_, lexErr := parser.ParseString(`spec "A" v1.0 { # }`)
	_, parseErr := parser.ParseString(`spec "A" v1.0 { description: 1 }`)

	spec, err := parser.ParseString(`spec "A" v1.0 { inputs: a: Missing computed: b: -> nope }`)
	if err != nil {
		t.Fatalf("Unexpected parse error: %v", err)
	}
	typeErr := typechecker.Check(spec)

	tests := []struct {
		name     string
		err      error
		count    int
		category ErrorCategory
		code     ErrorCode
	}{
		{"lexer", lexErr, 1, CategoryGrammar, CodeLexical},
		{"parser", parseErr, 1, CategoryGrammar, CodeSyntax},
		{"type checker", typeErr, 2, CategorySemantic, ErrorCode(typechecker.ErrUndefinedType)},
		{"categorized", fmt.Errorf("wrapped: %w", fakeRuntimeError{}), 1, CategoryEvaluation, "EVL001"},
		{"unknown", stderrors.New("boom"), 1, "", CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := Classify(tt.err)
			if len(list) != tt.count {
				t.Fatalf("Expected %d errors, got %d", tt.count, len(list))
			}
			if list[0].Category != tt.category {
				t.Errorf("Expected category %q, got %q", tt.category, list[0].Category)
			}
			if list[0].Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, list[0].Code)
			}
			if list[0].Unwrap() == nil {
				t.Error("Expected classified error to keep its cause")
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestAttachSourceAndFormat(t *testing.T) {
	source := "spec \"A\" v1.0 {\n  description: 1\n}"
	_, err := parser.ParseString(source)

	list := Classify(err).AttachSource("agent.sigmos", source)
	formatted := list[0].Format()

	if !strings.Contains(formatted, "Grammar Error in agent.sigmos") {
		t.Errorf("Missing header: %s", formatted)
	}
	if !strings.Contains(formatted, "Line 2, Column 16:") {
		t.Errorf("Missing location: %s", formatted)
	}
	if !strings.Contains(formatted, "description: 1 ←") {
		t.Errorf("Missing source excerpt: %s", formatted)
	}

	compact := list[0].Error()
	if !strings.HasPrefix(compact, "agent.sigmos:2:16: error:") {
		t.Errorf("Unexpected compact form: %s", compact)
	}

	js, jsonErr := list.ToJSON()
	if jsonErr != nil {
		t.Fatalf("ToJSON failed: %v", jsonErr)
	}
	if !strings.Contains(js, `"category": "grammar"`) {
		t.Errorf("Unexpected JSON: %s", js)
	}
}
