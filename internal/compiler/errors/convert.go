package errors

import (
	stderrors "errors"
	"strings"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/compiler/lexer"
	"github.com/copyleftdev/sigmos/internal/compiler/parser"
	"github.com/copyleftdev/sigmos/internal/compiler/typechecker"
)

const (
	// CodeLexical is reported for every lexer failure.
	CodeLexical ErrorCode = "GRM001"
	// CodeSyntax is reported for every parser failure.
	CodeSyntax ErrorCode = "GRM002"
	// CodeUnknown is reported for errors no layer claims.
	CodeUnknown ErrorCode = "ERR000"
)

// Categorized is implemented by errors that know their own category and
// code, such as runtime and plugin errors.
type Categorized interface {
	error
	ErrorCategory() string
	ErrorCode() string
}

// Classify converts an error from any SIGMOS layer into an ErrorList.
// It returns nil for a nil error.
func Classify(err error) ErrorList {
	if err == nil {
		return nil
	}

	var lexErr *lexer.LexError
	if stderrors.As(err, &lexErr) {
		return ErrorList{{
			Code:     CodeLexical,
			Category: CategoryGrammar,
			Severity: SeverityError,
			Message:  lexErr.Message,
			Location: ast.SourceLocation{Line: lexErr.Line, Column: lexErr.Column},
			Actual:   lexErr.Lexeme,
			cause:    err,
		}}
	}

	var parseErr *parser.ParseError
	if stderrors.As(err, &parseErr) {
		return ErrorList{{
			Code:     CodeSyntax,
			Category: CategoryGrammar,
			Severity: SeverityError,
			Message:  parseErr.Message,
			Location: parseErr.Location,
			Expected: parseErr.Expected,
			Actual:   parseErr.Found,
			cause:    err,
		}}
	}

	var typeList typechecker.ErrorList
	if stderrors.As(err, &typeList) {
		list := make(ErrorList, 0, len(typeList))
		for _, typeErr := range typeList {
			list = append(list, fromTypeError(typeErr))
		}
		return list
	}

	var typeErr *typechecker.TypeError
	if stderrors.As(err, &typeErr) {
		return ErrorList{fromTypeError(typeErr)}
	}

	var categorized Categorized
	if stderrors.As(err, &categorized) {
		return ErrorList{{
			Code:     ErrorCode(categorized.ErrorCode()),
			Category: ErrorCategory(categorized.ErrorCategory()),
			Severity: SeverityError,
			Message:  categorized.Error(),
			cause:    err,
		}}
	}

	return ErrorList{{
		Code:     CodeUnknown,
		Severity: SeverityError,
		Message:  err.Error(),
		cause:    err,
	}}
}

func fromTypeError(e *typechecker.TypeError) *CompilerError {
	category := CategoryType
	if e.Category == typechecker.CategorySemantic {
		category = CategorySemantic
	}
	severity := SeverityError
	if e.Severity == typechecker.SeverityWarning {
		severity = SeverityWarning
	}
	return &CompilerError{
		Code:       ErrorCode(e.Code),
		Category:   category,
		Severity:   severity,
		Message:    e.Message,
		Location:   e.Location,
		Expected:   e.Expected,
		Actual:     e.Actual,
		Suggestion: e.Suggestion,
		cause:      e,
	}
}

// AttachSource sets the file name and a three-line source excerpt on every
// error that carries a location.
func (el ErrorList) AttachSource(file, source string) ErrorList {
	lines := strings.Split(source, "\n")
	line := func(n int) string {
		if n < 1 || n > len(lines) {
			return ""
		}
		return lines[n-1]
	}

	for _, err := range el {
		err.WithFile(file)
		if err.Location.Line == 0 {
			continue
		}
		n := err.Location.Line
		err.WithContext(line(n), []string{line(n - 1), line(n), line(n + 1)})
	}
	return el
}
