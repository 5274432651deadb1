package parser

import (
	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/compiler/lexer"
)

// Expression grammar accepted in source:
//
// expression → STRING | INT | FLOAT | "true" | "false"
//            | IDENTIFIER "(" arguments? ")"
//            | IDENTIFIER "." IDENTIFIER "(" arguments? ")"
//            | IDENTIFIER ( "." IDENTIFIER )*
// arguments  → argument ( "," argument )* ","?
// argument   → ( IDENTIFIER ":" )? expression
//
// Strings containing ${name} placeholders become templates. Operator forms
// (arithmetic, comparison, logical, conditional, indexing) have no surface
// syntax; they are built directly as AST values and evaluated by the runtime.

// parseExpression is the entry point for expression parsing
func (p *Parser) parseExpression() (ast.Expr, error) {
	token := p.peek()
	loc := ast.TokenLocation(token)

	switch token.Type {
	case lexer.TOKEN_STRING:
		p.advance()
		value, _ := token.Literal.(string)
		if ast.HasPlaceholder(value) {
			return &ast.StringTemplate{Parts: ast.ParseTemplate(value), Loc: loc}, nil
		}
		return &ast.StringLiteral{Value: value, Loc: loc}, nil

	case lexer.TOKEN_INT:
		p.advance()
		value, _ := token.Literal.(int64)
		return &ast.NumberLiteral{Value: float64(value), Loc: loc}, nil

	case lexer.TOKEN_FLOAT:
		p.advance()
		value, _ := token.Literal.(float64)
		return &ast.NumberLiteral{Value: value, Loc: loc}, nil

	case lexer.TOKEN_IDENTIFIER:
		return p.parseIdentifierExpression()
	}

	return nil, newExpectedError("expression", token)
}

// parseIdentifierExpression handles booleans, calls, identifiers and
// property chains.
func (p *Parser) parseIdentifierExpression() (ast.Expr, error) {
	token := p.peek()
	loc := ast.TokenLocation(token)

	switch token.Lexeme {
	case "true", "false":
		p.advance()
		return &ast.BooleanLiteral{Value: token.Lexeme == "true", Loc: loc}, nil
	}

	if p.peekNext().Type == lexer.TOKEN_LPAREN || p.isMethodCall() {
		return p.parseCall()
	}

	p.advance()
	var expr ast.Expr = &ast.Identifier{Name: token.Lexeme, Loc: loc}

	for p.check(lexer.TOKEN_DOT) && p.peekNext().Type == lexer.TOKEN_IDENTIFIER {
		p.advance() // .
		property := p.advance()
		if p.check(lexer.TOKEN_LPAREN) {
			return nil, NewParseError("Method calls are only supported directly on a plugin name", property)
		}
		expr = &ast.PropertyAccess{Object: expr, Property: property.Lexeme, Loc: ast.TokenLocation(property)}
	}

	return expr, nil
}

// isMethodCall reports whether the cursor is at `IDENT . IDENT (`.
func (p *Parser) isMethodCall() bool {
	return p.check(lexer.TOKEN_IDENTIFIER) &&
		p.peekAt(1).Type == lexer.TOKEN_DOT &&
		p.peekAt(2).Type == lexer.TOKEN_IDENTIFIER &&
		p.peekAt(3).Type == lexer.TOKEN_LPAREN
}

// parseCall parses `name(args)` or `object.method(args)`.
func (p *Parser) parseCall() (*ast.FunctionCall, error) {
	first, err := p.consume(lexer.TOKEN_IDENTIFIER, "function name")
	if err != nil {
		return nil, err
	}

	call := &ast.FunctionCall{Method: first.Lexeme, Arguments: make([]ast.Argument, 0), Loc: ast.TokenLocation(first)}
	if p.match(lexer.TOKEN_DOT) {
		method, err := p.consume(lexer.TOKEN_IDENTIFIER, "method name after '.'")
		if err != nil {
			return nil, err
		}
		call.Object = first.Lexeme
		call.Method = method.Lexeme
	}

	if _, err := p.consume(lexer.TOKEN_LPAREN, "'(' to begin arguments"); err != nil {
		return nil, err
	}

	for !p.check(lexer.TOKEN_RPAREN) {
		arg, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		call.Arguments = append(call.Arguments, arg)
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}

	if _, err := p.consume(lexer.TOKEN_RPAREN, "')' after arguments"); err != nil {
		return nil, err
	}

	return call, nil
}

// parseArgument parses a named (`name: expr`) or positional argument
func (p *Parser) parseArgument() (ast.Argument, error) {
	var arg ast.Argument
	if p.isEntryStart() {
		arg.Name = p.advance().Lexeme
		p.advance() // :
	}

	value, err := p.parseExpression()
	if err != nil {
		return arg, err
	}
	arg.Value = value
	return arg, nil
}
