package parser

import (
	"fmt"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/compiler/lexer"
)

const (
	constraintAssert = "assert"
	constraintEnsure = "ensure"
)

var lifecyclePhases = map[string]ast.LifecyclePhase{
	"before":  ast.PhaseBefore,
	"after":   ast.PhaseAfter,
	"finally": ast.PhaseFinally,
}

// Parser transforms a stream of tokens into a specification AST
type Parser struct {
	tokens  []lexer.Token
	current int
}

// New creates a new parser for the given token stream
func New(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens:  tokens,
		current: 0,
	}
}

// ParseSpecification parses a token stream produced by the lexer.
func ParseSpecification(tokens []lexer.Token) (*ast.Spec, error) {
	return New(tokens).Parse()
}

// ParseString lexes and parses source text.
func ParseString(source string) (*ast.Spec, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return ParseSpecification(tokens)
}

// Parse parses `spec <string> <version> { <body> }`. No partial specification
// is returned on error.
func (p *Parser) Parse() (*ast.Spec, error) {
	specToken, err := p.consume(lexer.TOKEN_SPEC, "'spec'")
	if err != nil {
		return nil, err
	}

	nameToken, err := p.consume(lexer.TOKEN_STRING, "specification name string")
	if err != nil {
		return nil, err
	}
	name, _ := nameToken.Literal.(string)
	if name == "" {
		return nil, NewParseError("Specification name must not be empty", nameToken)
	}

	versionToken, err := p.consume(lexer.TOKEN_VERSION, "version (e.g. v1.0)")
	if err != nil {
		return nil, err
	}
	version, ok := versionToken.Literal.(lexer.Version)
	if !ok {
		return nil, NewParseError("Malformed version literal", versionToken)
	}

	if _, err := p.consume(lexer.TOKEN_LBRACE, "'{' after version"); err != nil {
		return nil, err
	}

	spec := &ast.Spec{
		Name:        name,
		Version:     ast.VersionFromToken(version),
		Inputs:      make([]*ast.FieldDef, 0),
		Computed:    make([]*ast.ComputedField, 0),
		Events:      make([]*ast.EventDef, 0),
		Constraints: make([]*ast.ConstraintDef, 0),
		Lifecycle:   make([]*ast.LifecycleDef, 0),
		Extensions:  make([]*ast.ExtensionDef, 0),
		Types:       make([]*ast.TypeDef, 0),
		Loc:         ast.TokenLocation(specToken),
	}

	for !p.check(lexer.TOKEN_RBRACE) && !p.isAtEnd() {
		if err := p.parseSection(spec); err != nil {
			return nil, err
		}
	}

	if _, err := p.consume(lexer.TOKEN_RBRACE, "'}' after specification body"); err != nil {
		return nil, err
	}

	if !p.isAtEnd() {
		return nil, newExpectedError("end of input", p.peek())
	}

	return spec, nil
}

// parseSection dispatches on a section keyword. Unrecognized tokens are
// skipped so unknown sections do not abort parsing of known ones.
func (p *Parser) parseSection(spec *ast.Spec) error {
	switch p.peek().Type {
	case lexer.TOKEN_DESCRIPTION:
		return p.parseDescription(spec)
	case lexer.TOKEN_INPUTS:
		return p.parseInputs(spec)
	case lexer.TOKEN_COMPUTED:
		return p.parseComputed(spec)
	case lexer.TOKEN_EVENTS:
		return p.parseEvents(spec)
	case lexer.TOKEN_CONSTRAINTS:
		return p.parseConstraints(spec)
	case lexer.TOKEN_LIFECYCLE:
		return p.parseLifecycle(spec)
	case lexer.TOKEN_EXTENSIONS:
		return p.parseExtensions(spec)
	case lexer.TOKEN_TYPES:
		return p.parseTypes(spec)
	default:
		p.advance()
		return nil
	}
}

// sectionHeader consumes `<keyword> :`.
func (p *Parser) sectionHeader() error {
	keyword := p.advance()
	_, err := p.consume(lexer.TOKEN_COLON, fmt.Sprintf("':' after '%s'", keyword.Lexeme))
	return err
}

func (p *Parser) parseDescription(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	token, err := p.consume(lexer.TOKEN_STRING, "description string")
	if err != nil {
		return err
	}
	spec.Description, _ = token.Literal.(string)
	return nil
}

func (p *Parser) parseInputs(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	for p.isEntryStart() {
		field, err := p.parseField()
		if err != nil {
			return err
		}
		spec.Inputs = append(spec.Inputs, field)
	}
	return nil
}

// parseField parses `<identifier> : <type-expr> <modifier>*`
func (p *Parser) parseField() (*ast.FieldDef, error) {
	nameToken := p.advance()
	p.advance() // :

	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}

	field := &ast.FieldDef{
		Name:      nameToken.Lexeme,
		Type:      typ,
		Modifiers: make([]ast.Modifier, 0),
		Loc:       ast.TokenLocation(nameToken),
	}

	for {
		modifier, ok, err := p.parseModifier()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		field.Modifiers = append(field.Modifiers, modifier)
	}

	return field, nil
}

// parseModifier parses one modifier if the next token starts one. A modifier
// keyword followed by ':' begins the next entry or section instead.
func (p *Parser) parseModifier() (ast.Modifier, bool, error) {
	token := p.peek()
	if p.peekNext().Type == lexer.TOKEN_COLON {
		return ast.Modifier{}, false, nil
	}

	var kind ast.ModifierKind
	switch token.Type {
	case lexer.TOKEN_COMPUTED:
		kind = ast.ModifierComputed
	case lexer.TOKEN_IDENTIFIER:
		k, ok := ast.ModifierKindByName(token.Lexeme)
		if !ok {
			return ast.Modifier{}, false, nil
		}
		kind = k
	default:
		return ast.Modifier{}, false, nil
	}
	p.advance()

	modifier := ast.Modifier{Kind: kind}
	switch kind {
	case ast.ModifierDefault:
		if _, err := p.consume(lexer.TOKEN_LPAREN, "'(' after 'default'"); err != nil {
			return modifier, false, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return modifier, false, err
		}
		if _, err := p.consume(lexer.TOKEN_RPAREN, "')' after default value"); err != nil {
			return modifier, false, err
		}
		modifier.Default = expr
	case ast.ModifierRef:
		if _, err := p.consume(lexer.TOKEN_LPAREN, "'(' after 'ref'"); err != nil {
			return modifier, false, err
		}
		target, err := p.consume(lexer.TOKEN_IDENTIFIER, "referenced name")
		if err != nil {
			return modifier, false, err
		}
		if _, err := p.consume(lexer.TOKEN_RPAREN, "')' after referenced name"); err != nil {
			return modifier, false, err
		}
		modifier.Ref = target.Lexeme
	}

	return modifier, true, nil
}

func (p *Parser) parseComputed(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	for p.isEntryStart() {
		nameToken := p.advance()
		p.advance() // :
		if _, err := p.consume(lexer.TOKEN_ARROW, "'->' before computed expression"); err != nil {
			return err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return err
		}
		spec.Computed = append(spec.Computed, &ast.ComputedField{
			Name:       nameToken.Lexeme,
			Expression: expr,
			Loc:        ast.TokenLocation(nameToken),
		})
	}
	return nil
}

// parseEvents parses `<trigger>(<param>): <action>` entries.
func (p *Parser) parseEvents(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	for p.check(lexer.TOKEN_IDENTIFIER) && p.peekNext().Type == lexer.TOKEN_LPAREN {
		triggerToken := p.advance()
		p.advance() // (
		param, err := p.consume(lexer.TOKEN_IDENTIFIER, "event parameter name")
		if err != nil {
			return err
		}
		if _, err := p.consume(lexer.TOKEN_RPAREN, "')' after event parameter"); err != nil {
			return err
		}
		if _, err := p.consume(lexer.TOKEN_COLON, "':' before event action"); err != nil {
			return err
		}
		action, err := p.parseAction()
		if err != nil {
			return err
		}
		spec.Events = append(spec.Events, &ast.EventDef{
			Type:      ast.EventTypeByName(triggerToken.Lexeme),
			Parameter: param.Lexeme,
			Action:    action,
			Loc:       ast.TokenLocation(triggerToken),
		})
	}
	return nil
}

// parseConstraints parses `assert: <expr>` and `ensure: <expr>` entries.
func (p *Parser) parseConstraints(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	for p.isEntryStart() {
		kindToken := p.peek()
		var kind ast.ConstraintKind
		switch kindToken.Lexeme {
		case constraintAssert:
			kind = ast.ConstraintAssert
		case constraintEnsure:
			kind = ast.ConstraintEnsure
		default:
			return nil
		}
		p.advance()
		p.advance() // :
		expr, err := p.parseExpression()
		if err != nil {
			return err
		}
		spec.Constraints = append(spec.Constraints, &ast.ConstraintDef{
			Kind:       kind,
			Expression: expr,
			Loc:        ast.TokenLocation(kindToken),
		})
	}
	return nil
}

// parseLifecycle parses `before|after|finally: <action>` entries.
func (p *Parser) parseLifecycle(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	for p.isEntryStart() {
		phaseToken := p.peek()
		phase, ok := lifecyclePhases[phaseToken.Lexeme]
		if !ok {
			return nil
		}
		p.advance()
		p.advance() // :
		action, err := p.parseAction()
		if err != nil {
			return err
		}
		spec.Lifecycle = append(spec.Lifecycle, &ast.LifecycleDef{
			Phase:  phase,
			Action: action,
			Loc:    ast.TokenLocation(phaseToken),
		})
	}
	return nil
}

// parseExtensions parses `<name>: "<import spec>"` entries.
func (p *Parser) parseExtensions(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	for p.isEntryStart() {
		nameToken := p.advance()
		p.advance() // :
		importToken, err := p.consume(lexer.TOKEN_STRING, "extension import string")
		if err != nil {
			return err
		}
		importSpec, _ := importToken.Literal.(string)
		spec.Extensions = append(spec.Extensions, &ast.ExtensionDef{
			Name:       nameToken.Lexeme,
			ImportSpec: importSpec,
			Loc:        ast.TokenLocation(nameToken),
		})
	}
	return nil
}

// parseTypes parses `<Name>: <type-expr>` entries.
func (p *Parser) parseTypes(spec *ast.Spec) error {
	if err := p.sectionHeader(); err != nil {
		return err
	}
	for p.isEntryStart() {
		nameToken := p.advance()
		p.advance() // :
		definition, err := p.parseType()
		if err != nil {
			return err
		}
		spec.Types = append(spec.Types, &ast.TypeDef{
			Name:       nameToken.Lexeme,
			Definition: definition,
			Loc:        ast.TokenLocation(nameToken),
		})
	}
	return nil
}

// parseType parses a primitive, generic or reference type expression
func (p *Parser) parseType() (ast.TypeExpr, error) {
	nameToken, err := p.consume(lexer.TOKEN_IDENTIFIER, "type name")
	if err != nil {
		return nil, err
	}

	if !p.match(lexer.TOKEN_LT) {
		if primitive, ok := ast.PrimitiveByName(nameToken.Lexeme); ok {
			return &ast.PrimitiveType{Primitive: primitive}, nil
		}
		return &ast.ReferenceType{Name: nameToken.Lexeme}, nil
	}

	generic := &ast.GenericType{Name: nameToken.Lexeme, Args: make([]ast.TypeExpr, 0)}
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		generic.Args = append(generic.Args, arg)
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}
	if _, err := p.consume(lexer.TOKEN_GT, "'>' after type arguments"); err != nil {
		return nil, err
	}
	return generic, nil
}

// parseAction parses a function call or a bare identifier action.
func (p *Parser) parseAction() (ast.Action, error) {
	if !p.check(lexer.TOKEN_IDENTIFIER) {
		return ast.Action{}, newExpectedError("action", p.peek())
	}

	next := p.peekNext().Type
	if next != lexer.TOKEN_DOT && next != lexer.TOKEN_LPAREN {
		return ast.Action{Identifier: p.advance().Lexeme}, nil
	}

	call, err := p.parseCall()
	if err != nil {
		return ast.Action{}, err
	}
	return ast.Action{Call: call}, nil
}

// Helper methods

// isEntryStart reports whether the cursor is at `<identifier> :`.
func (p *Parser) isEntryStart() bool {
	return p.check(lexer.TOKEN_IDENTIFIER) && p.peekNext().Type == lexer.TOKEN_COLON
}

// peek returns the current token without consuming it
func (p *Parser) peek() lexer.Token {
	return p.peekAt(0)
}

// peekNext returns the token after the current one
func (p *Parser) peekNext() lexer.Token {
	return p.peekAt(1)
}

func (p *Parser) peekAt(offset int) lexer.Token {
	if len(p.tokens) == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	index := p.current + offset
	if index >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[index]
}

// previous returns the most recently consumed token
func (p *Parser) previous() lexer.Token {
	if len(p.tokens) == 0 || p.current == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.current-1]
}

// advance consumes the current token and returns it
func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

// check returns true if the current token matches the given type
func (p *Parser) check(tokenType lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == tokenType
}

// match consumes the token if it matches any of the given types
func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

// consume advances if the next token matches, otherwise returns a grammar error
func (p *Parser) consume(tokenType lexer.TokenType, expected string) (lexer.Token, error) {
	if p.check(tokenType) {
		return p.advance(), nil
	}
	return lexer.Token{}, newExpectedError(expected, p.peek())
}

// isAtEnd returns true if we've reached the end of the token stream
func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Type == lexer.TOKEN_EOF
}
