// Package tooling provides a programmatic API for IDE integration via LSP.
// It exposes compiler functionality in a thread-safe manner suitable for
// Language Server Protocol implementations.
package tooling

import (
	"fmt"
	"sync"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/compiler/errors"
	"github.com/copyleftdev/sigmos/internal/compiler/parser"
	"github.com/copyleftdev/sigmos/internal/compiler/typechecker"
	"github.com/copyleftdev/sigmos/internal/plugin"
)

// API provides thread-safe access to compiler functionality for IDE integration.
// It maintains document state and provides fast query operations for LSP features.
type API struct {
	documents map[string]*Document
	docsMutex sync.RWMutex
	clock     uint64

	symbolIndex *SymbolIndex

	config *Config
}

// Config holds configuration for the tooling API
type Config struct {
	// CacheSize limits the number of documents cached in memory
	CacheSize int

	// Plugins describes the capability providers offered for completion
	// after `object.`
	Plugins []plugin.Metadata
}

// Document represents a cached document with its parsed spec and diagnostics
type Document struct {
	URI     string
	Content string
	Version int

	// Spec is the last successfully parsed spec. It is kept across edits
	// that fail to parse so symbols stay available while typing.
	Spec *ast.Spec

	// Errors holds lexical, syntax and type errors for Content
	Errors errors.ErrorList

	Symbols []*Symbol

	touched uint64
}

// Position represents a position in a document (zero-based for LSP compatibility)
type Position struct {
	Line      int // Zero-based line number
	Character int // Zero-based character offset
}

// Range represents a range in a document
type Range struct {
	Start Position
	End   Position
}

// Location represents a source location with URI and range
type Location struct {
	URI   string
	Range Range
}

// Symbol represents a named entity in a spec
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Range Range

	// Type is the declared type for inputs and type definitions
	Type string

	// ContainerName is the spec name for everything but the spec itself
	ContainerName string

	// Detail provides additional information such as modifiers or the
	// computed expression
	Detail string
}

// SymbolKind categorizes symbols for IDE display
type SymbolKind int

const (
	// SymbolKindSpec represents the spec declaration
	SymbolKindSpec SymbolKind = iota
	// SymbolKindInput represents an input field
	SymbolKindInput
	// SymbolKindComputed represents a computed field
	SymbolKindComputed
	// SymbolKindEvent represents an event handler
	SymbolKindEvent
	// SymbolKindConstraint represents an assert or ensure constraint
	SymbolKindConstraint
	// SymbolKindLifecycle represents a lifecycle action
	SymbolKindLifecycle
	// SymbolKindExtension represents an imported extension
	SymbolKindExtension
	// SymbolKindType represents a user type definition
	SymbolKindType
)

// Hover represents hover information for a symbol
type Hover struct {
	// Contents is the hover text (markdown formatted)
	Contents string

	// Range is the range of the hovered word
	Range Range
}

// CompletionItem represents a completion suggestion
type CompletionItem struct {
	Label         string
	Kind          CompletionKind
	Detail        string
	Documentation string

	// InsertText is the text to insert (if different from label)
	InsertText string

	// SortText controls ordering (if different from label)
	SortText string
}

// CompletionKind categorizes completion items
type CompletionKind int

const (
	// CompletionKindKeyword represents a keyword completion
	CompletionKindKeyword CompletionKind = iota
	// CompletionKindType represents a type completion
	CompletionKindType
	// CompletionKindField represents an input or computed field
	CompletionKindField
	// CompletionKindFunction represents a builtin or plugin method
	CompletionKindFunction
	// CompletionKindModule represents a plugin object
	CompletionKindModule
	// CompletionKindSnippet represents a code snippet completion
	CompletionKindSnippet
)

// Diagnostic represents a compilation error or warning
type Diagnostic struct {
	Range    Range
	Severity DiagnosticSeverity
	Code     string
	Message  string
	Source   string
}

// DiagnosticSeverity indicates the severity of a diagnostic
type DiagnosticSeverity int

const (
	// DiagnosticSeverityError represents an error diagnostic
	DiagnosticSeverityError DiagnosticSeverity = iota
	// DiagnosticSeverityWarning represents a warning diagnostic
	DiagnosticSeverityWarning
	// DiagnosticSeverityInfo represents an informational diagnostic
	DiagnosticSeverityInfo
	// DiagnosticSeverityHint represents a hint diagnostic
	DiagnosticSeverityHint
)

// DiagnosticSource is reported as the source of every diagnostic.
const DiagnosticSource = "sigmos"

// NewAPI creates a new tooling API instance
func NewAPI() *API {
	return NewAPIWithConfig(&Config{CacheSize: 100})
}

// NewAPIWithConfig creates a new tooling API with custom configuration
func NewAPIWithConfig(config *Config) *API {
	return &API{
		documents:   make(map[string]*Document),
		symbolIndex: NewSymbolIndex(),
		config:      config,
	}
}

// Analyze lexes, parses and type checks content without caching it.
func Analyze(content string) (*ast.Spec, errors.ErrorList) {
	spec, err := parser.ParseString(content)
	if err != nil {
		return nil, errors.Classify(err)
	}
	if err := typechecker.Check(spec); err != nil {
		return spec, errors.Classify(err)
	}
	return spec, nil
}

// ParseFile analyzes a document and caches it at version 1.
func (a *API) ParseFile(uri, content string) (*Document, error) {
	return a.UpdateDocument(uri, content, 1)
}

// UpdateDocument updates an existing document with new content
func (a *API) UpdateDocument(uri, content string, version int) (*Document, error) {
	a.docsMutex.RLock()
	old, exists := a.documents[uri]
	a.docsMutex.RUnlock()

	if exists && old.Content == content {
		a.docsMutex.Lock()
		old.Version = version
		a.docsMutex.Unlock()
		return old, nil
	}

	spec, errs := Analyze(content)
	doc := &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Spec:    spec,
		Errors:  errs,
	}
	if spec == nil && exists {
		doc.Spec = old.Spec
	}
	doc.Symbols = extractSymbols(doc.Spec)

	a.docsMutex.Lock()
	a.clock++
	doc.touched = a.clock
	a.documents[uri] = doc
	evicted := a.evictLocked(uri)
	a.docsMutex.Unlock()

	for _, e := range evicted {
		a.symbolIndex.RemoveDocument(e)
	}
	a.symbolIndex.Index(uri, doc.Symbols)

	return doc, nil
}

// evictLocked drops the least recently updated documents beyond CacheSize,
// never the one just written.
func (a *API) evictLocked(keep string) []string {
	if a.config == nil || a.config.CacheSize <= 0 {
		return nil
	}
	var evicted []string
	for len(a.documents) > a.config.CacheSize {
		var oldest *Document
		for uri, doc := range a.documents {
			if uri == keep {
				continue
			}
			if oldest == nil || doc.touched < oldest.touched {
				oldest = doc
			}
		}
		if oldest == nil {
			break
		}
		delete(a.documents, oldest.URI)
		evicted = append(evicted, oldest.URI)
	}
	return evicted
}

// GetDocument retrieves a cached document
func (a *API) GetDocument(uri string) (*Document, bool) {
	a.docsMutex.RLock()
	defer a.docsMutex.RUnlock()

	doc, exists := a.documents[uri]
	return doc, exists
}

// CloseDocument removes a document from the cache
func (a *API) CloseDocument(uri string) {
	a.docsMutex.Lock()
	delete(a.documents, uri)
	a.docsMutex.Unlock()

	a.symbolIndex.RemoveDocument(uri)
}

// GetDiagnostics returns diagnostics for a document
func (a *API) GetDiagnostics(uri string) []Diagnostic {
	doc, exists := a.GetDocument(uri)
	if !exists {
		return nil
	}

	diagnostics := make([]Diagnostic, 0, len(doc.Errors))
	for _, err := range doc.Errors {
		start := toPosition(err.Location)
		width := len([]rune(err.Actual))
		if width == 0 {
			width = 1
		}
		diagnostics = append(diagnostics, Diagnostic{
			Range: Range{
				Start: start,
				End:   Position{Line: start.Line, Character: start.Character + width},
			},
			Severity: severityOf(err.Severity),
			Code:     string(err.Code),
			Message:  err.Message,
			Source:   DiagnosticSource,
		})
	}

	return diagnostics
}

// GetHover returns hover information for a position in a document.
// Returns (nil, nil) if nothing is known about the word at the position.
func (a *API) GetHover(uri string, pos Position) (*Hover, error) {
	doc, exists := a.GetDocument(uri)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", uri)
	}

	return a.buildHover(doc, pos), nil
}

// GetCompletions returns completion items for a position in a document
func (a *API) GetCompletions(uri string, pos Position) ([]CompletionItem, error) {
	doc, exists := a.GetDocument(uri)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", uri)
	}

	context := a.getCompletionContext(doc, pos)

	return a.buildCompletions(doc, context), nil
}

// GetDefinition returns the declaration of the symbol named by the word at
// a position. Returns (nil, nil) if the word names no symbol.
func (a *API) GetDefinition(uri string, pos Position) (*Location, error) {
	doc, exists := a.GetDocument(uri)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", uri)
	}

	word, _ := wordAt(doc.Content, pos)
	if word == "" {
		return nil, nil //nolint:nilnil // nil location is valid when no symbol at position
	}

	if sym := findSymbol(doc.Symbols, word); sym != nil {
		return &Location{URI: uri, Range: sym.Range}, nil
	}

	if def := a.symbolIndex.FindDefinition(word); def != nil && def.Kind == SymbolKindType {
		return &Location{URI: def.URI, Range: def.Range}, nil
	}

	return nil, nil //nolint:nilnil // nil location is valid when no symbol at position
}

// GetReferences returns every whole-word occurrence of the symbol at a
// position within the document.
func (a *API) GetReferences(uri string, pos Position) ([]Location, error) {
	doc, exists := a.GetDocument(uri)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", uri)
	}

	word, _ := wordAt(doc.Content, pos)
	if word == "" || findSymbol(doc.Symbols, word) == nil {
		return []Location{}, nil
	}

	ranges := occurrences(doc.Content, word)
	locations := make([]Location, len(ranges))
	for i, r := range ranges {
		locations[i] = Location{URI: uri, Range: r}
	}
	return locations, nil
}

// GetDocumentSymbols returns all symbols in a document
func (a *API) GetDocumentSymbols(uri string) ([]*Symbol, error) {
	doc, exists := a.GetDocument(uri)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", uri)
	}

	return doc.Symbols, nil
}

// GetWorkspaceSymbols searches symbols across all open documents
func (a *API) GetWorkspaceSymbols(query string) []*IndexedSymbol {
	return a.symbolIndex.SearchSymbols(query)
}

// Helper functions

func toPosition(loc ast.SourceLocation) Position {
	pos := Position{Line: loc.Line - 1, Character: loc.Column - 1}
	if pos.Line < 0 {
		pos.Line = 0
	}
	if pos.Character < 0 {
		pos.Character = 0
	}
	return pos
}

func severityOf(severity errors.ErrorSeverity) DiagnosticSeverity {
	if severity == errors.SeverityWarning {
		return DiagnosticSeverityWarning
	}
	return DiagnosticSeverityError
}
