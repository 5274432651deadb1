package tooling

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
)

// SymbolIndex maintains a searchable index of all symbols across documents
type SymbolIndex struct {
	// symbols maps symbol name to all definitions
	symbols map[string][]*IndexedSymbol
	mutex   sync.RWMutex
}

// IndexedSymbol represents a symbol with its location
type IndexedSymbol struct {
	URI   string
	Range Range
	*Symbol
}

// NewSymbolIndex creates a new symbol index
func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{
		symbols: make(map[string][]*IndexedSymbol),
	}
}

// Index replaces the symbols recorded for a document
func (si *SymbolIndex) Index(uri string, symbols []*Symbol) {
	si.mutex.Lock()
	defer si.mutex.Unlock()

	si.removeDocumentLocked(uri)

	for _, sym := range symbols {
		indexed := &IndexedSymbol{
			URI:    uri,
			Range:  sym.Range,
			Symbol: sym,
		}

		si.symbols[sym.Name] = append(si.symbols[sym.Name], indexed)
	}
}

// RemoveDocument removes all symbols from a document
func (si *SymbolIndex) RemoveDocument(uri string) {
	si.mutex.Lock()
	defer si.mutex.Unlock()

	si.removeDocumentLocked(uri)
}

func (si *SymbolIndex) removeDocumentLocked(uri string) {
	for name, syms := range si.symbols {
		filtered := make([]*IndexedSymbol, 0, len(syms))
		for _, sym := range syms {
			if sym.URI != uri {
				filtered = append(filtered, sym)
			}
		}
		if len(filtered) > 0 {
			si.symbols[name] = filtered
		} else {
			delete(si.symbols, name)
		}
	}
}

// FindDefinition finds the definition of a symbol by name, preferring
// type definitions.
func (si *SymbolIndex) FindDefinition(name string) *IndexedSymbol {
	si.mutex.RLock()
	defer si.mutex.RUnlock()

	syms, ok := si.symbols[name]
	if !ok || len(syms) == 0 {
		return nil
	}

	for _, sym := range syms {
		if sym.Kind == SymbolKindType {
			return sym
		}
	}

	return syms[0]
}

// SearchSymbols returns symbols whose name contains query, case-insensitively,
// ordered by name then URI.
func (si *SymbolIndex) SearchSymbols(query string) []*IndexedSymbol {
	si.mutex.RLock()
	defer si.mutex.RUnlock()

	query = strings.ToLower(query)
	result := make([]*IndexedSymbol, 0)

	for name, syms := range si.symbols {
		if query == "" || strings.Contains(strings.ToLower(name), query) {
			result = append(result, syms...)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].URI < result[j].URI
	})

	return result
}

// extractSymbols flattens a spec into its named declarations.
func extractSymbols(spec *ast.Spec) []*Symbol {
	if spec == nil {
		return []*Symbol{}
	}

	symbols := []*Symbol{{
		Name:   spec.Name,
		Kind:   SymbolKindSpec,
		Range:  span(spec.Loc, "spec"),
		Detail: "v" + spec.Version.String(),
	}}

	add := func(sym *Symbol) {
		sym.ContainerName = spec.Name
		symbols = append(symbols, sym)
	}

	for _, field := range spec.Inputs {
		modifiers := make([]string, len(field.Modifiers))
		for i, m := range field.Modifiers {
			modifiers[i] = m.String()
		}
		add(&Symbol{
			Name:   field.Name,
			Kind:   SymbolKindInput,
			Range:  span(field.Loc, field.Name),
			Type:   field.Type.String(),
			Detail: strings.Join(modifiers, " "),
		})
	}

	for _, c := range spec.Computed {
		add(&Symbol{
			Name:   c.Name,
			Kind:   SymbolKindComputed,
			Range:  span(c.Loc, c.Name),
			Detail: ast.FormatExpr(c.Expression),
		})
	}

	for _, e := range spec.Events {
		trigger := e.Type.String()
		add(&Symbol{
			Name:   trigger,
			Kind:   SymbolKindEvent,
			Range:  span(e.Loc, trigger),
			Detail: e.Action.String(),
		})
	}

	for _, c := range spec.Constraints {
		kind := c.Kind.String()
		add(&Symbol{
			Name:   kind,
			Kind:   SymbolKindConstraint,
			Range:  span(c.Loc, kind),
			Detail: ast.FormatExpr(c.Expression),
		})
	}

	for _, l := range spec.Lifecycle {
		phase := l.Phase.String()
		add(&Symbol{
			Name:   phase,
			Kind:   SymbolKindLifecycle,
			Range:  span(l.Loc, phase),
			Detail: l.Action.String(),
		})
	}

	for _, ext := range spec.Extensions {
		add(&Symbol{
			Name:   ext.Name,
			Kind:   SymbolKindExtension,
			Range:  span(ext.Loc, ext.Name),
			Detail: ext.ImportSpec,
		})
	}

	for _, t := range spec.Types {
		add(&Symbol{
			Name:  t.Name,
			Kind:  SymbolKindType,
			Range: span(t.Loc, t.Name),
			Type:  t.Definition.String(),
		})
	}

	return symbols
}

// findSymbol returns the first named declaration called name. Events,
// constraints and lifecycle entries are keyed by keyword and never match.
func findSymbol(symbols []*Symbol, name string) *Symbol {
	for _, sym := range symbols {
		switch sym.Kind {
		case SymbolKindEvent, SymbolKindConstraint, SymbolKindLifecycle:
			continue
		}
		if sym.Name == name {
			return sym
		}
	}
	return nil
}

func span(loc ast.SourceLocation, text string) Range {
	start := toPosition(loc)
	return Range{
		Start: start,
		End:   Position{Line: start.Line, Character: start.Character + utf8.RuneCountInString(text)},
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordAt returns the identifier under pos and its range.
func wordAt(content string, pos Position) (string, Range) {
	lines := strings.Split(content, "\n")
	if pos.Line < 0 || pos.Line >= len(lines) {
		return "", Range{}
	}

	line := []rune(lines[pos.Line])
	if pos.Character > len(line) {
		pos.Character = len(line)
	}

	start := pos.Character
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	end := pos.Character
	for end < len(line) && isWordRune(line[end]) {
		end++
	}
	if start == end {
		return "", Range{}
	}

	return string(line[start:end]), Range{
		Start: Position{Line: pos.Line, Character: start},
		End:   Position{Line: pos.Line, Character: end},
	}
}

// occurrences returns the ranges of every whole-word match of word.
func occurrences(content, word string) []Range {
	target := []rune(word)
	var ranges []Range

	for lineNo, text := range strings.Split(content, "\n") {
		line := []rune(text)
		for i := 0; i+len(target) <= len(line); i++ {
			if string(line[i:i+len(target)]) != word {
				continue
			}
			if i > 0 && isWordRune(line[i-1]) {
				continue
			}
			if end := i + len(target); end < len(line) && isWordRune(line[end]) {
				continue
			}
			ranges = append(ranges, Range{
				Start: Position{Line: lineNo, Character: i},
				End:   Position{Line: lineNo, Character: i + len(target)},
			})
		}
	}

	return ranges
}
