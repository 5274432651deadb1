package tooling

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/runtime"
)

// CompletionContext describes the context at a completion position
type CompletionContext struct {
	// Kind of completion requested
	Kind CompletionContextKind

	// Section is the spec section enclosing the cursor, empty at top level
	Section string

	// Object is the name before a trailing "." for member completions
	Object string
}

// CompletionContextKind categorizes the completion context
type CompletionContextKind int

const (
	// CompletionContextUnknown represents an unknown context
	CompletionContextUnknown CompletionContextKind = iota
	// CompletionContextSection represents the start of a line in the spec body
	CompletionContextSection
	// CompletionContextEntryKey represents the key of a keyed section entry
	CompletionContextEntryKey
	// CompletionContextType represents a type position
	CompletionContextType
	// CompletionContextModifier represents the modifiers after an input type
	CompletionContextModifier
	// CompletionContextExpression represents an expression position
	CompletionContextExpression
	// CompletionContextMember represents a plugin method after "object."
	CompletionContextMember
)

var (
	sectionHeader = regexp.MustCompile(`^\s*(description|inputs|computed|events|constraints|lifecycle|extensions|types)\s*:\s*$`)
	memberAccess  = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\.[A-Za-z0-9_]*$`)
	extensionDecl = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*:\s*"sigmos:([A-Za-z0-9_]+)`)
)

// sections lists the body sections in their canonical order.
var sections = []string{"description", "inputs", "computed", "events", "constraints", "lifecycle", "extensions", "types"}

var sectionKeys = map[string][]string{
	"events":      {"on_create", "on_change", "on_error"},
	"constraints": {"assert", "ensure"},
	"lifecycle":   {"before", "after", "finally"},
}

// getCompletionContext determines the completion context at a position
func (a *API) getCompletionContext(doc *Document, pos Position) *CompletionContext {
	lines := strings.Split(doc.Content, "\n")
	if pos.Line < 0 || pos.Line >= len(lines) {
		return &CompletionContext{Kind: CompletionContextUnknown}
	}

	line := []rune(lines[pos.Line])
	if pos.Character > len(line) {
		pos.Character = len(line)
	}
	prefix := string(line[:pos.Character])
	trimmed := strings.TrimSpace(prefix)

	section := enclosingSection(lines, pos.Line)

	if m := memberAccess.FindStringSubmatch(trimmed); m != nil && !strings.HasSuffix(trimmed, ":") {
		return &CompletionContext{Kind: CompletionContextMember, Section: section, Object: m[1]}
	}

	colon := strings.Index(prefix, ":")
	if colon < 0 {
		if strings.Contains(trimmed, " ") {
			return &CompletionContext{Kind: CompletionContextUnknown, Section: section}
		}
		if _, keyed := sectionKeys[section]; keyed {
			return &CompletionContext{Kind: CompletionContextEntryKey, Section: section}
		}
		return &CompletionContext{Kind: CompletionContextSection, Section: section}
	}

	switch section {
	case "inputs":
		afterColon := strings.TrimLeft(prefix[colon+1:], " \t")
		if !strings.ContainsAny(afterColon, " \t") {
			return &CompletionContext{Kind: CompletionContextType, Section: section}
		}
		return &CompletionContext{Kind: CompletionContextModifier, Section: section}
	case "types":
		return &CompletionContext{Kind: CompletionContextType, Section: section}
	case "computed", "events", "constraints", "lifecycle":
		return &CompletionContext{Kind: CompletionContextExpression, Section: section}
	}

	return &CompletionContext{Kind: CompletionContextUnknown, Section: section}
}

// enclosingSection scans upward for the nearest section header.
func enclosingSection(lines []string, from int) string {
	for i := from - 1; i >= 0; i-- {
		if m := sectionHeader.FindStringSubmatch(lines[i]); m != nil {
			return m[1]
		}
		if strings.Contains(lines[i], "{") && strings.HasPrefix(strings.TrimSpace(lines[i]), "spec") {
			return ""
		}
	}
	return ""
}

// buildCompletions builds completion items based on context
func (a *API) buildCompletions(doc *Document, context *CompletionContext) []CompletionItem {
	switch context.Kind {
	case CompletionContextSection:
		return getSectionCompletions()

	case CompletionContextEntryKey:
		return getEntryKeyCompletions(context.Section)

	case CompletionContextType:
		return getTypeCompletions(doc.Spec)

	case CompletionContextModifier:
		return getModifierCompletions()

	case CompletionContextExpression:
		return a.getExpressionCompletions(doc.Spec)

	case CompletionContextMember:
		return a.getMemberCompletions(doc.Content, context.Object)
	}

	return []CompletionItem{}
}

func getSectionCompletions() []CompletionItem {
	items := make([]CompletionItem, 0, len(sections))
	for i, name := range sections {
		insert := name + ":\n  $0"
		if name == "description" {
			insert = `description: "$0"`
		}
		items = append(items, CompletionItem{
			Label:      name,
			Kind:       CompletionKindKeyword,
			Detail:     "section",
			InsertText: insert,
			SortText:   fmt.Sprintf("%02d", i),
		})
	}
	return items
}

func getEntryKeyCompletions(section string) []CompletionItem {
	keys := sectionKeys[section]
	items := make([]CompletionItem, 0, len(keys))
	for _, key := range keys {
		insert := key + ": $0"
		if section == "events" {
			insert = key + "(${1:value}): $0"
		}
		items = append(items, CompletionItem{
			Label:      key,
			Kind:       CompletionKindKeyword,
			Detail:     section,
			InsertText: insert,
		})
	}
	return items
}

func getTypeCompletions(spec *ast.Spec) []CompletionItem {
	items := []CompletionItem{
		{Label: "string", Kind: CompletionKindType, Detail: "primitive"},
		{Label: "int", Kind: CompletionKindType, Detail: "primitive"},
		{Label: "float", Kind: CompletionKindType, Detail: "primitive"},
		{Label: "bool", Kind: CompletionKindType, Detail: "primitive"},
		{Label: "list", Kind: CompletionKindType, Detail: "generic", InsertText: "list<${1:string}>"},
		{Label: "map", Kind: CompletionKindType, Detail: "generic", InsertText: "map<${1:string}, ${2:string}>"},
	}
	if spec != nil {
		for _, t := range spec.Types {
			items = append(items, CompletionItem{
				Label:  t.Name,
				Kind:   CompletionKindType,
				Detail: t.Definition.String(),
			})
		}
	}
	return items
}

var modifierDocs = map[string]string{
	"optional": "The input may be omitted",
	"readonly": "The input cannot change after execution starts",
	"default":  "Value used when the input is not supplied",
	"computed": "The input is derived rather than supplied",
	"secret":   "The value is redacted from output and history",
	"generate": "A value is generated when none is supplied",
	"ref":      "The input references another named value",
}

func getModifierCompletions() []CompletionItem {
	kinds := []ast.ModifierKind{
		ast.ModifierOptional,
		ast.ModifierReadonly,
		ast.ModifierDefault,
		ast.ModifierComputed,
		ast.ModifierSecret,
		ast.ModifierGenerate,
		ast.ModifierRef,
	}
	items := make([]CompletionItem, 0, len(kinds))
	for _, kind := range kinds {
		name := kind.String()
		item := CompletionItem{
			Label:         name,
			Kind:          CompletionKindKeyword,
			Detail:        "modifier",
			Documentation: modifierDocs[name],
		}
		switch kind {
		case ast.ModifierDefault:
			item.InsertText = "default(${1:value})"
		case ast.ModifierRef:
			item.InsertText = "ref(${1:name})"
		}
		items = append(items, item)
	}
	return items
}

var builtinDocs = map[string]string{
	"abs":   "abs(number) returns the absolute value",
	"len":   "len(value) counts string bytes, list items or object keys",
	"lower": "lower(string) converts to lower case",
	"trim":  "trim(string) removes surrounding whitespace",
	"upper": "upper(string) converts to upper case",
}

func (a *API) getExpressionCompletions(spec *ast.Spec) []CompletionItem {
	items := make([]CompletionItem, 0)

	if spec != nil {
		for _, field := range spec.Inputs {
			items = append(items, CompletionItem{
				Label:    field.Name,
				Kind:     CompletionKindField,
				Detail:   "input: " + field.Type.String(),
				SortText: "0" + field.Name,
			})
		}
		for _, c := range spec.Computed {
			items = append(items, CompletionItem{
				Label:    c.Name,
				Kind:     CompletionKindField,
				Detail:   "computed",
				SortText: "1" + c.Name,
			})
		}
		for _, ext := range spec.Extensions {
			items = append(items, CompletionItem{
				Label:    ext.Name,
				Kind:     CompletionKindModule,
				Detail:   ext.ImportSpec,
				SortText: "2" + ext.Name,
			})
		}
	}

	for _, name := range runtime.BuiltinNames() {
		items = append(items, CompletionItem{
			Label:         name,
			Kind:          CompletionKindFunction,
			Detail:        "builtin",
			Documentation: builtinDocs[name],
			InsertText:    name + "(${1})",
			SortText:      "3" + name,
		})
	}

	for _, meta := range a.plugins() {
		items = append(items, CompletionItem{
			Label:         meta.Name,
			Kind:          CompletionKindModule,
			Detail:        "plugin",
			Documentation: meta.Description,
			SortText:      "4" + meta.Name,
		})
	}

	return items
}

// getMemberCompletions lists the methods of the plugin an object names.
// Extension declarations are read from the text so they resolve while the
// document does not parse.
func (a *API) getMemberCompletions(content, object string) []CompletionItem {
	name := object
	for _, m := range extensionDecl.FindAllStringSubmatch(content, -1) {
		if m[1] == object {
			name = m[2]
		}
	}

	for _, meta := range a.plugins() {
		if meta.Name != name {
			continue
		}
		items := make([]CompletionItem, 0, len(meta.Methods))
		for _, method := range meta.Methods {
			items = append(items, CompletionItem{
				Label:      method,
				Kind:       CompletionKindFunction,
				Detail:     meta.Name + "." + method,
				InsertText: method + "(${1})",
			})
		}
		return items
	}

	return []CompletionItem{}
}
