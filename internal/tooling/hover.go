package tooling

import (
	"fmt"
	"strings"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

// buildHover describes the word under pos: a declared symbol, a builtin
// function or a plugin. It returns nil for anything else.
func (a *API) buildHover(doc *Document, pos Position) *Hover {
	word, wordRange := wordAt(doc.Content, pos)
	if word == "" {
		return nil
	}

	if sym := findSymbol(doc.Symbols, word); sym != nil {
		return &Hover{Contents: symbolHover(sym), Range: wordRange}
	}

	if text, ok := builtinDocs[word]; ok {
		return &Hover{
			Contents: fmt.Sprintf("```sigmos\n%s(value)\n```\n\n%s\n", word, text),
			Range:    wordRange,
		}
	}

	for _, meta := range a.plugins() {
		if meta.Name == word {
			return &Hover{Contents: pluginHover(meta), Range: wordRange}
		}
	}

	return nil
}

func symbolHover(symbol *Symbol) string {
	var content strings.Builder

	content.WriteString("```sigmos\n")

	switch symbol.Kind {
	case SymbolKindSpec:
		fmt.Fprintf(&content, "spec %q %s", symbol.Name, symbol.Detail)

	case SymbolKindInput:
		fmt.Fprintf(&content, "%s: %s", symbol.Name, symbol.Type)
		if symbol.Detail != "" {
			content.WriteString(" " + symbol.Detail)
		}

	case SymbolKindComputed:
		fmt.Fprintf(&content, "%s: -> %s", symbol.Name, symbol.Detail)

	case SymbolKindExtension:
		fmt.Fprintf(&content, "%s: %q", symbol.Name, symbol.Detail)

	case SymbolKindType:
		fmt.Fprintf(&content, "%s: %s", symbol.Name, symbol.Type)

	default:
		fmt.Fprintf(&content, "%s: %s", symbol.Name, symbol.Detail)
	}

	content.WriteString("\n```\n\n")

	if symbol.ContainerName != "" {
		fmt.Fprintf(&content, "*In spec:* `%s`\n\n", symbol.ContainerName)
	}

	switch symbol.Kind {
	case SymbolKindInput:
		content.WriteString("---\n\n**Input**\n\n")
		switch {
		case strings.Contains(symbol.Detail, "secret"):
			content.WriteString("*Secret* - redacted from output and history\n")
		case strings.Contains(symbol.Detail, "optional"):
			content.WriteString("*Optional* - may be omitted\n")
		}

	case SymbolKindComputed:
		content.WriteString("---\n\n**Computed**\n\nEvaluated once per execution from the inputs\n")
	}

	return content.String()
}

func pluginHover(meta plugin.Metadata) string {
	var content strings.Builder
	fmt.Fprintf(&content, "**%s** %s\n\n", meta.Name, meta.Version)
	if meta.Description != "" {
		content.WriteString(meta.Description + "\n\n")
	}
	if len(meta.Methods) > 0 {
		content.WriteString("Methods: `" + strings.Join(meta.Methods, "`, `") + "`\n")
	}
	return content.String()
}

func (a *API) plugins() []plugin.Metadata {
	if a.config == nil {
		return nil
	}
	return a.config.Plugins
}
