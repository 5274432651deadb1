// Package transpile exports a parsed specification as JSON, YAML or TOML.
// All three formats share one document model built by Document.
package transpile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
)

// Format is an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for formats other than json, yaml and toml.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatTOML}
}

// ParseFormat resolves a format name, accepting "yml" for YAML.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Extension returns the conventional file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Transpile renders spec in the given format.
func Transpile(spec *ast.Spec, format Format) ([]byte, error) {
	doc := Document(spec)

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("JSON serialization failed: %w", err)
		}
		return append(data, '\n'), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("YAML serialization failed: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("YAML serialization failed: %w", err)
		}
		return buf.Bytes(), nil

	case FormatTOML:
		data, err := toml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("TOML serialization failed: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Document builds the format-neutral document for spec. Absent optional
// values are omitted rather than rendered as null, since TOML has no null.
func Document(spec *ast.Spec) map[string]any {
	doc := map[string]any{
		"name":    spec.Name,
		"version": spec.Version.String(),
	}
	if spec.Description != "" {
		doc["description"] = spec.Description
	}

	inputs := make([]map[string]any, 0, len(spec.Inputs))
	for _, field := range spec.Inputs {
		entry := map[string]any{
			"name": field.Name,
			"type": field.Type.String(),
		}
		if len(field.Modifiers) > 0 {
			mods := make([]string, len(field.Modifiers))
			for i, m := range field.Modifiers {
				mods[i] = m.String()
			}
			entry["modifiers"] = mods
		}
		inputs = append(inputs, entry)
	}
	doc["inputs"] = inputs

	computed := make([]map[string]any, 0, len(spec.Computed))
	for _, c := range spec.Computed {
		computed = append(computed, map[string]any{
			"name":       c.Name,
			"expression": ast.FormatExpr(c.Expression),
		})
	}
	doc["computed"] = computed

	events := make([]map[string]any, 0, len(spec.Events))
	for _, e := range spec.Events {
		events = append(events, map[string]any{
			"trigger":   e.Type.String(),
			"parameter": e.Parameter,
			"action":    e.Action.String(),
		})
	}
	doc["events"] = events

	constraints := make([]map[string]any, 0, len(spec.Constraints))
	for _, c := range spec.Constraints {
		constraints = append(constraints, map[string]any{
			"kind":       c.Kind.String(),
			"expression": ast.FormatExpr(c.Expression),
		})
	}
	doc["constraints"] = constraints

	lifecycle := make([]map[string]any, 0, len(spec.Lifecycle))
	for _, l := range spec.Lifecycle {
		lifecycle = append(lifecycle, map[string]any{
			"phase":  l.Phase.String(),
			"action": l.Action.String(),
		})
	}
	doc["lifecycle"] = lifecycle

	extensions := make([]map[string]any, 0, len(spec.Extensions))
	for _, e := range spec.Extensions {
		extensions = append(extensions, map[string]any{
			"name":   e.Name,
			"import": e.ImportSpec,
		})
	}
	doc["extensions"] = extensions

	types := make([]map[string]any, 0, len(spec.Types))
	for _, t := range spec.Types {
		types = append(types, map[string]any{
			"name":       t.Name,
			"definition": t.Definition.String(),
		})
	}
	doc["types"] = types

	return doc
}

// Counts tallies the declarations in each section of a spec.
type Counts struct {
	Inputs      int `json:"inputs"`
	Computed    int `json:"computed"`
	Events      int `json:"events"`
	Constraints int `json:"constraints"`
	Lifecycle   int `json:"lifecycle"`
	Extensions  int `json:"extensions"`
	Types       int `json:"types"`
}

// Count returns the section counts of spec.
func Count(spec *ast.Spec) Counts {
	return Counts{
		Inputs:      len(spec.Inputs),
		Computed:    len(spec.Computed),
		Events:      len(spec.Events),
		Constraints: len(spec.Constraints),
		Lifecycle:   len(spec.Lifecycle),
		Extensions:  len(spec.Extensions),
		Types:       len(spec.Types),
	}
}
