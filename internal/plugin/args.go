package plugin

import (
	"fmt"
	"math"
)

// Args wraps the argument map passed to Execute with typed accessors.
// Lookups fall back to the positional name arg_<i> when a named argument is
// absent, so `http.get(url: u)` and `http.get(u)` both resolve "url".
type Args struct {
	plugin string
	method string
	values map[string]any
}

// NewArgs binds args to the provider and method for error reporting.
func NewArgs(plugin, method string, values map[string]any) Args {
	if values == nil {
		values = map[string]any{}
	}
	return Args{plugin: plugin, method: method, values: values}
}

// Lookup returns the named argument, or the positional one at index.
func (a Args) Lookup(name string, index int) (any, bool) {
	if v, ok := a.values[name]; ok {
		return v, true
	}
	v, ok := a.values[fmt.Sprintf("arg_%d", index)]
	return v, ok
}

// String returns a required string argument.
func (a Args) String(name string, index int) (string, error) {
	v, ok := a.Lookup(name, index)
	if !ok || v == nil {
		return "", InvalidArgument(a.plugin, a.method, fmt.Sprintf("missing required argument '%s'", name))
	}
	s, ok := v.(string)
	if !ok {
		return "", InvalidArgument(a.plugin, a.method, fmt.Sprintf("argument '%s' must be a string, got %T", name, v))
	}
	return s, nil
}

// OptionalString returns a string argument or def when absent.
func (a Args) OptionalString(name string, index int, def string) (string, error) {
	v, ok := a.Lookup(name, index)
	if !ok || v == nil {
		return def, nil
	}
	return a.String(name, index)
}

// Number returns a required numeric argument.
func (a Args) Number(name string, index int) (float64, error) {
	v, ok := a.Lookup(name, index)
	if !ok || v == nil {
		return 0, InvalidArgument(a.plugin, a.method, fmt.Sprintf("missing required argument '%s'", name))
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, InvalidArgument(a.plugin, a.method, fmt.Sprintf("argument '%s' must be a number, got %T", name, v))
}

// OptionalInt returns an integral numeric argument or def when absent.
func (a Args) OptionalInt(name string, index int, def int) (int, error) {
	v, ok := a.Lookup(name, index)
	if !ok || v == nil {
		return def, nil
	}
	n, err := a.Number(name, index)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) {
		return 0, InvalidArgument(a.plugin, a.method, fmt.Sprintf("argument '%s' must be an integer", name))
	}
	return int(n), nil
}

// Map returns an optional object argument.
func (a Args) Map(name string, index int) (map[string]any, error) {
	v, ok := a.Lookup(name, index)
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, InvalidArgument(a.plugin, a.method, fmt.Sprintf("argument '%s' must be an object, got %T", name, v))
	}
	return m, nil
}

// List returns an optional array argument.
func (a Args) List(name string, index int) ([]any, error) {
	v, ok := a.Lookup(name, index)
	if !ok || v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, InvalidArgument(a.plugin, a.method, fmt.Sprintf("argument '%s' must be an array, got %T", name, v))
	}
	return l, nil
}

// Raw returns the argument without conversion.
func (a Args) Raw(name string, index int) any {
	v, _ := a.Lookup(name, index)
	return v
}
