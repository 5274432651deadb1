package runtime

import (
	"math"
	"sort"
	"strings"
)

type builtinFunc func(arg any) (any, error)

// builtins are the functions callable without an object prefix.
var builtins = map[string]builtinFunc{
	"len":   builtinLen,
	"upper": stringBuiltin("upper", strings.ToUpper),
	"lower": stringBuiltin("lower", strings.ToLower),
	"trim":  stringBuiltin("trim", strings.TrimSpace),
	"abs":   builtinAbs,
}

// BuiltinNames returns the names of the built-in functions in ascending
// order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// len counts UTF-8 bytes for strings.
func builtinLen(arg any) (any, error) {
	switch v := arg.(type) {
	case string:
		return float64(len(v)), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	}
	return nil, typeMismatch("len expects a string, array or object, found %s", TypeName(arg))
}

func stringBuiltin(name string, fn func(string) string) builtinFunc {
	return func(arg any) (any, error) {
		s, ok := arg.(string)
		if !ok {
			return nil, typeMismatch("%s expects a string, found %s", name, TypeName(arg))
		}
		return fn(s), nil
	}
}

func builtinAbs(arg any) (any, error) {
	n, ok := arg.(float64)
	if !ok {
		return nil, typeMismatch("abs expects a number, found %s", TypeName(arg))
	}
	return math.Abs(n), nil
}
