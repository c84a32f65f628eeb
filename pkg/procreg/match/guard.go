package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Guard is a predicate over the bindings captured by a pattern.
type Guard interface {
	eval(b Bindings) (bool, error)
}

// GuardFunc adapts a plain predicate to a Guard. A nil-safe escape hatch
// for conditions the expression language cannot express.
func GuardFunc(fn func(b Bindings) bool) Guard {
	return funcGuard{fn: fn}
}

type funcGuard struct {
	fn func(b Bindings) bool
}

func (g funcGuard) eval(b Bindings) (bool, error) {
	if g.fn == nil {
		return false, errors.New("nil guard function")
	}
	return g.fn(b), nil
}

// GuardExpr is a guard written in a small comparison language evaluated
// against the bindings.
//
// Supported: ==, !=, <, >, <=, >= and contains, combined with "and", "or"
// and negation via "not " or "!". Operands are bind names ("$1"), quoted
// strings, numbers, booleans or null. Ordering comparisons coerce both
// sides to float64; equality compares formatted values.
type GuardExpr string

func (g GuardExpr) eval(b Bindings) (bool, error) {
	return evalCondition(string(g), b)
}

// Type guards, for the checks the expression language has no syntax for.

// IsNumber passes when name is bound to an integer or float.
func IsNumber(name string) Guard {
	return GuardFunc(func(b Bindings) bool {
		switch b[name].(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	})
}

// IsString passes when name is bound to a string.
func IsString(name string) Guard {
	return GuardFunc(func(b Bindings) bool {
		_, ok := b[name].(string)
		return ok
	})
}

// IsTuple passes when name is bound to a tuple ([]any).
func IsTuple(name string) Guard {
	return GuardFunc(func(b Bindings) bool {
		_, ok := b[name].([]any)
		return ok
	})
}

// evalCondition evaluates a boolean expression against the bindings.
func evalCondition(expr string, b Bindings) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, errors.New("empty guard expression")
	}

	if inner, ok := strings.CutPrefix(expr, "not "); ok {
		result, err := evalCondition(inner, b)
		return !result, err
	}
	if inner, ok := strings.CutPrefix(expr, "!"); ok {
		result, err := evalCondition(inner, b)
		return !result, err
	}

	// Short-circuit on the first conjunction/disjunction.
	if parts := strings.SplitN(expr, " and ", 2); len(parts) == 2 {
		left, err := evalCondition(parts[0], b)
		if err != nil || !left {
			return false, err
		}
		return evalCondition(parts[1], b)
	}
	if parts := strings.SplitN(expr, " or ", 2); len(parts) == 2 {
		left, err := evalCondition(parts[0], b)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return evalCondition(parts[1], b)
	}

	// Longer operators first so ">=" is not split as ">".
	ops := []struct {
		token   string
		compare func(l, r any) bool
	}{
		{"==", func(l, r any) bool { return formatEqual(l, r) }},
		{"!=", func(l, r any) bool { return !formatEqual(l, r) }},
		{">=", func(l, r any) bool { return toFloat64(l) >= toFloat64(r) }},
		{"<=", func(l, r any) bool { return toFloat64(l) <= toFloat64(r) }},
		{">", func(l, r any) bool { return toFloat64(l) > toFloat64(r) }},
		{"<", func(l, r any) bool { return toFloat64(l) < toFloat64(r) }},
		{" contains ", func(l, r any) bool {
			return strings.Contains(fmt.Sprintf("%v", l), fmt.Sprintf("%v", r))
		}},
	}
	for _, op := range ops {
		if parts := strings.SplitN(expr, op.token, 2); len(parts) == 2 {
			left := resolve(parts[0], b)
			right := resolve(parts[1], b)
			return op.compare(left, right), nil
		}
	}

	// Bare operand: truthiness of the resolved value.
	return isTruthy(resolve(expr, b)), nil
}

// resolve turns an operand into a value: a binding lookup, a quoted string,
// a boolean/null literal, a number, or the raw token as a string.
func resolve(s string, b Bindings) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if v, ok := b[s]; ok {
		return v
	}

	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}

	var num json.Number
	if err := json.Unmarshal([]byte(s), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	return s
}

func formatEqual(l, r any) bool {
	return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r)
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case string:
		var f float64
		_, _ = fmt.Sscanf(val, "%f", &f)
		return f
	default:
		return 0
	}
}
