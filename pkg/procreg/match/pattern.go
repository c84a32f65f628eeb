package match

import "reflect"

// Bindings maps bind names (conventionally "$1", "$2", ...) to the values
// they captured during a match.
type Bindings map[string]any

// Pattern is a structural template over a stored value.
type Pattern interface {
	// match reports whether v satisfies the template, extending b with any
	// captured bindings. b may be partially populated on failure.
	match(v any, b Bindings) bool
}

type wildcard struct{}

type literal struct {
	value any
}

type binding struct {
	name string
}

type tuple struct {
	elems []Pattern
}

// Wildcard matches any value without capturing it.
func Wildcard() Pattern { return wildcard{} }

// Lit matches a value equal to v. Equality is reflect.DeepEqual, so tuple
// values ([]any) compare element-wise.
func Lit(v any) Pattern { return literal{value: v} }

// Bind matches any value and captures it under name. If the same name is
// bound more than once in a pattern, all occurrences must capture equal
// values for the match to succeed.
func Bind(name string) Pattern { return binding{name: name} }

// Tuple matches a []any of the same length, element-wise.
func Tuple(elems ...Pattern) Pattern { return tuple{elems: elems} }

func (wildcard) match(any, Bindings) bool { return true }

func (p literal) match(v any, _ Bindings) bool {
	return reflect.DeepEqual(v, p.value)
}

func (p binding) match(v any, b Bindings) bool {
	if prev, ok := b[p.name]; ok {
		return reflect.DeepEqual(prev, v)
	}
	b[p.name] = v
	return true
}

func (p tuple) match(v any, b Bindings) bool {
	elems, ok := v.([]any)
	if !ok || len(elems) != len(p.elems) {
		return false
	}
	for i, sub := range p.elems {
		if !sub.match(elems[i], b) {
			return false
		}
	}
	return true
}
