package match

import (
	"errors"
	"fmt"
	"strings"
)

// Program is a compiled pattern plus guards, ready to evaluate against
// candidate values. Programs are immutable and safe for concurrent use.
type Program struct {
	pattern Pattern
	guards  []Guard
}

// Compile validates a pattern and its guards once. Evaluate the result per
// candidate with Eval.
func Compile(pattern Pattern, guards ...Guard) (*Program, error) {
	if pattern == nil {
		return nil, errors.New("match: nil pattern")
	}
	for i, g := range guards {
		if g == nil {
			return nil, fmt.Errorf("match: guard %d is nil", i)
		}
		if expr, ok := g.(GuardExpr); ok && strings.TrimSpace(string(expr)) == "" {
			return nil, fmt.Errorf("match: guard %d is empty", i)
		}
	}
	return &Program{pattern: pattern, guards: guards}, nil
}

// MustCompile is Compile, panicking on error. For patterns known good at
// compile time.
func MustCompile(pattern Pattern, guards ...Guard) *Program {
	prog, err := Compile(pattern, guards...)
	if err != nil {
		panic(err)
	}
	return prog
}

// Eval matches v against the program. On success it returns the captured
// bindings; a guard that errors fails the match rather than surfacing the
// error, matching query semantics where a non-evaluable guard simply
// filters the candidate out.
func (p *Program) Eval(v any) (Bindings, bool) {
	b := make(Bindings)
	if !p.pattern.match(v, b) {
		return nil, false
	}
	for _, g := range p.guards {
		ok, err := g.eval(b)
		if err != nil || !ok {
			return nil, false
		}
	}
	return b, true
}
