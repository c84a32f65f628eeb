package match

import (
	"errors"
	"fmt"
)

// Rule is one clause of a registry-wide selection. The three patterns match
// the stored (key, owner ID, value) triple; nil patterns act as wildcards.
// Guards see the union of bindings from all three patterns. Shape controls
// what a matching triple contributes to the result set.
type Rule struct {
	Key   Pattern
	Owner Pattern
	Value Pattern

	Guards []Guard

	// Shape projects the match into an output. Empty means the whole
	// triple as []any{key, owner, value}; a single term yields that term's
	// value; multiple terms yield a []any.
	Shape []Term
}

// Term is one element of a rule's output shape: either a literal or a
// reference to a bound name.
type Term struct {
	lit  any
	name string
	ref  bool
}

// Val shapes a literal into the output.
func Val(v any) Term { return Term{lit: v} }

// Var shapes the value bound under name into the output.
func Var(name string) Term { return Term{name: name, ref: true} }

// RuleProgram is a compiled Rule.
type RuleProgram struct {
	key    Pattern
	owner  Pattern
	value  Pattern
	guards []Guard
	shape  []Term
}

// CompileRule validates one selection rule.
func CompileRule(r Rule) (*RuleProgram, error) {
	for i, g := range r.Guards {
		if g == nil {
			return nil, fmt.Errorf("match: rule guard %d is nil", i)
		}
	}
	for i, t := range r.Shape {
		if t.ref && t.name == "" {
			return nil, fmt.Errorf("match: rule shape term %d references an empty name", i)
		}
	}
	p := &RuleProgram{
		key:    r.Key,
		owner:  r.Owner,
		value:  r.Value,
		guards: r.Guards,
		shape:  r.Shape,
	}
	if p.key == nil {
		p.key = Wildcard()
	}
	if p.owner == nil {
		p.owner = Wildcard()
	}
	if p.value == nil {
		p.value = Wildcard()
	}
	return p, nil
}

// CompileRules validates a whole selection spec.
func CompileRules(rules []Rule) ([]*RuleProgram, error) {
	if len(rules) == 0 {
		return nil, errors.New("match: empty selection spec")
	}
	progs := make([]*RuleProgram, 0, len(rules))
	for i, r := range rules {
		p, err := CompileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		progs = append(progs, p)
	}
	return progs, nil
}

// Eval matches a stored triple against the rule. On success it returns the
// shaped output.
func (p *RuleProgram) Eval(key any, owner string, value any) (any, bool) {
	b := make(Bindings)
	if !p.key.match(key, b) || !p.owner.match(owner, b) || !p.value.match(value, b) {
		return nil, false
	}
	for _, g := range p.guards {
		ok, err := g.eval(b)
		if err != nil || !ok {
			return nil, false
		}
	}
	return p.project(key, owner, value, b), true
}

func (p *RuleProgram) project(key any, owner string, value any, b Bindings) any {
	if len(p.shape) == 0 {
		return []any{key, owner, value}
	}
	if len(p.shape) == 1 {
		return p.shape[0].value(b)
	}
	out := make([]any, len(p.shape))
	for i, t := range p.shape {
		out[i] = t.value(b)
	}
	return out
}

func (t Term) value(b Bindings) any {
	if t.ref {
		return b[t.name]
	}
	return t.lit
}
