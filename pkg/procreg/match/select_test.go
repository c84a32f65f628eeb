package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleDefaultsToWildcards(t *testing.T) {
	prog, err := CompileRule(Rule{})
	require.NoError(t, err)

	out, ok := prog.Eval("k", "owner-1", 42)
	require.True(t, ok)
	assert.Equal(t, []any{"k", "owner-1", 42}, out)
}

func TestRuleShapeSingleTerm(t *testing.T) {
	prog, err := CompileRule(Rule{
		Value: Bind("$v"),
		Shape: []Term{Var("$v")},
	})
	require.NoError(t, err)

	out, ok := prog.Eval("k", "o", "payload")
	require.True(t, ok)
	assert.Equal(t, "payload", out)
}

func TestRuleShapeProjection(t *testing.T) {
	prog, err := CompileRule(Rule{
		Key:   Bind("$k"),
		Value: Tuple(Bind("$a"), Wildcard()),
		Shape: []Term{Val("row"), Var("$k"), Var("$a")},
	})
	require.NoError(t, err)

	out, ok := prog.Eval("users", "o", []any{1, "rest"})
	require.True(t, ok)
	assert.Equal(t, []any{"row", "users", 1}, out)
}

func TestRuleOwnerPattern(t *testing.T) {
	prog, err := CompileRule(Rule{Owner: Lit("owner-2")})
	require.NoError(t, err)

	_, ok := prog.Eval("k", "owner-1", nil)
	assert.False(t, ok)

	_, ok = prog.Eval("k", "owner-2", nil)
	assert.True(t, ok)
}

func TestRuleGuards(t *testing.T) {
	prog, err := CompileRule(Rule{
		Value:  Bind("$1"),
		Guards: []Guard{GuardExpr("$1 >= 10")},
	})
	require.NoError(t, err)

	_, ok := prog.Eval("k", "o", 5)
	assert.False(t, ok)

	_, ok = prog.Eval("k", "o", 10)
	assert.True(t, ok)
}

func TestRuleBindingsSpanTriple(t *testing.T) {
	// The same name binds across key and value: unification applies.
	prog, err := CompileRule(Rule{
		Key:   Bind("$x"),
		Value: Bind("$x"),
	})
	require.NoError(t, err)

	_, ok := prog.Eval("same", "o", "same")
	assert.True(t, ok)

	_, ok = prog.Eval("a", "o", "b")
	assert.False(t, ok)
}

func TestCompileRulesValidation(t *testing.T) {
	_, err := CompileRules(nil)
	assert.Error(t, err)

	_, err = CompileRules([]Rule{{Guards: []Guard{nil}}})
	assert.Error(t, err)

	_, err = CompileRules([]Rule{{Shape: []Term{Var("")}}})
	assert.Error(t, err)

	progs, err := CompileRules([]Rule{{}, {Value: Lit(1)}})
	require.NoError(t, err)
	assert.Len(t, progs, 2)
}
