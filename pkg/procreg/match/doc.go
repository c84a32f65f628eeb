// Package match implements the structural pattern and guard engine used by
// registry queries.
//
// A pattern is a template over stored values built from four node kinds:
// Wildcard matches anything, Lit matches a literal value, Bind captures the
// matched value under a name (repeated binds must unify), and Tuple matches
// a []any element-wise.
//
// Guards are predicates over the captured bindings, evaluated only after the
// whole template matched. They come in two forms: GuardExpr strings using a
// small comparison language ("$1 > 1", "$2 == 'atom' and $1 <= 10") and
// GuardFunc predicates for anything the language cannot express.
//
// Compile validates a pattern and its guards once; the resulting Program is
// evaluated per candidate value and is safe for concurrent use.
//
//	prog, err := match.Compile(
//	    match.Tuple(match.Bind("$1"), match.Lit("atom"), match.Bind("$1")),
//	    match.GuardExpr("$1 > 1"),
//	)
//	bindings, ok := prog.Eval([]any{2, "atom", 2}) // ok == true
package match
