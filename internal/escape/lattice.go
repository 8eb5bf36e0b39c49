// Package escape implements the escape and purity analysis: an intra-procedural
// forward dataflow pass that classifies each binding as Clean, Dirty, or
// Escaped, and uses that classification to decide whether a candidate site
// can skip validation because its value is already known-valid.
package escape

// State is the dataflow lattice element attached to a binding at a program
// point. The join of two states at a control-flow
// merge is always the more conservative (higher) element: Dirty is top,
// so any uncertainty collapses to "must validate" rather than risking an
// unsound skip.
type State int

const (
	// Clean means the binding is known to satisfy its declared type: it
	// was just validated, or was produced by a call that itself validates
	// its return.
	Clean State = iota
	// Escaped means the binding was handed to code outside provable
	// control (an external function, a mutable external structure) but
	// has not yet been observed to be re-entered into this scope.
	Escaped
	// Dirty is the top element: written to, derived from Unsupported, or
	// the join of any branch where one arm is Dirty.
	Dirty
)

// join implements the lattice join (meet of soundness): Dirty dominates
// Escaped dominates Clean.
func join(a, b State) State {
	if a == Dirty || b == Dirty {
		return Dirty
	}
	if a == Escaped || b == Escaped {
		return Escaped
	}
	return Clean
}

// afterAwait demotes a binding that was Escaped before an await boundary to
// Dirty: any external holder may have mutated it while control was
// suspended. Clean and Dirty
// bindings are unaffected — Clean values were not handed away, so nothing
// external could have touched them.
func afterAwait(s State) State {
	if s == Escaped {
		return Dirty
	}
	return s
}
