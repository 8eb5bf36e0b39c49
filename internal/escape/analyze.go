package escape

import (
	"fmt"
	"os"

	"github.com/microsoft/typescript-go/shim/ast"
)

var debug = os.Getenv("BOUNDARYCHECK_DEBUG") == "1"

func debugf(format string, args ...any) {
	if debug {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// FunctionScope holds the per-function dataflow state built up while
// walking a single function body. The analysis is intra-procedural: no
// state survives across functions except through CallGraph (callgraph.go),
// which is what powers the "internal, only clean callers" skip.
type FunctionScope struct {
	vars map[string]State

	// exported indicates this function is reachable from outside the
	// file (export, or assigned to an exported binding); exported
	// functions are always conservatively called with Dirty arguments by
	// callers outside the file, since cross-file callers are never
	// analyzed.
	exported bool

	// paramCleanAtEveryCallSite is not read or written anywhere; the
	// per-parameter "every call site within this file passes a Clean
	// argument" facts that decide the internal-callee skip live in
	// CallGraph (callgraph.go).
	paramCleanAtEveryCallSite []bool
}

// NewFunctionScope seeds a scope with a function's parameters marked Clean
// at entry: parameters always validate on entry, so Clean here just means
// "known valid after the emitted check", which is the dataflow fact a
// later return/use observes.
func NewFunctionScope(paramNames []string, exported bool) *FunctionScope {
	vars := make(map[string]State, len(paramNames))
	for _, n := range paramNames {
		vars[n] = Clean
	}
	return &FunctionScope{vars: vars, exported: exported}
}

func (fs *FunctionScope) rootName(n *ast.Node) (string, bool) {
	for n != nil {
		switch n.Kind {
		case ast.KindIdentifier:
			return n.Text(), true
		case ast.KindPropertyAccessExpression:
			n = n.Expression()
		case ast.KindElementAccessExpression:
			n = n.Expression()
		default:
			return "", false
		}
	}
	return "", false
}

func (fs *FunctionScope) stateOf(n *ast.Node) State {
	name, ok := fs.rootName(n)
	if !ok {
		return Dirty
	}
	if s, ok := fs.vars[name]; ok {
		return s
	}
	return Dirty
}

// StateOf reports the lattice state of the binding an expression roots in:
// the state of `u` for `u`, `u.name`, or `u[i]`, Dirty for anything whose
// root is not a tracked binding. The planner uses this to classify call
// arguments for CallGraph.ObserveCall.
func (fs *FunctionScope) StateOf(n *ast.Node) State {
	return fs.stateOf(n)
}

// ObserveAssignment marks whichever variable is written to (directly or via
// a property/element write) Dirty: any write to the binding or to a
// nested property invalidates what an earlier check proved.
func (fs *FunctionScope) ObserveAssignment(target *ast.Node) {
	name, ok := fs.rootName(target)
	if !ok {
		return
	}
	fs.vars[name] = Dirty
}

// ObserveCleanBinding records that name is Clean as of this program point —
// e.g. right after a validated parameter, a JSON.parse<T> call, or a
// successful `as T` cast.
func (fs *FunctionScope) ObserveCleanBinding(name string) {
	fs.vars[name] = Clean
}

// ObserveAlias propagates Clean-ness through `let b = a;` and through
// direct property reads of a Clean object: aliases of Clean values are
// Clean, and a direct property access of a Clean object yields a Clean
// value of the property's type.
func (fs *FunctionScope) ObserveAlias(target string, source *ast.Node) {
	fs.vars[target] = fs.stateOf(source)
}

// ObserveEscape marks a value passed to an external function, stored into a
// mutable external structure, or captured by a closure as Escaped.
// Passing to an internal (same-file, analyzed) function whose
// parameter is itself re-validated does not escape the value.
func (fs *FunctionScope) ObserveEscape(arg *ast.Node) {
	name, ok := fs.rootName(arg)
	if !ok {
		return
	}
	if fs.vars[name] == Clean {
		fs.vars[name] = Escaped
	}
}

// ObserveAwait demotes every currently-Escaped binding to Dirty: while
// control was suspended, any external holder may have mutated the value.
func (fs *FunctionScope) ObserveAwait() {
	for name, s := range fs.vars {
		fs.vars[name] = afterAwait(s)
	}
}

// Join merges another scope's bindings into this one at a control-flow
// merge point, taking the lattice join per binding (bindings absent from
// one side are conservatively Dirty, since a variable assigned on only one
// branch is observably mutated on the other; unknown joins to top).
func (fs *FunctionScope) Join(other *FunctionScope) {
	for name, s := range other.vars {
		if existing, ok := fs.vars[name]; ok {
			fs.vars[name] = join(existing, s)
		} else {
			fs.vars[name] = Dirty
		}
	}
	for name := range fs.vars {
		if _, ok := other.vars[name]; !ok {
			fs.vars[name] = Dirty
		}
	}
}

// Clone produces an independent copy of the current bindings, used before
// walking diverging branches (if/else, switch cases) so each branch's
// mutations don't leak into its siblings before the post-merge Join.
func (fs *FunctionScope) Clone() *FunctionScope {
	cp := make(map[string]State, len(fs.vars))
	for k, v := range fs.vars {
		cp[k] = v
	}
	return &FunctionScope{vars: cp, exported: fs.exported}
}

// DecideParameter decides a parameter site: always MUST-VALIDATE at
// function entry, unless the function is internal and
// CallGraph has proven every call site passes an already-Clean argument.
func DecideParameter(exported, allCallersPassClean bool) Decision {
	if !exported && allCallersPassClean {
		return skip("internal, only clean callers")
	}
	return validate()
}

// DecideReturn decides a return site: SKIP only when the returned
// expression is provably Clean at the return point.
func (fs *FunctionScope) DecideReturn(expr *ast.Node) Decision {
	if fs.stateOf(expr) == Clean {
		return skip("return expression already validated on every path")
	}
	return validate()
}

// DecideCast decides a cast site: MUST-VALIDATE unless the
// oracle can prove assignability without widening from any/unknown. The
// actual IsAssignable query lives in siteplanner (it needs the checker,
// which escape deliberately does not depend on) — DecideCast here only
// covers the dataflow half: casts always validate unless oracle-provably
// assignable, so this always returns MUST-VALIDATE and siteplanner applies
// the assignability short-circuit itself.
func DecideCast() Decision { return validate() }

// DecideJSONParse and DecideJSONStringify always MUST-VALIDATE: a JSON
// boundary is never provably clean.
func DecideJSONParse() Decision     { return validate() }
func DecideJSONStringify() Decision { return validate() }
