package escape

import "testing"

func TestAwaitDemotesEscapedToDirty(t *testing.T) {
	fs := NewFunctionScope([]string{"u"}, true)
	fs.vars["u"] = Escaped
	fs.ObserveAwait()
	if fs.vars["u"] != Dirty {
		t.Fatalf("expected await to demote Escaped to Dirty, got %v", fs.vars["u"])
	}
}

func TestAwaitLeavesCleanAlone(t *testing.T) {
	fs := NewFunctionScope([]string{"u"}, true)
	fs.ObserveAwait()
	if fs.vars["u"] != Clean {
		t.Fatalf("expected await to leave Clean untouched, got %v", fs.vars["u"])
	}
}

func TestJoinIsConservative(t *testing.T) {
	a := NewFunctionScope([]string{"u"}, true)
	b := a.Clone()
	b.vars["u"] = Dirty

	a.Join(b)
	if a.vars["u"] != Dirty {
		t.Fatalf("expected join of Clean and Dirty to be Dirty, got %v", a.vars["u"])
	}
}

func TestCallGraphInternalSkipRequiresAllCleanSites(t *testing.T) {
	g := NewCallGraph()
	g.Declare("fmt", 1)
	g.ObserveCall("fmt", []State{Clean})
	g.ObserveCall("fmt", []State{Clean})

	if !g.AllCallersClean("fmt", 0) {
		t.Fatalf("expected all-clean call sites to permit skip")
	}

	g.ObserveCall("fmt", []State{Dirty})
	if g.AllCallersClean("fmt", 0) {
		t.Fatalf("expected one dirty call site to revoke the skip")
	}
}

func TestCallGraphIsDeclared(t *testing.T) {
	g := NewCallGraph()
	g.Declare("fmt", 1)
	if !g.IsDeclared("fmt") {
		t.Fatalf("declared function should report IsDeclared")
	}
	if g.IsDeclared("imported") {
		t.Fatalf("undeclared callee must be treated as external")
	}
}

func TestUncalledFunctionDoesNotSkip(t *testing.T) {
	g := NewCallGraph()
	g.Declare("neverCalled", 1)
	if g.AllCallersClean("neverCalled", 0) {
		t.Fatalf("an uncalled function must not be granted a skip")
	}
}

func TestDecideParameterExportedAlwaysValidates(t *testing.T) {
	d := DecideParameter(true, true)
	if !d.Validate {
		t.Fatalf("exported parameters must always validate")
	}
}

func TestDecideParameterInternalCleanCallersSkips(t *testing.T) {
	d := DecideParameter(false, true)
	if d.Validate {
		t.Fatalf("expected skip for internal function with all-clean callers")
	}
	if d.Reason == "" {
		t.Fatalf("skip decisions must carry a reason")
	}
}
