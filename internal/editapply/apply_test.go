package editapply

import (
	"strings"
	"testing"

	"github.com/basilisk-labs/boundarycheck/internal/escape"
	"github.com/basilisk-labs/boundarycheck/internal/siteplanner"
	"github.com/basilisk-labs/boundarycheck/internal/synth"
)

func TestApplyInsertsParameterCheckAtBodyStart(t *testing.T) {
	text := `function greet(name) {
  return name;
}
`
	bodyStart := strings.Index(text, "\n  return") + 1

	site := siteplanner.Site{
		Kind:      siteplanner.KindParameter,
		InsertPos: bodyStart,
		Name:      "name",
		Decision:  escape.Decision{Validate: true},
	}
	frag := synth.Fragment{Expr: "_check_abc(%s, \"name\")"}

	result := Apply(text, []PlannedFragment{{Site: site, Fragment: &frag}}, Options{})

	if !strings.Contains(result.Code, `name = _check_abc(name, "name");`) {
		t.Fatalf("expected parameter check statement in output, got:\n%s", result.Code)
	}
	if !strings.Contains(result.Code, "return name;") {
		t.Fatalf("expected original body to survive, got:\n%s", result.Code)
	}
}

func TestApplyReplacesReturnExpression(t *testing.T) {
	text := `function f() {
  return x;
}
`
	exprStart := strings.Index(text, "x;")
	exprEnd := exprStart + 1

	site := siteplanner.Site{
		Kind:      siteplanner.KindReturn,
		ExprStart: exprStart,
		ExprEnd:   exprEnd,
		ExprText:  "x",
		Decision:  escape.Decision{Validate: true},
	}
	frag := synth.Fragment{Expr: "_check_def(%s, \"return value\")"}

	result := Apply(text, []PlannedFragment{{Site: site, Fragment: &frag}}, Options{})

	if !strings.Contains(result.Code, `_check_def(x, "return value")`) {
		t.Fatalf("expected wrapped return expression, got:\n%s", result.Code)
	}
	if strings.Contains(result.Code, "return x;") {
		t.Fatalf("expected original return expression to be replaced, got:\n%s", result.Code)
	}
}

func TestApplySkipsSitesWithNoFragment(t *testing.T) {
	site := siteplanner.Site{Kind: siteplanner.KindParameter, Decision: escape.Decision{Validate: false, Reason: "internal, only clean callers"}}
	result := Apply("function f(u) { return u; }", []PlannedFragment{{Site: site, Fragment: nil}}, Options{})

	if result.SkippedFor != 1 || result.GeneratedFor != 0 {
		t.Fatalf("expected one skipped site and zero generated, got skipped=%d generated=%d", result.SkippedFor, result.GeneratedFor)
	}
	if result.Code != "function f(u) { return u; }" {
		t.Fatalf("expected source unchanged when every site is skipped, got:\n%s", result.Code)
	}
}

func TestApplyHoistsSharedHelperOnce(t *testing.T) {
	text := `function f(a, b) { return a + b; }`
	frag := synth.Fragment{
		Expr:    "_check_shared(%s, \"x\")",
		Helpers: map[uint64]string{42: "const _check_shared = (v, p) => v;"},
	}
	siteA := siteplanner.Site{Kind: siteplanner.KindParameter, Name: "a", InsertPos: 18, Decision: escape.Decision{Validate: true}}
	siteB := siteplanner.Site{Kind: siteplanner.KindParameter, Name: "b", InsertPos: 18, Decision: escape.Decision{Validate: true}}

	result := Apply(text, []PlannedFragment{{Site: siteA, Fragment: &frag}, {Site: siteB, Fragment: &frag}}, Options{})

	if got := strings.Count(result.Code, "const _check_shared"); got != 1 {
		t.Fatalf("expected hoisted helper emitted exactly once, got %d times in:\n%s", got, result.Code)
	}
}

func TestApplyEmitsSourceMapWithSourcesContent(t *testing.T) {
	text := "function f(a) {\n  return a;\n}\n"
	site := siteplanner.Site{Kind: siteplanner.KindParameter, Name: "a", InsertPos: 17, AnchorPos: 11, Decision: escape.Decision{Validate: true}}
	frag := synth.Fragment{Expr: "_check_x(%s, \"a\")"}

	result := Apply(text, []PlannedFragment{{Site: site, Fragment: &frag}}, Options{
		FileName: "f.ts", SourceMapEnabled: true, SourceMapIncludeContent: true,
	})

	if result.SourceMap == nil {
		t.Fatal("expected a source map when SourceMapEnabled is set")
	}
	if result.SourceMap.Version != 3 {
		t.Fatalf("expected source map version 3, got %d", result.SourceMap.Version)
	}
	if len(result.SourceMap.SourcesContent) != 1 || *result.SourceMap.SourcesContent[0] != text {
		t.Fatalf("expected sourcesContent to carry the original text")
	}
	if result.SourceMap.Mappings == "" {
		t.Fatal("expected a non-empty mappings string")
	}
}
