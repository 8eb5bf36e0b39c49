package siteplanner

import (
	"testing"

	"github.com/basilisk-labs/boundarycheck/internal/escape"
)

func TestByPosKeepsSourceOrder(t *testing.T) {
	sites := []Site{
		{Kind: KindReturn, ExprStart: 80},
		{Kind: KindParameter, ExprStart: 10},
		{Kind: KindCast, ExprStart: 42},
	}
	byPos(sites)
	for i := 1; i < len(sites); i++ {
		if sites[i-1].ExprStart > sites[i].ExprStart {
			t.Fatalf("sites out of order at %d: %d > %d", i, sites[i-1].ExprStart, sites[i].ExprStart)
		}
	}
}

func TestByPosIsStableForEqualPositions(t *testing.T) {
	sites := []Site{
		{Kind: KindParameter, ExprStart: 10, Name: "a"},
		{Kind: KindParameter, ExprStart: 10, Name: "b"},
	}
	byPos(sites)
	if sites[0].Name != "a" || sites[1].Name != "b" {
		t.Fatalf("equal-position sites must keep insertion order, got %s then %s", sites[0].Name, sites[1].Name)
	}
}

func TestKindStrings(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindParameter, "parameter"},
		{KindReturn, "return"},
		{KindCast, "cast"},
		{KindJSONParse, "json-parse"},
		{KindJSONStringify, "json-stringify"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestIgnoreCommentRegex(t *testing.T) {
	if !ignoreCommentRegex.MatchString("// @boundarycheck-ignore\n") {
		t.Fatal("line comment form should match")
	}
	if !ignoreCommentRegex.MatchString("/* @boundarycheck-ignore */") {
		t.Fatal("block comment form should match")
	}
	if ignoreCommentRegex.MatchString("const x = 1;") {
		t.Fatal("plain code must not match")
	}
}

func TestSkipReasonCarriesText(t *testing.T) {
	d := skipReason("unconstrained generic")
	if d.Validate {
		t.Fatal("skipReason must produce a non-validating decision")
	}
	if d.Reason != "unconstrained generic" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
	if (escape.Decision{Validate: true}).Reason != "" {
		t.Fatal("validate decisions carry no reason")
	}
}
