package synth

import (
	"strings"
	"testing"

	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

func TestIsIdentifier(t *testing.T) {
	decomposed := "cafe" + string(rune(0x0301)) // e + combining acute
	tests := []struct {
		name string
		want bool
	}{
		{"email", true},
		{"_private", true},
		{"$ref", true},
		{"item2", true},
		{"2items", false},
		{"has-dash", false},
		{"has space", false},
		{"", false},
		{"café", true},                      // precomposed
		{decomposed, true},                  // NFC-normalizes to the precomposed form
		{string(rune(0x0301)) + "x", false}, // combining mark cannot lead
	}
	for _, tt := range tests {
		if got := isIdentifier(tt.name); got != tt.want {
			t.Errorf("isIdentifier(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPathFieldEmission(t *testing.T) {
	p := newPath("u")
	if got := p.field("email").String(); got != "u.email" {
		t.Errorf("expected dot emission for identifier field, got %q", got)
	}
	if got := p.field("content-type").String(); got != `u["content-type"]` {
		t.Errorf("expected bracket emission for non-identifier field, got %q", got)
	}
}

func TestFlavorJSOmitsAnnotations(t *testing.T) {
	obj := &typemodel.Type{Kind: typemodel.KindObject, Fields: []typemodel.Field{
		{Name: "name", Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimString}},
		{Name: "tags", Type: &typemodel.Type{Kind: typemodel.KindArray, Elem: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimString}, MaxLen: -1}},
	}}

	js := New("false", 0, nil, false)
	frag := js.Synthesize(obj, Assert, "u")
	if strings.Contains(frag.Expr, ": any") || strings.Contains(frag.Expr, ": string") {
		t.Fatalf("js flavor must not emit type annotations, got %s", frag.Expr)
	}

	ts := New("false", 0, nil, true)
	tsFrag := ts.Synthesize(obj, Assert, "u")
	if !strings.Contains(tsFrag.Expr, "(v: any, path: string)") {
		t.Fatalf("ts flavor should annotate the validator arrow, got %s", tsFrag.Expr)
	}
}

func TestRuntimeHelpersFlavors(t *testing.T) {
	if !strings.Contains(RuntimeHelpers(true), "entries: string[]") {
		t.Fatalf("ts runtime helpers should be annotated")
	}
	if strings.Contains(RuntimeHelpers(false), ": string") {
		t.Fatalf("js runtime helpers must not carry annotations")
	}
}
