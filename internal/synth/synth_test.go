package synth

import (
	"strings"
	"testing"

	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

func TestSynthesizeAssertPrimitive(t *testing.T) {
	s := New("false", 0, nil, true)
	frag := s.Synthesize(&typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimString}, Assert, "name")
	if !strings.Contains(frag.Expr, `typeof`) {
		t.Fatalf("expected a typeof check, got %s", frag.Expr)
	}
	if !strings.Contains(frag.Expr, "TypeError") {
		t.Fatalf("expected a TypeError throw, got %s", frag.Expr)
	}
}

func TestSynthesizeAssertTemplateLiteralEmailField(t *testing.T) {
	emailType := &typemodel.Type{
		Kind: typemodel.KindTemplateLiteral,
		Template: &typemodel.TemplatePattern{Parts: []typemodel.TemplatePart{
			{Kind: typemodel.PartString},
			{Kind: typemodel.PartLiteral, Text: "@"},
			{Kind: typemodel.PartString},
			{Kind: typemodel.PartLiteral, Text: "."},
			{Kind: typemodel.PartString},
		}},
	}
	objType := &typemodel.Type{Kind: typemodel.KindObject, Fields: []typemodel.Field{
		{Name: "email", Type: emailType},
	}}

	s := New("false", 0, nil, true)
	frag := s.Synthesize(objType, Assert, "u")
	if !strings.Contains(frag.Expr, "u.email") {
		t.Fatalf("expected path to mention u.email, got %s", frag.Expr)
	}
	if !strings.Contains(frag.Expr, ".test(") {
		t.Fatalf("expected regex .test() in template check, got %s", frag.Expr)
	}
}

func TestLiteralChecksCompareBareValues(t *testing.T) {
	s := New("false", 0, nil, true)

	cat := "cat"
	strFrag := s.Synthesize(&typemodel.Type{Kind: typemodel.KindLiteral, LiteralString: &cat}, Assert, "tag")
	if !strings.Contains(strFrag.Expr, `!== "cat"`) {
		t.Fatalf("expected single-quoted string literal comparison, got %s", strFrag.Expr)
	}
	if strings.Contains(strFrag.Expr, `\"cat\"`) && strings.Contains(strFrag.Expr, `!== "\"cat\""`) {
		t.Fatalf("string literal must not be double-quoted, got %s", strFrag.Expr)
	}

	answer := 42.0
	numFrag := s.Synthesize(&typemodel.Type{Kind: typemodel.KindLiteral, LiteralNumber: &answer}, Assert, "n")
	if !strings.Contains(numFrag.Expr, "!== 42") {
		t.Fatalf("expected numeric literal comparison against its value, got %s", numFrag.Expr)
	}

	big := "123"
	bigFrag := s.Synthesize(&typemodel.Type{Kind: typemodel.KindLiteral, LiteralBigInt: &big}, Assert, "b")
	if !strings.Contains(bigFrag.Expr, "!== 123n") || strings.Contains(bigFrag.Expr, "123nn") {
		t.Fatalf("expected a single n suffix on the bigint literal, got %s", bigFrag.Expr)
	}
}

func TestHoistingDedupesByHash(t *testing.T) {
	s := New("true", 0, nil, true)
	str := &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimString}
	obj := &typemodel.Type{Kind: typemodel.KindObject, Fields: []typemodel.Field{{Name: "a", Type: str}}}

	f1 := s.Synthesize(obj, Assert, "x")
	f2 := s.Synthesize(obj, Assert, "y")

	if len(f1.Helpers) != 1 {
		t.Fatalf("expected first synthesis to emit one helper, got %d", len(f1.Helpers))
	}
	if len(f2.Helpers) != 0 {
		t.Fatalf("expected second synthesis of the same type to reuse the hoisted helper, got %d new helpers", len(f2.Helpers))
	}
}

func TestDiscriminatedUnionNeverEvaluatesOtherArm(t *testing.T) {
	catTag := "cat"
	dogTag := "dog"
	cat := &typemodel.Type{Kind: typemodel.KindObject, Fields: []typemodel.Field{
		{Name: "t", Type: &typemodel.Type{Kind: typemodel.KindLiteral, LiteralString: &catTag}},
		{Name: "m", Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimAny}},
	}}
	dog := &typemodel.Type{Kind: typemodel.KindObject, Fields: []typemodel.Field{
		{Name: "t", Type: &typemodel.Type{Kind: typemodel.KindLiteral, LiteralString: &dogTag}},
		{Name: "b", Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimAny}},
	}}
	union := &typemodel.Type{Kind: typemodel.KindUnion, Arms: []*typemodel.Type{cat, dog}, Discriminant: "t"}

	s := New("false", 0, nil, true)
	frag := s.Synthesize(union, Assert, "pet")
	if !strings.Contains(frag.Expr, "switch") {
		t.Fatalf("expected a switch-based discriminant dispatch, got %s", frag.Expr)
	}
	if !strings.Contains(frag.Expr, `case "cat"`) || !strings.Contains(frag.Expr, `case "dog"`) {
		t.Fatalf("expected both discriminant cases, got %s", frag.Expr)
	}
}

func TestStringifyBelowThresholdUsesInlineBuilder(t *testing.T) {
	s := New("false", 0, nil, true)
	obj := &typemodel.Type{Kind: typemodel.KindObject, Fields: []typemodel.Field{
		{Name: "name", Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimString}},
		{Name: "age", Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimNumber}},
	}}
	frag := s.Synthesize(obj, StringifyProjection, "v")
	if strings.Contains(frag.Expr, "filter") || !strings.Contains(frag.Expr, "_stringifyObject") {
		t.Fatalf("expected inline builder below K, got %s", frag.Expr)
	}
}

func TestStringifyAtOrAboveThresholdUsesFilter(t *testing.T) {
	s := New("false", 0, nil, true)
	fields := make([]typemodel.Field, 0, K)
	for i := 0; i < K; i++ {
		fields = append(fields, typemodel.Field{
			Name: strings.Repeat("f", 1) + string(rune('a'+i)),
			Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimString},
		})
	}
	obj := &typemodel.Type{Kind: typemodel.KindObject, Fields: fields}
	frag := s.Synthesize(obj, StringifyProjection, "v")
	if !strings.Contains(frag.Expr, "JSON.stringify(_r)") {
		t.Fatalf("expected filter+stringify at/above K, got %s", frag.Expr)
	}
}

func TestParseFilterDropsUndeclaredKeysStructurally(t *testing.T) {
	s := New("false", 0, nil, true)
	obj := &typemodel.Type{Kind: typemodel.KindObject, Fields: []typemodel.Field{
		{Name: "name", Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimString}},
		{Name: "age", Type: &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimNumber}},
	}}
	frag := s.Synthesize(obj, ParseFilter, "parsed")
	if !strings.Contains(frag.Expr, "_r.name") || !strings.Contains(frag.Expr, "_r.age") {
		t.Fatalf("expected projection to assign only declared keys, got %s", frag.Expr)
	}
}
