package synth

import (
	"fmt"
	"strings"

	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

// synthesizeStringify emits either a hand-rolled inline builder (fewer than
// K declared leaves) or a filter()+JSON.stringify pair, both of which
// must reproduce native JSON.stringify semantics byte-for-byte:
// ECMA-404 string escaping (including U+0000..U+001F, U+2028, U+2029),
// NaN/±Infinity -> null, undefined properties omitted, toJSON honoured
// (required for Date), arrays as [...], RegExp as {}.
func (s *Synthesizer) synthesizeStringify(t *typemodel.Type, pathName string) Fragment {
	e := s.newEmitCtx()
	leaves := countLeaves(t, map[uint64]bool{})

	if leaves >= K {
		filterBody := e.filter(t, "v", "_r")
		fn := fmt.Sprintf(`((v%s)%s => { %s return JSON.stringify(_r); })(%%s)`,
			e.ann("any"), e.ann("string"), filterBody)
		return Fragment{Expr: fn, Helpers: e.helpers}
	}

	builder := e.inlineStringify(t, "v")
	fn := fmt.Sprintf(`((v%s)%s => %s)(%%s)`, e.ann("any"), e.ann("string"), builder)
	return Fragment{Expr: fn, Helpers: e.helpers}
}

// countLeaves counts declared scalar leaves transitively, used only to pick
// between the inline builder and the filter+stringify path; it does not
// need to be exact for correctness, only for the performance tradeoff the
// threshold encodes.
func countLeaves(t *typemodel.Type, visiting map[uint64]bool) int {
	h := t.Hash()
	if visiting[h] {
		return 0
	}
	visiting[h] = true
	defer delete(visiting, h)

	switch t.Kind {
	case typemodel.KindObject:
		n := 0
		for _, f := range t.Fields {
			n += countLeaves(f.Type, visiting)
		}
		if n == 0 {
			n = 1
		}
		return n
	case typemodel.KindArray:
		return countLeaves(t.Elem, visiting)
	case typemodel.KindUnion, typemodel.KindIntersection:
		n := 0
		for _, a := range t.Arms {
			n += countLeaves(a, visiting)
		}
		return n
	default:
		return 1
	}
}

// inlineStringify produces a JS expression (not statements) building the
// JSON text directly, used for small types where avoiding an intermediate
// object allocation pays for itself.
func (e *emitCtx) inlineStringify(t *typemodel.Type, expr string) string {
	switch t.Kind {
	case typemodel.KindObject:
		var parts []string
		for _, f := range t.Fields {
			access := accessor(expr, f.Name)
			valueExpr := e.inlineStringify(f.Type, access)
			entry := fmt.Sprintf(`(%s === undefined ? "" : %q + %s)`, access, jsonQuoteKey(f.Name)+":", valueExpr)
			parts = append(parts, entry)
		}
		// Join non-empty entries with commas at runtime: the inline builder
		// still has to skip undefined-valued properties, so the join
		// itself happens in emitted JS via a tiny runtime helper rather
		// than at generation time.
		return fmt.Sprintf(`_stringifyObject([%s])`, strings.Join(parts, ", "))
	case typemodel.KindArray:
		elemExpr := e.inlineStringify(t.Elem, "_x")
		arr := expr
		if e.ts {
			arr = fmt.Sprintf("(%s as any[])", expr)
		}
		return fmt.Sprintf(`("[" + %s.map((_x%s) => %s).join(",") + "]")`, arr, e.ann("any"), elemExpr)
	default:
		return fmt.Sprintf(`_stringifyScalar(%s)`, expr)
	}
}

func jsonQuoteKey(name string) string {
	return fmt.Sprintf("%q", name)
}

// RuntimeHelpers returns the two small helpers inlineStringify's output
// depends on: _stringifyScalar (ECMA-404 scalar + toJSON + RegExp handling)
// and _stringifyObject (joins pre-rendered "key":value entries, skipping
// the "" sentinel emitted for undefined properties). EditApplier includes
// the flavor-matching variant once per file that contains at least one
// inline stringify builder.
func RuntimeHelpers(typescript bool) string {
	if typescript {
		return runtimeHelpersTS
	}
	return runtimeHelpersJS
}

const runtimeHelpersTS = `
const _stringifyScalar = (v: any): string => {
  if (v === null || v === undefined) return "null";
  if (typeof v === "function") return "undefined" as any;
  if (v instanceof RegExp) return "{}";
  if (typeof v?.toJSON === "function") return JSON.stringify(v.toJSON());
  if (typeof v === "number") return Number.isFinite(v) ? String(v) : "null";
  if (typeof v === "string") return JSON.stringify(v);
  if (typeof v === "boolean") return String(v);
  return JSON.stringify(v);
};
const _stringifyObject = (entries: string[]): string => "{" + entries.filter((e) => e !== "").join(",") + "}";
`

const runtimeHelpersJS = `
const _stringifyScalar = (v) => {
  if (v === null || v === undefined) return "null";
  if (typeof v === "function") return "undefined";
  if (v instanceof RegExp) return "{}";
  if (typeof v?.toJSON === "function") return JSON.stringify(v.toJSON());
  if (typeof v === "number") return Number.isFinite(v) ? String(v) : "null";
  if (typeof v === "string") return JSON.stringify(v);
  if (typeof v === "boolean") return String(v);
  return JSON.stringify(v);
};
const _stringifyObject = (entries) => "{" + entries.filter((e) => e !== "").join(",") + "}";
`
