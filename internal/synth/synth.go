// Package synth is the validator synthesizer: a pure function
// from a normalized typemodel.Type to an emitted TypeScript source fragment
// that asserts, filters, or projects a runtime value against that type.
package synth

import (
	"fmt"
	"path"

	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

// Mode selects which fragment shape Synthesize produces for a given type.
type Mode int

const (
	// Assert emits `(v, path) => v`, throwing TypeError on mismatch.
	Assert Mode = iota
	// ParseFilter emits an assertion plus a same-shape deep projection,
	// for JSON.parse<T> results.
	ParseFilter
	// StringifyProjection emits a builder or filter+stringify pair for
	// JSON.stringify<T> call sites.
	StringifyProjection
)

// K is the declared-leaf-count threshold past which StringifyProjection
// switches from an inline builder to a generated filter()+JSON.stringify
// pair. Below this, the builder's saved intermediate allocation wins;
// above it, the hand-rolled text assembly stops paying for its size.
const K = 15

// Fragment is a synthesized source-level expression, ready for splicing by
// editapply, plus whatever top-level helpers it depends on when hoisting is
// in play. Expr contains exactly one `%s` verb, to be filled in by the
// caller with the text of the original expression being validated
// (fmt.Sprintf(frag.Expr, "u.email")).
type Fragment struct {
	Expr    string
	Helpers map[uint64]string
}

// Synthesizer produces Fragments for resolved types, deduplicating emitted
// helpers by the type's content hash and deciding inline-vs-hoisted
// placement per the ReusableValidators configuration.
type Synthesizer struct {
	reusable       string // "auto" | "true" | "false"
	hoistThreshold int
	ts             bool // emit TypeScript annotations ("ts" flavor) or bare JS

	hoisted map[uint64]string // hash -> function name, already emitted
	usage   map[uint64]int    // hash -> number of sites that reference it

	ignoreTypes []string // path.Match patterns on Type.Name; a match degrades to pass-through
}

// New constructs a Synthesizer. reusable is one of "auto", "true", "false"
// (config.ReusableValidators); hoistThreshold is the fragment-size (in
// generated characters) past which "auto" hoists even a once-used fragment;
// typescript selects the "ts" output flavor (annotated arrow parameters)
// over plain "js".
func New(reusable string, hoistThreshold int, ignoreTypes []string, typescript bool) *Synthesizer {
	if hoistThreshold <= 0 {
		hoistThreshold = 240
	}
	return &Synthesizer{
		reusable:       reusable,
		hoistThreshold: hoistThreshold,
		ts:             typescript,
		hoisted:        map[uint64]string{},
		usage:          map[uint64]int{},
		ignoreTypes:    ignoreTypes,
	}
}

// emitCtx threads the per-fragment emission state through the recursive
// check/filter generators: the output flavor, the hoisted helpers collected
// so far, and the cycle guard for Reference types.
type emitCtx struct {
	ts       bool
	helpers  map[uint64]string
	visiting map[uint64]bool
}

func (s *Synthesizer) newEmitCtx() *emitCtx {
	return &emitCtx{ts: s.ts, helpers: map[uint64]string{}, visiting: map[uint64]bool{}}
}

// ann renders a `: T` annotation in "ts" flavor and nothing in "js".
func (e *emitCtx) ann(t string) string {
	if e.ts {
		return ": " + t
	}
	return ""
}

// CountUsage records that t will be validated at one more site; SitePlanner
// calls this during its first pass so Synthesize can later decide whether a
// type is "reused" for the purposes of auto-hoisting.
func (s *Synthesizer) CountUsage(t *typemodel.Type) {
	s.usage[t.Hash()]++
}

// Synthesize produces the fragment for one candidate site.
// pathName seeds the error-message path (the parameter name, "return
// value", or the cast's target type span text).
func (s *Synthesizer) Synthesize(t *typemodel.Type, mode Mode, pathName string) Fragment {
	switch mode {
	case Assert:
		return s.synthesizeAssert(t, pathName)
	case ParseFilter:
		return s.synthesizeParseFilter(t, pathName)
	case StringifyProjection:
		return s.synthesizeStringify(t, pathName)
	default:
		panic("synth: unknown mode")
	}
}

func funcName(h uint64) string {
	return fmt.Sprintf("_check_%x", h)
}

func (s *Synthesizer) synthesizeAssert(t *typemodel.Type, pathName string) Fragment {
	if ignored, name := s.isIgnored(t); ignored {
		debugf("synth: skipping ignored type %s\n", name)
		return Fragment{Expr: "%s"}
	}

	e := s.newEmitCtx()
	body := e.check(t, "v", newPath(pathName))

	h := t.Hash()
	shouldHoist := s.reusable == "true" || (s.reusable == "auto" && (s.usage[h] > 1 || len(body) > s.hoistThreshold))

	if shouldHoist {
		if name, ok := s.hoisted[h]; ok {
			return Fragment{Expr: fmt.Sprintf("%s(%%s, %s)", name, quote(pathName))}
		}
		name := funcName(h)
		s.hoisted[h] = name
		fn := fmt.Sprintf("const %s = (v%s, path%s)%s => { %s return v; };",
			name, e.ann("any"), e.ann("string"), e.ann("any"), body)
		e.helpers[h] = fn
		return Fragment{
			Expr:    fmt.Sprintf("%s(%%s, %s)", name, quote(pathName)),
			Helpers: e.helpers,
		}
	}

	expr := fmt.Sprintf("((v%s, path%s)%s => { %s return v; })(%%s, %s)",
		e.ann("any"), e.ann("string"), e.ann("any"), body, quote(pathName))
	return Fragment{Expr: expr, Helpers: e.helpers}
}

func (s *Synthesizer) isIgnored(t *typemodel.Type) (bool, string) {
	if t.Name == "" {
		return false, ""
	}
	for _, pat := range s.ignoreTypes {
		if matched, _ := path.Match(pat, t.Name); matched {
			return true, t.Name
		}
	}
	return false, ""
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
