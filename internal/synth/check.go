package synth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

// check emits statements that throw TypeError(path-qualified) when expr
// does not satisfy t, assuming expr is in scope. Checks are ordered
// cheapest-first within a type:
//  1. typeof kind
//  2. null-discrimination
//  3. discriminant property for tagged unions
//  4. regex for template literal strings
//  5. structural field walks (required before optional, scalar before nested)
//  6. array length and per-element assertion
//
// e.visiting guards against infinite recursion through typemodel.Reference
// cycles: a reference whose target is already being emitted calls the
// (already-hoisted) helper for that hash instead of inlining again.
func (e *emitCtx) check(t *typemodel.Type, expr string, p path) string {
	switch t.Kind {
	case typemodel.KindPrimitive:
		return primitiveCheck(t, expr, p)
	case typemodel.KindLiteral:
		return literalCheck(t, expr, p)
	case typemodel.KindTemplateLiteral:
		return templateCheck(t, expr, p)
	case typemodel.KindObject:
		return e.objectCheck(t, expr, p)
	case typemodel.KindArray:
		return e.arrayCheck(t, expr, p)
	case typemodel.KindTuple:
		return e.tupleCheck(t, expr, p)
	case typemodel.KindUnion:
		return e.unionCheck(t, expr, p)
	case typemodel.KindIntersection:
		return e.intersectionCheck(t, expr, p)
	case typemodel.KindReference:
		return e.referenceCheck(t, expr, p)
	case typemodel.KindUnsupported:
		// Degrade to pass-through; the site that requested this type was
		// already planned as SKIP by escape analysis when resolution
		// failed, so reaching here at all only happens for diagnostic
		// callers (Analyze). Emit nothing rather than a spurious throw.
		return ""
	default:
		return ""
	}
}

func throwStmt(msg string) string {
	return fmt.Sprintf("throw new TypeError(%s);", msg)
}

func gotType(expr string) string {
	return fmt.Sprintf(`(%s === null ? "null" : Array.isArray(%s) ? "array" : typeof %s)`, expr, expr, expr)
}

func expectedPrefix(p path) string {
	return fmt.Sprintf(`"Expected " + %q + `, p.String())
}

func primitiveCheck(t *typemodel.Type, expr string, p path) string {
	switch t.Primitive {
	case typemodel.PrimAny, typemodel.PrimUnknown, typemodel.PrimVoid:
		return ""
	case typemodel.PrimNever:
		return throwStmt(fmt.Sprintf(`%s" to be never, got " + %s`, expectedPrefix(p), gotType(expr)))
	case typemodel.PrimNull:
		return fmt.Sprintf(`if (%s !== null) %s`, expr, throwStmt(fmt.Sprintf(`%s" to be null, got " + %s`, expectedPrefix(p), gotType(expr))))
	case typemodel.PrimUndefined:
		return fmt.Sprintf(`if (%s !== undefined) %s`, expr, throwStmt(fmt.Sprintf(`%s" to be undefined, got " + %s`, expectedPrefix(p), gotType(expr))))
	case typemodel.PrimBigInt:
		return fmt.Sprintf(`if (typeof %s !== "bigint") %s`, expr, throwStmt(fmt.Sprintf(`%s" to be bigint, got " + %s`, expectedPrefix(p), gotType(expr))))
	default:
		kind := t.Primitive.String()
		return fmt.Sprintf(`if (typeof %s !== %q) %s`, expr, kind, throwStmt(fmt.Sprintf(`%s" to be %s, got " + %s`, expectedPrefix(p), kind, gotType(expr))))
	}
}

func literalCheck(t *typemodel.Type, expr string, p path) string {
	var want string
	switch {
	case t.LiteralString != nil:
		want = fmt.Sprintf("%q", *t.LiteralString)
	case t.LiteralNumber != nil:
		want = fmt.Sprintf("%v", *t.LiteralNumber)
	case t.LiteralBool != nil:
		want = fmt.Sprintf("%v", *t.LiteralBool)
	case t.LiteralBigInt != nil:
		want = *t.LiteralBigInt + "n"
	}
	return fmt.Sprintf(`if (%s !== %s) %s`, expr, want,
		throwStmt(fmt.Sprintf(`%s" to be %s, got " + JSON.stringify(%s)`, expectedPrefix(p), strings.ReplaceAll(want, `"`, `\"`), expr)))
}

func templateCheck(t *typemodel.Type, expr string, p path) string {
	// Cheapest discriminator first: reject non-strings before running the
	// (potentially expensive) regex.
	typeofCheck := fmt.Sprintf(`if (typeof %s !== "string") %s`, expr,
		throwStmt(fmt.Sprintf(`%s" to be string, got " + %s`, expectedPrefix(p), gotType(expr))))
	pattern := t.Template.Source()
	regexCheck := fmt.Sprintf(`if (!(/^%s$/.test(%s))) %s`, pattern, expr,
		throwStmt(fmt.Sprintf(`%s" to match pattern %s, got " + JSON.stringify(%s)`, expectedPrefix(p), strings.ReplaceAll(pattern, `"`, `\"`), expr)))
	return typeofCheck + " " + regexCheck
}

func (e *emitCtx) objectCheck(t *typemodel.Type, expr string, p path) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`if (typeof %s !== "object" || %s === null) %s `, expr, expr,
		throwStmt(fmt.Sprintf(`%s" to be object, got " + %s`, expectedPrefix(p), gotType(expr)))))

	fields := append([]typemodel.Field(nil), t.Fields...)
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Optional != fields[j].Optional {
			return !fields[i].Optional // required before optional
		}
		return isScalar(fields[i].Type) && !isScalar(fields[j].Type)
	})

	for _, f := range fields {
		access := accessor(expr, f.Name)
		fieldPath := p.field(f.Name)
		if f.Optional {
			sb.WriteString(fmt.Sprintf(`if (%s !== undefined) { %s } `, access, e.check(f.Type, access, fieldPath)))
			continue
		}
		sb.WriteString(e.check(f.Type, access, fieldPath))
		sb.WriteString(" ")
	}

	if t.IndexSig != nil {
		keyVar := "_k"
		valAccess := fmt.Sprintf("%s[%s]", expr, keyVar)
		inner := e.check(t.IndexSig.Value, valAccess, path{base: p.String() + "[\" + " + keyVar + " + \"]"})
		sb.WriteString(fmt.Sprintf(`for (const %s of Object.keys(%s)) { %s } `, keyVar, expr, inner))
	}

	return sb.String()
}

func isScalar(t *typemodel.Type) bool {
	return t.Kind == typemodel.KindPrimitive || t.Kind == typemodel.KindLiteral
}

func accessor(expr, name string) string {
	if isIdentifier(name) {
		return expr + "." + name
	}
	return fmt.Sprintf("%s[%q]", expr, name)
}

func (e *emitCtx) arrayCheck(t *typemodel.Type, expr string, p path) string {
	notArray := fmt.Sprintf(`if (!Array.isArray(%s)) %s `, expr,
		throwStmt(fmt.Sprintf(`%s" to be array, got " + %s`, expectedPrefix(p), gotType(expr))))

	if isScalar(t.Elem) {
		elemCheck := e.check(t.Elem, "elem", path{base: p.String() + "[elem]"})
		every := fmt.Sprintf(`if (!%s.every((elem%s) => { %s return true; })) %s`, expr, e.ann("any"), elemCheck,
			throwStmt(fmt.Sprintf(`%s" to contain only %s elements"`, expectedPrefix(p), typeLabel(t.Elem))))
		return notArray + every
	}

	idxVar := "i"
	elemCheck := e.check(t.Elem, fmt.Sprintf("%s[%s]", expr, idxVar), path{base: p.indexed(idxVar)})
	loop := fmt.Sprintf(`for (let %s = 0; %s < %s.length; %s++) { %s } `, idxVar, idxVar, expr, idxVar, elemCheck)
	return notArray + loop
}

func typeLabel(t *typemodel.Type) string {
	if t.Kind == typemodel.KindPrimitive {
		return t.Primitive.String()
	}
	if t.Name != "" {
		return t.Name
	}
	return "the expected type"
}

func (e *emitCtx) tupleCheck(t *typemodel.Type, expr string, p path) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`if (!Array.isArray(%s)) %s `, expr,
		throwStmt(fmt.Sprintf(`%s" to be tuple, got " + %s`, expectedPrefix(p), gotType(expr)))))

	if t.TupleRest != nil {
		sb.WriteString(fmt.Sprintf(`if (%s.length < %d) %s `, expr, len(t.TupleElems),
			throwStmt(fmt.Sprintf(`%s" to have at least %d elements, got " + %s.length`, expectedPrefix(p), len(t.TupleElems), expr))))
	} else {
		sb.WriteString(fmt.Sprintf(`if (%s.length !== %d) %s `, expr, len(t.TupleElems),
			throwStmt(fmt.Sprintf(`%s" to have %d elements, got " + %s.length`, expectedPrefix(p), len(t.TupleElems), expr))))
	}

	for i, elem := range t.TupleElems {
		access := fmt.Sprintf("%s[%d]", expr, i)
		sb.WriteString(e.check(elem, access, path{base: fmt.Sprintf("%s[%d]", p.String(), i)}))
		sb.WriteString(" ")
	}
	if t.TupleRest != nil {
		idxVar := "j"
		access := fmt.Sprintf("%s[%s]", expr, idxVar)
		inner := e.check(t.TupleRest, access, path{base: fmt.Sprintf("%s[\" + %s + \"]", p.String(), idxVar)})
		sb.WriteString(fmt.Sprintf(`for (let %s = %d; %s < %s.length; %s++) { %s } `, idxVar, len(t.TupleElems), idxVar, expr, idxVar, inner))
	}
	return sb.String()
}

// unionCheck dispatches on the precomputed discriminant when available
// (O(1), and crucially never evaluates the non-matching arm's members —
// a non-matching arm's members stay untouched), otherwise falls back to
// try/catch-based alternation.
func (e *emitCtx) unionCheck(t *typemodel.Type, expr string, p path) string {
	if t.Discriminant != "" {
		return e.discriminatedUnionCheck(t, expr, p)
	}

	var sb strings.Builder
	sb.WriteString("{ let _ok = false; ")
	for _, arm := range t.Arms {
		armBody := e.check(arm, expr, p)
		sb.WriteString(fmt.Sprintf(`if (!_ok) { try { %s _ok = true; } catch (_e) {} } `, armBody))
	}
	sb.WriteString(fmt.Sprintf(`if (!_ok) %s }`, throwStmt(fmt.Sprintf(`%s" to match one of the union members, got " + JSON.stringify(%s)`, expectedPrefix(p), expr))))
	return sb.String()
}

func (e *emitCtx) discriminatedUnionCheck(t *typemodel.Type, expr string, p path) string {
	discAccess := accessor(expr, t.Discriminant)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`switch (%s) { `, discAccess))
	for _, arm := range t.Arms {
		tag := discriminantValue(arm, t.Discriminant)
		body := e.check(arm, expr, p)
		sb.WriteString(fmt.Sprintf(`case %s: { %s break; } `, tag, body))
	}
	sb.WriteString(fmt.Sprintf(`default: %s }`, throwStmt(fmt.Sprintf(`%s" to have a recognised %s, got " + JSON.stringify(%s)`, expectedPrefix(p), t.Discriminant, discAccess))))
	return sb.String()
}

func discriminantValue(arm *typemodel.Type, name string) string {
	for _, f := range arm.Fields {
		if f.Name == name && f.Type.Kind == typemodel.KindLiteral {
			switch {
			case f.Type.LiteralString != nil:
				return fmt.Sprintf("%q", *f.Type.LiteralString)
			case f.Type.LiteralNumber != nil:
				return fmt.Sprintf("%v", *f.Type.LiteralNumber)
			case f.Type.LiteralBool != nil:
				return fmt.Sprintf("%v", *f.Type.LiteralBool)
			}
		}
	}
	return "undefined"
}

func (e *emitCtx) intersectionCheck(t *typemodel.Type, expr string, p path) string {
	var sb strings.Builder
	for _, arm := range t.Arms {
		sb.WriteString(e.check(arm, expr, p))
		sb.WriteString(" ")
	}
	return sb.String()
}

// referenceCheck handles cyclic types: rather than inlining the
// referenced body again (which would never terminate), it hoists a named
// helper keyed by the reference's hash, stubbing it before synthesizing the
// body so recursive calls within that body resolve to the stub.
func (e *emitCtx) referenceCheck(t *typemodel.Type, expr string, p path) string {
	h := t.RefTo.Hash()
	name := funcName(h)
	if !e.visiting[h] {
		e.visiting[h] = true
		body := e.check(t.RefTo, "v", newPath("value"))
		e.helpers[h] = fmt.Sprintf("const %s = (v%s, path%s)%s => { %s return v; };",
			name, e.ann("any"), e.ann("string"), e.ann("any"), body)
	}
	return fmt.Sprintf(`%s(%s, %s);`, name, expr, quote(p.String()))
}
