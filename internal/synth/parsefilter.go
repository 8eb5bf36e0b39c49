package synth

import (
	"fmt"
	"strings"

	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

// synthesizeParseFilter emits an assertion plus a same-shape deep projection
// over the parsed value, so JSON.parse(s) as T both validates and drops
// undeclared keys, which a hand-written `as T` would not do.
func (s *Synthesizer) synthesizeParseFilter(t *typemodel.Type, pathName string) Fragment {
	e := s.newEmitCtx()
	checkBody := e.check(t, "v", newPath(pathName))
	filterBody := e.filter(t, "v", "_r")

	fn := fmt.Sprintf(
		`((v%s)%s => { %s %s return _r; })(%%s)`,
		e.ann("any"), e.ann("any"), checkBody, filterBody,
	)
	return Fragment{Expr: fn, Helpers: e.helpers}
}

// filter produces a deep projection of expr into resultVar, copying only
// declared keys at every nesting level, so parsing a valid JSON document
// with extra keys yields an object containing only the declared keys,
// deeply.
func (e *emitCtx) filter(t *typemodel.Type, expr, resultVar string) string {
	switch t.Kind {
	case typemodel.KindObject:
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf(`let %s%s; if (%s === null || typeof %s !== "object") { %s = %s; } else { %s = {}; `,
			resultVar, e.ann("any"), expr, expr, resultVar, expr, resultVar))
		for _, f := range t.Fields {
			access := accessor(expr, f.Name)
			innerVar := "_f" + sanitizeIdent(f.Name)
			inner := e.filter(f.Type, access, innerVar)
			assign := fmt.Sprintf(`%s = %s;`, accessor(resultVar, f.Name), innerVar)
			if f.Optional {
				sb.WriteString(fmt.Sprintf(`if (%s !== undefined) { %s %s } `, access, inner, assign))
			} else {
				sb.WriteString(inner)
				sb.WriteString(" ")
				sb.WriteString(assign)
				sb.WriteString(" ")
			}
		}
		sb.WriteString("} ")
		return sb.String()
	case typemodel.KindArray:
		elemVar := "_e"
		inner := e.filter(t.Elem, elemVar, "_ev")
		return fmt.Sprintf(`let %s%s = Array.isArray(%s) ? %s.map((%s%s) => { %s return _ev; }) : %s; `,
			resultVar, e.ann("any"), expr, expr, elemVar, e.ann("any"), inner, expr)
	default:
		return fmt.Sprintf(`let %s = %s; `, resultVar, expr)
	}
}

func sanitizeIdent(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_x"
	}
	return string(out)
}
