package typemodel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// computeHash folds a Type into a stable 64-bit digest via xxh3, chosen over
// crypto/sha256 (what a naive port would reach for) because a whole-project
// transform hashes every resolved type at every candidate site; xxh3's
// SIMD-accelerated path (gated by github.com/klauspost/cpuid/v2 feature
// detection inside the library itself) keeps that off the hot path's budget.
//
// The encoding below is a canonical textual form fed to xxh3 rather than a
// byte-exact struct hash: writeCanonical sorts object fields by name and
// union/intersection arms by hash, so two structurally-equal Types always
// produce the same string before hashing, whatever their declaration order.
func computeHash(t *Type) uint64 {
	var sb strings.Builder
	writeCanonical(&sb, t, map[*Type]bool{})
	return xxh3.HashString(sb.String())
}

func writeCanonical(sb *strings.Builder, t *Type, visiting map[*Type]bool) {
	if t == nil {
		sb.WriteString("<nil>")
		return
	}
	switch t.Kind {
	case KindPrimitive:
		sb.WriteString("prim:")
		sb.WriteString(t.Primitive.String())
	case KindLiteral:
		sb.WriteString("lit:")
		switch {
		case t.LiteralString != nil:
			sb.WriteString("s:")
			sb.WriteString(strconv.Quote(*t.LiteralString))
		case t.LiteralNumber != nil:
			sb.WriteString("n:")
			fmt.Fprintf(sb, "%v", *t.LiteralNumber)
		case t.LiteralBigInt != nil:
			sb.WriteString("b:")
			sb.WriteString(*t.LiteralBigInt)
		case t.LiteralBool != nil:
			sb.WriteString("t:")
			fmt.Fprintf(sb, "%v", *t.LiteralBool)
		}
	case KindTemplateLiteral:
		sb.WriteString("tmpl:")
		if t.Template != nil {
			sb.WriteString(t.Template.sourcePattern())
		}
	case KindObject:
		if visiting[t] {
			sb.WriteString("objcycle")
			return
		}
		visiting[t] = true
		sb.WriteString("obj{")
		fields := append([]Field(nil), t.Fields...)
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		for _, f := range fields {
			sb.WriteString(f.Name)
			if f.Optional {
				sb.WriteString("?")
			}
			if f.ReadOnly {
				sb.WriteString("#")
			}
			sb.WriteString(":")
			writeCanonical(sb, f.Type, visiting)
			sb.WriteString(";")
		}
		if t.IndexSig != nil {
			sb.WriteString("[idx:")
			if t.IndexSig.KeyIsNumber {
				sb.WriteString("number")
			} else {
				sb.WriteString("string")
			}
			sb.WriteString("]:")
			writeCanonical(sb, t.IndexSig.Value, visiting)
		}
		sb.WriteString("}")
		delete(visiting, t)
	case KindArray:
		sb.WriteString("arr<")
		writeCanonical(sb, t.Elem, visiting)
		fmt.Fprintf(sb, ">[%d:%d]", t.MinLen, t.MaxLen)
	case KindTuple:
		sb.WriteString("tuple(")
		for _, e := range t.TupleElems {
			writeCanonical(sb, e, visiting)
			sb.WriteString(",")
		}
		if t.TupleRest != nil {
			sb.WriteString("...")
			writeCanonical(sb, t.TupleRest, visiting)
		}
		sb.WriteString(")")
	case KindUnion, KindIntersection:
		hashes := make([]uint64, len(t.Arms))
		for i, a := range t.Arms {
			hashes[i] = a.Hash()
		}
		sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
		if t.Kind == KindUnion {
			sb.WriteString("union(")
		} else {
			sb.WriteString("inter(")
		}
		for _, h := range hashes {
			fmt.Fprintf(sb, "%x,", h)
		}
		sb.WriteString(")")
	case KindReference:
		sb.WriteString("ref:")
		sb.WriteString(t.RefID)
	case KindUnsupported:
		sb.WriteString("unsupported:")
		sb.WriteString(t.Name)
	}
}
