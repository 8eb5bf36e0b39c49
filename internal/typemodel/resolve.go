package typemodel

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microsoft/typescript-go/shim/ast"
	"github.com/microsoft/typescript-go/shim/checker"
)

// maxDepth bounds recursion into deeply generic/instantiated types.
// Exceeding it degrades to Unsupported rather than
// looping or blowing the stack on types like deeply nested DOM event unions.
const maxDepth = 20

// cacheSize bounds a Resolver's intern cache so a pathological file
// (thousands of distinct anonymous object shapes) cannot grow it without
// limit. Each Resolver owns its own cache, and the session builds a new
// Resolver for every Transform and Analyze call, so nothing is cached
// across calls.
const cacheSize = 4096

// Resolver resolves AST nodes to normalized Types via the TypeOracle,
// interning structurally-equal results for the lifetime of the Resolver
// (one Transform or Analyze call). It is not safe for concurrent use;
// sessions serialise oracle access already.
type Resolver struct {
	checker *checker.Checker

	// interned maps content hash -> canonical *Type, deduplicating repeated
	// resolutions of the same shape.
	interned *lru.Cache[uint64, *Type]

	// stack tracks named types currently being resolved, for cycle
	// detection: a recursive reference becomes KindReference.
	stack []stackEntry

	// refs records each named object type, keyed by its recursion key, once
	// its body finishes resolving. Nothing reads it back: a Reference's
	// RefTo already points at the same placeholder *Type.
	refs map[string]*Type
}

type stackEntry struct {
	key string
	ref *Type
}

// NewResolver constructs a Resolver bound to a single checker instance.
func NewResolver(c *checker.Checker) *Resolver {
	cache, _ := lru.New[uint64, *Type](cacheSize)
	return &Resolver{
		checker:  c,
		interned: cache,
		refs:     map[string]*Type{},
	}
}

// Resolve produces a Type for the static type at an AST node.
func (r *Resolver) Resolve(node *ast.Node) *Type {
	t := checker.Checker_GetTypeAtLocation(r.checker, node)
	return r.fromOracle(t, 0)
}

// ResolveOracleType normalizes an already-resolved oracle type, e.g. a
// contextual type obtained from ContextualType or a return-type signature.
func (r *Resolver) ResolveOracleType(t *checker.Type) *Type {
	return r.fromOracle(t, 0)
}

// ResolveTypeNode produces a Type for a type annotation node (a parameter's
// `: T`, a cast's `as T`, an explicit type argument) as distinct from
// Resolve, which resolves the type of an expression at its location.
func (r *Resolver) ResolveTypeNode(typeNode *ast.Node) *Type {
	t := checker.Checker_getTypeFromTypeNode(r.checker, typeNode)
	return r.fromOracle(t, 0)
}

func (r *Resolver) intern(t *Type) *Type {
	h := t.Hash()
	if cached, ok := r.interned.Get(h); ok {
		return cached
	}
	r.interned.Add(h, t)
	return t
}

func (r *Resolver) fromOracle(t *checker.Type, depth int) *Type {
	if t == nil {
		return &Type{Kind: KindUnsupported, UnsupportedReason: "nil oracle type"}
	}
	if depth > maxDepth {
		debugf("typemodel: max depth exceeded\n")
		return &Type{Kind: KindUnsupported, UnsupportedReason: "exceeded max type depth"}
	}

	flags := checker.Type_flags(t)

	if key := recursionKey(t); key != "" {
		for _, entry := range r.stack {
			if entry.key == key {
				return &Type{Kind: KindReference, RefID: key, RefTo: entry.ref}
			}
		}
	}

	switch {
	case flags&checker.TypeFlagsAny != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimAny})
	case flags&checker.TypeFlagsUnknown != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimUnknown})
	case flags&checker.TypeFlagsNever != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimNever})
	case flags&checker.TypeFlagsVoid != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimVoid})
	case flags&checker.TypeFlagsNull != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimNull})
	case flags&checker.TypeFlagsUndefined != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimUndefined})
	case flags&checker.TypeFlagsStringLiteral != 0:
		if lt := t.AsLiteralType(); lt != nil {
			if s, ok := lt.Value().(string); ok {
				return r.intern(&Type{Kind: KindLiteral, LiteralString: &s})
			}
		}
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimString})
	case flags&checker.TypeFlagsNumberLiteral != 0:
		if lt := t.AsLiteralType(); lt != nil {
			// Value could be jsnum.Number or float64; both render as a
			// plain decimal.
			if n, err := strconv.ParseFloat(fmt.Sprintf("%v", lt.Value()), 64); err == nil {
				return r.intern(&Type{Kind: KindLiteral, LiteralNumber: &n})
			}
		}
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimNumber})
	case flags&checker.TypeFlagsBooleanLiteral != 0:
		if lt := t.AsLiteralType(); lt != nil {
			if b, ok := lt.Value().(bool); ok {
				return r.intern(&Type{Kind: KindLiteral, LiteralBool: &b})
			}
		}
		b := checker.TypeToString(r.checker, t) == "true"
		return r.intern(&Type{Kind: KindLiteral, LiteralBool: &b})
	case flags&checker.TypeFlagsBigIntLiteral != 0:
		// TypeToString renders the literal with its `n` suffix; the model
		// stores the bare digits and emission adds the suffix back.
		s := strings.TrimSuffix(checker.TypeToString(r.checker, t), "n")
		return r.intern(&Type{Kind: KindLiteral, LiteralBigInt: &s})
	case flags&checker.TypeFlagsString != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimString})
	case flags&checker.TypeFlagsNumber != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimNumber})
	case flags&checker.TypeFlagsBoolean != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimBoolean})
	case flags&checker.TypeFlagsBigInt != 0:
		return r.intern(&Type{Kind: KindPrimitive, Primitive: PrimBigInt})
	case flags&checker.TypeFlagsTemplateLiteral != 0:
		return r.intern(r.templateLiteral(t))
	case flags&checker.TypeFlagsTypeParameter != 0:
		constraint := checker.Checker_getBaseConstraintOfType(r.checker, t)
		if constraint == nil {
			return &Type{Kind: KindPrimitive, Primitive: PrimUnknown, Name: "unconstrained generic"}
		}
		return r.fromOracle(constraint, depth+1)
	case flags&checker.TypeFlagsUnion != 0:
		return r.intern(r.union(t, depth))
	case flags&checker.TypeFlagsIntersection != 0:
		return r.intern(r.intersection(t, depth))
	case flags&checker.TypeFlagsObject != 0:
		return r.object(t, depth)
	default:
		return &Type{Kind: KindUnsupported, UnsupportedReason: "unhandled oracle type: " + checker.TypeToString(r.checker, t)}
	}
}

// recursionKey returns a stable name for types that can participate in
// cycles (named object/interface types). Anonymous or scalar types return ""
// since they cannot recurse without passing through a named type first.
func recursionKey(t *checker.Type) string {
	if checker.Type_flags(t)&checker.TypeFlagsObject == 0 {
		return ""
	}
	sym := checker.Type_symbol(t)
	if sym == nil || sym.Name == "" {
		return ""
	}
	return sym.Name
}

func (r *Resolver) object(t *checker.Type, depth int) *Type {
	if checker.Checker_isArrayOrTupleType(r.checker, t) {
		return r.intern(r.arrayOrTuple(t, depth))
	}

	key := recursionKey(t)
	placeholder := &Type{Kind: KindObject, Name: key}
	if key != "" {
		r.stack = append(r.stack, stackEntry{key: key, ref: placeholder})
		defer func() { r.stack = r.stack[:len(r.stack)-1] }()
	}

	props := checker.Checker_getPropertiesOfType(r.checker, t)
	fields := make([]Field, 0, len(props))
	for _, prop := range props {
		propType := checker.Checker_getTypeOfSymbol(r.checker, prop)
		optional := prop.Flags&ast.SymbolFlagsOptional != 0
		fields = append(fields, Field{
			Name:     prop.Name,
			Type:     r.fromOracle(propType, depth+1),
			Optional: optional,
		})
	}

	var idx *IndexSignature
	if numIdx := checker.Checker_getIndexTypeOfType(r.checker, t, checker.IndexKindNumber); numIdx != nil {
		idx = &IndexSignature{KeyIsNumber: true, Value: r.fromOracle(numIdx, depth+1)}
	} else if strIdx := checker.Checker_getIndexTypeOfType(r.checker, t, checker.IndexKindString); strIdx != nil {
		idx = &IndexSignature{KeyIsNumber: false, Value: r.fromOracle(strIdx, depth+1)}
	}

	placeholder.Fields = fields
	placeholder.IndexSig = idx
	if key != "" {
		r.refs[key] = placeholder
	}
	return placeholder
}

func (r *Resolver) arrayOrTuple(t *checker.Type, depth int) *Type {
	if checker.IsTupleType(t) {
		tt := t.AsTupleType()
		typeArgs := checker.Checker_getTypeArguments(r.checker, t)
		infos := checker.TupleType_elementInfos(tt)
		elems := make([]*Type, 0, len(typeArgs))
		var rest *Type
		for i, arg := range typeArgs {
			elemType := r.fromOracle(arg, depth+1)
			if i < len(infos) && infos[i].Flags&checker.ElementFlagsRest != 0 {
				rest = elemType
				continue
			}
			elems = append(elems, elemType)
		}
		return &Type{Kind: KindTuple, TupleElems: elems, TupleRest: rest}
	}

	typeArgs := checker.Checker_getTypeArguments(r.checker, t)
	var elem *Type
	if len(typeArgs) > 0 {
		elem = r.fromOracle(typeArgs[0], depth+1)
	} else {
		elem = &Type{Kind: KindPrimitive, Primitive: PrimUnknown}
	}
	return &Type{Kind: KindArray, Elem: elem, MinLen: 0, MaxLen: -1}
}

func (r *Resolver) union(t *checker.Type, depth int) *Type {
	members := t.Types()
	seen := map[uint64]bool{}
	var arms []*Type
	hasAny := false
	for _, m := range members {
		mt := r.fromOracle(m, depth+1)
		if mt.Kind == KindPrimitive && mt.Primitive == PrimAny {
			hasAny = true
		}
		h := mt.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		arms = append(arms, mt)
	}
	if hasAny {
		return &Type{Kind: KindPrimitive, Primitive: PrimAny}
	}
	arms = dropNeverKeepOne(arms)
	if len(arms) == 1 {
		return arms[0]
	}
	sortArmsByHash(arms)

	u := &Type{Kind: KindUnion, Arms: arms}
	u.Discriminant = findDiscriminant(arms)
	return u
}

func (r *Resolver) intersection(t *checker.Type, depth int) *Type {
	members := t.Types()
	var arms []*Type
	allObjects := true
	for _, m := range members {
		mt := r.fromOracle(m, depth+1)
		if mt.Kind != KindObject {
			allObjects = false
		}
		arms = append(arms, mt)
	}
	if allObjects {
		merged := &Type{Kind: KindObject}
		seen := map[string]bool{}
		for _, a := range arms {
			for _, f := range a.Fields {
				if seen[f.Name] {
					continue
				}
				seen[f.Name] = true
				merged.Fields = append(merged.Fields, f)
			}
		}
		return merged
	}
	return &Type{Kind: KindIntersection, Arms: arms}
}

func dropNeverKeepOne(arms []*Type) []*Type {
	out := arms[:0:0]
	for _, a := range arms {
		if a.Kind == KindPrimitive && a.Primitive == PrimNever {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return []*Type{{Kind: KindPrimitive, Primitive: PrimNever}}
	}
	return out
}

func sortArmsByHash(arms []*Type) {
	for i := 1; i < len(arms); i++ {
		for j := i; j > 0 && arms[j-1].Hash() > arms[j].Hash(); j-- {
			arms[j-1], arms[j] = arms[j], arms[j-1]
		}
	}
}

// findDiscriminant looks for a single property whose literal values are
// pairwise disjoint across every Object arm, enabling O(1) dispatch. When
// several properties qualify, the name that sorts first is returned.
func findDiscriminant(arms []*Type) string {
	for _, a := range arms {
		if a.Kind != KindObject {
			return ""
		}
	}
	candidateCounts := map[string]int{}
	for _, a := range arms {
		for _, f := range a.Fields {
			if f.Type.Kind == KindLiteral {
				candidateCounts[f.Name]++
			}
		}
	}
	best := ""
	for name, count := range candidateCounts {
		if count != len(arms) {
			continue
		}
		seen := map[string]bool{}
		disjoint := true
		for _, a := range arms {
			for _, f := range a.Fields {
				if f.Name != name {
					continue
				}
				key := literalKey(f.Type)
				if seen[key] {
					disjoint = false
				}
				seen[key] = true
			}
		}
		if disjoint && (best == "" || name < best) {
			best = name
		}
	}
	return best
}

func literalKey(t *Type) string {
	switch {
	case t.LiteralString != nil:
		return "s:" + *t.LiteralString
	case t.LiteralNumber != nil:
		return fmt.Sprintf("n:%v", *t.LiteralNumber)
	case t.LiteralBool != nil:
		if *t.LiteralBool {
			return "b:true"
		}
		return "b:false"
	default:
		return t.Name
	}
}

func (r *Resolver) templateLiteral(t *checker.Type) *Type {
	tlt := t.AsTemplateLiteralType()
	if tlt == nil {
		return &Type{Kind: KindUnsupported, UnsupportedReason: "template literal type data unavailable"}
	}
	texts := checker.TemplateLiteralType_Texts(tlt)
	types := checker.TemplateLiteralType_Types(tlt)

	pattern := &TemplatePattern{}
	for i := 0; i < len(texts); i++ {
		if texts[i] != "" {
			pattern.Parts = append(pattern.Parts, TemplatePart{Kind: PartStatic, Text: texts[i]})
		}
		if i < len(types) {
			pattern.Parts = append(pattern.Parts, r.templatePart(types[i]))
		}
	}
	if pattern.isPlainString() {
		return &Type{Kind: KindPrimitive, Primitive: PrimString}
	}
	return &Type{Kind: KindTemplateLiteral, Template: pattern}
}

func (r *Resolver) templatePart(t *checker.Type) TemplatePart {
	flags := checker.Type_flags(t)
	switch {
	case flags&checker.TypeFlagsString != 0:
		return TemplatePart{Kind: PartString}
	case flags&checker.TypeFlagsNumber != 0:
		return TemplatePart{Kind: PartNumber}
	case flags&checker.TypeFlagsBoolean != 0:
		return TemplatePart{Kind: PartBoolean}
	case flags&checker.TypeFlagsBigInt != 0:
		return TemplatePart{Kind: PartBigInt}
	case flags&checker.TypeFlagsStringLiteral != 0:
		if lt := t.AsLiteralType(); lt != nil {
			if s, ok := lt.Value().(string); ok {
				return TemplatePart{Kind: PartLiteral, Text: s}
			}
		}
		return TemplatePart{Kind: PartString}
	case flags&checker.TypeFlagsNumberLiteral != 0:
		if lt := t.AsLiteralType(); lt != nil {
			return TemplatePart{Kind: PartLiteral, Text: fmt.Sprintf("%v", lt.Value())}
		}
		return TemplatePart{Kind: PartNumber}
	case flags&checker.TypeFlagsUnion != 0:
		var alts []TemplatePart
		for _, m := range t.Types() {
			alts = append(alts, r.templatePart(m))
		}
		return TemplatePart{Kind: PartUnion, Alternatives: alts}
	default:
		return TemplatePart{Kind: PartString}
	}
}
