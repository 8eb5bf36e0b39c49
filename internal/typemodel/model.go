// Package typemodel builds a normalized, hashable representation of TypeScript
// types from the type-checker oracle. Everything downstream (synth, escape,
// siteplanner) works against *Type rather than the raw checker API so that
// structurally identical types always compare equal regardless of how many
// times, or where, the checker resolved them.
package typemodel

import (
	"fmt"
	"os"
	"strings"
)

var debug = os.Getenv("BOUNDARYCHECK_DEBUG") == "1"

func debugf(format string, args ...any) {
	if debug {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Kind tags the shape of a Type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindLiteral
	KindTemplateLiteral
	KindObject
	KindArray
	KindTuple
	KindUnion
	KindIntersection
	KindReference
	KindUnsupported
)

// Primitive enumerates the scalar kinds a Type can carry.
type Primitive int

const (
	PrimString Primitive = iota
	PrimNumber
	PrimBoolean
	PrimBigInt
	PrimNull
	PrimUndefined
	PrimAny
	PrimUnknown
	PrimNever
	PrimVoid
)

func (p Primitive) String() string {
	switch p {
	case PrimString:
		return "string"
	case PrimNumber:
		return "number"
	case PrimBoolean:
		return "boolean"
	case PrimBigInt:
		return "bigint"
	case PrimNull:
		return "null"
	case PrimUndefined:
		return "undefined"
	case PrimAny:
		return "any"
	case PrimUnknown:
		return "unknown"
	case PrimNever:
		return "never"
	case PrimVoid:
		return "void"
	default:
		return "unknown"
	}
}

// Field describes a single declared property of an Object type.
type Field struct {
	Name     string
	Type     *Type
	Optional bool
	ReadOnly bool
}

// IndexSignature is an object's `[key: string|number]: V` signature, if any.
type IndexSignature struct {
	KeyIsNumber bool
	Value       *Type
}

// Type is the normalized, immutable representation of a resolved TypeScript
// type. Once constructed it is never mutated; structurally identical inputs
// resolved through the same Resolver yield Types with equal hashes.
type Type struct {
	Kind Kind

	// KindPrimitive
	Primitive Primitive

	// KindLiteral
	LiteralString *string
	LiteralNumber *float64
	LiteralBigInt *string
	LiteralBool   *bool

	// KindTemplateLiteral
	Template *TemplatePattern

	// KindObject
	Fields   []Field
	IndexSig *IndexSignature

	// KindArray
	Elem       *Type
	MinLen     int
	MaxLen     int // -1 means unbounded
	IsTupleLen bool

	// KindTuple
	TupleElems []*Type
	TupleRest  *Type

	// KindUnion / KindIntersection
	Arms         []*Type
	Discriminant string // property name, if a single discriminant was found

	// KindReference
	RefID string
	RefTo *Type // the enclosing named type's placeholder; its fields are filled in once that type finishes resolving

	// KindUnsupported
	UnsupportedReason string

	// Display name, when the oracle reports one useful for error messages
	// and ignore-pattern matching.
	Name string

	// hash is computed lazily and cached; see hash.go.
	hash    uint64
	hashSet bool
}

// Hash returns the content hash used for structural equality.
func (t *Type) Hash() uint64 {
	if t == nil {
		return 0
	}
	if !t.hashSet {
		t.hash = computeHash(t)
		t.hashSet = true
	}
	return t.hash
}

// Equal reports structural equality via content hash. Within one Resolver
// this is safe because it interns types by hash (see Resolver.intern).
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Hash() == other.Hash()
}

// String renders a human-readable type name for diagnostics (the oracle's
// own display name when the checker provided one, otherwise a best-effort
// structural rendering), used for the analyze command's type display.
func (t *Type) String() string {
	if t == nil {
		return "unknown"
	}
	if t.Name != "" {
		return t.Name
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.String()
	case KindArray:
		return t.Elem.String() + "[]"
	case KindUnion:
		parts := make([]string, len(t.Arms))
		for i, a := range t.Arms {
			parts[i] = a.String()
		}
		return strings.Join(parts, " | ")
	case KindReference:
		return t.RefID
	case KindUnsupported:
		return "unsupported(" + t.UnsupportedReason + ")"
	default:
		return fmt.Sprintf("type#%x", t.Hash())
	}
}

// IsNullable reports whether Null or Undefined appears among this type's
// direct union arms (or the type itself is Null/Undefined).
func (t *Type) IsNullable() bool {
	if t.Kind == KindPrimitive && (t.Primitive == PrimNull || t.Primitive == PrimUndefined) {
		return true
	}
	if t.Kind != KindUnion {
		return false
	}
	for _, arm := range t.Arms {
		if arm.Kind == KindPrimitive && (arm.Primitive == PrimNull || arm.Primitive == PrimUndefined) {
			return true
		}
	}
	return false
}
