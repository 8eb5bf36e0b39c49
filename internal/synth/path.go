package synth

import (
	"fmt"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// path tracks the accumulated error-message path ("u.email", "items[3]"),
// built incrementally as the check generator descends into fields and elements.
type path struct {
	base string
}

func newPath(name string) path { return path{base: name} }

func (p path) field(name string) path {
	if isIdentifier(name) {
		return path{base: p.base + "." + name}
	}
	return path{base: fmt.Sprintf("%s[%q]", p.base, name)}
}

// indexed returns a path expression that concatenates the runtime loop
// index, e.g. `"items[" + idx + "]"`, used by arrayCheck's per-element
// loop where the index is only known at runtime.
func (p path) indexed(idxVar string) string {
	return fmt.Sprintf("%q + %s + %q", p.base+"[", idxVar, "]")
}

func (p path) String() string { return p.base }

// isIdentifier decides bracket ("[\"key\"]") vs dot (".key") emission for a
// property name. Names are first put into NFC form: a property declared
// with a precomposed accented letter and one built from a base letter plus
// combining mark must agree on dot-vs-bracket, or the emitted path string
// would depend on which normalization form the source file happened to use.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	name = norm.NFC.String(name)
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)):
		default:
			return false
		}
	}
	return true
}
