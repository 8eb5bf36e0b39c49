package typemodel

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// PartKind distinguishes a fixed text chunk from a typed placeholder inside
// a template literal type.
type PartKind int

const (
	PartStatic PartKind = iota
	PartString
	PartNumber
	PartBigInt
	PartBoolean
	PartLiteral
	PartUnion
)

// TemplatePart is one segment of a template literal type.
type TemplatePart struct {
	Kind         PartKind
	Text         string // PartStatic, PartLiteral
	Alternatives []TemplatePart
}

// TemplatePattern is the ordered alternation of fixed text and placeholders
// that make up a `${...}` template literal type.
type TemplatePattern struct {
	Parts []TemplatePart
	regex *regexp2.Regexp
	src   string
}

const (
	numberGrammar  = `-?(?:0|[1-9][0-9]*)(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?`
	bigintGrammar  = `-?\d+`
	booleanGrammar = `(?:true|false)`
)

// Regex lazily compiles (and caches) the anchored pattern matching exactly
// the set of strings this template literal type describes.
// The pattern is compiled with regexp2. Literal-union alternatives inside a
// placeholder (“ `status_${"a"|"b"}` “) become a plain non-capturing
// alternation; the generated patterns contain no lookaround.
func (p *TemplatePattern) Regex() *regexp2.Regexp {
	if p.regex == nil {
		p.src = buildPattern(p)
		p.regex = regexp2.MustCompile("^"+p.src+"$", regexp2.None)
	}
	return p.regex
}

// sourcePattern returns the raw (anchors excluded) regex source, used as part
// of the structural hash so two equivalent templates hash identically.
func (p *TemplatePattern) sourcePattern() string {
	if p.src == "" {
		p.src = buildPattern(p)
	}
	return p.src
}

// Source returns the same unanchored regex source as sourcePattern, exposed
// for callers (synth) that re-embed the pattern inside their own `/^...$/`
// JS regex literal, adding the anchors at the embedding site.
func (p *TemplatePattern) Source() string {
	return p.sourcePattern()
}

func buildPattern(p *TemplatePattern) string {
	var sb strings.Builder
	for _, part := range p.Parts {
		writePart(&sb, part)
	}
	return sb.String()
}

func writePart(sb *strings.Builder, part TemplatePart) {
	switch part.Kind {
	case PartStatic:
		sb.WriteString(regexp2.Escape(part.Text))
	case PartString:
		sb.WriteString(`.*?`)
	case PartNumber:
		sb.WriteString(numberGrammar)
	case PartBigInt:
		sb.WriteString(bigintGrammar)
	case PartBoolean:
		sb.WriteString(booleanGrammar)
	case PartLiteral:
		sb.WriteString(regexp2.Escape(part.Text))
	case PartUnion:
		sb.WriteString("(?:")
		for i, alt := range part.Alternatives {
			if i > 0 {
				sb.WriteString("|")
			}
			writePart(sb, alt)
		}
		sb.WriteString(")")
	}
}

// Matches reports whether s satisfies the template literal pattern.
func (p *TemplatePattern) Matches(s string) bool {
	ok, err := p.Regex().MatchString(s)
	return err == nil && ok
}

// isPlainString reports a lone `${string}` placeholder pattern, which
// canonicalises to plain string.
func (p *TemplatePattern) isPlainString() bool {
	return len(p.Parts) == 1 && p.Parts[0].Kind == PartString
}
