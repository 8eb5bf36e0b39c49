// Package editapply applies planned edits: given a file's
// candidate sites and their synthesized validator fragments, it splices the
// must-validate sites into the original source and emits a v3 source map
// for the result.
package editapply

import (
	"fmt"
	"sort"
	"strings"

	"github.com/basilisk-labs/boundarycheck/internal/siteplanner"
	"github.com/basilisk-labs/boundarycheck/internal/synth"
)

// Edit is one splice against the original source buffer: either a pure
// insertion (SkipTo == 0, nothing in the original is dropped) or a
// replacement of the original span [Pos, SkipTo) with Text.
type Edit struct {
	Pos       int
	Text      string
	SourcePos int
	SkipTo    int
}

// Result is the output of applying a file's edits: the rewritten source and
// (when requested) its source map.
type Result struct {
	Code         string
	SourceMap    *RawSourceMap
	GeneratedFor int // count of sites that resulted in an emitted check, for diagnostics
	SkippedFor   int
}

// PlannedFragment pairs a candidate site with the Fragment synthesized for
// it (nil when the site's Decision was a skip — no check is emitted, but the
// site is still reported to the caller for the analyze-only host command).
type PlannedFragment struct {
	Site     siteplanner.Site
	Fragment *synth.Fragment
}

// Options controls how edits are assembled and mapped; it carries the
// subset of the host configuration relevant to this stage.
type Options struct {
	FileName                string
	SourceMapEnabled        bool
	SourceMapIncludeContent bool
	// Flavor selects the emitted runtime-helper dialect; "js" strips the
	// TypeScript annotations, anything else keeps them.
	Flavor string
}

// Apply splices every must-validate site's fragment into text and returns
// the transformed source (and, if requested, its source map). Sites are
// expected pre-sorted in source order (siteplanner.Plan's contract); any
// site whose Fragment is nil is skipped (no edit emitted).
func Apply(text string, planned []PlannedFragment, opts Options) Result {
	edits, generatedCount, skippedCount := buildEdits(planned, opts.Flavor != "js")
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Pos < edits[j].Pos })

	var out []byte
	srcPos := 0
	for _, e := range edits {
		if e.Pos > srcPos {
			out = append(out, text[srcPos:e.Pos]...)
		}
		out = append(out, e.Text...)
		if e.SkipTo > srcPos {
			srcPos = e.SkipTo
		} else if e.Pos > srcPos {
			srcPos = e.Pos
		}
	}
	if srcPos < len(text) {
		out = append(out, text[srcPos:]...)
	}

	result := Result{Code: string(out), GeneratedFor: generatedCount, SkippedFor: skippedCount}
	if opts.SourceMapEnabled {
		result.SourceMap = buildSourceMap(opts.FileName, text, edits, opts.SourceMapIncludeContent)
	}
	return result
}

// buildEdits turns each must-validate site into an Edit: Parameter sites are
// pure insertions at InsertPos; Return/Cast/JSONParse/JSONStringify sites
// replace their original expression span with the wrapped expression text
// (the fragment's %s verb filled with the original source). Hoisted helper
// declarations (deduplicated by hash across the whole file) and the
// stringify runtime helpers are prepended once, at position 0.
func buildEdits(planned []PlannedFragment, typescript bool) (edits []Edit, generated, skipped int) {
	hoisted := map[uint64]string{}
	var hoistOrder []uint64
	needsRuntimeHelpers := false

	for _, pf := range planned {
		if pf.Fragment == nil {
			skipped++
			continue
		}
		generated++
		if strings.Contains(pf.Fragment.Expr, "_stringifyScalar(") || strings.Contains(pf.Fragment.Expr, "_stringifyObject(") {
			needsRuntimeHelpers = true
		}
		for h, decl := range pf.Fragment.Helpers {
			if _, ok := hoisted[h]; !ok {
				hoisted[h] = decl
				hoistOrder = append(hoistOrder, h)
			}
		}

		switch pf.Site.Kind {
		case siteplanner.KindParameter:
			stmt := fmt.Sprintf(pf.Fragment.Expr, pf.Site.Name)
			edits = append(edits, Edit{
				Pos:       pf.Site.InsertPos,
				Text:      fmt.Sprintf("%s = %s;\n", pf.Site.Name, stmt),
				SourcePos: pf.Site.AnchorPos,
			})
		default:
			wrapped := fmt.Sprintf(pf.Fragment.Expr, pf.Site.ExprText)
			edits = append(edits, Edit{
				Pos:       pf.Site.ExprStart,
				Text:      wrapped,
				SourcePos: pf.Site.AnchorPos,
				SkipTo:    pf.Site.ExprEnd,
			})
		}
	}

	var preamble string
	for _, h := range hoistOrder {
		preamble += hoisted[h] + "\n"
	}
	if needsRuntimeHelpers {
		preamble += synth.RuntimeHelpers(typescript) + "\n"
	}
	if preamble != "" {
		edits = append(edits, Edit{Pos: 0, Text: preamble, SourcePos: -1})
	}

	return edits, generated, skipped
}
