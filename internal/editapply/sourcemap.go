package editapply

import (
	"encoding/base64"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-json-experiment/json"
)

// RawSourceMap is a v3 source map (single source, inline-able sourcesContent).
type RawSourceMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
}

// InlineComment renders the map as the trailing
// `//# sourceMappingURL=data:application/json;base64,...` line appended to
// emitted code when sourceMap.inline is configured.
func (sm *RawSourceMap) InlineComment() (string, error) {
	data, err := json.Marshal(sm)
	if err != nil {
		return "", err
	}
	return "//# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// LineStarts returns the byte offset of the start of each line in text,
// for callers outside this package that need to turn a byte position into
// a (line, column) pair (e.g. session.Analyze's ValidationItem spans).
func LineStarts(text string) []int {
	return computeLineStarts(text)
}

// PosToLineCol turns a byte offset into a 0-based (line, column) pair given
// the line-start table LineStarts produced.
func PosToLineCol(pos int, lineStarts []int) (line, col int) {
	return posToLineCol(pos, lineStarts)
}

func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func posToLineCol(pos int, lineStarts []int) (line, col int) {
	line = sort.Search(len(lineStarts), func(i int) bool {
		return lineStarts[i] > pos
	}) - 1
	if line < 0 {
		line = 0
	}
	col = pos - lineStarts[line]
	return
}

// encodeVLQ encodes a signed integer as Base64 VLQ, the wire format source
// map mappings use for each relative field.
func encodeVLQ(value int) string {
	var result strings.Builder

	if value < 0 {
		value = ((-value) << 1) | 1
	} else {
		value = value << 1
	}

	const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

	for {
		digit := value & 0x1f
		value >>= 5
		if value > 0 {
			digit |= 0x20
		}
		result.WriteByte(base64Chars[digit])
		if value == 0 {
			break
		}
	}
	return result.String()
}

// mapBuilder accumulates one mappings string segment at a time, tracking the
// previous absolute position on each field so every emitted value is the
// VLQ-encoded delta the source map format requires.
type mapBuilder struct {
	mappings    strings.Builder
	firstOnLine bool
	lastGenCol  int
	lastSrcLine int
	lastSrcCol  int
}

func newMapBuilder() *mapBuilder {
	return &mapBuilder{firstOnLine: true}
}

func (b *mapBuilder) addMapping(genCol, srcLine, srcCol int) {
	if !b.firstOnLine {
		b.mappings.WriteByte(',')
	}
	b.firstOnLine = false

	b.mappings.WriteString(encodeVLQ(genCol - b.lastGenCol))
	b.mappings.WriteString(encodeVLQ(0)) // single source file per map
	b.mappings.WriteString(encodeVLQ(srcLine - b.lastSrcLine))
	b.mappings.WriteString(encodeVLQ(srcCol - b.lastSrcCol))

	b.lastGenCol = genCol
	b.lastSrcLine = srcLine
	b.lastSrcCol = srcCol
}

func (b *mapBuilder) newLine() {
	b.mappings.WriteByte(';')
	b.firstOnLine = true
	b.lastGenCol = 0
}

func (b *mapBuilder) String() string { return b.mappings.String() }

// buildSourceMap walks the sorted edit list alongside the original text,
// copying unedited spans verbatim and attributing each inserted span's
// source mapping to its Edit.SourcePos.
func buildSourceMap(fileName, originalText string, edits []Edit, includeContent bool) *RawSourceMap {
	lineStarts := computeLineStarts(originalText)
	builder := newMapBuilder()

	genCol := 0
	srcPos := 0
	emitChunk := func(chunk string, chunkSrcStart int) {
		for i, ch := range chunk {
			if i == 0 || chunk[i-1] == '\n' {
				srcLine, srcCol := posToLineCol(chunkSrcStart+i, lineStarts)
				builder.addMapping(genCol, srcLine, srcCol)
			}
			if ch == '\n' {
				builder.newLine()
				genCol = 0
			} else {
				genCol++
			}
		}
	}

	for _, e := range edits {
		if e.Pos > srcPos {
			emitChunk(originalText[srcPos:e.Pos], srcPos)
			srcPos = e.Pos
		}
		if e.SourcePos >= 0 {
			srcLine, srcCol := posToLineCol(e.SourcePos, lineStarts)
			builder.addMapping(genCol, srcLine, srcCol)
		}
		for _, ch := range e.Text {
			if ch == '\n' {
				builder.newLine()
				genCol = 0
				if e.SourcePos >= 0 {
					srcLine, srcCol := posToLineCol(e.SourcePos, lineStarts)
					builder.addMapping(genCol, srcLine, srcCol)
				}
			} else {
				genCol++
			}
		}
		if e.SkipTo > srcPos {
			srcPos = e.SkipTo
		}
	}
	if srcPos < len(originalText) {
		emitChunk(originalText[srcPos:], srcPos)
	}

	baseName := filepath.Base(fileName)
	var content *string
	if includeContent {
		c := originalText
		content = &c
	}
	sm := &RawSourceMap{
		Version:  3,
		File:     baseName,
		Sources:  []string{baseName},
		Names:    []string{},
		Mappings: builder.String(),
	}
	if content != nil {
		sm.SourcesContent = []*string{content}
	}
	return sm
}
