package editapply

import (
	"strings"
	"testing"
)

func TestEncodeVLQKnownValues(t *testing.T) {
	tests := []struct {
		value int
		want  string
	}{
		{0, "A"},
		{1, "C"},
		{-1, "D"},
		{2, "E"},
		{15, "e"},
		{16, "gB"},
		{511, "+f"},
		{512, "ggB"},
	}
	for _, tt := range tests {
		if got := encodeVLQ(tt.value); got != tt.want {
			t.Errorf("encodeVLQ(%d) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

// decodeVLQ inverts encodeVLQ for the round-trip test below.
func decodeVLQ(s string) (values []int, err bool) {
	const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	shift := 0
	value := 0
	for _, ch := range s {
		digit := strings.IndexRune(base64Chars, ch)
		if digit < 0 {
			return nil, true
		}
		value |= (digit & 0x1f) << shift
		if digit&0x20 != 0 {
			shift += 5
			continue
		}
		if value&1 != 0 {
			values = append(values, -(value >> 1))
		} else {
			values = append(values, value>>1)
		}
		shift = 0
		value = 0
	}
	return values, shift != 0
}

func TestVLQRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, -1, 31, 32, -33, 1000, -4096, 123456} {
		decoded, bad := decodeVLQ(encodeVLQ(v))
		if bad || len(decoded) != 1 || decoded[0] != v {
			t.Errorf("round trip of %d failed: got %v", v, decoded)
		}
	}
}

func TestPosToLineCol(t *testing.T) {
	text := "ab\ncde\n\nf"
	starts := computeLineStarts(text)
	tests := []struct {
		pos, line, col int
	}{
		{0, 0, 0},
		{1, 0, 1},
		{3, 1, 0},
		{5, 1, 2},
		{7, 2, 0},
		{8, 3, 0},
	}
	for _, tt := range tests {
		line, col := posToLineCol(tt.pos, starts)
		if line != tt.line || col != tt.col {
			t.Errorf("posToLineCol(%d) = (%d,%d), want (%d,%d)", tt.pos, line, col, tt.line, tt.col)
		}
	}
}

// TestMappingsDecodeCleanly checks the P3 shape: every segment is valid
// VLQ, has exactly four fields, and always names source index 0.
func TestMappingsDecodeCleanly(t *testing.T) {
	text := "function f(a) {\n  return a;\n}\n"
	edits := []Edit{
		{Pos: 17, Text: "a = _check_x(a, \"a\");\n", SourcePos: 11},
	}
	sm := buildSourceMap("f.ts", text, edits, true)

	if len(sm.Sources) != 1 {
		t.Fatalf("expected exactly one source, got %d", len(sm.Sources))
	}
	for _, line := range strings.Split(sm.Mappings, ";") {
		if line == "" {
			continue
		}
		for _, seg := range strings.Split(line, ",") {
			fields, bad := decodeVLQ(seg)
			if bad {
				t.Fatalf("segment %q did not decode", seg)
			}
			if len(fields) != 4 {
				t.Fatalf("segment %q has %d fields, want 4", seg, len(fields))
			}
		}
	}

	// Absolute source index must stay 0 across all segments (deltas sum to 0).
	srcIdx := 0
	for _, line := range strings.Split(sm.Mappings, ";") {
		for _, seg := range strings.Split(line, ",") {
			if seg == "" {
				continue
			}
			fields, _ := decodeVLQ(seg)
			srcIdx += fields[1]
			if srcIdx != 0 {
				t.Fatalf("source index drifted to %d", srcIdx)
			}
		}
	}
}

func TestInlineCommentShape(t *testing.T) {
	sm := &RawSourceMap{Version: 3, File: "f.ts", Sources: []string{"f.ts"}, Names: []string{}, Mappings: "AAAA"}
	comment, err := sm.InlineComment()
	if err != nil {
		t.Fatalf("InlineComment failed: %v", err)
	}
	if !strings.HasPrefix(comment, "//# sourceMappingURL=data:application/json;base64,") {
		t.Fatalf("unexpected inline comment prefix: %q", comment)
	}
}

func TestSourceMapDeterminism(t *testing.T) {
	text := "const a = 1;\nconst b = 2;\n"
	edits := []Edit{{Pos: 0, Text: "// header\n", SourcePos: -1}}
	first := buildSourceMap("x.ts", text, edits, true)
	second := buildSourceMap("x.ts", text, edits, true)
	if first.Mappings != second.Mappings {
		t.Fatalf("mappings must be deterministic for identical inputs")
	}
}
