package markup

import (
	"bytes"
	"sort"
)

// Edit replaces src[Start:End] with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Apply returns src with edits applied. Edits that overlap an earlier
// (lower Start) edit are dropped and counted in skipped.
func Apply(src []byte, edits []Edit) (out []byte, skipped int) {
	if len(edits) == 0 {
		return src, 0
	}
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var buf bytes.Buffer
	buf.Grow(len(src) + 256)
	pos := 0
	for _, e := range sorted {
		if e.Start < pos || e.End < e.Start || e.End > len(src) {
			skipped++
			continue
		}
		buf.Write(src[pos:e.Start])
		buf.WriteString(e.Text)
		pos = e.End
	}
	buf.Write(src[pos:])
	return buf.Bytes(), skipped
}

// AppendInside returns an edit inserting text just before el's end tag.
func AppendInside(el *Element, text string) Edit {
	return Edit{Start: el.CloseStart, End: el.CloseStart, Text: text}
}
