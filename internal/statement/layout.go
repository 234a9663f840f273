// Package statement recovers transaction rows from crypto-card PDF
// statements by rebuilding text lines from glyph positions.
package statement

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultLineTolerance is the vertical distance, in PDF points, within which
// glyphs are considered part of the same line.
const DefaultLineTolerance = 3.0

// Glyph is one positioned text item as reported by the PDF content stream.
// Y grows upward from the bottom of the page.
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// ClusterLines groups glyphs into lines by vertical position and returns the
// lines ordered top-to-bottom, with glyphs ordered left-to-right.
func ClusterLines(glyphs []Glyph, tolerance float64) []string {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var (
		lines   []string
		current []Glyph
		anchor  float64
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if line := joinLine(current); line != "" {
			lines = append(lines, line)
		}
		current = current[:0]
	}

	for _, g := range sorted {
		if len(current) > 0 && anchor-g.Y > tolerance {
			flush()
		}
		if len(current) == 0 {
			anchor = g.Y
		}
		current = append(current, g)
	}
	flush()

	return lines
}

// joinLine concatenates glyphs on one line, inserting a space where the
// horizontal gap to the previous glyph is wider than a fraction of the font.
func joinLine(glyphs []Glyph) string {
	items := append([]Glyph(nil), glyphs...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].X < items[j].X })

	var b strings.Builder
	for i, g := range items {
		if i > 0 {
			prev := items[i-1]
			if g.X-glyphEnd(prev) > spaceThreshold(prev) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func glyphEnd(g Glyph) float64 {
	if g.W > 0 {
		return g.X + g.W
	}
	size := g.FontSize
	if size <= 0 {
		size = 10
	}
	return g.X + float64(utf8.RuneCountInString(g.S))*size*0.5
}

func spaceThreshold(g Glyph) float64 {
	t := g.FontSize * 0.2
	if t < 1 {
		t = 1
	}
	return t
}
