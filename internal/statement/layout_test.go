package statement

import (
	"errors"
	"reflect"
	"testing"
)

// word lays out s as single-character glyphs starting at x.
func word(s string, x, y float64) []Glyph {
	var out []Glyph
	for i, r := range s {
		out = append(out, Glyph{X: x + float64(i)*5, Y: y, W: 5, FontSize: 10, S: string(r)})
	}
	return out
}

func TestClusterLines(t *testing.T) {
	var glyphs []Glyph
	// Second visual line first, to check ordering does not depend on input order.
	glyphs = append(glyphs, word("$12.34", 200, 680)...)
	glyphs = append(glyphs, word("AWS", 100, 681.5)...)
	glyphs = append(glyphs, word("Jan", 10, 680.2)...)
	glyphs = append(glyphs, word("7,", 30, 680.2)...)
	glyphs = append(glyphs, word("Transactions", 10, 700)...)
	glyphs = append(glyphs, word("Page", 10, 20)...)

	got := ClusterLines(glyphs, DefaultLineTolerance)
	want := []string{
		"Transactions",
		"Jan 7, AWS $12.34",
		"Page",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ClusterLines() = %q, want %q", got, want)
	}
}

func TestClusterLines_Tolerance(t *testing.T) {
	glyphs := append(word("top", 10, 100), word("low", 10, 96)...)

	if got := ClusterLines(glyphs, 3); len(got) != 2 {
		t.Errorf("expected two lines at tolerance 3, got %q", got)
	}
	if got := ClusterLines(glyphs, 5); len(got) != 1 {
		t.Errorf("expected one line at tolerance 5, got %q", got)
	}
}

func TestClusterLines_AdjacentGlyphsJoinWithoutSpace(t *testing.T) {
	glyphs := []Glyph{
		{X: 10, Y: 50, W: 5, FontSize: 10, S: "A"},
		{X: 15, Y: 50, W: 5, FontSize: 10, S: "B"},
		{X: 40, Y: 50, W: 5, FontSize: 10, S: "C"},
		{X: 45, Y: 50, FontSize: 10, S: " "},
	}
	got := ClusterLines(glyphs, DefaultLineTolerance)
	if len(got) != 1 || got[0] != "AB C" {
		t.Errorf("ClusterLines() = %q, want [\"AB C\"]", got)
	}
}

func TestClusterLines_Empty(t *testing.T) {
	if got := ClusterLines(nil, DefaultLineTolerance); got != nil {
		t.Errorf("ClusterLines(nil) = %q", got)
	}
}

func TestExtractGlyphs_InvalidPDF(t *testing.T) {
	_, err := ExtractGlyphs([]byte("not a pdf"))
	if err == nil {
		t.Fatal("expected error for non-PDF input")
	}
	if errors.Is(err, ErrNoText) {
		t.Errorf("expected open error, got %v", err)
	}
}
