package statement

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF has no extractable text layer.
var ErrNoText = errors.New("pdf has no text layer")

// ExtractGlyphs reads every page of a PDF and returns its positioned text.
// The pdf library panics on some malformed inputs; those panics are
// returned as errors.
func ExtractGlyphs(data []byte) (pages [][]Glyph, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("ExtractGlyphs: pdf library panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("ExtractGlyphs: open: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("ExtractGlyphs: %w", ErrNoText)
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		glyphs := make([]Glyph, 0, len(content.Text))
		for _, t := range content.Text {
			glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		pages = append(pages, glyphs)
	}
	return pages, nil
}

// ExtractLines clusters each page into lines and concatenates the pages in
// document order.
func ExtractLines(data []byte) ([]string, error) {
	pages, err := ExtractGlyphs(data)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, glyphs := range pages {
		lines = append(lines, ClusterLines(glyphs, DefaultLineTolerance)...)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("ExtractLines: %w", ErrNoText)
	}
	return lines, nil
}
