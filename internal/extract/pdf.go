package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfLineTolerance is the vertical distance in points within which two text
// fragments are considered part of the same line.
const pdfLineTolerance = 2.0

// pdfGapFraction is the fraction of the font size a horizontal gap must
// exceed before a space is inserted between adjacent fragments.
const pdfGapFraction = 0.3

// extractPDF reconstructs reading order page by page: fragments are grouped
// into lines by vertical position, ordered left to right within a line, and
// each non-empty page is prefixed with a page marker. A document with no
// extractable text at all returns ErrNoText.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var b strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text := assemblePage(page.Content().Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Page %d]\n", i)
		b.WriteString(text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("extract PDF: %w", ErrNoText)
	}
	return b.String(), nil
}

// assemblePage joins positioned fragments into lines. The PDF origin is the
// bottom-left corner, so lines are ordered by descending Y.
func assemblePage(texts []pdf.Text) string {
	if len(texts) == 0 {
		return ""
	}
	frags := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			frags = append(frags, t)
		}
	}
	sort.SliceStable(frags, func(i, j int) bool {
		return frags[i].Y > frags[j].Y
	})

	var lines [][]pdf.Text
	for _, t := range frags {
		n := len(lines)
		if n > 0 && lines[n-1][0].Y-t.Y <= pdfLineTolerance {
			lines[n-1] = append(lines[n-1], t)
			continue
		}
		lines = append(lines, []pdf.Text{t})
	}

	var b strings.Builder
	for li, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		if li > 0 {
			b.WriteByte('\n')
		}
		for fi, t := range line {
			if fi > 0 && needsSpace(line[fi-1], t) {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
		}
	}
	return strings.TrimSpace(b.String())
}

// needsSpace reports whether a space belongs between two adjacent fragments
// of one line. Fragments already separated by a space character need none;
// otherwise a gap wider than a fraction of the font size marks a word break.
func needsSpace(prev, cur pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") || strings.HasPrefix(cur.S, " ") {
		return false
	}
	threshold := prev.FontSize * pdfGapFraction
	if threshold <= 0 {
		threshold = 1
	}
	return cur.X-(prev.X+prev.W) > threshold
}
