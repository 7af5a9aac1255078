// seehuhn.de/go/pdfpatch - in-place text rewriting for PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package span

import (
	"math"
	"sort"
	"unicode"

	"github.com/xdg-go/stringprep"
	"golang.org/x/text/unicode/norm"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// ligatures is the set of codepoints which are expanded into their component
// characters in the normalized view.  The expansion itself comes from the
// Unicode compatibility decomposition.
var ligatures = map[rune]bool{
	0xFB00: true, // ff
	0xFB01: true, // fi
	0xFB02: true, // fl
	0xFB03: true, // ffi
	0xFB04: true, // ffl
	0xFB05: true, // long s t
	0xFB06: true, // st
}

// isZeroWidth reports whether r renders with no visible extent.  The set is
// RFC 3454 table B.1 ("commonly mapped to nothing"): soft hyphen, zero-width
// space/joiner/non-joiner, variation selectors, BOM and friends.
func isZeroWidth(r rune) bool {
	_, ok := stringprep.TableB1[r]
	return ok
}

// Normalize applies the package's text normalization to s: ligature
// codepoints are expanded and zero-width marks dropped.  Text decoded from
// content-stream operators must be passed through Normalize before being
// compared with a [Record]'s Normalized text.
func Normalize(s string) string {
	var out []rune
	for _, r := range s {
		switch {
		case isZeroWidth(r):
		case ligatures[r]:
			out = append(out, []rune(norm.NFKC.String(string(r)))...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// Extract analyzes the rendering layer's report for one page.  Spans are
// returned ordered by block, line and span index.  A page without text
// yields an empty list.
func Extract(page *RawPage) []*Record {
	if page == nil || len(page.Spans) == 0 {
		return nil
	}

	spans := make([]RawSpan, len(page.Spans))
	copy(spans, page.Spans)
	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if a.Block != b.Block {
			return a.Block < b.Block
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Span < b.Span
	})

	var records []*Record
	for i := range spans {
		rec := analyze(&spans[i])
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

func analyze(s *RawSpan) *Record {
	raw := []rune(s.Text)
	if len(raw) == 0 {
		return nil
	}

	rec := &Record{
		Block:  s.Block,
		Line:   s.Line,
		Span:   s.Span,
		Text:   s.Text,
		Font:   s.Font,
		Size:   s.Size,
		Box:    s.Box,
		Origin: s.Origin,
		Dir:    direction(s.Dir),
	}

	// one box per raw character, falling back to the span box
	rec.CharBoxes = make([]rect.Rect, len(raw))
	for i := range raw {
		if i < len(s.Chars) {
			rec.CharBoxes[i] = s.Chars[i].Box
		} else {
			rec.CharBoxes[i] = s.Box
		}
	}

	// normalized view: expand ligatures, drop zero-width marks
	var normalized []rune
	for i, r := range raw {
		switch {
		case isZeroWidth(r):
			// keep the raw character and box, drop from the
			// normalized view
		case ligatures[r]:
			for _, e := range norm.NFKC.String(string(r)) {
				normalized = append(normalized, e)
				rec.NormToRaw = append(rec.NormToRaw, i)
				rec.NormBoxes = append(rec.NormBoxes, rec.CharBoxes[i])
			}
		default:
			normalized = append(normalized, r)
			rec.NormToRaw = append(rec.NormToRaw, i)
			rec.NormBoxes = append(rec.NormBoxes, rec.CharBoxes[i])
		}
	}
	rec.Normalized = string(normalized)
	rec.Graphemes = graphemes(normalized)

	return rec
}

// direction returns d normalized to unit length, defaulting to
// left-to-right for zero vectors.
func direction(d vec.Vec2) vec.Vec2 {
	length := math.Hypot(d.X, d.Y)
	if length == 0 {
		return vec.Vec2{X: 1}
	}
	return vec.Vec2{X: d.X / length, Y: d.Y / length}
}

// graphemes partitions the characters into clusters: combining marks never
// start a new cluster.
func graphemes(chars []rune) [][2]int {
	var out [][2]int
	for i, r := range chars {
		if i > 0 && unicode.In(r, unicode.Mn, unicode.Mc, unicode.Me) {
			out[len(out)-1][1] = i + 1
			continue
		}
		out = append(out, [2]int{i, i + 1})
	}
	return out
}
