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

// Package span turns the per-character geometry reported by a page renderer
// into an ordered index of visual text runs with a normalized text view.
//
// Normalization expands ligature codepoints into their component characters
// and drops zero-width marks, so that the normalized text can be compared
// against text decoded from content-stream operators.
package span

import (
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// RawChar is one rendered character with its bounding box, as reported by
// the rendering layer.
type RawChar struct {
	Rune rune
	Box  rect.Rect
}

// RawSpan is one visually contiguous text run as reported by the rendering
// layer.  Chars may be empty when the renderer provides no character-level
// geometry; the span box is then used for every character.
type RawSpan struct {
	Block, Line, Span int

	Text   string
	Font   string
	Size   float64
	Box    rect.Rect
	Origin vec.Vec2

	// Dir is the writing direction.  A zero vector means left-to-right.
	Dir vec.Vec2

	Chars []RawChar
}

// RawPage is the rendering layer's report for one page.
type RawPage struct {
	PageNo int
	Spans  []RawSpan
}

// Record is the analyzed form of one RawSpan.
type Record struct {
	Block, Line, Span int

	// Text is the raw span text as reported by the renderer.
	Text string

	// Normalized is the ligature-expanded, zero-width-filtered view.
	Normalized string

	Font   string
	Size   float64
	Box    rect.Rect
	Origin vec.Vec2

	// Dir is the writing direction unit vector.
	Dir vec.Vec2

	// CharBoxes has one box per raw character.
	CharBoxes []rect.Rect

	// NormBoxes has one box per normalized character, sourced from the
	// raw character the normalized character derives from.
	NormBoxes []rect.Rect

	// Graphemes partitions the normalized characters into visual
	// clusters: Graphemes[i] is the [start,end) character range of
	// cluster i.  The ranges tile the normalized text with no gaps.
	Graphemes [][2]int

	// NormToRaw maps each normalized character index to the raw
	// character index it derives from.
	NormToRaw []int
}

// NumChars returns the number of normalized characters of the span.
func (r *Record) NumChars() int {
	return len(r.NormToRaw)
}
