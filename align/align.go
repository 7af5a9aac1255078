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

// Package align matches the text decoded from content-stream operators
// against the visual span index of the rendered page.
//
// Matching is monotonic: operators are walked in document order and each
// search resumes where the previous match ended.  Repeated text is thereby
// resolved by document order, never by similarity scoring.
package align

import (
	"seehuhn.de/go/pdfpatch/replay"
	"seehuhn.de/go/pdfpatch/span"
)

// Slice is a sub-range of one span's normalized characters.
type Slice struct {
	Record *span.Record

	// Start and End delimit the [Start,End) normalized character range.
	Start, End int
}

// Alignment maps operator record indices to the span slices which visually
// render the operator's text.  Records with no entry are unaligned.
type Alignment struct {
	Slices map[int][]Slice
}

// DefaultMinPrefix is the shortest operator-text prefix the aligner will
// fall back to before giving up on an operator.
const DefaultMinPrefix = 3

// Aligner matches operator records against a page's span index.
type Aligner struct {
	// MinPrefix bounds the prefix-shrinking fallback.
	// Zero means [DefaultMinPrefix].
	MinPrefix int
}

// pageIndex is the concatenation of all spans' normalized text with a
// per-character table back to (span, local offset).
type pageIndex struct {
	runes []rune
	spans []*span.Record
	owner []int // rune index -> index into spans
	local []int // rune index -> character index within the span
}

func buildPageIndex(spans []*span.Record) *pageIndex {
	idx := &pageIndex{spans: spans}
	for i, rec := range spans {
		for j, r := range []rune(rec.Normalized) {
			idx.runes = append(idx.runes, r)
			idx.owner = append(idx.owner, i)
			idx.local = append(idx.local, j)
		}
	}
	return idx
}

// find searches for needle at or after offset from.  It returns the rune
// offset of the first occurrence, or -1.
func (idx *pageIndex) find(needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	limit := len(idx.runes) - len(needle)
	for i := from; i <= limit; i++ {
		match := true
		for j, r := range needle {
			if idx.runes[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// slices cuts the matched rune range [start,end) into per-span slices,
// widened to whole grapheme clusters.
func (idx *pageIndex) slices(start, end int) []Slice {
	var out []Slice
	for i := start; i < end; {
		ownerIdx := idx.owner[i]
		rec := idx.spans[ownerIdx]

		j := i
		for j < end && idx.owner[j] == ownerIdx {
			j++
		}

		s := Slice{
			Record: rec,
			Start:  idx.local[i],
			End:    idx.local[j-1] + 1,
		}
		s.Start, s.End = snapToGraphemes(rec, s.Start, s.End)
		out = append(out, s)
		i = j
	}
	return out
}

// snapToGraphemes widens [start,end) so that no grapheme cluster is split.
func snapToGraphemes(rec *span.Record, start, end int) (int, int) {
	for _, g := range rec.Graphemes {
		if start > g[0] && start < g[1] {
			start = g[0]
		}
		if end > g[0] && end < g[1] {
			end = g[1]
		}
	}
	return start, end
}

// Align matches each record's decoded text against the span index.
// Both inputs must be in document order.
func (a *Aligner) Align(records []*replay.Record, spans []*span.Record) *Alignment {
	minPrefix := a.MinPrefix
	if minPrefix == 0 {
		minPrefix = DefaultMinPrefix
	}

	idx := buildPageIndex(spans)
	result := &Alignment{Slices: make(map[int][]Slice)}

	searchFrom := 0
	for _, rec := range records {
		if !rec.ShowsText() {
			continue
		}
		needle := []rune(span.Normalize(rec.Text()))
		if len(needle) == 0 {
			continue
		}

		// exact match first, then progressively shorter prefixes to
		// tolerate trailing-character drift from ligature or encoding
		// mismatches
		pos := -1
		length := len(needle)
		for length >= minPrefix || length == len(needle) {
			pos = idx.find(needle[:length], searchFrom)
			if pos >= 0 {
				break
			}
			length--
		}
		if pos < 0 {
			// unaligned: metrics will use the naive estimate
			continue
		}

		result.Slices[rec.Index] = idx.slices(pos, pos+length)
		searchFrom = pos + length
	}
	return result
}
