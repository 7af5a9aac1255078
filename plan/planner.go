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

package plan

import (
	"math"
	"unicode"

	"seehuhn.de/go/pdfpatch/align"
	"seehuhn.de/go/pdfpatch/replay"
	"seehuhn.de/go/pdfpatch/span"
)

// Planner builds replacement plans against one page's replayed and aligned
// operator list.
type Planner struct {
	// Records is the page's operator record list, from the second
	// tracker pass.
	Records []*replay.Record

	// Alignment supplies visual geometry for the segments.  May be nil;
	// segments then carry no slices.
	Alignment *align.Alignment
}

// Plan locates target in the page's decoded text and builds the edit plan
// for substituting replacement.  The target is searched for exactly first,
// then against a whitespace-collapsed view; fuzzy matching is never used.
// If the target cannot be found, [ErrTargetNotFound] is returned and no
// partial plan escapes.
func (p *Planner) Plan(pageNo int, target, replacement string) (*Plan, error) {
	full, starts, shows := p.concat()
	targetRunes := []rune(target)
	if len(targetRunes) == 0 {
		return nil, ErrTargetNotFound
	}

	// ordered match strategies, each returning a typed result
	mStart, mEnd, ok := exactMatch(full, targetRunes)
	if !ok {
		mStart, mEnd, ok = collapsedMatch(full, targetRunes)
	}
	if !ok {
		return nil, ErrTargetNotFound
	}

	plan := &Plan{
		PageNo:      pageNo,
		Original:    string(full[mStart:mEnd]),
		Replacement: replacement,
	}

	for i, rec := range shows {
		rs := starts[i]
		re := rs + len([]rune(rec.Text()))
		lo := max(rs, mStart)
		hi := min(re, mEnd)
		if lo >= hi {
			continue
		}
		p.partition(plan, rec, lo-rs, hi-rs)
	}

	p.allocate(plan, len([]rune(replacement)))
	return plan, nil
}

// concat joins the decoded text of all show operators.  starts[i] is the
// global rune offset of shows[i]'s text.
func (p *Planner) concat() ([]rune, []int, []*replay.Record) {
	var full []rune
	var starts []int
	var shows []*replay.Record
	for _, rec := range p.Records {
		if !rec.ShowsText() {
			continue
		}
		starts = append(starts, len(full))
		full = append(full, []rune(rec.Text())...)
		shows = append(shows, rec)
	}
	return full, starts, shows
}

func exactMatch(full, target []rune) (int, int, bool) {
	pos := indexRunes(full, target, 0)
	if pos < 0 {
		return 0, 0, false
	}
	return pos, pos + len(target), true
}

// collapsedMatch retries the search on a view with every whitespace run
// collapsed to a single space, mapping the match back to original offsets.
func collapsedMatch(full, target []rune) (int, int, bool) {
	cFull, origIdx := collapse(full)
	cTarget, _ := collapse(target)
	if len(cTarget) == 0 {
		return 0, 0, false
	}
	pos := indexRunes(cFull, cTarget, 0)
	if pos < 0 {
		return 0, 0, false
	}
	start := origIdx[pos]
	end := origIdx[pos+len(cTarget)-1] + 1
	return start, end, true
}

func collapse(in []rune) ([]rune, []int) {
	var out []rune
	var origIdx []int
	inSpace := false
	for i, r := range in {
		if unicode.IsSpace(r) {
			if !inSpace {
				out = append(out, ' ')
				origIdx = append(origIdx, i)
			}
			inSpace = true
			continue
		}
		inSpace = false
		out = append(out, r)
		origIdx = append(origIdx, i)
	}
	return out, origIdx
}

func indexRunes(hay, needle []rune, from int) int {
	limit := len(hay) - len(needle)
	for i := from; i <= limit; i++ {
		match := true
		for j, r := range needle {
			if hay[i+j] != r {
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

// fragRange is one fragment's [start,end) rune range in the operator's
// decoded text.
type fragRange struct {
	start, end int
	frag       *replay.Fragment
}

func fragRanges(rec *replay.Record) []fragRange {
	var out []fragRange
	pos := 0
	for i := range rec.Fragments {
		f := &rec.Fragments[i]
		n := len([]rune(f.Text))
		out = append(out, fragRange{start: pos, end: pos + n, frag: f})
		pos += n
	}
	return out
}

// partition splits the operator's overlap [lo,hi) with the match into
// prefix, match and suffix segments.  Match segments are further split at
// array-literal boundaries so individual TJ strings are never merged.
func (p *Planner) partition(plan *Plan, rec *replay.Record, lo, hi int) {
	frags := fragRanges(rec)
	opLen := 0
	if n := len(frags); n > 0 {
		opLen = frags[n-1].end
	}

	if lo > 0 {
		plan.Segments = append(plan.Segments, p.segment(rec, frags, RolePrefix, 0, lo))
	}
	for _, fr := range frags {
		s := max(lo, fr.start)
		e := min(hi, fr.end)
		if s >= e {
			continue
		}
		seg := p.segment(rec, frags, RoleMatch, s, e)
		plan.Segments = append(plan.Segments, seg)
	}
	if hi < opLen {
		plan.Segments = append(plan.Segments, p.segment(rec, frags, RoleSuffix, hi, opLen))
	}
}

// segment builds one segment covering the operator-local range [start,end).
func (p *Planner) segment(rec *replay.Record, frags []fragRange, role Role, start, end int) Segment {
	seg := Segment{
		OpIndex:  rec.Index,
		Role:     role,
		Start:    start,
		End:      end,
		ArgIndex: -1,
		Matrix:   rec.Params.TextMatrix,
		FontName: rec.Params.FontName,
		FontSize: rec.Params.FontSize,
	}

	// literal the segment starts in
	for _, fr := range frags {
		if start >= fr.start && (start < fr.end || fr.start == fr.end) {
			seg.ArgIndex = fr.frag.ArgIndex
			seg.Kind = fr.frag.Kind
			break
		}
	}

	opLen := 0
	if n := len(frags); n > 0 {
		opLen = frags[n-1].end
	}
	if opLen > 0 {
		seg.Width = rec.Advance * float64(end-start) / float64(opLen)
	}

	if p.Alignment != nil {
		if slices, ok := p.Alignment.Slices[rec.Index]; ok {
			opRunes := []rune(rec.Text())
			normStart := len([]rune(span.Normalize(string(opRunes[:start]))))
			normEnd := len([]rune(span.Normalize(string(opRunes[:end]))))
			seg.Slices = cutSlices(slices, normStart, normEnd)
		}
	}

	return seg
}

// cutSlices restricts a slice list to the normalized character range
// [start,end) counted across the concatenated slices.
func cutSlices(slices []align.Slice, start, end int) []align.Slice {
	var out []align.Slice
	pos := 0
	for _, s := range slices {
		n := s.End - s.Start
		lo := max(start-pos, 0)
		hi := min(end-pos, n)
		if lo < hi {
			out = append(out, align.Slice{
				Record: s.Record,
				Start:  s.Start + lo,
				End:    s.Start + hi,
			})
		}
		pos += n
	}
	return out
}

// allocate distributes the replacement characters across the match segments
// in order, proportional to each segment's original length, with the final
// segment absorbing the rounding remainder.
func (p *Planner) allocate(plan *Plan, replLen int) {
	var matches []int
	totalLen := 0
	for i := range plan.Segments {
		if plan.Segments[i].Role == RoleMatch {
			matches = append(matches, i)
			totalLen += plan.Segments[i].End - plan.Segments[i].Start
		}
	}

	remaining := replLen
	remainingLen := totalLen
	cursor := 0
	for mi, si := range matches {
		seg := &plan.Segments[si]
		segLen := seg.End - seg.Start

		var take int
		if mi == len(matches)-1 {
			// the final segment absorbs the remainder
			take = remaining
		} else {
			later := len(matches) - mi - 1
			ideal := 0
			if remainingLen > 0 {
				ideal = int(math.Round(float64(remaining) * float64(segLen) / float64(remainingLen)))
			}
			// later segments keep at least one character each
			// while the budget allows
			take = min(ideal, max(remaining-later, 0))
			take = max(take, 0)
		}

		seg.ReplStart = cursor
		seg.ReplEnd = cursor + take
		cursor += take
		remaining -= take
		remainingLen -= segLen

		if take == 0 {
			if mi < len(matches)-1 {
				seg.ZeroLenMiddle = true
			}
			if seg.ArgIndex >= 0 && p.coversWholeLiteral(seg) {
				seg.RequiresIsolation = true
			}
		}
	}
}

// coversWholeLiteral reports whether the segment consumes its array
// literal's entire decoded text.
func (p *Planner) coversWholeLiteral(seg *Segment) bool {
	for _, rec := range p.Records {
		if rec.Index != seg.OpIndex {
			continue
		}
		for _, fr := range fragRanges(rec) {
			if fr.frag.ArgIndex == seg.ArgIndex {
				return seg.Start == fr.start && seg.End == fr.end
			}
		}
	}
	return false
}
