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

// Package rewrite turns a replacement plan into consolidated span rewrites
// and patched content streams.
package rewrite

import (
	"fmt"
	"sort"

	"seehuhn.de/go/pdf"

	"seehuhn.de/go/pdfpatch/plan"
	"seehuhn.de/go/pdfpatch/span"
)

// MeasureFunc measures the rendered width of text in the given font, in
// page units.  Implementations typically wrap the font's metrics or the
// rendering layer.
type MeasureFunc func(text string, font pdf.Name, size float64) float64

// DefaultMinScale is the legibility floor: a rewrite which would need to be
// compressed below this horizontal scale is emitted as an overlay request
// instead.
const DefaultMinScale = 0.5

// ValidationFailure records a span whose current text no longer matches the
// text a plan expected to find there, for example because of stale offsets
// after an earlier edit.
type ValidationFailure struct {
	PageNo     int
	Start, End int
	Expected   string
	Observed   string
}

func (f *ValidationFailure) Error() string {
	return fmt.Sprintf("page %d, span chars [%d,%d): expected %q, found %q",
		f.PageNo, f.Start, f.End, f.Expected, f.Observed)
}

// Entry is one consolidated rewrite for one physical span.
type Entry struct {
	PageNo int
	Span   *span.Record

	// Start and End delimit the rewritten normalized character range.
	Start, End int

	// Text is the consolidated replacement for that range.
	Text string

	// Scale is the horizontal scale to apply so the replacement fits the
	// original width.  1 means no scaling.
	Scale float64

	// Overlay reports that in-place substitution cannot preserve the
	// layout even at the minimum scale, and the caller should paint the
	// replacement as an overlay instead.
	Overlay bool
}

type pendingEdit struct {
	start, end int
	expected   string
	text       string
	seg        plan.Segment
}

// Accumulator collects all edits touching one physical span and emits a
// single consolidated rewrite.  An accumulator must be exclusively owned
// for the duration of one page's rewrite pass.
type Accumulator struct {
	// Span is the physical span being rewritten.
	Span *span.Record

	// MinScale is the legibility floor.  Zero means [DefaultMinScale].
	MinScale float64

	pending  []pendingEdit
	failures []*ValidationFailure
}

// AddReplacement queues the replacement of the span's normalized characters
// [start,end) (which currently read expected) with text.  The originating
// segment is kept for diagnostics.
func (a *Accumulator) AddReplacement(start, end int, expected, text string, seg plan.Segment) {
	a.pending = append(a.pending, pendingEdit{
		start:    start,
		end:      end,
		expected: expected,
		text:     text,
		seg:      seg,
	})
}

// Failures returns the validation failures recorded so far.
func (a *Accumulator) Failures() []*ValidationFailure {
	return a.failures
}

// BuildEntry validates and merges the pending replacements.  If any pending
// edit's expected text does not match the span's current text, no entry is
// emitted and the mismatch is recorded; the caller can inspect it via
// [Accumulator.Failures] or the returned error.
func (a *Accumulator) BuildEntry(pageNo int, measure MeasureFunc) (*Entry, error) {
	if len(a.pending) == 0 {
		return nil, nil
	}

	chars := []rune(a.Span.Normalized)

	// verify before touching anything; never guess on mismatch
	for _, p := range a.pending {
		if p.start < 0 || p.end > len(chars) || p.start > p.end {
			f := &ValidationFailure{
				PageNo:   pageNo,
				Start:    p.start,
				End:      p.end,
				Expected: p.expected,
				Observed: "",
			}
			a.failures = append(a.failures, f)
			return nil, f
		}
		observed := string(chars[p.start:p.end])
		if observed != p.expected {
			f := &ValidationFailure{
				PageNo:   pageNo,
				Start:    p.start,
				End:      p.end,
				Expected: p.expected,
				Observed: observed,
			}
			a.failures = append(a.failures, f)
			return nil, f
		}
	}

	edits := make([]pendingEdit, len(a.pending))
	copy(edits, a.pending)
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	// merge in position order, keeping unchanged text between edits
	lo := edits[0].start
	hi := edits[len(edits)-1].end
	var newText []rune
	pos := lo
	for _, e := range edits {
		if e.start < pos {
			// overlapping edits would corrupt the span
			f := &ValidationFailure{
				PageNo:   pageNo,
				Start:    e.start,
				End:      e.end,
				Expected: e.expected,
				Observed: "overlapping edit",
			}
			a.failures = append(a.failures, f)
			return nil, f
		}
		newText = append(newText, chars[pos:e.start]...)
		newText = append(newText, []rune(e.text)...)
		pos = e.end
	}
	newText = append(newText, chars[pos:hi]...)

	entry := &Entry{
		PageNo: pageNo,
		Span:   a.Span,
		Start:  lo,
		End:    hi,
		Text:   string(newText),
		Scale:  1,
	}

	if measure != nil {
		origWidth := measure(string(chars[lo:hi]), pdf.Name(a.Span.Font), a.Span.Size)
		newWidth := measure(entry.Text, pdf.Name(a.Span.Font), a.Span.Size)
		if newWidth > origWidth && newWidth > 0 {
			scale := origWidth / newWidth
			floor := a.MinScale
			if floor == 0 {
				floor = DefaultMinScale
			}
			if scale < floor {
				entry.Scale = floor
				entry.Overlay = true
			} else {
				entry.Scale = scale
			}
		}
	}

	return entry, nil
}
