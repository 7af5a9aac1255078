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

package align

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"seehuhn.de/go/pdfpatch/contentstream"
	"seehuhn.de/go/pdfpatch/replay"
	"seehuhn.de/go/pdfpatch/span"
)

// trackPage parses src and replays it without a resolver.
func trackPage(t *testing.T, src string) []*replay.Record {
	t.Helper()
	stream, err := contentstream.ReadStream(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadStream: %v", err)
	}
	tracker := &replay.Tracker{}
	return tracker.Run(stream)
}

// mkSpans builds one span record per text, with unit-width character boxes
// laid out left to right across all spans.
func mkSpans(texts ...string) []*span.Record {
	var page RawPageBuilder
	for _, text := range texts {
		page.Add(text)
	}
	return page.Build()
}

type RawPageBuilder struct {
	spans []span.RawSpan
	x     float64
}

func (b *RawPageBuilder) Add(text string) {
	s := span.RawSpan{Span: len(b.spans), Text: text}
	for _, r := range text {
		s.Chars = append(s.Chars, span.RawChar{
			Rune: r,
			Box:  rect.Rect{LLx: b.x, LLy: 0, URx: b.x + 1, URy: 1},
		})
		b.x++
	}
	b.spans = append(b.spans, s)
}

func (b *RawPageBuilder) Build() []*span.Record {
	return span.Extract(&span.RawPage{Spans: b.spans})
}

func TestAlignMonotonic(t *testing.T) {
	// "the" occurs twice; document order must disambiguate
	spans := mkSpans("the cat ", "on the mat")
	records := trackPage(t, `BT /F1 10 Tf (the cat) Tj (the mat) Tj ET`)

	a := &Aligner{}
	al := a.Align(records, spans)

	var shows []*replay.Record
	for _, rec := range records {
		if rec.ShowsText() {
			shows = append(shows, rec)
		}
	}
	if len(shows) != 2 {
		t.Fatalf("got %d shows, want 2", len(shows))
	}

	first := al.Slices[shows[0].Index]
	if len(first) != 1 || first[0].Record != spans[0] || first[0].Start != 0 || first[0].End != 7 {
		t.Errorf("first alignment = %+v", first)
	}

	// "the mat" must match in the second span, after the first match
	second := al.Slices[shows[1].Index]
	if len(second) != 1 || second[0].Record != spans[1] {
		t.Fatalf("second alignment = %+v", second)
	}
	if second[0].Start != 3 || second[0].End != 10 {
		t.Errorf("second range = [%d,%d), want [3,10)", second[0].Start, second[0].End)
	}
}

func TestAlignAcrossSpans(t *testing.T) {
	spans := mkSpans("Hello ", "world")
	records := trackPage(t, `BT /F1 10 Tf (Hello world) Tj ET`)

	a := &Aligner{}
	al := a.Align(records, spans)
	if len(al.Slices) != 1 {
		t.Fatalf("got %d aligned records, want 1", len(al.Slices))
	}
	for _, slices := range al.Slices {
		if len(slices) != 2 {
			t.Fatalf("got %d slices, want 2", len(slices))
		}
		if slices[0].Record != spans[0] || slices[0].Start != 0 || slices[0].End != 6 {
			t.Errorf("slice 0 = %+v", slices[0])
		}
		if slices[1].Record != spans[1] || slices[1].Start != 0 || slices[1].End != 5 {
			t.Errorf("slice 1 = %+v", slices[1])
		}
	}
}

func TestPrefixShrink(t *testing.T) {
	spans := mkSpans("worlds apart")
	// trailing characters that the renderer never produced
	records := trackPage(t, `BT /F1 10 Tf (worldXY) Tj ET`)

	a := &Aligner{}
	al := a.Align(records, spans)
	if len(al.Slices) != 1 {
		t.Fatalf("got %d aligned records, want 1", len(al.Slices))
	}
	for _, slices := range al.Slices {
		if len(slices) != 1 || slices[0].Start != 0 || slices[0].End != 5 {
			t.Errorf("slices = %+v, want [0,5)", slices)
		}
	}
}

func TestAlignUnmatched(t *testing.T) {
	spans := mkSpans("completely different")
	records := trackPage(t, `BT /F1 10 Tf (zzzzzz) Tj ET`)

	a := &Aligner{}
	al := a.Align(records, spans)
	if len(al.Slices) != 0 {
		t.Errorf("got %d aligned records, want 0", len(al.Slices))
	}
}

func TestAlignIdempotent(t *testing.T) {
	spans := mkSpans("the cat ", "on the mat")
	records := trackPage(t, `BT /F1 10 Tf (the cat) Tj (the mat) Tj ET`)

	a := &Aligner{}
	first := a.Align(records, spans)
	second := a.Align(records, spans)

	opt := cmp.Comparer(func(x, y *span.Record) bool { return x == y })
	if diff := cmp.Diff(first, second, opt); diff != "" {
		t.Errorf("alignment not deterministic (-first +second):\n%s", diff)
	}
}

func TestGraphemeSnapping(t *testing.T) {
	spans := span.Extract(&span.RawPage{Spans: []span.RawSpan{
		{Text: "éx"}, // cluster [0,2), then "x"
	}})
	records := trackPage(t, `BT /F1 10 Tf (e) Tj ET`)

	a := &Aligner{MinPrefix: 1}
	al := a.Align(records, spans)
	if len(al.Slices) != 1 {
		t.Fatalf("got %d aligned records, want 1", len(al.Slices))
	}
	for _, slices := range al.Slices {
		if len(slices) != 1 || slices[0].Start != 0 || slices[0].End != 2 {
			t.Errorf("slices = %+v, want cluster [0,2)", slices)
		}
	}
}

func TestMeasure(t *testing.T) {
	recA := &span.Record{
		Dir: vec.Vec2{X: 1},
		NormBoxes: []rect.Rect{
			{LLx: 0, URx: 10, URy: 1},
			{LLx: 10, URx: 20, URy: 1},
		},
	}
	recB := &span.Record{
		Dir: vec.Vec2{X: 1},
		NormBoxes: []rect.Rect{
			{LLx: 25, URx: 30, URy: 1},
		},
	}

	m, ok := Measure([]Slice{
		{Record: recA, Start: 0, End: 2},
		{Record: recB, Start: 0, End: 1},
	})
	if !ok {
		t.Fatal("Measure failed")
	}
	// 20 + 5 glyph extent, 5 units of genuine gap
	if m.Advance != 30 {
		t.Errorf("advance = %g, want 30", m.Advance)
	}
	if m.Start != 0 || m.End != 30 {
		t.Errorf("extent = [%g,%g], want [0,30]", m.Start, m.End)
	}
}

func TestMeasureOverlapClamped(t *testing.T) {
	rec := &span.Record{
		Dir: vec.Vec2{X: 1},
		NormBoxes: []rect.Rect{
			{LLx: 0, URx: 10, URy: 1},
			{LLx: 8, URx: 18, URy: 1}, // overlaps the first slice
		},
	}
	m, ok := Measure([]Slice{
		{Record: rec, Start: 0, End: 1},
		{Record: rec, Start: 1, End: 2},
	})
	if !ok {
		t.Fatal("Measure failed")
	}
	// the 2-unit overlap is clamped to zero, not subtracted
	if m.Advance != 20 {
		t.Errorf("advance = %g, want 20", m.Advance)
	}
}

func TestResolverScalesToTextSpace(t *testing.T) {
	spans := mkSpans("ABC")
	// text matrix doubles text space
	records := trackPage(t, `BT /F1 10 Tf 2 0 0 2 0 0 Tm (ABC) Tj ET`)

	a := &Aligner{}
	al := a.Align(records, spans)
	resolve := Resolver(al)

	for _, rec := range records {
		if !rec.ShowsText() {
			continue
		}
		adv, ok := resolve(rec)
		if !ok {
			t.Fatal("resolver found no advance")
		}
		// 3 unit-wide boxes over a 2x text matrix
		if adv != 1.5 {
			t.Errorf("advance = %g, want 1.5", adv)
		}
	}
}
