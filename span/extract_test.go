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
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

func TestExtractEmpty(t *testing.T) {
	if got := Extract(nil); got != nil {
		t.Errorf("Extract(nil) = %v, want nil", got)
	}
	if got := Extract(&RawPage{PageNo: 1}); got != nil {
		t.Errorf("Extract(empty page) = %v, want nil", got)
	}
}

func TestExtractOrdering(t *testing.T) {
	page := &RawPage{
		Spans: []RawSpan{
			{Block: 1, Line: 0, Span: 0, Text: "c"},
			{Block: 0, Line: 1, Span: 0, Text: "b"},
			{Block: 0, Line: 0, Span: 0, Text: "a"},
		},
	}
	records := Extract(page)
	var got string
	for _, rec := range records {
		got += rec.Text
	}
	if got != "abc" {
		t.Errorf("order = %q, want %q", got, "abc")
	}
}

func TestLigatureExpansion(t *testing.T) {
	box := rect.Rect{LLx: 10, LLy: 0, URx: 16, URy: 10}
	page := &RawPage{
		Spans: []RawSpan{{
			Text: "eﬃcient",
			Chars: []RawChar{
				{Rune: 'e', Box: rect.Rect{URx: 10, URy: 10}},
				{Rune: 'ﬃ', Box: box},
				{Rune: 'c'}, {Rune: 'i'}, {Rune: 'e'}, {Rune: 'n'}, {Rune: 't'},
			},
		}},
	}
	records := Extract(page)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]

	if rec.Normalized != "efficient" {
		t.Errorf("normalized = %q, want %q", rec.Normalized, "efficient")
	}
	// all three expanded characters inherit the ligature's box and raw index
	wantRaw := []int{0, 1, 1, 1, 2, 3, 4, 5, 6}
	if diff := cmp.Diff(wantRaw, rec.NormToRaw); diff != "" {
		t.Errorf("NormToRaw (-want +got):\n%s", diff)
	}
	for i := 1; i <= 3; i++ {
		if rec.NormBoxes[i] != box {
			t.Errorf("NormBoxes[%d] = %v, want ligature box", i, rec.NormBoxes[i])
		}
	}
}

func TestZeroWidthFiltering(t *testing.T) {
	page := &RawPage{
		Spans: []RawSpan{{
			// soft hyphen and zero-width joiner must not appear in
			// the normalized view
			Text: "a­b‍c",
		}},
	}
	records := Extract(page)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]

	if rec.Normalized != "abc" {
		t.Errorf("normalized = %q, want %q", rec.Normalized, "abc")
	}
	if len(rec.CharBoxes) != 5 {
		t.Errorf("raw boxes = %d, want 5", len(rec.CharBoxes))
	}
	wantRaw := []int{0, 2, 4}
	if diff := cmp.Diff(wantRaw, rec.NormToRaw); diff != "" {
		t.Errorf("NormToRaw (-want +got):\n%s", diff)
	}
}

func TestGraphemeClusters(t *testing.T) {
	page := &RawPage{
		Spans: []RawSpan{{
			Text: "éab", // e + combining acute, then "ab"
		}},
	}
	rec := Extract(page)[0]

	want := [][2]int{{0, 2}, {2, 3}, {3, 4}}
	if diff := cmp.Diff(want, rec.Graphemes); diff != "" {
		t.Errorf("graphemes (-want +got):\n%s", diff)
	}

	// clusters tile the normalized text
	pos := 0
	for _, g := range rec.Graphemes {
		if g[0] != pos || g[1] <= g[0] {
			t.Fatalf("clusters do not tile: %v", rec.Graphemes)
		}
		pos = g[1]
	}
	if pos != rec.NumChars() {
		t.Errorf("clusters end at %d, want %d", pos, rec.NumChars())
	}
}

func TestDirectionDefault(t *testing.T) {
	rec := Extract(&RawPage{Spans: []RawSpan{{Text: "x"}}})[0]
	if rec.Dir != (vec.Vec2{X: 1}) {
		t.Errorf("default direction = %v, want (1,0)", rec.Dir)
	}

	rec = Extract(&RawPage{Spans: []RawSpan{{Text: "x", Dir: vec.Vec2{X: 0, Y: -2}}}})[0]
	if rec.Dir != (vec.Vec2{X: 0, Y: -1}) {
		t.Errorf("direction = %v, want (0,-1)", rec.Dir)
	}
}

func TestMissingCharGeometry(t *testing.T) {
	box := rect.Rect{LLx: 5, LLy: 5, URx: 50, URy: 15}
	rec := Extract(&RawPage{Spans: []RawSpan{{Text: "hi", Box: box}}})[0]
	for i, b := range rec.CharBoxes {
		if b != box {
			t.Errorf("CharBoxes[%d] = %v, want span box", i, b)
		}
	}
}
