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

package rewrite

import (
	"errors"
	"strings"
	"testing"

	"seehuhn.de/go/pdf"

	"seehuhn.de/go/pdfpatch/plan"
	"seehuhn.de/go/pdfpatch/span"
)

func testSpan(text string) *span.Record {
	return &span.Record{
		Text:       text,
		Normalized: text,
		Font:       "Helvetica",
		Size:       12,
	}
}

func TestAccumulatorMerge(t *testing.T) {
	acc := &Accumulator{Span: testSpan("Mercury is small")}
	acc.AddReplacement(0, 7, "Mercury", "Venus", plan.Segment{})
	acc.AddReplacement(11, 16, "small", "tiny", plan.Segment{})

	entry, err := acc.BuildEntry(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.Start != 0 || entry.End != 16 {
		t.Errorf("range: got [%d,%d), want [0,16)", entry.Start, entry.End)
	}
	if entry.Text != "Venus is tiny" {
		t.Errorf("text: got %q, want %q", entry.Text, "Venus is tiny")
	}
	if entry.Scale != 1 || entry.Overlay {
		t.Errorf("got scale %g, overlay %t", entry.Scale, entry.Overlay)
	}
	if entry.PageNo != 3 {
		t.Errorf("page: got %d, want 3", entry.PageNo)
	}
}

func TestAccumulatorEmpty(t *testing.T) {
	acc := &Accumulator{Span: testSpan("hello")}
	entry, err := acc.BuildEntry(0, nil)
	if entry != nil || err != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", entry, err)
	}
}

func TestAccumulatorValidation(t *testing.T) {
	acc := &Accumulator{Span: testSpan("Venus is bright.")}
	acc.AddReplacement(0, 7, "Mercury", "Mars", plan.Segment{})

	entry, err := acc.BuildEntry(1, nil)
	if entry != nil {
		t.Errorf("got entry %+v, want none", entry)
	}
	var failure *ValidationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("got error %v, want *ValidationFailure", err)
	}
	if failure.Expected != "Mercury" || failure.Observed != "Venus i" {
		t.Errorf("got expected %q, observed %q", failure.Expected, failure.Observed)
	}
	if !strings.Contains(failure.Error(), "Mercury") || !strings.Contains(failure.Error(), "Venus i") {
		t.Errorf("message %q does not cite both strings", failure.Error())
	}
	if len(acc.Failures()) != 1 {
		t.Errorf("got %d recorded failures, want 1", len(acc.Failures()))
	}
}

func TestAccumulatorOverlap(t *testing.T) {
	acc := &Accumulator{Span: testSpan("abcdef")}
	acc.AddReplacement(0, 4, "abcd", "x", plan.Segment{})
	acc.AddReplacement(2, 6, "cdef", "y", plan.Segment{})

	entry, err := acc.BuildEntry(0, nil)
	if entry != nil || err == nil {
		t.Errorf("got (%+v, %v), want failure", entry, err)
	}
}

func TestAccumulatorScale(t *testing.T) {
	measure := func(text string, font pdf.Name, size float64) float64 {
		return float64(len([]rune(text))) * 10
	}

	// twice as wide: exactly at the default floor
	acc := &Accumulator{Span: testSpan("ab rest")}
	acc.AddReplacement(0, 2, "ab", "abcd", plan.Segment{})
	entry, err := acc.BuildEntry(0, measure)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Scale != 0.5 || entry.Overlay {
		t.Errorf("got scale %g, overlay %t, want 0.5, false", entry.Scale, entry.Overlay)
	}

	// narrower replacement needs no scaling
	acc = &Accumulator{Span: testSpan("abcd rest")}
	acc.AddReplacement(0, 4, "abcd", "ab", plan.Segment{})
	entry, err = acc.BuildEntry(0, measure)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Scale != 1 || entry.Overlay {
		t.Errorf("got scale %g, overlay %t, want 1, false", entry.Scale, entry.Overlay)
	}
}

func TestAccumulatorOverlayFallback(t *testing.T) {
	measure := func(text string, font pdf.Name, size float64) float64 {
		return float64(len([]rune(text))) * 10
	}
	acc := &Accumulator{Span: testSpan("ab tail")}
	acc.AddReplacement(0, 2, "ab", "abcdefgh", plan.Segment{})

	entry, err := acc.BuildEntry(0, measure)
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Overlay {
		t.Error("expected overlay fallback")
	}
	if entry.Scale != DefaultMinScale {
		t.Errorf("got scale %g, want the %g floor", entry.Scale, DefaultMinScale)
	}
}

func TestAccumulatorCustomFloor(t *testing.T) {
	measure := func(text string, font pdf.Name, size float64) float64 {
		return float64(len([]rune(text))) * 10
	}
	acc := &Accumulator{Span: testSpan("ab tail"), MinScale: 0.8}
	acc.AddReplacement(0, 2, "ab", "abc", plan.Segment{})

	entry, err := acc.BuildEntry(0, measure)
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Overlay || entry.Scale != 0.8 {
		t.Errorf("got scale %g, overlay %t, want 0.8, true", entry.Scale, entry.Overlay)
	}
}
