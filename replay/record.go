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

package replay

import (
	"strings"

	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/pdfpatch/contentstream"
)

// Fragment is one decoded string item of a text-show operand.  A plain Tj
// operand yields a single fragment; a TJ array yields one fragment per
// string element.
type Fragment struct {
	// ArgIndex is the element's position in the TJ array operand,
	// or -1 for non-array show operators.
	ArgIndex int

	// Raw holds the operand bytes as stored in the content stream.
	Raw []byte

	// Kind is the notation the string was written in.
	Kind contentstream.StringKind

	// Text is the decoded text.
	Text string

	// Adjust is the sum of the numeric kerning adjustments which precede
	// this fragment in the TJ array, in thousandths of text space units.
	Adjust float64
}

// Record is the immutable snapshot taken when one operator was executed.
// For text-show operators the snapshot reflects the state at the start of
// the show (after any line advance implied by ' or "), and TextMatrixAfter
// holds the text matrix after the resolved advance was applied.
type Record struct {
	// Index is the operator's position in the content stream.
	Index int

	Op contentstream.OpName

	// Depth is the graphics state nesting level (number of unmatched "q").
	Depth int

	// InText reports whether the operator appeared inside a BT/ET section.
	InText bool

	// Params is a value copy of the state when the operator executed.
	Params Params

	// Fragments holds the decoded show strings.  Empty for operators which
	// do not show text.
	Fragments []Fragment

	// TrailingAdjust is the sum of numeric kerning adjustments after the
	// last string in a TJ array, in thousandths of text space units.
	TrailingAdjust float64

	// TextMatrixAfter is the text matrix after the advance was applied.
	TextMatrixAfter matrix.Matrix

	// Advance is the operator's resolved advance in text space units.
	Advance float64

	// NaiveAdvance is the font-metric estimate of the advance.  When no
	// resolver is installed, Advance equals NaiveAdvance.
	NaiveAdvance float64

	// Resolved reports whether Advance came from an AdvanceResolver
	// rather than the naive estimate.
	Resolved bool

	// Warning is set when the resolved advance and the naive estimate
	// disagree by more than the tracker's tolerance.  The record is kept
	// either way.
	Warning string
}

// Text returns the concatenated decoded text of all fragments.
func (r *Record) Text() string {
	switch len(r.Fragments) {
	case 0:
		return ""
	case 1:
		return r.Fragments[0].Text
	}
	var sb strings.Builder
	for _, f := range r.Fragments {
		sb.WriteString(f.Text)
	}
	return sb.String()
}

// ShowsText reports whether the record belongs to a text-show operator with
// at least one decoded fragment.
func (r *Record) ShowsText() bool {
	return len(r.Fragments) > 0
}
