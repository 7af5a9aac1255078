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
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"

	"seehuhn.de/go/pdfpatch/contentstream"
)

// AdvanceResolver supplies the advance of a text-show operator, in text
// space units.  The second return value reports whether an advance could be
// determined; on false the tracker falls back to the naive estimate.
//
// Resolvers are typically built from a span alignment, so that the second
// tracker pass places operators using measured page geometry instead of
// font-metric guesses.
type AdvanceResolver func(rec *Record) (float64, bool)

// DefaultTolerance is the drift threshold above which a resolved advance
// which disagrees with the naive estimate is flagged on the record.
// The value is in text space units and deliberately not scaled by font size;
// callers with different needs set [Tracker.Tolerance] themselves.
const DefaultTolerance = 0.5

// Tracker replays a content stream and produces one [Record] per operator.
//
// A Tracker is single-use per call to [Tracker.Run] but carries no state
// between runs, so one Tracker may be reused for several pages in sequence.
type Tracker struct {
	// Decoder converts show-operand bytes to text.
	// If nil, [SimpleDecoder] is used.
	Decoder Decoder

	// Resolver, if non-nil, supplies measured advances for text-show
	// operators (the second pass of the two-pass scheme).
	Resolver AdvanceResolver

	// Tolerance is the drift threshold for warning about resolved
	// advances.  Zero means [DefaultTolerance].
	Tolerance float64
}

// Run replays the stream and returns the per-operator records.
//
// Malformed operand lists never abort the replay: missing operands are
// zero-padded, excess operands are ignored.
func (t *Tracker) Run(stream contentstream.Stream) []*Record {
	dec := t.Decoder
	if dec == nil {
		dec = SimpleDecoder{}
	}
	tol := t.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	state := newParams()
	var stack []Params
	inText := false

	records := make([]*Record, 0, len(stream))
	for i, op := range stream {
		num := func(j int) float64 {
			// missing operands read as zero
			if j >= len(op.Args) {
				return 0
			}
			x, _ := getNumber(op.Args[j])
			return x
		}

		rec := &Record{
			Index:  i,
			Op:     op.Name,
			Depth:  len(stack),
			InText: inText,
		}
		isShow := false

		switch op.Name {
		case contentstream.OpPushGraphicsState:
			stack = append(stack, state)
			rec.Depth = len(stack)

		case contentstream.OpPopGraphicsState:
			if len(stack) > 0 {
				state = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			// a restore always leaves any text object
			inText = false
			rec.Depth = len(stack)
			rec.InText = false

		case contentstream.OpTransform:
			m := matrix.Matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
			state.CTM = m.Mul(state.CTM)

		case contentstream.OpTextBegin:
			state.resetTextDefaults()
			inText = true
			rec.InText = true

		case contentstream.OpTextEnd:
			inText = false

		case contentstream.OpTextSetCharacterSpacing:
			state.CharSpacing = num(0)

		case contentstream.OpTextSetWordSpacing:
			state.WordSpacing = num(0)

		case contentstream.OpTextSetHorizontalScaling:
			state.HorizontalScaling = num(0) / 100

		case contentstream.OpTextSetLeading:
			state.Leading = num(0)

		case contentstream.OpTextSetFont:
			if len(op.Args) > 0 {
				if name, ok := op.Args[0].(pdf.Name); ok {
					state.FontName = name
				}
			}
			state.FontSize = num(1)

		case contentstream.OpTextSetRenderingMode:
			state.RenderingMode = int(num(0))

		case contentstream.OpTextSetRise:
			state.TextRise = num(0)

		case contentstream.OpTextMoveOffset:
			state.TextLineMatrix = matrix.Translate(num(0), num(1)).Mul(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix

		case contentstream.OpTextMoveOffsetSetLeading:
			state.Leading = -num(1)
			state.TextLineMatrix = matrix.Translate(num(0), num(1)).Mul(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix

		case contentstream.OpTextSetMatrix:
			m := matrix.Matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
			state.TextMatrix = m
			state.TextLineMatrix = m

		case contentstream.OpTextNextLine:
			state.TextLineMatrix = matrix.Translate(0, -state.Leading).Mul(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix

		case contentstream.OpTextShow:
			isShow = true
			t.show(rec, &state, dec, tol, op.Args, false, op.StringKinds)

		case contentstream.OpTextShowMoveNextLine:
			isShow = true
			state.TextLineMatrix = matrix.Translate(0, -state.Leading).Mul(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix
			t.show(rec, &state, dec, tol, op.Args, false, op.StringKinds)

		case contentstream.OpTextShowMoveNextLineSetSpacing:
			isShow = true
			state.WordSpacing = num(0)
			state.CharSpacing = num(1)
			state.TextLineMatrix = matrix.Translate(0, -state.Leading).Mul(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix
			var items []pdf.Object
			if len(op.Args) >= 3 {
				items = op.Args[2:]
			}
			t.show(rec, &state, dec, tol, items, false, op.StringKinds)

		case contentstream.OpTextShowArray:
			isShow = true
			var arr pdf.Array
			if len(op.Args) > 0 {
				arr, _ = op.Args[0].(pdf.Array)
			}
			t.show(rec, &state, dec, tol, arr, true, op.StringKinds)
		}

		if !isShow {
			rec.Params = state
		}
		records = append(records, rec)
	}
	return records
}

// show decodes the operand items, snapshots the state, resolves the advance
// and moves the text matrix.
func (t *Tracker) show(rec *Record, state *Params, dec Decoder, tol float64, items []pdf.Object, isArray bool, kinds []contentstream.StringKind) {
	var adjust float64
	nextKind := 0
	for i, item := range items {
		switch item := item.(type) {
		case pdf.String:
			argIndex := -1
			if isArray {
				argIndex = i
			}
			frag := Fragment{
				ArgIndex: argIndex,
				Raw:      []byte(item),
				Text:     dec.Decode([]byte(item)),
				Adjust:   adjust,
			}
			if nextKind < len(kinds) {
				frag.Kind = kinds[nextKind]
			}
			nextKind++
			adjust = 0
			rec.Fragments = append(rec.Fragments, frag)
		default:
			if d, ok := getNumber(item); ok {
				adjust += d
			}
		}
	}
	rec.TrailingAdjust = adjust
	if !isArray && len(rec.Fragments) == 0 {
		// zero-pad a missing string operand to an empty show
		rec.Fragments = append(rec.Fragments, Fragment{ArgIndex: -1, Text: ""})
	}

	rec.Params = *state

	rec.NaiveAdvance = naiveAdvance(rec, state)
	rec.Advance = rec.NaiveAdvance
	if t.Resolver != nil {
		if adv, ok := t.Resolver(rec); ok {
			rec.Advance = adv
			rec.Resolved = true
			if drift := math.Abs(adv - rec.NaiveAdvance); drift > tol {
				rec.Warning = "advance drift exceeds tolerance"
			}
		}
	}

	state.TextMatrix = matrix.Translate(rec.Advance, 0).Mul(state.TextMatrix)
	rec.TextMatrixAfter = state.TextMatrix
}

// naiveAdvance estimates a show operator's advance from the state alone,
// assuming an average glyph width of half the font size.
func naiveAdvance(rec *Record, p *Params) float64 {
	var n, spaces int
	var adjustments float64
	for _, f := range rec.Fragments {
		for _, r := range f.Text {
			n++
			if r == ' ' {
				spaces++
			}
		}
		adjustments += f.Adjust
	}
	adjustments += rec.TrailingAdjust
	if n == 0 && adjustments == 0 {
		return 0
	}

	scale := p.HorizontalScaling
	adv := float64(n) * p.FontSize * 0.5 * scale
	if n > 1 {
		adv += p.CharSpacing * float64(n-1) * scale
	}
	adv += p.WordSpacing * float64(spaces) * scale
	adv -= adjustments / 1000 * p.FontSize * scale
	return adv
}

func getNumber(x pdf.Object) (float64, bool) {
	switch x := x.(type) {
	case pdf.Real:
		return float64(x), true
	case pdf.Integer:
		return float64(x), true
	case pdf.Number:
		return float64(x), true
	default:
		return 0, false
	}
}
