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
	"fmt"

	"seehuhn.de/go/pdf"

	"seehuhn.de/go/pdfpatch/contentstream"
	"seehuhn.de/go/pdfpatch/plan"
	"seehuhn.de/go/pdfpatch/replay"
)

// Apply maps a replacement plan back onto a content stream.  Only the
// literals carrying match segments are rewritten; every other operator,
// including the kerning numbers of touched TJ arrays, is copied through
// unchanged.  Array slots flagged for isolation are removed.
func Apply(stream contentstream.Stream, p *plan.Plan, dec replay.Decoder) (contentstream.Stream, error) {
	byOp := make(map[int][]plan.Segment)
	for _, seg := range p.Segments {
		if seg.Role == plan.RoleMatch {
			byOp[seg.OpIndex] = append(byOp[seg.OpIndex], seg)
		}
	}

	out := make(contentstream.Stream, 0, len(stream))
	for i, op := range stream {
		segs := byOp[i]
		if len(segs) == 0 {
			out = append(out, op)
			continue
		}
		patched, err := patchOperator(op, segs, p, dec)
		if err != nil {
			return nil, fmt.Errorf("operator %d (%s): %w", i, op.Name, err)
		}
		out = append(out, patched)
	}
	return out, nil
}

// literal is one string operand together with its rune range in the
// operator's concatenated text.
type literal struct {
	argIndex   int // TJ slot, or -1
	start, end int
	text       []rune
}

func stringLiterals(op contentstream.Operator, dec replay.Decoder) ([]literal, error) {
	var lits []literal
	pos := 0
	add := func(argIndex int, raw pdf.String) {
		text := []rune(dec.Decode([]byte(raw)))
		lits = append(lits, literal{
			argIndex: argIndex,
			start:    pos,
			end:      pos + len(text),
			text:     text,
		})
		pos += len(text)
	}

	switch op.Name {
	case contentstream.OpTextShow, contentstream.OpTextShowMoveNextLine:
		if len(op.Args) > 0 {
			if s, ok := op.Args[0].(pdf.String); ok {
				add(-1, s)
			}
		}
	case contentstream.OpTextShowMoveNextLineSetSpacing:
		if len(op.Args) > 2 {
			if s, ok := op.Args[2].(pdf.String); ok {
				add(-1, s)
			}
		}
	case contentstream.OpTextShowArray:
		if len(op.Args) > 0 {
			if arr, ok := op.Args[0].(pdf.Array); ok {
				for j, item := range arr {
					if s, ok := item.(pdf.String); ok {
						add(j, s)
					}
				}
			}
		}
	default:
		return nil, fmt.Errorf("not a text-showing operator")
	}
	return lits, nil
}

func patchOperator(op contentstream.Operator, segs []plan.Segment, p *plan.Plan, dec replay.Decoder) (contentstream.Operator, error) {
	lits, err := stringLiterals(op, dec)
	if err != nil {
		return contentstream.Operator{}, err
	}

	// rebuild each literal's text, and note slots to drop
	newText := make(map[int][]rune) // index into lits
	drop := make(map[int]bool)      // TJ slot index
	for li, lit := range lits {
		segsHere := overlapping(segs, lit.start, lit.end)
		if len(segsHere) == 0 {
			continue
		}
		text := append([]rune(nil), lit.text...)
		// apply back to front so earlier offsets stay valid
		for k := len(segsHere) - 1; k >= 0; k-- {
			seg := segsHere[k]
			s := seg.Start - lit.start
			e := seg.End - lit.start
			if s < 0 || e > len(text) || s > e {
				return contentstream.Operator{}, fmt.Errorf("segment [%d,%d) outside literal", seg.Start, seg.End)
			}
			repl := []rune(p.PlannedText(seg))
			text = append(text[:s], append(repl, text[e:]...)...)
		}
		newText[li] = text
		if len(text) == 0 && lit.argIndex >= 0 && requiresIsolation(segsHere) {
			drop[lit.argIndex] = true
		}
	}
	if len(newText) == 0 {
		return op, nil
	}

	patched := contentstream.Operator{Name: op.Name}
	patched.Args = append([]pdf.Object(nil), op.Args...)
	patched.StringKinds = append([]contentstream.StringKind(nil), op.StringKinds...)

	encode := func(text []rune) (pdf.String, error) {
		b, err := dec.Encode(string(text))
		if err != nil {
			return nil, err
		}
		return pdf.String(b), nil
	}

	switch op.Name {
	case contentstream.OpTextShow, contentstream.OpTextShowMoveNextLine, contentstream.OpTextShowMoveNextLineSetSpacing:
		argIdx := 0
		if op.Name == contentstream.OpTextShowMoveNextLineSetSpacing {
			argIdx = 2
		}
		if text, ok := newText[0]; ok {
			s, err := encode(text)
			if err != nil {
				return contentstream.Operator{}, err
			}
			patched.Args[argIdx] = s
		}
	case contentstream.OpTextShowArray:
		arr := op.Args[0].(pdf.Array)
		newArr := make(pdf.Array, 0, len(arr))
		var kinds []contentstream.StringKind
		litIdx := 0
		kindIdx := 0
		for j, item := range arr {
			_, isString := item.(pdf.String)
			if !isString {
				newArr = append(newArr, item)
				continue
			}
			kind := contentstream.KindLiteral
			if kindIdx < len(op.StringKinds) {
				kind = op.StringKinds[kindIdx]
			}
			kindIdx++
			if drop[j] {
				litIdx++
				continue
			}
			if text, ok := newText[litIdx]; ok {
				s, err := encode(text)
				if err != nil {
					return contentstream.Operator{}, err
				}
				item = s
			}
			litIdx++
			newArr = append(newArr, item)
			kinds = append(kinds, kind)
		}
		patched.Args[0] = newArr
		patched.StringKinds = kinds
	}

	return patched, nil
}

func overlapping(segs []plan.Segment, start, end int) []plan.Segment {
	var out []plan.Segment
	for _, seg := range segs {
		if seg.Start < end && seg.End > start {
			out = append(out, seg)
		}
	}
	return out
}

func requiresIsolation(segs []plan.Segment) bool {
	for _, seg := range segs {
		if seg.RequiresIsolation {
			return true
		}
	}
	return false
}
