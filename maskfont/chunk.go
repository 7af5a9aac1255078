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

// Package maskfont builds derivative TrueType fonts in which a stored
// character renders as arbitrary visual text.  A chunk plan distributes the
// visual string over the hidden string's character positions; the builder
// then synthesizes one composite glyph per position.
package maskfont

import (
	"errors"
	"unicode"
)

// ErrEmptyHidden is returned when the hidden text is empty.
var ErrEmptyHidden = errors.New("empty hidden text")

// WidthFunc returns the advance width of a character's glyph, in em units.
type WidthFunc func(r rune) float64

// Position assigns a part of the visual text to one hidden character.
type Position struct {
	// Index is the hidden character's position in the hidden string.
	Index int

	// Hidden is the character stored in the text layer.
	Hidden rune

	// VisualText is what a reader sees at this position.
	VisualText string

	// ZeroWidth marks a position which renders nothing and advances by 0.
	ZeroWidth bool

	// RequiresFont reports whether a derivative font is needed to render
	// this position.  False means the hidden character already shows the
	// right glyph.
	RequiresFont bool
}

// Plan distributes a visual string over the hidden string's positions.
type Plan struct {
	Hidden    string
	Visual    string
	Positions []Position
}

// Chunk distributes visual over the characters of hidden.  The width
// function is used to keep the rendered width of the positions roughly
// uniform when the visual text is longer than the hidden text; nil means
// all characters count the same.
func Chunk(hidden, visual string, width WidthFunc) (*Plan, error) {
	hh := []rune(hidden)
	if len(hh) == 0 {
		return nil, ErrEmptyHidden
	}
	vv := []rune(visual)

	plan := &Plan{Hidden: hidden, Visual: visual}
	var assign func() [][]rune
	switch {
	case len(vv) == 0:
		assign = func() [][]rune { return make([][]rune, len(hh)) }
	case len(hh) >= len(vv):
		assign = func() [][]rune { return chunkOnePerSlot(hh, vv) }
	default:
		assign = func() [][]rune { return chunkProportional(hh, vv, width) }
	}

	for i, text := range assign() {
		pos := Position{
			Index:      i,
			Hidden:     hh[i],
			VisualText: string(text),
		}
		pos.ZeroWidth = len(text) == 0
		pos.RequiresFont = pos.ZeroWidth || pos.VisualText != string(hh[i])
		plan.Positions = append(plan.Positions, pos)
	}
	return plan, nil
}

// chunkOnePerSlot handles len(hidden) >= len(visual): each non-whitespace
// hidden character consumes one visual character.  Whitespace positions are
// fed from the whitespace skipped over in the visual string, so word breaks
// stay aligned.
func chunkOnePerSlot(hh, vv []rune) [][]rune {
	out := make([][]rune, len(hh))
	cursor := 0
	var pendingWS []rune
	for i, h := range hh {
		if unicode.IsSpace(h) {
			switch {
			case len(pendingWS) > 0:
				out[i] = pendingWS[:1]
				pendingWS = pendingWS[1:]
			case cursor < len(vv) && unicode.IsSpace(vv[cursor]):
				out[i] = vv[cursor : cursor+1]
				cursor++
			default:
				out[i] = []rune{' '}
			}
			continue
		}
		for cursor < len(vv) && unicode.IsSpace(vv[cursor]) {
			pendingWS = append(pendingWS, vv[cursor])
			cursor++
		}
		if cursor < len(vv) {
			out[i] = vv[cursor : cursor+1]
			cursor++
		}
	}
	return out
}

// chunkProportional handles len(visual) > len(hidden): each position
// greedily absorbs visual characters until its accumulated advance reaches
// the per-position target, always leaving at least one character for every
// later position.
func chunkProportional(hh, vv []rune, width WidthFunc) [][]rune {
	w := func(r rune) float64 { return 1 }
	if width != nil {
		w = width
	}

	total := 0.0
	for _, r := range vv {
		total += w(r)
	}
	target := total / float64(len(hh))

	out := make([][]rune, len(hh))
	cursor := 0
	for i := range hh {
		if i == len(hh)-1 {
			out[i] = vv[cursor:]
			break
		}
		slotsAfter := len(hh) - 1 - i
		takeLimit := len(vv) - cursor - slotsAfter
		acc := 0.0
		taken := 0
		for taken < takeLimit && (taken == 0 || acc < target) {
			acc += w(vv[cursor+taken])
			taken++
		}
		out[i] = vv[cursor : cursor+taken]
		cursor += taken
	}
	return out
}
