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
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"seehuhn.de/go/pdfpatch/replay"
)

// Metrics describes the measured extent of an operator's aligned glyphs
// along the writing direction, in page units.
type Metrics struct {
	// Dir is the direction the extent was projected onto.
	Dir vec.Vec2

	// Start and End are the extreme projections of the aligned
	// character boxes.
	Start, End float64

	// Advance is the sum of the slice extents plus any positive gaps
	// between consecutive slices.  Overlaps between slices are clamped
	// to zero, not subtracted.
	Advance float64
}

// Measure projects the character boxes of the aligned slices onto the first
// slice's writing direction.  The second return value is false when the
// slices carry no usable geometry.
func Measure(slices []Slice) (Metrics, bool) {
	if len(slices) == 0 {
		return Metrics{}, false
	}
	dir := slices[0].Record.Dir

	var m Metrics
	m.Dir = dir
	first := true
	prevMax := 0.0
	for _, s := range slices {
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for i := s.Start; i < s.End && i < len(s.Record.NormBoxes); i++ {
			blo, bhi := project(s.Record.NormBoxes[i], dir)
			lo = math.Min(lo, blo)
			hi = math.Max(hi, bhi)
		}
		if lo > hi {
			continue
		}

		if first {
			m.Start = lo
			m.End = hi
			first = false
		} else {
			// positive gaps are genuine inter-glyph space;
			// overlaps clamp to zero
			if gap := lo - prevMax; gap > 0 {
				m.Advance += gap
			}
			m.Start = math.Min(m.Start, lo)
			m.End = math.Max(m.End, hi)
		}
		m.Advance += hi - lo
		prevMax = hi
	}
	if first {
		return Metrics{}, false
	}
	return m, true
}

// project returns the minimum and maximum projection of the box corners
// onto dir.
func project(b rect.Rect, dir vec.Vec2) (float64, float64) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, x := range []float64{b.LLx, b.URx} {
		for _, y := range []float64{b.LLy, b.URy} {
			p := x*dir.X + y*dir.Y
			lo = math.Min(lo, p)
			hi = math.Max(hi, p)
		}
	}
	return lo, hi
}

// Resolver builds a [replay.AdvanceResolver] from an alignment, for the
// second tracker pass.  Measured page-unit advances are converted to text
// space using the record's combined text and transformation matrix.
func Resolver(al *Alignment) replay.AdvanceResolver {
	return func(rec *replay.Record) (float64, bool) {
		slices, ok := al.Slices[rec.Index]
		if !ok {
			return 0, false
		}
		m, ok := Measure(slices)
		if !ok {
			return 0, false
		}

		// length of the x axis image under text matrix and CTM
		trm := rec.Params.TextMatrix.Mul(rec.Params.CTM)
		scale := math.Hypot(trm[0], trm[1])
		if scale == 0 {
			return 0, false
		}
		return m.Advance / scale, true
	}
}
