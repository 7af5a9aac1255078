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

// Package replay reconstructs the graphics and text state of a PDF content
// stream by replaying its operators, producing one immutable state snapshot
// per operator.
package replay

import (
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
)

// Params is the subset of the graphics state which affects text placement.
//
// Values are copied onto a stack on "q" and restored on "Q", so Params must
// stay a pure value type.
type Params struct {
	CTM            matrix.Matrix
	TextMatrix     matrix.Matrix
	TextLineMatrix matrix.Matrix

	FontName pdf.Name
	FontSize float64

	// CharSpacing and WordSpacing are the Tc and Tw parameters,
	// in unscaled text space units.
	CharSpacing float64
	WordSpacing float64

	// HorizontalScaling is the Tz parameter divided by 100,
	// so that the default is 1.
	HorizontalScaling float64

	Leading       float64
	TextRise      float64
	RenderingMode int
}

// newParams returns the state at the start of a content stream.
func newParams() Params {
	return Params{
		CTM:               matrix.Identity,
		TextMatrix:        matrix.Identity,
		TextLineMatrix:    matrix.Identity,
		HorizontalScaling: 1,
	}
}

// resetTextDefaults is applied on BT: the text and line matrices become the
// identity and the spacing parameters revert to their defaults.
func (p *Params) resetTextDefaults() {
	p.TextMatrix = matrix.Identity
	p.TextLineMatrix = matrix.Identity
	p.CharSpacing = 0
	p.WordSpacing = 0
}
