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

// Package plan locates a target substring in a page's decoded operator text
// and partitions the edit into per-operator, per-literal replacement
// segments.
package plan

import (
	"errors"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"

	"seehuhn.de/go/pdfpatch/align"
	"seehuhn.de/go/pdfpatch/contentstream"
)

// ErrTargetNotFound is returned when the target substring cannot be located
// in the page's decoded text, even after the whitespace-collapsed retry.
var ErrTargetNotFound = errors.New("target text not found on page")

// Role classifies a segment within its operator.
type Role int

const (
	// RolePrefix marks unmodified operator text before the match.
	RolePrefix Role = iota

	// RoleMatch marks text to be replaced.
	RoleMatch

	// RoleSuffix marks unmodified operator text after the match.
	RoleSuffix
)

func (r Role) String() string {
	switch r {
	case RolePrefix:
		return "prefix"
	case RoleMatch:
		return "match"
	case RoleSuffix:
		return "suffix"
	default:
		return "invalid"
	}
}

// Segment is one edit-bearing or flanking run inside one operator.
type Segment struct {
	// OpIndex is the operator's position in the content stream.
	OpIndex int

	Role Role

	// Start and End delimit the segment's [Start,End) character range in
	// the operator's decoded text.
	Start, End int

	// ArgIndex is the TJ array slot the segment lies in, or -1 for
	// non-array operators.  Match segments never cross array slots.
	// For prefix and suffix segments spanning several slots the value
	// is the slot of the segment's first character.
	ArgIndex int

	// Slices is the visual geometry of the segment's characters, when
	// the operator was aligned.
	Slices []align.Slice

	// Matrix is the text matrix at the start of the show.
	Matrix matrix.Matrix

	FontName pdf.Name
	FontSize float64

	// Width is the segment's share of the operator's advance, in text
	// space units.
	Width float64

	// Kind is the notation of the literal the segment lies in.
	Kind contentstream.StringKind

	// ReplStart and ReplEnd delimit the replacement characters allocated
	// to this segment.  Only meaningful for match segments.
	ReplStart, ReplEnd int

	// RequiresIsolation is set on a match segment which consumes an
	// entire array literal and received no replacement text: the
	// emission step must remove the array slot instead of leaving an
	// empty string literal behind.
	RequiresIsolation bool

	// ZeroLenMiddle flags a non-final match segment whose allocation
	// came out empty, for callers that want to audit such plans.
	ZeroLenMiddle bool
}

// Plan is the full edit description for one page.
type Plan struct {
	PageNo int

	// Original is the text being replaced, as decoded from the page.
	Original string

	// Replacement is the text to render instead.
	Replacement string

	// Segments is ordered by operator, then by offset.  The local
	// ranges of one operator's segments tile the operator's overlap
	// with the match.
	Segments []Segment
}

// MatchSegments returns the match segments in order.
func (p *Plan) MatchSegments() []Segment {
	var out []Segment
	for _, seg := range p.Segments {
		if seg.Role == RoleMatch {
			out = append(out, seg)
		}
	}
	return out
}

// PlannedText returns the replacement characters allocated to a match
// segment.
func (p *Plan) PlannedText(seg Segment) string {
	if seg.Role != RoleMatch {
		return ""
	}
	runes := []rune(p.Replacement)
	return string(runes[seg.ReplStart:seg.ReplEnd])
}
