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

package maskfont

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math"

	"seehuhn.de/go/postscript/funit"

	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/glyf"
	"seehuhn.de/go/sfnt/glyph"
)

// GlyphLookupError reports a character which is not covered by the baseline
// font's character map.
type GlyphLookupError struct {
	Rune rune
	Font string
}

func (e *GlyphLookupError) Error() string {
	return fmt.Sprintf("font %q has no glyph for %q", e.Font, e.Rune)
}

// Result describes one derivative font written by the builder.
type Result struct {
	Position Position

	// Data is the TrueType font file.
	Data []byte

	// Advance is the hidden character's new advance width, in font units.
	Advance funit.Int16

	// FromCache reports whether the font came from the cache.
	FromCache bool
}

// Builder synthesizes derivative fonts from a baseline TrueType font.
type Builder struct {
	// Base is the baseline font.  It is never modified.
	Base *sfnt.Font

	// BaseName identifies the baseline font in cache keys, typically the
	// font file name.
	BaseName string

	// Cache, if non-nil, is consulted before building and updated after.
	Cache Cache
}

// Widths returns a WidthFunc backed by the baseline font's horizontal
// metrics, for use with [Chunk].  Characters missing from the character map
// are given a half-em default; the builder reports them as hard errors
// later.
func (b *Builder) Widths() (WidthFunc, error) {
	sub, err := b.Base.CMapTable.GetBest()
	if err != nil {
		return nil, err
	}
	return func(r rune) float64 {
		gid := sub.Lookup(r)
		if gid == 0 {
			return 0.5
		}
		return b.Base.GlyphWidthPDF(gid) / 1000
	}, nil
}

// Build creates the derivative font for one position.  Positions which do
// not require a font return a nil result.
func (b *Builder) Build(pos Position) (*Result, error) {
	if !pos.RequiresFont {
		return nil, nil
	}
	if !b.Base.IsGlyf() {
		return nil, fmt.Errorf("baseline font has no glyf outlines")
	}

	key := b.cacheKey(pos)
	if b.Cache != nil {
		if data, ok := b.Cache.Get(key); ok {
			return &Result{
				Position:  pos,
				Data:      data,
				Advance:   funit.Int16(b.advanceFor(pos)),
				FromCache: true,
			}, nil
		}
	}

	font, advance, err := b.derive(pos)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	_, err = font.WriteTrueTypePDF(&buf)
	if err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if b.Cache != nil {
		if err := b.Cache.Put(key, data); err != nil {
			return nil, err
		}
	}

	return &Result{Position: pos, Data: data, Advance: advance}, nil
}

// BuildPlan builds every position of a plan.  Per-character failures do not
// stop the remaining positions; they are returned alongside the successful
// results.
func (b *Builder) BuildPlan(plan *Plan) ([]*Result, []error) {
	var results []*Result
	var errs []error
	for _, pos := range plan.Positions {
		res, err := b.Build(pos)
		if err != nil {
			errs = append(errs, fmt.Errorf("position %d: %w", pos.Index, err))
			continue
		}
		if res != nil {
			results = append(results, res)
		}
	}
	return results, errs
}

func (b *Builder) cacheKey(pos Position) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%c\x00%s\x00%d",
		b.BaseName, pos.Hidden, pos.VisualText, b.advanceFor(pos))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// advanceFor computes the position's advance in font units.  The sum is
// carried in int so that wide visual text cannot wrap around; [derive]
// rejects totals which do not fit the hmtx entry.
func (b *Builder) advanceFor(pos Position) int {
	if pos.ZeroWidth {
		return 0
	}
	outlines, ok := b.Base.Outlines.(*glyf.Outlines)
	if !ok {
		return 0
	}
	sub, err := b.Base.CMapTable.GetBest()
	if err != nil {
		return 0
	}
	total := 0
	for _, r := range pos.VisualText {
		gid := sub.Lookup(r)
		if int(gid) < len(outlines.Widths) {
			total += int(outlines.Widths[gid])
		}
	}
	return total
}

// derive clones the baseline font and reassigns the hidden character's
// glyph to a composite of the visual text's glyphs.
func (b *Builder) derive(pos Position) (*sfnt.Font, funit.Int16, error) {
	sub, err := b.Base.CMapTable.GetBest()
	if err != nil {
		return nil, 0, err
	}
	hiddenGID := sub.Lookup(pos.Hidden)
	if hiddenGID == 0 {
		return nil, 0, &GlyphLookupError{Rune: pos.Hidden, Font: b.BaseName}
	}

	orig := b.Base.Outlines.(*glyf.Outlines)
	glyphs := make(glyf.Glyphs, len(orig.Glyphs), len(orig.Glyphs)+1)
	copy(glyphs, orig.Glyphs)
	widths := make([]funit.Int16, len(orig.Widths), len(orig.Widths)+1)
	copy(widths, orig.Widths)
	names := orig.Names

	font := b.Base.Clone()

	if pos.ZeroWidth {
		glyphs[hiddenGID] = nil
		widths[hiddenGID] = 0
		font.Outlines = &glyf.Outlines{
			Glyphs: glyphs,
			Widths: widths,
			Names:  names,
			Tables: orig.Tables,
			Maxp:   orig.Maxp,
		}
		return font, 0, nil
	}

	var components []glyf.GlyphComponent
	var bbox funit.Rect16
	haveBBox := false
	advance := 0 // int: the running total must not wrap before the range check
	for _, r := range pos.VisualText {
		gid := sub.Lookup(r)
		if gid == 0 {
			return nil, 0, &GlyphLookupError{Rune: r, Font: b.BaseName}
		}
		if gid == hiddenGID {
			// the composite must not reference the glyph slot it
			// replaces, so keep a copy of the original under a new ID
			gid = glyph.ID(len(glyphs))
			glyphs = append(glyphs, orig.Glyphs[hiddenGID])
			widths = append(widths, orig.Widths[hiddenGID])
			if names != nil {
				names = append(names[:len(names):len(names)], "hidden.orig")
			}
		}

		dx := int16(advance)
		if g := glyphs[gid]; g != nil {
			bbox = extendRect(bbox, g.Rect16, dx, haveBBox)
			haveBBox = true
		}
		components = append(components, glyf.GlyphComponent{
			Flags:      0x0003 | 0x0020, // words, xy values, more components
			GlyphIndex: gid,
			Data:       componentArgs(dx, 0),
		})
		advance += int(widths[gid])
		if advance > math.MaxInt16 {
			return nil, 0, fmt.Errorf("visual text %q is too wide for one glyph (%d font units)",
				pos.VisualText, advance)
		}
	}
	if len(components) > 0 {
		components[len(components)-1].Flags &^= 0x0020
	}

	glyphs[hiddenGID] = &glyf.Glyph{
		Rect16: bbox,
		Data: glyf.CompositeGlyph{
			Components: components,
		},
	}
	widths[hiddenGID] = funit.Int16(advance)

	font.Outlines = &glyf.Outlines{
		Glyphs: glyphs,
		Widths: widths,
		Names:  names,
		Tables: orig.Tables,
		Maxp:   orig.Maxp,
	}
	return font, funit.Int16(advance), nil
}

// componentArgs encodes the ARG_1_AND_2_ARE_WORDS form of a component
// offset.
func componentArgs(dx, dy int16) []byte {
	return []byte{
		byte(dx >> 8), byte(dx),
		byte(dy >> 8), byte(dy),
	}
}

func extendRect(acc, r funit.Rect16, dx int16, haveAcc bool) funit.Rect16 {
	shifted := funit.Rect16{
		LLx: r.LLx + funit.Int16(dx),
		LLy: r.LLy,
		URx: r.URx + funit.Int16(dx),
		URy: r.URy,
	}
	if !haveAcc {
		return shifted
	}
	if shifted.LLx < acc.LLx {
		acc.LLx = shifted.LLx
	}
	if shifted.LLy < acc.LLy {
		acc.LLy = shifted.LLy
	}
	if shifted.URx > acc.URx {
		acc.URx = shifted.URx
	}
	if shifted.URy > acc.URy {
		acc.URy = shifted.URy
	}
	return acc
}
