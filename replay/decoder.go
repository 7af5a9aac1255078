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
	"fmt"
)

// Decoder converts between the byte strings stored in text-show operands and
// Unicode text.  Implementations are normally derived from the font's
// encoding or ToUnicode CMap by the caller; [SimpleDecoder] covers unencoded
// single-byte fonts.
type Decoder interface {
	// Decode maps show-operand bytes to the text they render.
	Decode(raw []byte) string

	// Encode maps replacement text back to show-operand bytes.
	// Text which cannot be represented is an error.
	Encode(text string) ([]byte, error)
}

// SimpleDecoder treats show strings as Latin-1: each byte is one character.
// This matches unencoded single-byte simple fonts and is the default used by
// the command line tool when no encoding information is available.
type SimpleDecoder struct{}

// Decode implements the [Decoder] interface.
func (SimpleDecoder) Decode(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// Encode implements the [Decoder] interface.
func (SimpleDecoder) Encode(text string) ([]byte, error) {
	var buf []byte
	for _, r := range text {
		if r > 0xFF {
			return nil, fmt.Errorf("cannot encode %q as a single byte", r)
		}
		buf = append(buf, byte(r))
	}
	return buf, nil
}
