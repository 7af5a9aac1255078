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

package contentstream

import (
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"seehuhn.de/go/pdf"
)

// Write writes the content stream to w in PDF content stream format.
//
// String operands are emitted in the notation recorded in each operator's
// StringKinds field, so that operators which were read by [ReadStream] and
// never modified round-trip in their original form.
func (s Stream) Write(w io.Writer) error {
	for _, op := range s {
		if err := WriteOperator(w, op); err != nil {
			return err
		}
	}
	return nil
}

// WriteOperator writes a single operator, including its arguments and a
// trailing newline.
func WriteOperator(w io.Writer, op Operator) error {
	// handle pseudo-operators
	switch op.Name {
	case OpRawContent:
		// write raw content (typically comments)
		if len(op.Args) > 0 {
			if str, ok := op.Args[0].(pdf.String); ok {
				if _, err := w.Write([]byte(str)); err != nil {
					return err
				}
				if _, err := w.Write([]byte("\n")); err != nil {
					return err
				}
			}
		}
		return nil
	case OpInlineImage:
		return writeInlineImage(w, op)
	}

	kinds := kindCursor{kinds: op.StringKinds}

	// write arguments
	for _, arg := range op.Args {
		if err := writeObject(w, arg, &kinds); err != nil {
			return err
		}
		if _, err := w.Write([]byte(" ")); err != nil {
			return err
		}
	}

	// write operator
	if _, err := w.Write([]byte(op.Name)); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}

func writeInlineImage(w io.Writer, op Operator) error {
	if len(op.Args) < 2 {
		return nil
	}
	dict, _ := op.Args[0].(pdf.Dict)
	data, _ := op.Args[1].(pdf.String)

	if _, err := w.Write([]byte("BI\n")); err != nil {
		return err
	}
	// sort keys for deterministic output
	keys := maps.Keys(dict)
	slices.Sort(keys)
	for _, key := range keys {
		if err := pdf.Format(w, pdf.OptContentStream, key); err != nil {
			return err
		}
		if _, err := w.Write([]byte(" ")); err != nil {
			return err
		}
		if err := writeObject(w, dict[key], nil); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte("ID\n")); err != nil {
		return err
	}
	if _, err := w.Write([]byte(data)); err != nil {
		return err
	}
	_, err := w.Write([]byte("\nEI\n"))
	return err
}

// kindCursor hands out the recorded notation for each string operand in
// turn.  Once the recorded kinds are exhausted (for example after a rewrite
// appended extra strings), literal notation is used.
type kindCursor struct {
	kinds []StringKind
	next  int
}

func (c *kindCursor) take() StringKind {
	if c == nil || c.next >= len(c.kinds) {
		return KindLiteral
	}
	k := c.kinds[c.next]
	c.next++
	return k
}

// writeObject serializes a single operand.  Container objects are walked
// recursively so that strings nested inside array operands (as in the TJ
// operator) use their recorded notation.
func writeObject(w io.Writer, obj pdf.Object, kinds *kindCursor) error {
	switch x := obj.(type) {
	case nil:
		_, err := w.Write([]byte("null"))
		return err
	case pdf.String:
		switch kinds.take() {
		case KindHex:
			return writeHexString(w, x)
		default:
			return writeLiteralString(w, x)
		}
	case pdf.Array:
		if _, err := w.Write([]byte("[")); err != nil {
			return err
		}
		for i, elem := range x {
			if i > 0 {
				if _, err := w.Write([]byte(" ")); err != nil {
					return err
				}
			}
			if err := writeObject(w, elem, kinds); err != nil {
				return err
			}
		}
		_, err := w.Write([]byte("]"))
		return err
	case pdf.Dict:
		if _, err := w.Write([]byte("<<")); err != nil {
			return err
		}
		keys := maps.Keys(x)
		slices.Sort(keys)
		for _, key := range keys {
			if err := pdf.Format(w, pdf.OptContentStream, key); err != nil {
				return err
			}
			if _, err := w.Write([]byte(" ")); err != nil {
				return err
			}
			if err := writeObject(w, x[key], kinds); err != nil {
				return err
			}
		}
		_, err := w.Write([]byte(">>"))
		return err
	default:
		return pdf.Format(w, pdf.OptContentStream, x)
	}
}

const hexChars = "0123456789ABCDEF"

func writeHexString(w io.Writer, s pdf.String) error {
	buf := make([]byte, 0, 2*len(s)+2)
	buf = append(buf, '<')
	for _, b := range s {
		buf = append(buf, hexChars[b>>4], hexChars[b&0x0F])
	}
	buf = append(buf, '>')
	_, err := w.Write(buf)
	return err
}

func writeLiteralString(w io.Writer, s pdf.String) error {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '(')
	for _, b := range s {
		switch b {
		case '(', ')', '\\':
			buf = append(buf, '\\', b)
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if b < 32 || b >= 127 {
				buf = append(buf, fmt.Sprintf("\\%03o", b)...)
			} else {
				buf = append(buf, b)
			}
		}
	}
	buf = append(buf, ')')
	_, err := w.Write(buf)
	return err
}
