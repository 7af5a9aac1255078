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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdf"
)

func TestReadStream(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Stream
	}{
		{
			name: "simple text",
			in:   "BT /F1 12 Tf (Hello) Tj ET",
			want: Stream{
				{Name: OpTextBegin},
				{Name: OpTextSetFont, Args: []pdf.Object{pdf.Name("F1"), pdf.Integer(12)}},
				{Name: OpTextShow, Args: []pdf.Object{pdf.String("Hello")}, StringKinds: []StringKind{KindLiteral}},
				{Name: OpTextEnd},
			},
		},
		{
			name: "hex string",
			in:   "<48656C6C6F> Tj",
			want: Stream{
				{Name: OpTextShow, Args: []pdf.Object{pdf.String("Hello")}, StringKinds: []StringKind{KindHex}},
			},
		},
		{
			name: "odd hex digits",
			in:   "<48656C6C6> Tj",
			want: Stream{
				{Name: OpTextShow, Args: []pdf.Object{pdf.String("Hell`")}, StringKinds: []StringKind{KindHex}},
			},
		},
		{
			name: "TJ array with mixed notation",
			in:   "[(A) -120 <42> (C)] TJ",
			want: Stream{
				{
					Name: OpTextShowArray,
					Args: []pdf.Object{pdf.Array{
						pdf.String("A"),
						pdf.Integer(-120),
						pdf.String("B"),
						pdf.String("C"),
					}},
					StringKinds: []StringKind{KindLiteral, KindHex, KindLiteral},
				},
			},
		},
		{
			name: "string escapes",
			in:   `(a\(b\)c\\d\ne\101) Tj`,
			want: Stream{
				{Name: OpTextShow, Args: []pdf.Object{pdf.String("a(b)c\\d\neA")}, StringKinds: []StringKind{KindLiteral}},
			},
		},
		{
			name: "nested parentheses",
			in:   "(a(b)c) Tj",
			want: Stream{
				{Name: OpTextShow, Args: []pdf.Object{pdf.String("a(b)c")}, StringKinds: []StringKind{KindLiteral}},
			},
		},
		{
			name: "numbers",
			in:   "1 0 0 1 72 -9.5 cm",
			want: Stream{
				{Name: OpTransform, Args: []pdf.Object{
					pdf.Integer(1), pdf.Integer(0), pdf.Integer(0),
					pdf.Integer(1), pdf.Integer(72), pdf.Real(-9.5),
				}},
			},
		},
		{
			name: "marked content with dict",
			in:   "/Span <</ActualText (x)>> BDC EMC",
			want: Stream{
				{
					Name: OpBeginMarkedContentWithProperties,
					Args: []pdf.Object{
						pdf.Name("Span"),
						pdf.Dict{"ActualText": pdf.String("x")},
					},
					StringKinds: []StringKind{KindLiteral},
				},
				{Name: OpEndMarkedContent},
			},
		},
		{
			name: "comment",
			in:   "% a comment\nBT ET",
			want: Stream{
				{Name: OpRawContent, Args: []pdf.Object{pdf.String("% a comment")}},
				{Name: OpTextBegin},
				{Name: OpTextEnd},
			},
		},
		{
			name: "quote operators",
			in:   "(a) ' 1 2 (b) \"",
			want: Stream{
				{Name: OpTextShowMoveNextLine, Args: []pdf.Object{pdf.String("a")}, StringKinds: []StringKind{KindLiteral}},
				{
					Name:        OpTextShowMoveNextLineSetSpacing,
					Args:        []pdf.Object{pdf.Integer(1), pdf.Integer(2), pdf.String("b")},
					StringKinds: []StringKind{KindLiteral},
				},
			},
		},
		{
			name: "name with hex escape",
			in:   "/A#20B gs",
			want: Stream{
				{Name: OpSetExtGState, Args: []pdf.Object{pdf.Name("A B")}},
			},
		},
		{
			name: "boolean keywords",
			in:   "/OC <</On true /Off false>> BDC EMC",
			want: Stream{
				{
					Name: OpBeginMarkedContentWithProperties,
					Args: []pdf.Object{
						pdf.Name("OC"),
						pdf.Dict{"On": pdf.Boolean(true), "Off": pdf.Boolean(false)},
					},
				},
				{Name: OpEndMarkedContent},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadStream(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("ReadStream: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpOpts...); diff != "" {
				t.Errorf("stream mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// cmpOpts makes empty and nil argument slices compare equal.
var cmpOpts = []cmp.Option{
	cmp.Transformer("args", func(args []pdf.Object) []pdf.Object {
		if len(args) == 0 {
			return nil
		}
		return args
	}),
	cmp.Transformer("kinds", func(kk []StringKind) []StringKind {
		if len(kk) == 0 {
			return nil
		}
		return kk
	}),
}

func TestReadStreamPermissive(t *testing.T) {
	// malformed content is skipped, valid operators around it survive
	got, err := ReadStream(strings.NewReader("BT <4z> Tj ET"))
	if err != nil {
		t.Fatalf("ReadStream: %v", err)
	}
	var names []OpName
	for _, op := range got {
		names = append(names, op.Name)
	}
	want := []OpName{OpTextBegin, OpTextShow, OpTextEnd}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("operators mismatch (-want +got):\n%s", diff)
	}

	// a malformed hex string is consumed in full, so that the following
	// operators keep their arguments
	got, err = ReadStream(strings.NewReader("<4z41> Tj (ok) Tj"))
	if err != nil {
		t.Fatalf("ReadStream: %v", err)
	}
	want2 := Stream{
		{Name: OpTextShow},
		{Name: OpTextShow, Args: []pdf.Object{pdf.String("ok")}, StringKinds: []StringKind{KindLiteral}},
	}
	if diff := cmp.Diff(want2, got, cmpOpts...); diff != "" {
		t.Errorf("stream mismatch (-want +got):\n%s", diff)
	}
}

func TestReadInlineImage(t *testing.T) {
	in := "BI /W 2 /H 2 /BPC 8 /CS /G ID \x00\x01\x02\x03\nEI Q"
	got, err := ReadStream(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadStream: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d operators, want 2", len(got))
	}
	if got[0].Name != OpInlineImage {
		t.Errorf("got %q, want %q", got[0].Name, OpInlineImage)
	}
	data, ok := got[0].Args[1].(pdf.String)
	if !ok || string(data) != "\x00\x01\x02\x03" {
		t.Errorf("image data = %q", data)
	}
	if got[1].Name != OpPopGraphicsState {
		t.Errorf("got %q after image, want Q", got[1].Name)
	}
}

func TestValidate(t *testing.T) {
	good := Stream{
		{Name: OpTextBegin},
		{Name: OpSetExtGState, Args: []pdf.Object{pdf.Name("G1")}},
		{Name: OpTextEnd},
	}
	if err := good.Validate(pdf.V1_7); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := good.Validate(pdf.V1_0); err == nil {
		t.Error("gs accepted for PDF 1.0")
	}

	compat := Stream{
		{Name: OpBeginCompatibility},
		{Name: OpName("XYZ")},
		{Name: OpEndCompatibility},
	}
	if err := compat.Validate(pdf.V1_7); err != nil {
		t.Errorf("Validate: %v", err)
	}

	bad := Stream{{Name: OpName("XYZ")}}
	if err := bad.Validate(pdf.V1_7); err == nil {
		t.Error("unknown operator accepted")
	}
}
