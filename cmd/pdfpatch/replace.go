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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"seehuhn.de/go/pdfpatch/align"
	"seehuhn.de/go/pdfpatch/contentstream"
	"seehuhn.de/go/pdfpatch/plan"
	"seehuhn.de/go/pdfpatch/replay"
	"seehuhn.de/go/pdfpatch/rewrite"
	"seehuhn.de/go/pdfpatch/span"
)

func newReplaceCommand() *cobra.Command {
	var (
		pageNo    int
		target    string
		repl      string
		spansFile string
		outFile   string
		tolerance float64
		password  string
	)

	cmd := &cobra.Command{
		Use:   "replace <input.pdf>",
		Short: "replace text in one page's content stream",
		Long: `Replace locates a target string in the decoded text of one page's
content stream and substitutes a replacement, editing only the string
literals the target runs through.  The patched content stream is written
to the output file; splicing it back into the document is left to the
emission layer.

With --spans, a span index produced by an external page renderer is used
to resolve operator advances from measured glyph geometry instead of the
built-in estimate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runReplace(args[0], replaceOptions{
				pageNo:    pageNo,
				target:    target,
				repl:      repl,
				spansFile: spansFile,
				outFile:   outFile,
				tolerance: tolerance,
				password:  password,
			})
		},
	}

	cmd.Flags().IntVarP(&pageNo, "page", "p", 1, "page number (1-based)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "text to replace")
	cmd.Flags().StringVarP(&repl, "replacement", "r", "", "replacement text")
	cmd.Flags().StringVar(&spansFile, "spans", "", "span index JSON from a page renderer")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file for the patched content stream")
	cmd.Flags().Float64Var(&tolerance, "tolerance", replay.DefaultTolerance,
		"advance drift warning threshold, in text space units")
	cmd.Flags().StringVar(&password, "password", "", "document password")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("out")

	return cmd
}

type replaceOptions struct {
	pageNo    int
	target    string
	repl      string
	spansFile string
	outFile   string
	tolerance float64
	password  string
}

func runReplace(input string, opt replaceOptions) error {
	doc, err := openDocument(input, opt.password)
	if err != nil {
		return err
	}
	defer doc.Close()

	numPages, err := pagetree.NumPages(doc)
	if err != nil {
		return err
	}
	if opt.pageNo < 1 || opt.pageNo > numPages {
		return fmt.Errorf("page %d out of range (document has %d pages)",
			opt.pageNo, numPages)
	}

	_, pageDict, err := pagetree.GetPage(doc, opt.pageNo-1)
	if err != nil {
		return err
	}
	body, err := pagetree.ContentStream(doc, pageDict)
	if err != nil {
		return err
	}
	stream, err := contentstream.ReadStream(body)
	if err != nil {
		return err
	}
	log.Debug("content stream loaded", "page", opt.pageNo, "operators", len(stream))

	// first pass: naive advances only
	tracker := &replay.Tracker{Tolerance: opt.tolerance}
	records := tracker.Run(stream)

	// with measured geometry, align and replay a second time
	var alignment *align.Alignment
	if opt.spansFile != "" {
		spans, err := loadSpanIndex(opt.spansFile)
		if err != nil {
			return fmt.Errorf("span index: %w", err)
		}
		aligner := &align.Aligner{}
		alignment = aligner.Align(records, spans)
		tracker.Resolver = align.Resolver(alignment)
		records = tracker.Run(stream)
		log.Debug("alignment done", "spans", len(spans), "aligned", len(alignment.Slices))
	}

	for _, rec := range records {
		if rec.Warning != "" {
			log.Warn(rec.Warning, "operator", rec.Index, "text", rec.Text())
		}
	}

	planner := &plan.Planner{Records: records, Alignment: alignment}
	p, err := planner.Plan(opt.pageNo-1, opt.target, opt.repl)
	if err != nil {
		return err
	}
	log.Info("plan built",
		"original", p.Original,
		"segments", len(p.Segments),
		"match", len(p.MatchSegments()))

	patched, err := rewrite.Apply(stream, p, replay.SimpleDecoder{})
	if err != nil {
		return err
	}

	out, err := os.Create(opt.outFile)
	if err != nil {
		return err
	}
	err = patched.Write(out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	log.Info("patched content stream written", "file", opt.outFile)
	return nil
}

func openDocument(fname, password string) (*pdf.Reader, error) {
	var opt *pdf.ReaderOptions
	if password != "" {
		opt = &pdf.ReaderOptions{
			ReadPassword: func(_ []byte, try int) string {
				if try > 0 {
					return "" // wrong password, give up
				}
				return password
			},
		}
	}
	return pdf.Open(fname, opt)
}

// span index JSON, as produced by the page-rendering collaborator

type spanIndexFile struct {
	PageNo int           `json:"page_no"`
	Spans  []spanIndexEl `json:"spans"`
}

type spanIndexEl struct {
	Block int `json:"block"`
	Line  int `json:"line"`
	Span  int `json:"span"`

	Text   string     `json:"text"`
	Font   string     `json:"font"`
	Size   float64    `json:"size"`
	Box    [4]float64 `json:"box"` // llx, lly, urx, ury
	Origin [2]float64 `json:"origin"`
	Dir    [2]float64 `json:"dir"`

	Chars []charIndexEl `json:"chars,omitempty"`
}

type charIndexEl struct {
	Rune string     `json:"rune"`
	Box  [4]float64 `json:"box"`
}

func loadSpanIndex(fname string) ([]*span.Record, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var file spanIndexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	page := &span.RawPage{PageNo: file.PageNo}
	for _, el := range file.Spans {
		raw := span.RawSpan{
			Block:  el.Block,
			Line:   el.Line,
			Span:   el.Span,
			Text:   el.Text,
			Font:   el.Font,
			Size:   el.Size,
			Box:    toRect(el.Box),
			Origin: vec.Vec2{X: el.Origin[0], Y: el.Origin[1]},
			Dir:    vec.Vec2{X: el.Dir[0], Y: el.Dir[1]},
		}
		for _, c := range el.Chars {
			rr := []rune(c.Rune)
			if len(rr) != 1 {
				return nil, fmt.Errorf("span %d/%d/%d: char entry %q is not a single character",
					el.Block, el.Line, el.Span, c.Rune)
			}
			raw.Chars = append(raw.Chars, span.RawChar{
				Rune: rr[0],
				Box:  toRect(c.Box),
			})
		}
		page.Spans = append(page.Spans, raw)
	}
	return span.Extract(page), nil
}

func toRect(b [4]float64) rect.Rect {
	return rect.Rect{LLx: b[0], LLy: b[1], URx: b[2], URy: b[3]}
}
