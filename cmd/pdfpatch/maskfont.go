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
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"seehuhn.de/go/sfnt"

	"seehuhn.de/go/pdfpatch/maskfont"
)

func newMaskfontCommand() *cobra.Command {
	var (
		fontFile string
		hidden   string
		visual   string
		cacheDir string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "maskfont",
		Short: "build derivative fonts that render hidden text as other glyphs",
		Long: `Maskfont distributes a visual string over the characters of a hidden
string and, for each position that needs one, builds a derivative of the
baseline font in which the hidden character's glyph is a composite of the
visual glyphs.  Text layers containing the hidden string then render as
the visual string.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMaskfont(fontFile, hidden, visual, cacheDir, outDir)
		},
	}

	cmd.Flags().StringVarP(&fontFile, "font", "f", "", "baseline TrueType font file")
	cmd.Flags().StringVar(&hidden, "hidden", "", "text stored in the text layer")
	cmd.Flags().StringVar(&visual, "visual", "", "text a reader should see")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "font cache directory")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "output directory for the derivative fonts")
	cmd.MarkFlagRequired("font")
	cmd.MarkFlagRequired("hidden")

	return cmd
}

func runMaskfont(fontFile, hidden, visual, cacheDir, outDir string) error {
	data, err := os.ReadFile(fontFile)
	if err != nil {
		return err
	}
	base, err := sfnt.Read(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", fontFile, err)
	}

	builder := &maskfont.Builder{
		Base:     base,
		BaseName: filepath.Base(fontFile),
	}
	if cacheDir != "" {
		cache, err := maskfont.NewDirCache(cacheDir)
		if err != nil {
			return err
		}
		builder.Cache = cache
	}

	width, err := builder.Widths()
	if err != nil {
		return err
	}
	plan, err := maskfont.Chunk(hidden, visual, width)
	if err != nil {
		return err
	}
	for _, pos := range plan.Positions {
		log.Debug("position",
			"index", pos.Index,
			"hidden", string(pos.Hidden),
			"visual", pos.VisualText,
			"zero-width", pos.ZeroWidth,
			"needs-font", pos.RequiresFont)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	results, errs := builder.BuildPlan(plan)
	for _, err := range errs {
		log.Error(err)
	}
	for _, res := range results {
		name := fmt.Sprintf("mask-%03d.ttf", res.Position.Index)
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, res.Data, 0644); err != nil {
			return err
		}
		log.Info("font written",
			"file", path,
			"advance", res.Advance,
			"cached", res.FromCache)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d positions failed", len(errs), len(plan.Positions))
	}
	return nil
}
