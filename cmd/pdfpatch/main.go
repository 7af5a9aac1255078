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

// Pdfpatch rewrites text in PDF content streams and builds the derivative
// fonts used to mask hidden text.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "pdfpatch",
		Short: "rewrite text in PDF content streams",
		Long: `Pdfpatch replaces text inside a PDF page's content stream while keeping
the original layout: operators not touched by a replacement are preserved
byte for byte, and kerning adjustments inside touched arrays survive.

The maskfont subcommand builds derivative TrueType fonts in which a stored
character renders as different visual text.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	root.AddCommand(newReplaceCommand())
	root.AddCommand(newMaskfontCommand())

	return root
}

func init() {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)
}
