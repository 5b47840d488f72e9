/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"pagecraft/internal/domain"
	"pagecraft/internal/storage"
)

// PDFOptions controls the layout proof.
//
// One CSS pixel maps to one point. Every page of the document becomes one
// PDF page of canvas size; with guides the canvas edge and each breakpoint
// width are drawn as hairlines.
type PDFOptions struct {
	Style
	Pages []string
}

// ExportPDF writes a layout proof of the selected pages to outPath.
func ExportPDF(ph *storage.ProjectHandle, outPath string, opt PDFOptions) error {
	if ph == nil {
		return fmt.Errorf("project handle is nil")
	}
	doc := &ph.Document
	pages, err := selectPages(doc, opt.Pages)
	if err != nil {
		return err
	}
	st := opt.Style.withDefaults()

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: doc.Canvas.Width, Ht: doc.Canvas.Height},
	})
	pdf.SetTitle("Layout proof", true)
	pdf.SetCreator("PageCraft", false)
	pdf.SetAutoPageBreak(false, 0)
	// Core fonts are cp1252; translate the UTF-8 text we draw.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, p := range pages {
		wf := buildWireframe(doc, p, st)
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: wf.Width, Ht: wf.Height})

		setFillColor(pdf, wf.Background)
		pdf.Rect(0, 0, wf.Width, wf.Height, "F")

		pdf.SetLineWidth(st.StrokeWidth)
		for _, sh := range wf.Shapes {
			r := sh.Frame
			setDrawColor(pdf, st.Stroke)
			switch {
			case sh.Type == domain.TypeImage:
				setFillColor(pdf, st.ImageFill)
				pdf.Rect(r.X, r.Y, r.W, r.H, "FD")
				pdf.Line(r.X, r.Y, r.X+r.W, r.Y+r.H)
				pdf.Line(r.X+r.W, r.Y, r.X, r.Y+r.H)
			case sh.HasFill:
				setFillColor(pdf, sh.Fill)
				pdf.Rect(r.X, r.Y, r.W, r.H, "FD")
			default:
				pdf.Rect(r.X, r.Y, r.W, r.H, "D")
			}
			if sh.Text != "" {
				pdf.SetFont("Helvetica", "", sh.FontSize)
				pdf.SetTextColor(int(sh.TextColor.R), int(sh.TextColor.G), int(sh.TextColor.B))
				y := r.Y + sh.FontSize
				for _, line := range strings.Split(sh.Text, "\n") {
					pdf.Text(r.X, y, tr(line))
					y += sh.FontSize * 1.2
				}
			}
		}

		if st.IncludeGuides {
			setDrawColor(pdf, st.GuideColor)
			pdf.SetLineWidth(0.2)
			pdf.Rect(0, 0, wf.Width, wf.Height, "D")
			pdf.SetDashPattern([]float64{4, 2}, 0)
			for _, bp := range doc.Canvas.Breakpoints {
				if bp.Width > 0 && bp.Width < wf.Width {
					pdf.Line(bp.Width, 0, bp.Width, wf.Height)
				}
			}
			pdf.SetDashPattern([]float64{}, 0)
		}
	}

	outPath = resolveOut(ph, outPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
