/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"html"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"pagecraft/internal/domain"
	"pagecraft/internal/storage"
)

// SVGOptions controls vector wireframes. The viewBox is the canvas in CSS
// pixels.
type SVGOptions struct {
	Style
	Pages []string
}

// RenderSVG writes the wireframe of one page as an SVG document.
func RenderSVG(doc *domain.Document, pageID string, st Style) ([]byte, error) {
	p, ok := doc.Page(pageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}
	st = st.withDefaults()
	wf := buildWireframe(doc, p, st)

	var buf bytes.Buffer
	var werr error
	w := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}
	w("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	w("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%gpx\" height=\"%gpx\" viewBox=\"0 0 %g %g\">\n", wf.Width, wf.Height, wf.Width, wf.Height)
	w("  <title>%s</title>\n", html.EscapeString(p.Name))
	w("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", wf.Width, wf.Height, svgColor(wf.Background))

	sc := svgColor(st.Stroke)
	for _, sh := range wf.Shapes {
		r := sh.Frame
		fill := "none"
		switch {
		case sh.Type == domain.TypeImage:
			fill = svgColor(st.ImageFill)
		case sh.HasFill:
			fill = svgColor(sh.Fill)
		}
		w("  <rect data-id=\"%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
			html.EscapeString(sh.ID), r.X, r.Y, r.W, r.H, fill, sc, st.StrokeWidth)
		if sh.Type == domain.TypeImage {
			w("  <path d=\"M%g %gL%g %gM%g %gL%g %g\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
				r.X, r.Y, r.X+r.W, r.Y+r.H, r.X+r.W, r.Y, r.X, r.Y+r.H, sc, st.StrokeWidth)
		}
		if sh.Text == "" {
			continue
		}
		family := "Helvetica, Arial, sans-serif"
		if el, ok := doc.Elements[sh.ID]; ok {
			if f, _ := el.Props.Effective(wf.Width)["fontFamily"].(string); f != "" {
				family = f
			}
		}
		y := r.Y + sh.FontSize
		for _, l := range strings.Split(sh.Text, "\n") {
			w("  <text x=\"%g\" y=\"%g\" font-family=\"%s\" font-size=\"%g\" fill=\"%s\">%s</text>\n",
				r.X, y, html.EscapeString(family), sh.FontSize, svgColor(sh.TextColor), html.EscapeString(l))
			y += sh.FontSize * 1.2
		}
	}
	if st.IncludeGuides {
		gc := svgColor(st.GuideColor)
		w("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"0.2\"/>\n", wf.Width, wf.Height, gc)
		for _, bp := range doc.Canvas.Breakpoints {
			if bp.Width > 0 && bp.Width < wf.Width {
				w("  <line x1=\"%g\" y1=\"0\" x2=\"%g\" y2=\"%g\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"4 2\"/>\n", bp.Width, bp.Width, wf.Height, gc)
			}
		}
	}
	w("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

// ExportSVGs writes one SVG per selected page, named after the page.
func ExportSVGs(ph *storage.ProjectHandle, outDir string, opt SVGOptions) ([]string, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	pages, err := selectPages(&ph.Document, opt.Pages)
	if err != nil {
		return nil, err
	}
	outDir = resolveOut(ph, outDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	var out []string
	for _, p := range pages {
		data, err := RenderSVG(&ph.Document, p.PageID, opt.Style)
		if err != nil {
			return out, err
		}
		name := filepath.Join(outDir, pageFileName(p, indexOfPage(ph, p.PageID))+".svg")
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return out, fmt.Errorf("write svg: %w", err)
		}
		out = append(out, name)
	}
	return out, nil
}

func svgColor(c color.RGBA) string {
	if c.A < 255 {
		return fmt.Sprintf("rgba(%d,%d,%d,%.3g)", c.R, c.G, c.B, float64(c.A)/255)
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
