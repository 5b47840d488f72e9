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
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"pagecraft/internal/domain"
	"pagecraft/internal/storage"
)

// PNGOptions controls raster wireframes. Scale multiplies the canvas size
// in pixels; 0 means 1.
type PNGOptions struct {
	Style
	Pages []string
	Scale float64
}

// RenderPNG paints the wireframe of one page.
func RenderPNG(doc *domain.Document, pageID string, st Style, scale float64) (*image.RGBA, error) {
	p, ok := doc.Page(pageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}
	if scale <= 0 {
		scale = 1
	}
	st = st.withDefaults()
	wf := buildWireframe(doc, p, st)
	px := func(v float64) int { return int(math.Round(v * scale)) }
	pixW, pixH := max(px(wf.Width), 1), max(px(wf.Height), 1)

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	xdraw.Draw(img, img.Bounds(), &image.Uniform{C: wf.Background}, image.Point{}, xdraw.Src)
	for _, sh := range wf.Shapes {
		x0, y0 := px(sh.Frame.X), px(sh.Frame.Y)
		x1, y1 := px(sh.Frame.X+sh.Frame.W)-1, px(sh.Frame.Y+sh.Frame.H)-1
		switch {
		case sh.Type == domain.TypeImage:
			fillRect(img, x0, y0, x1, y1, st.ImageFill)
			line(img, x0, y0, x1, y1, st.Stroke)
			line(img, x1, y0, x0, y1, st.Stroke)
		case sh.HasFill:
			fillRect(img, x0, y0, x1, y1, sh.Fill)
		}
		strokeRect(img, x0, y0, x1, y1, st.Stroke)
		if sh.Text != "" {
			drawText(img, x0, y0, sh.Text, sh.TextColor)
		}
	}
	if st.IncludeGuides {
		strokeRect(img, 0, 0, pixW-1, pixH-1, st.GuideColor)
		for _, bp := range doc.Canvas.Breakpoints {
			if x := px(bp.Width); bp.Width > 0 && x < pixW {
				for y := 0; y < pixH; y += 6 {
					line(img, x, y, x, min(y+3, pixH-1), st.GuideColor)
				}
			}
		}
	}
	return img, nil
}

// ExportPNGs writes one PNG per selected page, named after the page.
func ExportPNGs(ph *storage.ProjectHandle, outDir string, opt PNGOptions) ([]string, error) {
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
		img, err := RenderPNG(&ph.Document, p.PageID, opt.Style, opt.Scale)
		if err != nil {
			return out, err
		}
		name := filepath.Join(outDir, pageFileName(p, indexOfPage(ph, p.PageID))+".png")
		if err := writePNG(name, img); err != nil {
			return out, err
		}
		out = append(out, name)
	}
	return out, nil
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// Thumbnail renders a page and scales it to fit w x h, centred on the
// canvas background. The result is PNG encoded.
func Thumbnail(doc *domain.Document, pageID string, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("thumbnail size %dx%d", w, h)
	}
	src, err := RenderPNG(doc, pageID, Style{}, 1)
	if err != nil {
		return nil, err
	}
	sb := src.Bounds()
	f := math.Min(float64(w)/float64(sb.Dx()), float64(h)/float64(sb.Dy()))
	tw, th := max(int(float64(sb.Dx())*f), 1), max(int(float64(sb.Dy())*f), 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), &image.Uniform{C: src.RGBAAt(0, 0)}, image.Point{}, xdraw.Src)
	off := image.Pt((w-tw)/2, (h-th)/2)
	xdraw.CatmullRom.Scale(dst, image.Rectangle{Min: off, Max: off.Add(image.Pt(tw, th))}, src, sb, xdraw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// PageThumbnail returns a cached thumbnail of a page, rendering and caching
// it in the project index on a miss.
func PageThumbnail(ctx context.Context, ph *storage.ProjectHandle, pageID string, w, h int) ([]byte, error) {
	if _, ok := ph.Document.Page(pageID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}
	return storage.GetOrCreatePreview(ctx, ph.Root, pageID, w, h, func(context.Context) ([]byte, error) {
		return Thumbnail(&ph.Document, pageID, w, h)
	})
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	lh := face.Metrics().Height.Ceil()
	for i, l := range strings.Split(text, "\n") {
		d.Dot = fixed.P(x+2, y+face.Metrics().Ascent.Ceil()+i*lh)
		d.DrawString(l)
	}
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	xdraw.Draw(img, image.Rect(x0, y0, x1+1, y1+1), &image.Uniform{C: col}, image.Point{}, xdraw.Over)
}

// line draws a 1px line with Bresenham's algorithm.
func line(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
