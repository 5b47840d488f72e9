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
	"path/filepath"
	"strings"

	"pagecraft/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Formats understood by BatchExport.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
	FormatPNG  = "png"
	FormatSVG  = "svg"
	FormatZip  = "zip"
)

// BatchOptions controls batch export across several formats.
//
// A relative or empty OutDir resolves to <project>/exports/<preset>/. Each
// format writes into its own subfolder; single-file formats are named
// site.pdf and site.zip.
type BatchOptions struct {
	Preset        PresetName
	Formats       []string // empty means preset defaults
	Pages         []string // empty means all pages
	Scale         float64  // raster scale for png
	IncludeGuides *bool    // when set, overrides the preset's default
	OutDir        string
}

// BatchExport runs exports according to the given preset.
func BatchExport(ph *storage.ProjectHandle, opt BatchOptions) error {
	if ph == nil {
		return fmt.Errorf("project handle is nil")
	}
	if len(ph.Document.Pages) == 0 {
		return fmt.Errorf("document has no pages")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	base := opt.OutDir
	if base == "" {
		base = string(opt.Preset)
	}
	base = resolveOut(ph, base)

	guides := presetIncludeGuides(opt.Preset)
	if opt.IncludeGuides != nil {
		guides = *opt.IncludeGuides
	}
	st := Style{IncludeGuides: guides}

	for _, f := range formats {
		var err error
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatHTML:
			_, err = ExportSite(ph, filepath.Join(base, FormatHTML), SiteOptions{Pages: opt.Pages})
		case FormatPDF:
			err = ExportPDF(ph, filepath.Join(base, FormatPDF, "site.pdf"), PDFOptions{Style: st, Pages: opt.Pages})
		case FormatPNG:
			_, err = ExportPNGs(ph, filepath.Join(base, FormatPNG), PNGOptions{Style: st, Pages: opt.Pages, Scale: opt.Scale})
		case FormatSVG:
			_, err = ExportSVGs(ph, filepath.Join(base, FormatSVG), SVGOptions{Style: st, Pages: opt.Pages})
		case FormatZip:
			err = ExportBundle(ph, filepath.Join(base, FormatZip, "site.zip"), BundleOptions{Pages: opt.Pages})
		default:
			return fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatHTML, FormatPNG, FormatZip}
	case PresetPrint:
		return []string{FormatPDF, FormatSVG}
	default:
		return []string{FormatHTML}
	}
}

func presetIncludeGuides(p PresetName) bool {
	return p == PresetPrint
}
