/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pagecraft/internal/export"
	"pagecraft/internal/storage"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		pages  []string
		out    string
		guides bool
		scale  float64
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export pages as a static site, proofs or archives",
	}
	cmd.PersistentFlags().StringSliceVar(&pages, "page", nil, "Page ids to export (default: all)")
	cmd.PersistentFlags().StringVarP(&out, "output", "o", "", "Output path; relative paths land in the project's exports folder")
	cmd.PersistentFlags().BoolVar(&guides, "guides", false, "Draw breakpoint guides on proofs")

	style := func() export.Style { return export.Style{IncludeGuides: guides} }
	run := func(fn func(ph *storage.ProjectHandle) (string, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			msg, err := fn(ph)
			if err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "%s", msg)
			return nil
		}
	}
	or := func(def string) string {
		if out == "" {
			return def
		}
		return out
	}

	html := &cobra.Command{
		Use:   "html <dir>",
		Short: "Export a static site",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ph *storage.ProjectHandle) (string, error) {
			files, err := export.ExportSite(ph, or("site"), export.SiteOptions{Pages: pages})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d page(s)", len(files)), nil
		}),
	}
	pdf := &cobra.Command{
		Use:   "pdf <dir>",
		Short: "Export a PDF layout proof",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ph *storage.ProjectHandle) (string, error) {
			path := or("site.pdf")
			if err := export.ExportPDF(ph, resolve(ph, path), export.PDFOptions{Style: style(), Pages: pages}); err != nil {
				return "", err
			}
			return "Wrote " + resolve(ph, path), nil
		}),
	}
	png := &cobra.Command{
		Use:   "png <dir>",
		Short: "Export raster proofs",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ph *storage.ProjectHandle) (string, error) {
			files, err := export.ExportPNGs(ph, or("png"), export.PNGOptions{Style: style(), Pages: pages, Scale: scale})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d image(s)", len(files)), nil
		}),
	}
	png.Flags().Float64Var(&scale, "scale", 1, "Raster scale")
	svg := &cobra.Command{
		Use:   "svg <dir>",
		Short: "Export vector proofs",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ph *storage.ProjectHandle) (string, error) {
			files, err := export.ExportSVGs(ph, or("svg"), export.SVGOptions{Style: style(), Pages: pages})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d drawing(s)", len(files)), nil
		}),
	}
	var withDoc bool
	zip := &cobra.Command{
		Use:   "zip <dir>",
		Short: "Export the static site as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ph *storage.ProjectHandle) (string, error) {
			path := or("site.zip")
			if err := export.ExportBundle(ph, path, export.BundleOptions{Pages: pages, IncludeDocument: withDoc}); err != nil {
				return "", err
			}
			return "Wrote " + resolve(ph, path), nil
		}),
	}
	zip.Flags().BoolVar(&withDoc, "with-document", false, "Include the project document")

	var (
		preset  string
		formats []string
	)
	batch := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Run an export preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt := export.BatchOptions{Preset: export.PresetName(preset), Formats: formats, Pages: pages, Scale: scale, OutDir: out}
			if cmd.Flags().Changed("guides") {
				opt.IncludeGuides = &guides
			}
			return run(func(ph *storage.ProjectHandle) (string, error) {
				if err := export.BatchExport(ph, opt); err != nil {
					return "", err
				}
				return "Exported preset " + preset, nil
			})(cmd, args)
		},
	}
	batch.Flags().StringVar(&preset, "preset", string(export.PresetWeb), "web or print")
	batch.Flags().StringSliceVar(&formats, "format", nil, "Formats to export (default: preset formats)")
	batch.Flags().Float64Var(&scale, "scale", 1, "Raster scale")

	cmd.AddCommand(html, pdf, png, svg, zip, batch)
	return cmd
}

func resolve(ph *storage.ProjectHandle, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ph.Dir(storage.ExportsDirName), p)
}
