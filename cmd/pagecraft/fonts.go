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
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pagecraft/internal/config"
	"pagecraft/internal/domain"
	"pagecraft/internal/fonts"
	"pagecraft/internal/storage"
)

func (a *app) fontsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "Manage the fonts of a project",
	}
	scan := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Register the font files in the project's fonts folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			local, err := fonts.ScanDir(ph.Dir(storage.FontsDirName))
			if err != nil {
				return err
			}
			// Stylesheet fonts survive a rescan; local ones are replaced.
			kept := make([]domain.Font, 0, len(ph.Document.Fonts))
			for _, f := range ph.Document.Fonts {
				if f.Source != "" && f.Source != fonts.SourceLocal {
					kept = append(kept, f)
				}
			}
			ph.Document.Fonts = append(kept, local...)
			if err := storage.Save(ph); err != nil {
				return err
			}
			listFonts(cmd.OutOrStdout(), ph.Document.Fonts)
			return nil
		},
	}
	var timeout time.Duration
	fetch := &cobra.Command{
		Use:   "fetch <dir> <stylesheet-url>",
		Short: "Register the families of a web font stylesheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			css, err := fonts.Fetcher{Timeout: timeout}.FetchCDN(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			added := fonts.CDNFonts(args[1], css)
			if len(added) == 0 {
				return fmt.Errorf("no font families in %s", args[1])
			}
			ph.Document.Fonts = mergeFonts(ph.Document.Fonts, added)
			if err := storage.Save(ph); err != nil {
				return err
			}
			listFonts(cmd.OutOrStdout(), ph.Document.Fonts)
			return nil
		},
	}
	fetch.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Download timeout")
	list := &cobra.Command{
		Use:   "list <dir>",
		Short: "List registered fonts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			if len(ph.Document.Fonts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  No fonts.")
				return nil
			}
			listFonts(cmd.OutOrStdout(), ph.Document.Fonts)
			return nil
		},
	}
	cmd.AddCommand(scan, fetch, list)
	return cmd
}

// mergeFonts appends the fonts of add whose family and source are new.
func mergeFonts(have, add []domain.Font) []domain.Font {
	type key struct{ family, source string }
	seen := map[key]bool{}
	for _, f := range have {
		seen[key{f.FontFamily, f.Source}] = true
	}
	for _, f := range add {
		k := key{f.FontFamily, f.Source}
		if !seen[k] {
			seen[k] = true
			have = append(have, f)
		}
	}
	return have
}

func listFonts(w io.Writer, list []domain.Font) {
	rows := make([][]string, 0, len(list))
	for _, f := range list {
		src := f.Path
		if src == "" {
			src = f.Source
		}
		rows = append(rows, []string{f.FontFamily, f.Format, src})
	}
	table(w, []string{"FAMILY", "FORMAT", "SOURCE"}, rows)
}

func (a *app) themeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Share canvas presets as TOML themes",
	}
	var name string
	exp := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the configured canvas as a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTheme(args[0], name, a.cfg.Canvas); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "Wrote theme %s", args[0])
			return nil
		},
	}
	exp.Flags().StringVar(&name, "name", "custom", "Theme name")
	use := &cobra.Command{
		Use:   "use <file>",
		Short: "Make a theme the default for new projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			th, err := config.LoadTheme(path)
			if err != nil {
				return err
			}
			a.cfg.General.Theme = path
			if err := config.Save(a.cfg, ""); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "Using theme %q (%d breakpoints)", th.Name, len(th.Breakpoints))
			return nil
		},
	}
	cmd.AddCommand(exp, use)
	return cmd
}
