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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pagecraft/internal/domain"
	"pagecraft/internal/render"
	"pagecraft/internal/storage"
	"pagecraft/internal/stylegen"
)

func (a *app) initCmd() *cobra.Command {
	var (
		page   string
		width  float64
		height float64
		bg     string
	)
	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			canvas := a.cfg.Canvas
			if width > 0 {
				canvas.Width = width
			}
			if height > 0 {
				canvas.Height = height
			}
			if bg != "" {
				canvas.Background = bg
			}
			doc := canvas.NewDocument()
			if page != "" {
				doc.Pages[0].Name = page
			}
			ph, err := storage.InitProject(args[0], doc)
			if err != nil {
				return err
			}
			a.remember(ph.Root)
			done(cmd.OutOrStdout(), "Initialized project at %s", ph.Root)
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "Name of the first page")
	cmd.Flags().Float64Var(&width, "width", 0, "Canvas width in px")
	cmd.Flags().Float64Var(&height, "height", 0, "Canvas height in px")
	cmd.Flags().StringVar(&bg, "background", "", "Canvas background color")
	return cmd
}

func (a *app) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <dir>",
		Short: "Open a project and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			doc := &ph.Document
			fmt.Fprintf(w, "%s %s\n", brand.Sprint("Project"), ph.Root)
			fmt.Fprintf(w, "  canvas %gx%g %s\n\n", doc.Canvas.Width, doc.Canvas.Height, doc.Canvas.BackgroundColor)
			rows := make([][]string, 0, len(doc.Pages))
			for _, p := range doc.Pages {
				mark := ""
				if p.PageID == doc.ActivePageID {
					mark = "*"
				}
				rows = append(rows, []string{mark, p.Name, p.PageID, strconv.Itoa(countTree(doc, p.RootElementID) - 1)})
			}
			table(w, []string{"", "PAGE", "ID", "ELEMENTS"}, rows)
			if len(doc.Fonts) > 0 {
				fmt.Fprintf(w, "\n  %d font(s)\n", len(doc.Fonts))
			}
			if ph.Recovered {
				warn.Fprintln(w, "\n  document was recovered from a backup")
			}
			return nil
		},
	}
}

func countTree(doc *domain.Document, id string) int {
	el, ok := doc.Elements[id]
	if !ok {
		return 0
	}
	n := 1
	for _, c := range el.Children {
		n += countTree(doc, c)
	}
	return n
}

func (a *app) saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <dir>",
		Short: "Rewrite the project document, keeping a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			if err := storage.Save(ph); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "Saved %s", ph.DocumentPath)
			return nil
		},
	}
}

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record, list and restore document snapshots",
	}
	var limit int
	list := &cobra.Command{
		Use:   "list <dir>",
		Short: "List snapshots, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			snaps, err := storage.ListSnapshots(cmd.Context(), ph, limit)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  No snapshots.")
				return nil
			}
			rows := make([][]string, 0, len(snaps))
			for _, s := range snaps {
				rows = append(rows, []string{strconv.FormatInt(s.ID, 10), s.TS.Local().Format(time.DateTime), s.Label})
			}
			table(cmd.OutOrStdout(), []string{"ID", "TIME", "LABEL"}, rows)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of snapshots")

	var label string
	save := &cobra.Command{
		Use:   "save <dir>",
		Short: "Record the current document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			id, err := storage.SaveSnapshot(cmd.Context(), ph, label, time.Now())
			if err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "Snapshot %d recorded", id)
			return nil
		},
	}
	save.Flags().StringVar(&label, "label", "", "Snapshot label")

	restore := &cobra.Command{
		Use:   "restore <dir> <id>",
		Short: "Replace the document with a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid snapshot id %q", args[1])
			}
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			snap, err := storage.GetSnapshot(cmd.Context(), ph, id)
			if err != nil {
				return err
			}
			ph.Document = snap.Document
			if err := storage.Save(ph); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "Restored snapshot %d", id)
			return nil
		},
	}
	cmd.AddCommand(list, save, restore)
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		types []string
		page  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <dir> <text>",
		Short: "Search element names and text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			if _, err := storage.DetectAndRebuildIndex(cmd.Context(), ph.Root, ph.Document); err != nil {
				return err
			}
			res, err := storage.Search(cmd.Context(), ph.Root, storage.SearchQuery{Text: args[1], Types: types, PageID: page, Limit: limit})
			if err != nil {
				return err
			}
			if len(res) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  No matches.")
				return nil
			}
			rows := make([][]string, 0, len(res))
			for _, r := range res {
				rows = append(rows, []string{r.ElementID, r.Type, r.PageID, r.Name, r.Snippet})
			}
			table(cmd.OutOrStdout(), []string{"ELEMENT", "TYPE", "PAGE", "NAME", "MATCH"}, rows)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "Restrict to element types")
	cmd.Flags().StringVar(&page, "page", "", "Restrict to a page id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of matches")
	return cmd
}

func parseMode(s string) (stylegen.Mode, error) {
	switch m := stylegen.Mode(strings.ToLower(s)); m {
	case stylegen.ModePreview, stylegen.ModeEdit:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %s or %s)", s, stylegen.ModePreview, stylegen.ModeEdit)
}

// output opens path for writing, or returns stdout for "" and "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func (a *app) cssCmd() *cobra.Command {
	var (
		page, mode, active, out string
		width                   float64
	)
	cmd := &cobra.Command{
		Use:   "css <dir>",
		Short: "Print the stylesheet of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			if page != "" {
				if _, ok := ph.Document.Page(page); !ok {
					return fmt.Errorf("%w: %s", render.ErrNoPage, page)
				}
			}
			css := stylegen.Generate(&ph.Document, stylegen.Options{
				Mode:              m,
				PageID:            page,
				ActiveContainerID: active,
				CanvasWidth:       width,
				FontBase:          "fonts/",
			})
			w, closeFn, err := output(cmd, out)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(w, css); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "Page id (default: active page)")
	cmd.Flags().StringVar(&mode, "mode", string(stylegen.ModePreview), "preview or edit")
	cmd.Flags().StringVar(&active, "container", "", "Active container id in edit mode")
	cmd.Flags().Float64Var(&width, "width", 0, "Canvas width for edit-mode media rules")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func (a *app) renderCmd() *cobra.Command {
	var page, out string
	cmd := &cobra.Command{
		Use:   "render <dir>",
		Short: "Render a page as a standalone HTML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			w, closeFn, err := output(cmd, out)
			if err != nil {
				return err
			}
			err = render.RenderDocument(w, &ph.Document, render.Options{
				Mode:      stylegen.ModePreview,
				PageID:    page,
				AssetBase: storage.AssetsDirName,
				FontBase:  storage.FontsDirName + "/",
			})
			if cerr := closeFn(); err == nil {
				err = cerr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "Page id (default: active page)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
