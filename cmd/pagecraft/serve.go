/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pagecraft/internal/backend"
	"pagecraft/internal/bridge"
	"pagecraft/internal/crash"
	"pagecraft/internal/scene"
	"pagecraft/internal/scripts"
	"pagecraft/internal/server"
	"pagecraft/internal/storage"
	"pagecraft/internal/ui"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr   string
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve the live preview of a project",
		Long: "Serve the live preview of a project. Edits dispatched by connected\n" +
			"windows are written back to the project on exit unless --no-save is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			store := scene.New(ph.Document, a.cfg.Editor.Limits())
			defer crash.RecoverStore(ph, store)
			start := store.Version()

			hub := bridge.NewHub(store, 0)
			defer hub.Close()
			reg := scripts.NewRegistry()
			scripts.RegisterBuiltins(reg)
			srv, err := server.New(hub, server.Options{
				Root:      ph.Root,
				Scripts:   reg,
				AccessLog: a.cfg.Preview.AccessLog,
				FPS:       a.cfg.Preview.FPS,
			})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Preview.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "%s preview on %s\n", brand.Sprint("pagecraft"), subtle.Sprint("http://"+addr+"/preview"))
			if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if noSave || store.Version() == start {
				return nil
			}
			ph.Document = store.Snapshot()
			if err := storage.Save(ph); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "Saved %s", ph.DocumentPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Discard edits made through the preview")
	return cmd
}

func backendCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the publishing server",
		Long: "Run the publishing server. The database and signing key come from\n" +
			"PGC_PG_DSN (or DATABASE_URL) and PGC_AUTH_SECRET.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := backend.LoadConfig()
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return backend.Start(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from environment)")
	return cmd
}

func (a *app) uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui [dir]",
		Short: "Launch the desktop editor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
				a.remember(dir)
			}
			return ui.Run(dir)
		},
	}
}
