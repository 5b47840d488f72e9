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
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"pagecraft/internal/config"
	applog "pagecraft/internal/log"
	"pagecraft/internal/storage"
	"pagecraft/internal/version"
)

// app carries the loaded user configuration into the commands.
type app struct {
	cfg     config.AppConfig
	token   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pagecraft",
		Short: "PageCraft builds web pages from a visual element tree",
		Long: brand.Sprint("pagecraft") + " builds web pages from a visual element tree\n" +
			subtle.Sprint("Edit, preview, export and publish page projects"),
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, tok, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if a.verbose {
				cfg.Logging.Level = "debug"
			}
			applog.Init(cfg.Logging.LogOptions())
			a.cfg, a.token = cfg, tok
			applog.WithComponent("cli").Debug("command", slog.String("name", cmd.CommandPath()))
			return nil
		},
	}
	root.SetVersionTemplate("pagecraft {{ .Version }}\n")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Log at debug level")

	root.AddCommand(
		versionCmd(),
		a.initCmd(),
		a.openCmd(),
		a.saveCmd(),
		a.snapshotCmd(),
		a.searchCmd(),
		a.cssCmd(),
		a.renderCmd(),
		a.exportCmd(),
		a.fontsCmd(),
		a.themeCmd(),
		a.serveCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.publishCmd(),
		a.sitesCmd(),
		backendCmd(),
		a.uiCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", brand.Sprint("pagecraft"), version.String(), subtle.Sprint(runtime.Version()))
		},
	}
}

// open loads the project at dir and records it as recently used.
func (a *app) open(dir string) (*storage.ProjectHandle, error) {
	ph, err := storage.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	a.remember(ph.Root)
	return ph, nil
}

func (a *app) remember(root string) {
	a.cfg.RememberProject(root)
	if err := config.Save(a.cfg, ""); err != nil {
		applog.WithComponent("cli").Warn("recent projects not saved", slog.Any("error", err))
	}
}
