/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pagecraft/internal/backend"
	"pagecraft/internal/config"
)

// errNoToken is returned by commands that need a login.
var errNoToken = errors.New("not logged in; run `pagecraft login` first")

func (a *app) client() *backend.Client {
	return backend.NewClient(a.cfg.Backend.BaseURL, a.token).Configure(a.cfg.Backend.Timeout(), a.cfg.Backend.TLSInsecure)
}

func (a *app) loginCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain a publishing token and keep it in the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, exp, err := a.client().IssueToken(cmd.Context(), subject, ttl)
			if err != nil {
				return err
			}
			if err := config.Save(a.cfg, tok); err != nil {
				return err
			}
			a.token = tok
			done(cmd.OutOrStdout(), "Logged in to %s until %s", a.cfg.Backend.BaseURL, exp.Local().Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "as", "", "Token subject (default: server's choice)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the publishing token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ClearToken(); err != nil {
				return err
			}
			a.token = ""
			done(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) publishCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "publish <dir> <slug>",
		Short: "Publish every page of a project as a new site version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[1]
			if !backend.ValidSlug(slug) {
				return fmt.Errorf("invalid slug %q", slug)
			}
			if a.token == "" {
				return errNoToken
			}
			ph, err := a.open(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(ph.Root)
			}
			req, err := backend.BuildPublish(&ph.Document, name)
			if err != nil {
				return err
			}
			res, err := a.client().Publish(cmd.Context(), slug, req)
			if err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "Published %s version %d (%d files)", res.Slug, res.Version, len(res.Files))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Site name (default: project folder name)")
	return cmd
}

func (a *app) sitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List published sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.token == "" {
				return errNoToken
			}
			list, err := a.client().ListSites(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  No sites.")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, s := range list {
				rows = append(rows, []string{s.Slug, s.Name, strconv.FormatInt(s.Version, 10), s.UpdatedAt.Local().Format(time.DateTime)})
			}
			table(cmd.OutOrStdout(), []string{"SLUG", "NAME", "VERSION", "UPDATED"}, rows)
			return nil
		},
	}
}
