/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"pagecraft/internal/domain"
)

// Theme is a TOML file of canvas presets:
//
//	name = "Studio"
//	background = "#fafafa"
//
//	[[breakpoint]]
//	name = "Mobile"
//	width = 390
//	height = 844
type Theme struct {
	Name        string              `toml:"name"`
	Background  string              `toml:"background"`
	Width       float64             `toml:"width"`
	Height      float64             `toml:"height"`
	Breakpoints []domain.Breakpoint `toml:"breakpoint"`
}

// LoadTheme reads and checks a theme file. Breakpoints come back sorted by
// width, widest first.
func LoadTheme(path string) (Theme, error) {
	var th Theme
	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read theme: %w", err)
	}
	if err := toml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("parse theme %s: %w", path, err)
	}
	seen := map[string]bool{}
	for i, bp := range th.Breakpoints {
		name := strings.TrimSpace(bp.Name)
		if name == "" || bp.Width <= 0 {
			return th, fmt.Errorf("theme %s: breakpoint %d needs a name and a positive width", path, i+1)
		}
		if seen[name] {
			return th, fmt.Errorf("theme %s: duplicate breakpoint %q", path, name)
		}
		seen[name] = true
		th.Breakpoints[i].Name = name
	}
	sort.SliceStable(th.Breakpoints, func(i, j int) bool { return th.Breakpoints[i].Width > th.Breakpoints[j].Width })
	return th, nil
}

// ApplyTheme copies the theme's presets over the canvas defaults.
func ApplyTheme(cfg *AppConfig, th Theme) {
	if strings.TrimSpace(th.Background) != "" {
		cfg.Canvas.Background = strings.TrimSpace(th.Background)
	}
	positive(&cfg.Canvas.Width, th.Width)
	positive(&cfg.Canvas.Height, th.Height)
	if len(th.Breakpoints) > 0 {
		cfg.Canvas.Breakpoints = append([]domain.Breakpoint(nil), th.Breakpoints...)
	}
}

// WriteTheme saves the canvas section as a theme file.
func WriteTheme(path, name string, c CanvasConfig) error {
	data, err := toml.Marshal(Theme{Name: name, Background: c.Background, Width: c.Width, Height: c.Height, Breakpoints: c.Breakpoints})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
