/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"pagecraft/internal/domain"
	"pagecraft/internal/interact"
	"pagecraft/internal/layers"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
	"pagecraft/internal/vector"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type EditorConfig struct {
	MinZoom         float64 `yaml:"min_zoom"`
	MaxZoom         float64 `yaml:"max_zoom"`
	DragThreshold   float64 `yaml:"drag_threshold"`
	MarqueeMinSize  float64 `yaml:"marquee_min_size"`
	AnchorSnap      float64 `yaml:"anchor_snap"`
	MinElementSize  float64 `yaml:"min_element_size"`
	PasteOffset     float64 `yaml:"paste_offset"`
	UnnestTolerance float64 `yaml:"unnest_tolerance"`
	LayerIndent     float64 `yaml:"layer_indent"`
	Snapping        bool    `yaml:"snapping"`
	SnapThreshold   float64 `yaml:"snap_threshold"`
}

type CanvasConfig struct {
	Width       float64             `yaml:"width"`
	Height      float64             `yaml:"height"`
	Background  string              `yaml:"background"`
	Breakpoints []domain.Breakpoint `yaml:"breakpoints"`
}

type PreviewConfig struct {
	Addr      string `yaml:"addr"`
	AccessLog bool   `yaml:"access_log"`
	FPS       int    `yaml:"fps"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	Theme string `yaml:"theme"` // path of a TOML theme with breakpoint presets
	// RecentProjects is most recent first.
	RecentProjects []string `yaml:"recent_projects,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Editor        EditorConfig  `yaml:"editor"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Preview       PreviewConfig `yaml:"preview"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	ic := interact.DefaultConfig()
	lc := layers.DefaultConfig()
	lim := scene.DefaultLimits()
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{},
		Editor: EditorConfig{
			MinZoom:         lim.MinZoom,
			MaxZoom:         lim.MaxZoom,
			DragThreshold:   ic.DragThreshold,
			MarqueeMinSize:  ic.MarqueeMinSize,
			AnchorSnap:      ic.AnchorSnap,
			MinElementSize:  ic.MinElementSize,
			PasteOffset:     lim.PasteOffset,
			UnnestTolerance: lc.UnnestTolerance,
			LayerIndent:     lc.Indent,
			Snapping:        false,
			SnapThreshold:   ic.Snap.Threshold,
		},
		Canvas:  CanvasConfig{Width: 1280, Height: 800, Background: "#ffffff"},
		Preview: PreviewConfig{Addr: "127.0.0.1:5173", FPS: 30},
		Backend: BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir        = "PGC_CONFIG_DIR"
	EnvBackendURL       = "PGC_BACKEND_URL"
	EnvBackendTimeoutMs = "PGC_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "PGC_TLS_INSECURE"
	EnvPreviewAddr      = "PGC_PREVIEW_ADDR"
	EnvSnapping         = "PGC_SNAP"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "PGC_LOG_LEVEL"
	EnvLogFormat = "PGC_LOG_FORMAT"
	EnvLogSource = "PGC_LOG_SOURCE"
	EnvLogFile   = "PGC_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "PageCraft"
	keyringToken   = "backend_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// Token returns the stored backend token; a missing entry is not an error.
func Token() (string, error) {
	tok, err := tokenStore.Get(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return tok, err
}

// ClearToken removes the stored backend token.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Join(dir, "config.yaml"), nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "PageCraft")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "PageCraft")
	default: // linux and others
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "pagecraft")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", err
	}
	applyEnvOverrides(&cfg)
	if cfg.General.Theme != "" {
		th, err := LoadTheme(cfg.General.Theme)
		if err != nil {
			return cfg, "", err
		}
		ApplyTheme(&cfg, th)
	}
	// A locked or absent keychain only costs the token.
	tok, _ := Token()
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

func positive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	if len(src.General.RecentProjects) > 0 {
		dst.General.RecentProjects = append([]string(nil), src.General.RecentProjects...)
	}

	e := &dst.Editor
	positive(&e.MinZoom, src.Editor.MinZoom)
	positive(&e.MaxZoom, src.Editor.MaxZoom)
	positive(&e.DragThreshold, src.Editor.DragThreshold)
	positive(&e.MarqueeMinSize, src.Editor.MarqueeMinSize)
	positive(&e.AnchorSnap, src.Editor.AnchorSnap)
	positive(&e.MinElementSize, src.Editor.MinElementSize)
	positive(&e.PasteOffset, src.Editor.PasteOffset)
	positive(&e.UnnestTolerance, src.Editor.UnnestTolerance)
	positive(&e.LayerIndent, src.Editor.LayerIndent)
	positive(&e.SnapThreshold, src.Editor.SnapThreshold)
	e.Snapping = src.Editor.Snapping
	if e.MinZoom > e.MaxZoom {
		e.MinZoom, e.MaxZoom = e.MaxZoom, e.MinZoom
	}

	positive(&dst.Canvas.Width, src.Canvas.Width)
	positive(&dst.Canvas.Height, src.Canvas.Height)
	if strings.TrimSpace(src.Canvas.Background) != "" {
		dst.Canvas.Background = strings.TrimSpace(src.Canvas.Background)
	}
	if len(src.Canvas.Breakpoints) > 0 {
		dst.Canvas.Breakpoints = append([]domain.Breakpoint(nil), src.Canvas.Breakpoints...)
	}

	if strings.TrimSpace(src.Preview.Addr) != "" {
		dst.Preview.Addr = strings.TrimSpace(src.Preview.Addr)
	}
	if src.Preview.FPS > 0 {
		dst.Preview.FPS = src.Preview.FPS
	}
	dst.Preview.AccessLog = src.Preview.AccessLog

	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPreviewAddr)); v != "" {
		cfg.Preview.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSnapping)); v != "" {
		cfg.Editor.Snapping = truthy(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"backend.base_url":     EnvBackendURL,
	"backend.timeout_ms":   EnvBackendTimeoutMs,
	"backend.tls_insecure": EnvBackendTLSInsec,
	"preview.addr":         EnvPreviewAddr,
	"editor.snapping":      EnvSnapping,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Limits returns the store limits.
func (e EditorConfig) Limits() scene.Limits {
	return scene.Limits{MinZoom: e.MinZoom, MaxZoom: e.MaxZoom, PasteOffset: e.PasteOffset}
}

// Interaction returns the gesture tunables on top of the engine defaults.
func (e EditorConfig) Interaction() interact.Config {
	c := interact.DefaultConfig()
	c.DragThreshold = e.DragThreshold
	c.MarqueeMinSize = e.MarqueeMinSize
	c.AnchorSnap = e.AnchorSnap
	c.MinElementSize = e.MinElementSize
	c.SnapEnabled = e.Snapping
	c.Snap = vector.SnapOptions{Threshold: e.SnapThreshold, SnapToEdges: true, SnapToCenters: true}
	return c
}

// Layers returns the layer list geometry.
func (e EditorConfig) Layers() layers.Config {
	c := layers.DefaultConfig()
	c.Indent = e.LayerIndent
	c.UnnestTolerance = e.UnnestTolerance
	return c
}

// NewDocument returns an empty document with the configured canvas.
func (c CanvasConfig) NewDocument() domain.Document {
	return scene.NewDocument(c.Width, c.Height, c.Background, c.Breakpoints)
}

// RememberProject moves root to the front of the recent list, keeping at
// most ten entries.
func (c *AppConfig) RememberProject(root string) {
	out := []string{root}
	for _, p := range c.General.RecentProjects {
		if p != root && len(out) < 10 {
			out = append(out, p)
		}
	}
	c.General.RecentProjects = out
}

// LogOptions maps the logging section onto logger options.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}
