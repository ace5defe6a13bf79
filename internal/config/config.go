/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
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

	"gopkg.in/yaml.v3"

	"sketchboard/internal/placement"
	"sketchboard/internal/vector"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Canvas        CanvasConfig    `yaml:"canvas"`
	Placement     PlacementConfig `yaml:"placement"`
	Render        RenderConfig    `yaml:"render"`
	Storage       StorageConfig   `yaml:"storage"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// CanvasConfig tunes editing behavior. Sizes are in screen pixels.
type CanvasConfig struct {
	MinSize      float64 `yaml:"min_size"`
	MinZoom      float64 `yaml:"min_zoom"`
	MaxZoom      float64 `yaml:"max_zoom"`
	HistoryDepth int     `yaml:"history_depth"`
	HandlePx     float64 `yaml:"handle_px"`
	HitTolerance float64 `yaml:"hit_tolerance"`
	SnapPx       float64 `yaml:"snap_px"`
}

type PlacementConfig struct {
	PreferredGap  float64 `yaml:"preferred_gap"`
	Buffer        float64 `yaml:"buffer"`
	SpiralStep    float64 `yaml:"spiral_step"`
	MaxIterations int     `yaml:"max_iterations"`
	DefaultX      float64 `yaml:"default_x"`
	DefaultY      float64 `yaml:"default_y"`
}

type RenderConfig struct {
	FontPath         string  `yaml:"font_path"` // TTF/OTF; empty uses the bundled Go font
	DPI              float64 `yaml:"dpi"`
	DevicePixelRatio float64 `yaml:"device_pixel_ratio"`
	Background       string  `yaml:"background"` // hex color
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "file" | "sqlite" | "postgres"
	DSN    string `yaml:"dsn"`    // postgres connection string
	// KeepSnapshots bounds the autosave history per project on the sqlite
	// and postgres drivers.
	KeepSnapshots int `yaml:"keep_snapshots"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	pc := placement.DefaultConfig()
	return AppConfig{
		ConfigVersion: 1,
		Canvas:        CanvasConfig{MinSize: 10, MinZoom: 0.1, MaxZoom: 5, HistoryDepth: 50, HandlePx: 10, HitTolerance: 5, SnapPx: 6},
		Placement: PlacementConfig{
			PreferredGap:  pc.PreferredGap,
			Buffer:        pc.Buffer,
			SpiralStep:    pc.SpiralStep,
			MaxIterations: pc.MaxIterations,
			DefaultX:      pc.DefaultOrigin.X,
			DefaultY:      pc.DefaultOrigin.Y,
		},
		Render:  RenderConfig{DPI: 72, DevicePixelRatio: 1, Background: "#ffffff"},
		Storage: StorageConfig{Driver: "file", KeepSnapshots: 20},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Planner converts the section into the planner's own config type.
func (p PlacementConfig) Planner() placement.Config {
	return placement.Config{
		PreferredGap:  p.PreferredGap,
		Buffer:        p.Buffer,
		SpiralStep:    p.SpiralStep,
		MaxIterations: p.MaxIterations,
		DefaultOrigin: vector.Pt{X: p.DefaultX, Y: p.DefaultY},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath    = "SKB_CONFIG"
	EnvHistoryDepth  = "SKB_HISTORY_DEPTH"
	EnvPlacementGap  = "SKB_PLACEMENT_GAP"
	EnvRenderFont    = "SKB_RENDER_FONT"
	EnvRenderDPR     = "SKB_RENDER_DPR"
	EnvStorageDriver = "SKB_STORAGE_DRIVER"
	EnvStorageDSN    = "SKB_STORAGE_DSN"
	EnvLogLevel      = "SKB_LOG_LEVEL"
	EnvLogFormat     = "SKB_LOG_FORMAT"
	EnvLogSource     = "SKB_LOG_SOURCE"
	EnvLogFile       = "SKB_LOG_FILE"
)

// envKeys maps dotted config keys to the variable that overrides them.
var envKeys = map[string]string{
	"canvas.history_depth":      EnvHistoryDepth,
	"placement.preferred_gap":   EnvPlacementGap,
	"render.font_path":          EnvRenderFont,
	"render.device_pixel_ratio": EnvRenderDPR,
	"storage.driver":            EnvStorageDriver,
	"storage.dsn":               EnvStorageDSN,
	"logging.level":             EnvLogLevel,
	"logging.format":            EnvLogFormat,
	"logging.source":            EnvLogSource,
	"logging.file":              EnvLogFile,
}

// ConfigPath returns the per-user config file path. SKB_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Sketchboard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Sketchboard")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "sketchboard")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "sketchboard")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file. A missing file is not an error; a
// file that is not valid YAML is.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path, creating parent directories.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mergeInto copies every field src sets over dst. Zero numbers and blank
// strings mean "not set"; booleans always come from the file.
func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setF(&dst.Canvas.MinSize, src.Canvas.MinSize)
	setF(&dst.Canvas.MinZoom, src.Canvas.MinZoom)
	setF(&dst.Canvas.MaxZoom, src.Canvas.MaxZoom)
	setI(&dst.Canvas.HistoryDepth, src.Canvas.HistoryDepth)
	setF(&dst.Canvas.HandlePx, src.Canvas.HandlePx)
	setF(&dst.Canvas.HitTolerance, src.Canvas.HitTolerance)
	setF(&dst.Canvas.SnapPx, src.Canvas.SnapPx)

	setF(&dst.Placement.PreferredGap, src.Placement.PreferredGap)
	setF(&dst.Placement.Buffer, src.Placement.Buffer)
	setF(&dst.Placement.SpiralStep, src.Placement.SpiralStep)
	setI(&dst.Placement.MaxIterations, src.Placement.MaxIterations)
	setF(&dst.Placement.DefaultX, src.Placement.DefaultX)
	setF(&dst.Placement.DefaultY, src.Placement.DefaultY)

	setS(&dst.Render.FontPath, src.Render.FontPath)
	setF(&dst.Render.DPI, src.Render.DPI)
	setF(&dst.Render.DevicePixelRatio, src.Render.DevicePixelRatio)
	setS(&dst.Render.Background, src.Render.Background)

	if v := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); v != "" {
		dst.Storage.Driver = v
	}
	setS(&dst.Storage.DSN, src.Storage.DSN)
	setI(&dst.Storage.KeepSnapshots, src.Storage.KeepSnapshots)

	if v := strings.ToLower(strings.TrimSpace(src.Logging.Level)); v != "" {
		dst.Logging.Level = v
	}
	if v := strings.ToLower(strings.TrimSpace(src.Logging.Format)); v != "" {
		dst.Logging.Format = v
	}
	dst.Logging.Source = src.Logging.Source
	setS(&dst.Logging.File, src.Logging.File)
}

func setF(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setI(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setS(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := env(EnvHistoryDepth); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Canvas.HistoryDepth = n
		}
	}
	if v := env(EnvPlacementGap); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Placement.PreferredGap = f
		}
	}
	if v := env(EnvRenderFont); v != "" {
		cfg.Render.FontPath = v
	}
	if v := env(EnvRenderDPR); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Render.DevicePixelRatio = f
		}
	}
	if v := env(EnvStorageDriver); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := env(EnvStorageDSN); v != "" {
		cfg.Storage.DSN = v
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
