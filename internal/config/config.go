package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/booth-compositor/pkg/filters"
	"github.com/menta2k/booth-compositor/pkg/regions"
	"github.com/menta2k/booth-compositor/pkg/render"
)

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Composer ComposerConfig `json:"composer"`
	Flatten  FlattenConfig  `json:"flatten"`
	Loader   LoaderConfig   `json:"loader"`
	Output   OutputConfig   `json:"output"`
	Gallery  GalleryConfig  `json:"gallery"`
}

// DetectorConfig holds configuration for transparent slot detection
type DetectorConfig struct {
	MaxDimension   int     `json:"max_dimension"`
	AlphaThreshold int     `json:"alpha_threshold"`
	MinAreaRatio   float64 `json:"min_area_ratio"`
}

// ComposerConfig holds configuration for collage composition
type ComposerConfig struct {
	Background string  `json:"background"`
	Gap        float64 `json:"gap"`
	Header     float64 `json:"header"`
	Footer     float64 `json:"footer"`
	Title      string  `json:"title"`
	Brand      string  `json:"brand"`
	// Resample names the cover-fit filter: lanczos, catmullrom, linear, box or nearest.
	Resample string `json:"resample"`
	QRSize   int    `json:"qr_size"`
}

// FlattenConfig holds configuration for the final render
type FlattenConfig struct {
	BaseGlyphSize float64 `json:"base_glyph_size"`
	GlyphColor    string  `json:"glyph_color"`
	// FontPath points to an outline font with emoji coverage for stickers.
	FontPath      string `json:"font_path"`
	DefaultFilter string `json:"default_filter"`
}

// LoaderConfig holds configuration for fetching frames and photos
type LoaderConfig struct {
	BaseDir        string `json:"base_dir"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	UserAgent      string `json:"user_agent"`
	MaxBytes       int64  `json:"max_bytes"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
	OutputDir     string `json:"output_dir"`
	Prefix        string `json:"prefix"`
}

// GalleryConfig holds configuration for the sqlite gallery
type GalleryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			MaxDimension:   800,
			AlphaThreshold: 10,
			MinAreaRatio:   0.002,
		},
		Composer: ComposerConfig{
			Background: "#050510",
			Gap:        50,
			Header:     160,
			Footer:     220,
			Title:      "SPOOKY CUTE MEMORIES",
			Brand:      "BOOTH SNAP",
			Resample:   "lanczos",
			QRSize:     96,
		},
		Flatten: FlattenConfig{
			BaseGlyphSize: 90,
			GlyphColor:    "#ffffff",
			DefaultFilter: "none",
		},
		Loader: LoaderConfig{
			TimeoutSeconds: 30,
			UserAgent:      "Booth-Compositor/1.0 (+https://github.com/menta2k/booth-compositor)",
			MaxBytes:       32 << 20,
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			Quality:       90,
			Lossless:      false,
			OutputDir:     "./output",
			Prefix:        "booth",
		},
		Gallery: GalleryConfig{
			Enabled: false,
			Path:    "./data/gallery.db",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Detector.MaxDimension < 1 || c.Detector.MaxDimension > regions.MaxWorkingDimension {
		return fmt.Errorf("detector.max_dimension must be between 1 and %d", regions.MaxWorkingDimension)
	}

	if c.Detector.AlphaThreshold < 1 || c.Detector.AlphaThreshold > 255 {
		return fmt.Errorf("detector.alpha_threshold must be between 1 and 255")
	}

	if c.Detector.MinAreaRatio < 0 || c.Detector.MinAreaRatio >= 1 {
		return fmt.Errorf("detector.min_area_ratio must be between 0 and 1")
	}

	if c.Composer.Gap < 0 || c.Composer.Header < 0 || c.Composer.Footer < 0 {
		return fmt.Errorf("composer.gap, header and footer must not be negative")
	}

	if !render.ValidHexColor(c.Composer.Background) {
		return fmt.Errorf("composer.background must be a hex color")
	}

	if c.Flatten.BaseGlyphSize <= 0 {
		return fmt.Errorf("flatten.base_glyph_size must be positive")
	}

	if !render.ValidHexColor(c.Flatten.GlyphColor) {
		return fmt.Errorf("flatten.glyph_color must be a hex color")
	}

	if _, err := filters.Parse(c.Flatten.DefaultFilter); err != nil {
		return fmt.Errorf("flatten.default_filter: %w", err)
	}

	if c.Loader.TimeoutSeconds < 1 {
		return fmt.Errorf("loader.timeout_seconds must be positive")
	}

	switch c.Output.DefaultFormat {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.default_format must be png, jpg or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Gallery.Enabled && c.Gallery.Path == "" {
		return fmt.Errorf("gallery.path is required when the gallery is enabled")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "booth-compositor", "config.json")
}
