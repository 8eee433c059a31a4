// Package boothcompositor assembles photo-booth composites.
//
// Photographs are placed either behind a frame graphic, whose transparent
// holes are detected automatically and receive the photos, or into a
// synthesized strip, grid or single layout. Glyph stickers and a color filter
// are then baked into a final raster.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		boothcompositor "github.com/menta2k/booth-compositor"
//		"github.com/menta2k/booth-compositor/pkg/filters"
//		"github.com/menta2k/booth-compositor/pkg/gallery"
//		"github.com/menta2k/booth-compositor/pkg/templates"
//	)
//
//	func main() {
//		bc, err := boothcompositor.New()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		tmpl, _ := templates.Lookup("comic-boom")
//		sess, err := bc.NewSession(tmpl, []string{"shot1.jpg", "shot2.jpg", "shot3.jpg"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		if _, err := sess.Compose(context.Background()); err != nil {
//			log.Fatal(err)
//		}
//
//		sess.SetFilter(filters.Noir)
//		ghost := sess.Stickers.Add("👻")
//		sess.Stickers.Move(ghost.ID, 80, 12)
//
//		sink := gallery.NewDirSink("out", "png", 90, false)
//		if err := sess.Finish(context.Background(), sink); err != nil {
//			log.Fatal(err)
//		}
//		log.Println("saved", sink.LastPath())
//	}
//
// The package consists of these components:
//
// 1. Regions (pkg/regions): transparent slot detection on frame graphics
// 2. Cover (pkg/cover): aspect-preserving fill of a rectangle
// 3. Collage (pkg/collage): frame and synthesized layouts
// 4. Stickers (pkg/stickers): the editable sticker layer
// 5. Flatten (pkg/flatten, pkg/filters): filter and sticker baking
// 6. Session (pkg/session): one compose-decorate-finish run
//
// Frames and photos are fetched by pkg/processing from files, http(s) URLs
// or data: URLs. Finished composites go to a Sink such as the sqlite gallery
// or a directory (pkg/gallery).
package boothcompositor

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/booth-compositor/internal/logging"
	"github.com/menta2k/booth-compositor/pkg/collage"
	"github.com/menta2k/booth-compositor/pkg/cover"
	"github.com/menta2k/booth-compositor/pkg/filters"
	"github.com/menta2k/booth-compositor/pkg/flatten"
	"github.com/menta2k/booth-compositor/pkg/processing"
	"github.com/menta2k/booth-compositor/pkg/regions"
	"github.com/menta2k/booth-compositor/pkg/render"
	"github.com/menta2k/booth-compositor/pkg/session"
	"github.com/menta2k/booth-compositor/pkg/stickers"
	"github.com/menta2k/booth-compositor/pkg/types"
)

// Version of the booth compositor library
const Version = "1.0.0"

// Config gathers the component configurations
type Config struct {
	Detection regions.DetectionConfig
	Composer  collage.Config
	Flatten   flatten.Config
	Loader    processing.Config
	// Resample names the cover-fit filter (see cover.FilterByName).
	Resample string
	// GlyphFonts are extra fonts tried first for sticker glyphs.
	GlyphFonts []string
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Detection: regions.DefaultConfig(),
		Composer:  collage.DefaultConfig(),
		Flatten:   flatten.DefaultConfig(),
		Loader:    processing.DefaultConfig(),
		Resample:  "lanczos",
	}
}

// Compositor provides a high-level interface over the compositing components
type Compositor struct {
	loader    *processing.Processor
	detector  *regions.Detector
	drawer    *cover.Drawer
	fonts     *render.FontSet
	composer  *collage.Composer
	flattener *flatten.Flattener
}

// New creates a Compositor with default configuration
func New() (*Compositor, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Compositor with custom configuration
func NewWithConfig(cfg Config) (*Compositor, error) {
	fonts, err := render.NewFontSet(cfg.GlyphFonts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	loader := processing.NewProcessorWithConfig(cfg.Loader)
	detector := regions.NewWithConfig(cfg.Detection)
	drawer := cover.NewWithConfig(cover.Config{Filter: cover.FilterByName(cfg.Resample)})

	return &Compositor{
		loader:    loader,
		detector:  detector,
		drawer:    drawer,
		fonts:     fonts,
		composer:  collage.New(loader, detector, drawer, fonts, cfg.Composer),
		flattener: flatten.NewWithConfig(fonts, cfg.Flatten),
	}, nil
}

// SetLogger routes library logs to l. Passing nil silences them.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}

// LoadImage fetches and decodes a file, http(s) URL or data: URL
func (c *Compositor) LoadImage(ctx context.Context, ref string) (image.Image, error) {
	return c.loader.Load(ctx, ref)
}

// DetectSlots finds the transparent photo windows of a frame
func (c *Compositor) DetectSlots(frame image.Image) []types.Slot {
	return c.detector.DetectSlots(frame)
}

// Compose builds a base composite for tmpl from photo references
func (c *Compositor) Compose(ctx context.Context, tmpl types.Template, refs []string) (*collage.Result, error) {
	return c.composer.Compose(ctx, tmpl, refs)
}

// ComposeImages builds a base composite from decoded images
func (c *Compositor) ComposeImages(ctx context.Context, tmpl types.Template, frame image.Image, photos []image.Image) (*collage.Result, error) {
	return c.composer.ComposeImages(ctx, tmpl, frame, photos)
}

// Flatten bakes a filter and stickers into a copy of base
func (c *Compositor) Flatten(base image.Image, filter filters.Name, items []stickers.Sticker) (*image.RGBA, error) {
	return c.flattener.Flatten(base, filter, items)
}

// NewSession starts a session for tmpl and the given photo references
func (c *Compositor) NewSession(tmpl types.Template, refs []string) (*session.Session, error) {
	return session.New(c.composer, c.flattener, tmpl, refs)
}

// Render composes, filters and decorates in one call. It returns the final
// image together with the compose result describing the base.
func (c *Compositor) Render(ctx context.Context, tmpl types.Template, refs []string, filter filters.Name, items []stickers.Sticker) (*image.RGBA, *collage.Result, error) {
	res, err := c.Compose(ctx, tmpl, refs)
	if err != nil {
		return nil, nil, err
	}
	final, err := c.Flatten(res.Image, filter, items)
	if err != nil {
		return nil, res, fmt.Errorf("flatten failed: %w", err)
	}
	return final, res, nil
}

// ApplyFilter returns a filtered copy of img
func ApplyFilter(img image.Image, name filters.Name) *image.NRGBA {
	return filters.Apply(img, name)
}

// EncodePNG encodes img losslessly with alpha preserved
func EncodePNG(img image.Image) ([]byte, error) {
	return processing.EncodePNG(img)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
