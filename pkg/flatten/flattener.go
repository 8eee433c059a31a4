// Package flatten bakes a color filter and a sticker layer into a copy of a
// base composite, producing the final raster.
package flatten

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/booth-compositor/internal/logging"
	"github.com/menta2k/booth-compositor/pkg/filters"
	"github.com/menta2k/booth-compositor/pkg/render"
	"github.com/menta2k/booth-compositor/pkg/stickers"
)

// ErrEmptyBase is returned when the base composite has no pixels.
var ErrEmptyBase = errors.New("base composite is empty")

// MaxGlyphSizeFactor bounds the rasterized glyph size to this multiple of the
// canvas diagonal. Larger stickers already cover the whole canvas.
const MaxGlyphSizeFactor = 2.0

// Config holds configuration for the flattener
type Config struct {
	// BaseGlyphSize is the glyph size in pixels at scale 1.
	BaseGlyphSize float64 `json:"base_glyph_size"`
	// GlyphColor is used for glyphs from outline fonts, as a hex color.
	GlyphColor string `json:"glyph_color"`
}

// DefaultConfig returns the default flattener configuration
func DefaultConfig() Config {
	return Config{
		BaseGlyphSize: 90,
		GlyphColor:    "#ffffff",
	}
}

// Flattener renders final images
type Flattener struct {
	fonts  *render.FontSet
	config Config
	color  color.NRGBA
}

// New creates a flattener with the default configuration
func New(fonts *render.FontSet) *Flattener {
	return NewWithConfig(fonts, DefaultConfig())
}

// NewWithConfig creates a flattener with custom configuration
func NewWithConfig(fonts *render.FontSet, config Config) *Flattener {
	def := DefaultConfig()
	if config.BaseGlyphSize <= 0 {
		config.BaseGlyphSize = def.BaseGlyphSize
	}
	if config.GlyphColor == "" {
		config.GlyphColor = def.GlyphColor
	}
	return &Flattener{
		fonts:  fonts,
		config: config,
		color:  render.ParseHexColor(config.GlyphColor),
	}
}

// Config returns the flattener configuration
func (f *Flattener) Config() Config {
	return f.config
}

// Flatten returns a new image the size of base with the filter applied and the
// stickers painted in order. base is not modified.
func (f *Flattener) Flatten(base image.Image, filter filters.Name, items []stickers.Sticker) (*image.RGBA, error) {
	if base == nil || base.Bounds().Empty() {
		return nil, ErrEmptyBase
	}

	filtered := filters.Apply(base, filter)
	b := filtered.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), filtered, b.Min, draw.Src)

	for _, s := range items {
		if err := f.paint(out, s); err != nil {
			return nil, fmt.Errorf("failed to paint sticker %d: %w", s.ID, err)
		}
	}
	return out, nil
}

// Position converts a sticker's viewport percentages into pixel coordinates on
// a w x h canvas.
func Position(s stickers.Sticker, w, h int) (float64, float64) {
	return s.X / 100 * float64(w), s.Y / 100 * float64(h)
}

func (f *Flattener) paint(dst *image.RGBA, s stickers.Sticker) error {
	if s.Glyph == "" || !(s.Scale > 0) {
		logging.Logger().Warn("skipping sticker", "id", s.ID, "glyph", s.Glyph, "scale", s.Scale)
		return nil
	}

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	cx, cy := Position(s, w, h)

	// Ink grows linearly with size, so measure once at the base size.
	base, err := f.fonts.FaceFor(render.Glyph, s.Glyph, f.config.BaseGlyphSize)
	if err != nil {
		return err
	}
	ink := render.InkSize(base, s.Glyph)
	radius := math.Hypot(float64(ink.X), float64(ink.Y)) / 2 * s.Scale
	if !reachesCanvas(cx, cy, radius, w, h) {
		logging.Logger().Debug("sticker outside canvas", "id", s.ID, "x", s.X, "y", s.Y, "scale", s.Scale)
		return nil
	}

	size := math.Min(f.config.BaseGlyphSize*s.Scale, MaxGlyphSizeFactor*math.Hypot(float64(w), float64(h)))
	face, err := f.fonts.FaceFor(render.Glyph, s.Glyph, size)
	if err != nil {
		return err
	}

	var glyph image.Image = render.RasterizeGlyph(face, s.Glyph, f.color)
	if rot := stickers.NormalizeRotation(s.Rotation); rot != 0 {
		// imaging rotates counter-clockwise
		glyph = imaging.Rotate(glyph, -rot, color.Transparent)
	}

	gb := glyph.Bounds()
	at := image.Pt(
		int(math.Round(cx-float64(gb.Dx())/2)),
		int(math.Round(cy-float64(gb.Dy())/2)),
	)
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(gb.Size())}, glyph, gb.Min, draw.Over)
	return nil
}

// reachesCanvas reports whether a disc of radius r centered on (cx, cy)
// overlaps the w x h canvas.
func reachesCanvas(cx, cy, r float64, w, h int) bool {
	dx := cx - math.Max(0, math.Min(cx, float64(w)))
	dy := cy - math.Max(0, math.Min(cy, float64(h)))
	return dx*dx+dy*dy < r*r
}
