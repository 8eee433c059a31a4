// Package cover draws images into rectangles with "cover" semantics: the
// destination is filled completely, the source aspect ratio is preserved and the
// overflowing axis is center-cropped.
package cover

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Rect is a floating point rectangle in source pixel space.
type Rect struct {
	X, Y, Width, Height float64
}

// SourceRect returns the centered sub-rectangle of a sw x sh source whose
// aspect ratio matches a dw x dh destination.
func SourceRect(sw, sh, dw, dh float64) Rect {
	if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 {
		return Rect{}
	}
	srcRatio := sw / sh
	dstRatio := dw / dh

	if srcRatio > dstRatio {
		w := sh * dstRatio
		return Rect{X: (sw - w) / 2, Y: 0, Width: w, Height: sh}
	}
	h := sw / dstRatio
	return Rect{X: 0, Y: (sh - h) / 2, Width: sw, Height: h}
}

// Config holds configuration for the cover drawer
type Config struct {
	Filter imaging.ResampleFilter
}

// Drawer performs cover-fit draws
type Drawer struct {
	config Config
}

// New creates a Drawer that resamples with Lanczos
func New() *Drawer {
	return &Drawer{config: Config{Filter: imaging.Lanczos}}
}

// NewWithConfig creates a Drawer with custom configuration
func NewWithConfig(config Config) *Drawer {
	return &Drawer{config: config}
}

// FilterByName maps a resampling filter name to its imaging filter.
// Unknown names select Lanczos.
func FilterByName(name string) imaging.ResampleFilter {
	switch name {
	case "nearest":
		return imaging.NearestNeighbor
	case "box":
		return imaging.Box
	case "linear", "bilinear":
		return imaging.Linear
	case "catmullrom":
		return imaging.CatmullRom
	default:
		return imaging.Lanczos
	}
}

// Fit crops src to the aspect ratio of w x h and resamples it to exactly that size.
func (d *Drawer) Fit(src image.Image, w, h int) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	b := src.Bounds()
	if b.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, w, h))
	}

	r := SourceRect(float64(b.Dx()), float64(b.Dy()), float64(w), float64(h))
	crop := image.Rect(
		b.Min.X+int(math.Round(r.X)),
		b.Min.Y+int(math.Round(r.Y)),
		b.Min.X+int(math.Round(r.X+r.Width)),
		b.Min.Y+int(math.Round(r.Y+r.Height)),
	)
	if crop.Dx() < 1 {
		crop.Max.X = crop.Min.X + 1
	}
	if crop.Dy() < 1 {
		crop.Max.Y = crop.Min.Y + 1
	}

	cropped := imaging.Crop(src, crop)
	if cropped.Bounds().Dx() == w && cropped.Bounds().Dy() == h {
		return cropped
	}
	return imaging.Resize(cropped, w, h, d.config.Filter)
}

// Draw composites src into rect of dst with cover semantics. When mask is not
// nil it clips the draw; mask coordinates are aligned with rect.Min.
func (d *Drawer) Draw(dst draw.Image, rect image.Rectangle, src image.Image, mask image.Image) {
	if rect.Empty() || src == nil {
		return
	}
	fitted := d.Fit(src, rect.Dx(), rect.Dy())
	if mask == nil {
		draw.Draw(dst, rect, fitted, image.Point{}, draw.Over)
		return
	}
	draw.DrawMask(dst, rect, fitted, image.Point{}, mask, mask.Bounds().Min, draw.Over)
}
