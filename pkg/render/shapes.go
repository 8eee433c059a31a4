// Package render holds the raster primitives shared by the collage composer and
// the flattener: solid and gradient fills, soft shadows, elliptical clip masks,
// text and glyph rasterization.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// kappa is the cubic Bezier control distance approximating a quarter ellipse.
const kappa = 0.5522847498

// ParseHexColor parses #rgb, #rrggbb or #rrggbbaa. Invalid input yields opaque black.
func ParseHexColor(s string) color.NRGBA {
	c, err := parseHex(s)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	return c
}

func parseHex(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ValidHexColor reports whether s parses as a hex color.
func ValidHexColor(s string) bool {
	_, err := parseHex(s)
	return err == nil
}

// Fill paints rect with c using source-over.
func Fill(dst draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

// VerticalGradient replaces dst's pixels with a linear gradient from top to bottom.
func VerticalGradient(dst *image.RGBA, top, bottom color.NRGBA) {
	b := dst.Bounds()
	h := b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		t := 0.0
		if h > 1 {
			t = float64(y-b.Min.Y) / float64(h-1)
		}
		c := color.NRGBA{
			R: lerp8(top.R, bottom.R, t),
			G: lerp8(top.G, bottom.G, t),
			B: lerp8(top.B, bottom.B, t),
			A: lerp8(top.A, bottom.A, t),
		}
		draw.Draw(dst, image.Rect(b.Min.X, y, b.Max.X, y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

// EllipseMask returns a w x h alpha mask holding an anti-aliased ellipse
// inscribed in the mask bounds.
func EllipseMask(w, h int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return mask
	}

	cx, cy := float32(w)/2, float32(h)/2
	rx, ry := float32(w)/2, float32(h)/2
	kx, ky := rx*kappa, ry*kappa

	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src
	z.MoveTo(cx+rx, cy)
	z.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	z.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	z.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	z.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	z.ClosePath()
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// DropShadow paints a blurred shadow of rect onto dst. blur is the Gaussian
// sigma in pixels and c the shadow color at full strength.
func DropShadow(dst draw.Image, rect image.Rectangle, blur float64, c color.NRGBA) {
	if rect.Empty() {
		return
	}
	pad := int(blur*3 + 0.5)
	shadow := imaging.New(rect.Dx()+2*pad, rect.Dy()+2*pad, color.NRGBA{})
	draw.Draw(shadow, image.Rect(pad, pad, pad+rect.Dx(), pad+rect.Dy()), image.NewUniform(c), image.Point{}, draw.Src)
	if blur > 0 {
		shadow = imaging.Blur(shadow, blur)
	}
	at := rect.Min.Sub(image.Pt(pad, pad))
	draw.Draw(dst, shadow.Bounds().Add(at), shadow, image.Point{}, draw.Over)
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
