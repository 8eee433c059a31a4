package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// DrawCentered draws s horizontally centered on cx with its baseline at y.
func DrawCentered(dst draw.Image, face font.Face, s string, cx, y int, c color.Color) {
	width := font.MeasureString(face, s)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(cx) - width/2, Y: fixed.I(y)},
	}
	d.DrawString(s)
}

// DrawText draws s with its baseline starting at (x, y).
func DrawText(dst draw.Image, face font.Face, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// TextWidth returns the advance width of s in whole pixels.
func TextWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// InkSize returns the size in pixels of the visible ink of s without
// rasterizing it.
func InkSize(face font.Face, s string) image.Point {
	bounds, _ := font.BoundString(face, s)
	w := bounds.Max.X.Ceil() - bounds.Min.X.Floor()
	h := bounds.Max.Y.Ceil() - bounds.Min.Y.Floor()
	if w <= 0 || h <= 0 {
		return image.Point{}
	}
	return image.Pt(w, h)
}

// RasterizeGlyph renders s into a transparent image cropped to its ink bounds,
// so the image center is the center of the visible glyph. Strings without ink
// yield a 1x1 transparent image.
func RasterizeGlyph(face font.Face, s string, c color.Color) *image.NRGBA {
	bounds, _ := font.BoundString(face, s)
	minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	maxX, maxY := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()
	if maxX <= minX || maxY <= minY {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}

	img := image.NewNRGBA(image.Rect(0, 0, maxX-minX, maxY-minY))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(-minX, -minY),
	}
	d.DrawString(s)
	return img
}
