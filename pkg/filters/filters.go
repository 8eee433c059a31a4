// Package filters bakes the booth color filters into pixel values.
//
// Each filter is a chain of color operations with the same semantics as the
// CSS filter functions of the same name (grayscale, sepia, saturate,
// hue-rotate, contrast, brightness, opacity). Operations run on straight
// (non-premultiplied) color and clamp to [0,1] between steps, so a given
// filter and input always produce the same output.
package filters

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/booth-compositor/pkg/processing"
)

// Name identifies a filter.
type Name string

const (
	None  Name = "none"
	Noir  Name = "noir"
	Slime Name = "slime"
	Blood Name = "blood"
	Ghost Name = "ghost"
)

// ErrUnknownFilter is returned by Parse for names outside the catalog.
var ErrUnknownFilter = errors.New("unknown filter")

// Names lists the supported filters in display order.
func Names() []Name {
	return []Name{None, Noir, Slime, Blood, Ghost}
}

// Parse converts a string into a filter name. An empty string selects None.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if n == "" {
		return None, nil
	}
	if _, ok := presets[n]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
	return n, nil
}

// pixel is a straight-alpha color with channels in [0,1].
type pixel struct {
	r, g, b, a float64
}

// Op transforms one pixel in place.
type Op func(p *pixel)

// matrix is a 3x3 color matrix applied to r,g,b.
type matrix [9]float64

func (m matrix) op() Op {
	return func(p *pixel) {
		r := m[0]*p.r + m[1]*p.g + m[2]*p.b
		g := m[3]*p.r + m[4]*p.g + m[5]*p.b
		b := m[6]*p.r + m[7]*p.g + m[8]*p.b
		p.r, p.g, p.b = clamp01(r), clamp01(g), clamp01(b)
	}
}

// Grayscale desaturates by amount in [0,1].
func Grayscale(amount float64) Op {
	a := 1 - clamp01(amount)
	return matrix{
		0.2126 + 0.7874*a, 0.7152 - 0.7152*a, 0.0722 - 0.0722*a,
		0.2126 - 0.2126*a, 0.7152 + 0.2848*a, 0.0722 - 0.0722*a,
		0.2126 - 0.2126*a, 0.7152 - 0.7152*a, 0.0722 + 0.9278*a,
	}.op()
}

// Sepia tones by amount in [0,1].
func Sepia(amount float64) Op {
	a := 1 - clamp01(amount)
	return matrix{
		0.393 + 0.607*a, 0.769 - 0.769*a, 0.189 - 0.189*a,
		0.349 - 0.349*a, 0.686 + 0.314*a, 0.168 - 0.168*a,
		0.272 - 0.272*a, 0.534 - 0.534*a, 0.131 + 0.869*a,
	}.op()
}

// Saturate scales saturation; 1 is identity.
func Saturate(s float64) Op {
	return matrix{
		0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s,
	}.op()
}

// HueRotate rotates hue by deg degrees.
func HueRotate(deg float64) Op {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return matrix{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072,
	}.op()
}

// Contrast scales channel distance from mid-gray; 1 is identity.
func Contrast(c float64) Op {
	intercept := 0.5 - 0.5*c
	return func(p *pixel) {
		p.r = clamp01(p.r*c + intercept)
		p.g = clamp01(p.g*c + intercept)
		p.b = clamp01(p.b*c + intercept)
	}
}

// Brightness multiplies every channel; 1 is identity.
func Brightness(b float64) Op {
	return func(p *pixel) {
		p.r = clamp01(p.r * b)
		p.g = clamp01(p.g * b)
		p.b = clamp01(p.b * b)
	}
}

// Opacity multiplies alpha.
func Opacity(o float64) Op {
	o = clamp01(o)
	return func(p *pixel) {
		p.a *= o
	}
}

// Chain is an ordered list of operations.
type Chain []Op

var presets = map[Name]Chain{
	None:  nil,
	Noir:  {Grayscale(1), Contrast(1.1), Brightness(0.9)},
	Slime: {HueRotate(95), Saturate(2), Brightness(1.1)},
	Blood: {Sepia(1), HueRotate(-55), Saturate(3.5)},
	Ghost: {Sepia(1), HueRotate(200), Opacity(0.85), Brightness(1.2)},
}

// ChainFor returns the operation chain of a filter.
func ChainFor(name Name) (Chain, error) {
	chain, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	return chain, nil
}

// Color applies the chain to one color.
func (c Chain) Color(in color.NRGBA) color.NRGBA {
	p := pixel{
		r: float64(in.R) / 255,
		g: float64(in.G) / 255,
		b: float64(in.B) / 255,
		a: float64(in.A) / 255,
	}
	for _, op := range c {
		op(&p)
	}
	return color.NRGBA{
		R: to8(p.r),
		G: to8(p.g),
		B: to8(p.b),
		A: to8(p.a),
	}
}

// Apply returns a new image of the same size with the filter baked in.
// Unknown names are treated as None.
func Apply(img image.Image, name Name) *image.NRGBA {
	chain := presets[name]
	if len(chain) == 0 {
		return imaging.Clone(img)
	}
	return imaging.AdjustFunc(img, chain.Color)
}

// Preview applies the filter to a copy downscaled so its longer edge is at most
// maxDim. It is meant for quick on-screen previews, not for the final output.
func Preview(img image.Image, name Name, maxDim int) *image.NRGBA {
	return Apply(processing.Downscale(img, maxDim), name)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func to8(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
