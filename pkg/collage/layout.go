package collage

import (
	"image"
	"math"

	"github.com/menta2k/booth-compositor/pkg/types"
)

// Layout is the geometry of a synthesized collage.
type Layout struct {
	Width  int
	Height int
	// Cells holds one rectangle per photo, in draw order.
	Cells []image.Rectangle
}

// FallbackLayout computes the canvas size and photo cells for n photos.
//
//   - strip: one column of 4:3 cells, StripWidth wide
//   - grid: two columns of 4:3 cells, GridWidth wide, ceil(n/2) rows
//   - single: a fixed SingleWidth x SingleHeight canvas with one cell spanning the body
func FallbackLayout(kind types.LayoutKind, n int, config Config) Layout {
	if n < 1 {
		n = 1
	}
	gap, head, foot := config.Gap, config.Header, config.Footer
	aspect := config.CellAspect
	if aspect <= 0 {
		aspect = 0.75
	}

	switch kind {
	case types.LayoutGrid:
		cw := float64(config.GridWidth)
		w := (cw - gap*3) / 2
		h := w * aspect
		rows := (n + 1) / 2
		ch := head + foot + float64(rows)*h + float64(rows-1)*gap

		l := Layout{Width: int(cw), Height: int(ch)}
		for i := 0; i < n; i++ {
			col, row := i%2, i/2
			x := gap + float64(col)*(w+gap)
			y := head + float64(row)*(h+gap)
			l.Cells = append(l.Cells, rect(x, y, w, h))
		}
		return l

	case types.LayoutSingle:
		cw, ch := float64(config.SingleWidth), float64(config.SingleHeight)
		return Layout{
			Width:  int(cw),
			Height: int(ch),
			Cells:  []image.Rectangle{rect(gap, head, cw-gap*2, ch-head-foot)},
		}

	default:
		cw := float64(config.StripWidth)
		w := cw - gap*2
		h := w * aspect
		ch := head + foot + float64(n)*h + float64(n-1)*gap

		l := Layout{Width: int(cw), Height: int(ch)}
		for i := 0; i < n; i++ {
			l.Cells = append(l.Cells, rect(gap, head+float64(i)*(h+gap), w, h))
		}
		return l
	}
}

func rect(x, y, w, h float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x)),
		int(math.Round(y)),
		int(math.Round(x+w)),
		int(math.Round(y+h)),
	)
}
