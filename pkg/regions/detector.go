package regions

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/booth-compositor/pkg/types"
)

// Detector finds transparent photo windows inside frame artwork
type Detector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for region detection
type DetectionConfig struct {
	// MaxDimension caps the longer edge of the working raster
	MaxDimension int
	// AlphaThreshold marks a pixel open when its alpha is strictly below it
	AlphaThreshold uint8
	// MinAreaRatio drops components whose bounding box covers this fraction of the image or less
	MinAreaRatio float64
}

// MaxWorkingDimension bounds DetectionConfig.MaxDimension so the working
// raster and its masks stay a reasonable size.
const MaxWorkingDimension = 8192

// DefaultConfig returns the detection settings used by New
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		MaxDimension:   800,
		AlphaThreshold: 10,
		MinAreaRatio:   0.002,
	}
}

// New creates a new Detector with default configuration
func New() *Detector {
	return &Detector{config: DefaultConfig()}
}

// NewWithConfig creates a new Detector with custom configuration.
// Zero fields fall back to their defaults and MaxDimension is capped at
// MaxWorkingDimension.
func NewWithConfig(config DetectionConfig) *Detector {
	def := DefaultConfig()
	if config.MaxDimension <= 0 {
		config.MaxDimension = def.MaxDimension
	}
	if config.MaxDimension > MaxWorkingDimension {
		config.MaxDimension = MaxWorkingDimension
	}
	if config.AlphaThreshold == 0 {
		config.AlphaThreshold = def.AlphaThreshold
	}
	if config.MinAreaRatio <= 0 {
		config.MinAreaRatio = def.MinAreaRatio
	}
	return &Detector{config: config}
}

// Config returns the active configuration
func (d *Detector) Config() DetectionConfig {
	return d.config
}

// Region is a connected transparent component on the working raster
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Pixels int
}

// Area returns the bounding box area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Detect returns the transparent components of img that survive noise filtering,
// in pixel coordinates of the working raster, sorted top-to-bottom then left-to-right.
// The working raster size is returned alongside.
func (d *Detector) Detect(img image.Image) ([]Region, image.Point) {
	work := d.workingRaster(img)
	if work == nil {
		return nil, image.Point{}
	}
	w, h := work.Bounds().Dx(), work.Bounds().Dy()

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := work.Pix[y*work.Stride : y*work.Stride+w*4]
		for x := 0; x < w; x++ {
			mask[y*w+x] = row[x*4+3] < d.config.AlphaThreshold
		}
	}

	minArea := d.config.MinAreaRatio * float64(w*h)
	visited := make([]bool, w*h)
	var stack []int
	var regions []Region

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		var region Region
		region, stack = flood(mask, visited, stack, w, h, start)
		if float64(region.Area()) > minArea {
			regions = append(regions, region)
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Y != regions[j].Y {
			return regions[i].Y < regions[j].Y
		}
		return regions[i].X < regions[j].X
	})
	return regions, image.Pt(w, h)
}

// DetectSlots returns the normalized placement slots of a frame image.
// An opaque frame yields an empty list.
func (d *Detector) DetectSlots(img image.Image) []types.Slot {
	regions, size := d.Detect(img)
	if len(regions) == 0 {
		return nil
	}
	fw, fh := float64(size.X), float64(size.Y)

	slots := make([]types.Slot, 0, len(regions))
	for _, r := range regions {
		slots = append(slots, types.Slot{
			X:      float64(r.X) / fw,
			Y:      float64(r.Y) / fh,
			Width:  float64(r.Width) / fw,
			Height: float64(r.Height) / fh,
			Area:   r.Area(),
		})
	}
	return slots
}

// workingRaster downscales img so its longer edge fits MaxDimension.
func (d *Detector) workingRaster(img image.Image) *image.NRGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	longer := w
	if h > longer {
		longer = h
	}
	if longer <= d.config.MaxDimension {
		return imaging.Clone(img)
	}

	scale := float64(d.config.MaxDimension) / float64(longer)
	dw := int(float64(w)*scale + 0.5)
	dh := int(float64(h)*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	return imaging.Resize(img, dw, dh, imaging.Linear)
}

// flood labels the 4-connected component containing start. It uses an explicit
// stack so large transparent areas cannot exhaust the goroutine stack; the stack
// slice is returned for reuse.
func flood(mask, visited []bool, stack []int, w, h, start int) (Region, []int) {
	sx, sy := start%w, start/w
	minX, maxX, minY, maxY := sx, sx, sy, sy
	count := 0

	stack = append(stack[:0], start)
	visited[start] = true

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++

		x, y := idx%w, idx/w
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		if x+1 < w {
			stack = push(mask, visited, stack, idx+1)
		}
		if x > 0 {
			stack = push(mask, visited, stack, idx-1)
		}
		if y+1 < h {
			stack = push(mask, visited, stack, idx+w)
		}
		if y > 0 {
			stack = push(mask, visited, stack, idx-w)
		}
	}

	return Region{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
		Pixels: count,
	}, stack
}

func push(mask, visited []bool, stack []int, idx int) []int {
	if visited[idx] || !mask[idx] {
		return stack
	}
	visited[idx] = true
	return append(stack, idx)
}
