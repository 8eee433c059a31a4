// Package collage assembles photographs into a single base composite, either
// behind a frame graphic whose transparent holes mark the photo windows or in
// a synthesized strip, grid or single layout.
package collage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"github.com/menta2k/booth-compositor/internal/logging"
	"github.com/menta2k/booth-compositor/pkg/cover"
	"github.com/menta2k/booth-compositor/pkg/regions"
	"github.com/menta2k/booth-compositor/pkg/render"
	"github.com/menta2k/booth-compositor/pkg/types"
)

var (
	// ErrAssetLoad wraps failures to fetch or decode a frame or photo.
	ErrAssetLoad = errors.New("asset load failed")
	// ErrNoUsableRegions means the frame has no transparent holes and the
	// template has no manual slots.
	ErrNoUsableRegions = errors.New("frame has no usable regions")
	// ErrInsufficientPhotos is returned when there is no photo to compose.
	ErrInsufficientPhotos = errors.New("no photos to compose")
)

// Source fetches and decodes a raster addressed by ref.
type Source interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Mode tells how a composite was produced.
type Mode string

const (
	ModeFrame    Mode = "frame"
	ModeFallback Mode = "fallback"
)

// Result is a finished base composite.
type Result struct {
	Image *image.RGBA
	Mode  Mode
	// Slots are the frame slots used, in draw order. Empty in fallback mode.
	Slots []types.Slot
	// PhotosUsed counts the photos drawn onto the canvas.
	PhotosUsed int
	// Warnings records recoverable problems such as skipped photos or a
	// frame that could not be used.
	Warnings []error
}

// Config holds configuration for the composer
type Config struct {
	Background string  `json:"background"`
	Gap        float64 `json:"gap"`
	Header     float64 `json:"header"`
	Footer     float64 `json:"footer"`
	CellAspect float64 `json:"cell_aspect"`

	StripWidth   int `json:"strip_width"`
	GridWidth    int `json:"grid_width"`
	SingleWidth  int `json:"single_width"`
	SingleHeight int `json:"single_height"`

	Title      string  `json:"title"`
	Brand      string  `json:"brand"`
	Border     int     `json:"border"`
	ShadowBlur float64 `json:"shadow_blur"`
	QRSize     int     `json:"qr_size"`

	// Now stamps the footer date. Defaults to time.Now.
	Now func() time.Time `json:"-"`
}

// DefaultConfig returns the default composer configuration
func DefaultConfig() Config {
	return Config{
		Background:   "#050510",
		Gap:          50,
		Header:       160,
		Footer:       220,
		CellAspect:   0.75,
		StripWidth:   700,
		GridWidth:    1100,
		SingleWidth:  900,
		SingleHeight: 1000,
		Title:        "SPOOKY CUTE MEMORIES",
		Brand:        "BOOTH SNAP",
		Border:       8,
		ShadowBlur:   20,
		QRSize:       96,
		Now:          time.Now,
	}
}

const (
	defaultGradientTop    = "#1a1c2c"
	defaultGradientBottom = "#0c0d15"
)

// Composer builds base composites
type Composer struct {
	source   Source
	detector *regions.Detector
	drawer   *cover.Drawer
	fonts    *render.FontSet
	config   Config
}

// New creates a composer. Nil detector and drawer select the defaults. Zero
// canvas sizes, cell aspect and background, and negative spacing, take their
// values from DefaultConfig. Empty title and brand stay empty.
func New(source Source, detector *regions.Detector, drawer *cover.Drawer, fonts *render.FontSet, config Config) *Composer {
	if detector == nil {
		detector = regions.New()
	}
	if drawer == nil {
		drawer = cover.New()
	}
	return &Composer{
		source:   source,
		detector: detector,
		drawer:   drawer,
		fonts:    fonts,
		config:   withDefaults(config),
	}
}

func withDefaults(config Config) Config {
	def := DefaultConfig()
	if config.Background == "" {
		config.Background = def.Background
	}
	if config.Gap < 0 {
		config.Gap = def.Gap
	}
	if config.Header < 0 {
		config.Header = def.Header
	}
	if config.Footer < 0 {
		config.Footer = def.Footer
	}
	if config.CellAspect <= 0 {
		config.CellAspect = def.CellAspect
	}
	if config.StripWidth <= 0 {
		config.StripWidth = def.StripWidth
	}
	if config.GridWidth <= 0 {
		config.GridWidth = def.GridWidth
	}
	if config.SingleWidth <= 0 {
		config.SingleWidth = def.SingleWidth
	}
	if config.SingleHeight <= 0 {
		config.SingleHeight = def.SingleHeight
	}
	if config.Border < 0 {
		config.Border = def.Border
	}
	if config.ShadowBlur < 0 {
		config.ShadowBlur = def.ShadowBlur
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return config
}

// Config returns the composer configuration
func (c *Composer) Config() Config {
	return c.config
}

// Compose loads the frame and photos referenced by tmpl and refs and builds
// the base composite. Frame mode is attempted first when the template has a
// frame; any failure there falls back to the synthesized layout.
func (c *Composer) Compose(ctx context.Context, tmpl types.Template, refs []string) (*Result, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, ErrInsufficientPhotos
	}
	if c.source == nil {
		return nil, fmt.Errorf("%w: no image source configured", ErrAssetLoad)
	}

	var warnings []error
	if tmpl.FrameURL != "" {
		res, err := c.composeFrameRefs(ctx, tmpl, refs)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.Logger().Warn("frame overlay failed, falling back to generated layout",
			"template", tmpl.ID, "frame", tmpl.FrameURL, "error", err)
		warnings = append(warnings, err)
	}

	photos, errs := c.loadAll(ctx, refs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var usable []image.Image
	for i, img := range photos {
		if img == nil {
			logging.Logger().Warn("skipping photo", "ref", refs[i], "error", errs[i])
			warnings = append(warnings, errs[i])
			continue
		}
		usable = append(usable, img)
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: none of %d photos could be loaded", ErrAssetLoad, len(refs))
	}

	res := c.composeFallback(tmpl, usable)
	res.Warnings = append(warnings, res.Warnings...)
	return res, nil
}

// ComposeImages builds the base composite from decoded images. frame may be
// nil, in which case the synthesized layout is used.
func (c *Composer) ComposeImages(ctx context.Context, tmpl types.Template, frame image.Image, photos []image.Image) (*Result, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	var usable []image.Image
	for _, p := range photos {
		if p != nil && !p.Bounds().Empty() {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return nil, ErrInsufficientPhotos
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var warnings []error
	if frame != nil && !frame.Bounds().Empty() {
		slots := c.slotsFor(tmpl, frame)
		if len(slots) > 0 {
			n := min(len(slots), len(usable))
			return c.composeFrame(frame, slots[:n], usable[:n]), nil
		}
		warnings = append(warnings, fmt.Errorf("template %q: %w", tmpl.ID, ErrNoUsableRegions))
	}

	res := c.composeFallback(tmpl, usable)
	res.Warnings = append(warnings, res.Warnings...)
	return res, nil
}

func (c *Composer) composeFrameRefs(ctx context.Context, tmpl types.Template, refs []string) (*Result, error) {
	frame, err := c.source.Load(ctx, tmpl.FrameURL)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %s: %w", ErrAssetLoad, tmpl.FrameURL, err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, fmt.Errorf("%w: frame %s is empty", ErrAssetLoad, tmpl.FrameURL)
	}

	slots := c.slotsFor(tmpl, frame)
	if len(slots) == 0 {
		return nil, fmt.Errorf("template %q: %w", tmpl.ID, ErrNoUsableRegions)
	}

	n := min(len(slots), len(refs))
	photos, errs := c.loadAll(ctx, refs[:n])
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, img := range photos {
		if img == nil {
			return nil, errs[i]
		}
	}
	return c.composeFrame(frame, slots[:n], photos), nil
}

// slotsFor prefers the template's manual slots over detection.
func (c *Composer) slotsFor(tmpl types.Template, frame image.Image) []types.Slot {
	if len(tmpl.Slots) > 0 {
		out := make([]types.Slot, len(tmpl.Slots))
		copy(out, tmpl.Slots)
		return out
	}
	return c.detector.DetectSlots(frame)
}

// composeFrame draws each photo into its slot through an elliptical clip on a
// dark canvas the size of the frame, then lays the frame on top.
func (c *Composer) composeFrame(frame image.Image, slots []types.Slot, photos []image.Image) *Result {
	fb := frame.Bounds()
	w, h := fb.Dx(), fb.Dy()
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(render.ParseHexColor(c.config.Background)), image.Point{}, draw.Src)

	for i, slot := range slots {
		rect := slot.Rect(w, h)
		mask := render.EllipseMask(rect.Dx(), rect.Dy())
		c.drawer.Draw(canvas, rect, photos[i], mask)
	}

	draw.Draw(canvas, canvas.Bounds(), frame, fb.Min, draw.Over)

	return &Result{
		Image:      canvas,
		Mode:       ModeFrame,
		Slots:      slots,
		PhotosUsed: len(slots),
	}
}

func (c *Composer) composeFallback(tmpl types.Template, photos []image.Image) *Result {
	kind := kindOf(tmpl)
	if kind == types.LayoutSingle && len(photos) > 1 {
		photos = photos[:1]
	}
	layout := FallbackLayout(kind, len(photos), c.config)
	canvas := image.NewRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	res := &Result{Image: canvas, Mode: ModeFallback, PhotosUsed: len(photos)}

	top, bottom := defaultGradientTop, defaultGradientBottom
	if render.ValidHexColor(tmpl.Theme.GradientTop) {
		top = tmpl.Theme.GradientTop
	}
	if render.ValidHexColor(tmpl.Theme.GradientBottom) {
		bottom = tmpl.Theme.GradientBottom
	}
	render.VerticalGradient(canvas, render.ParseHexColor(top), render.ParseHexColor(bottom))

	if kind != types.LayoutSingle {
		tick := color.NRGBA{255, 255, 255, 13}
		for y := 30; y < layout.Height; y += 60 {
			render.Fill(canvas, image.Rect(15, y, 30, y+25), tick)
			render.Fill(canvas, image.Rect(layout.Width-30, y, layout.Width-15, y+25), tick)
		}
	}

	c.drawText(res, render.Bold, 32, c.config.Title, 90, color.White)

	border := c.config.Border
	for i, cell := range layout.Cells {
		backing := cell.Inset(-border)
		render.DropShadow(canvas, backing, c.config.ShadowBlur/2, color.NRGBA{0, 0, 0, 128})
		render.Fill(canvas, backing, color.White)
		c.drawer.Draw(canvas, cell, photos[i], nil)
	}

	c.drawText(res, render.Bold, 50, tmpl.ThemeText, layout.Height-120, color.White)
	meta := fmt.Sprintf("%s • %s • %s", c.config.Brand, c.config.Now().Format("Jan 2, 2006"), strings.ToUpper(tmpl.Name))
	c.drawText(res, render.Regular, 20, meta, layout.Height-65, color.NRGBA{255, 255, 255, 102})

	if tmpl.ShareURL != "" {
		if err := c.stampQR(canvas, tmpl.ShareURL); err != nil {
			logging.Logger().Warn("failed to render share code", "url", tmpl.ShareURL, "error", err)
			res.Warnings = append(res.Warnings, err)
		}
	}
	return res
}

func (c *Composer) drawText(res *Result, style render.Style, size float64, s string, baseline int, col color.Color) {
	if s == "" || c.fonts == nil {
		return
	}
	face, err := c.fonts.Face(style, size)
	if err != nil {
		res.Warnings = append(res.Warnings, err)
		return
	}
	render.DrawCentered(res.Image, face, s, res.Image.Bounds().Dx()/2, baseline, col)
}

// stampQR places a QR code for url in the bottom-right corner of the footer.
func (c *Composer) stampQR(canvas *image.RGBA, url string) error {
	size := c.config.QRSize
	if size <= 0 {
		return nil
	}
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to encode share url: %w", err)
	}
	q.DisableBorder = true
	// Image may return a larger code when size is too small for the data
	code := q.Image(size)
	cb := code.Bounds()

	margin := 16
	b := canvas.Bounds()
	at := image.Pt(b.Max.X-cb.Dx()-margin-c.config.Border, b.Max.Y-cb.Dy()-margin)
	dst := image.Rectangle{Min: at, Max: at.Add(cb.Size())}
	render.Fill(canvas, dst.Inset(-c.config.Border), color.White)
	draw.Draw(canvas, dst, code, cb.Min, draw.Over)
	return nil
}

// loadAll fetches refs concurrently. The returned slices are aligned with refs;
// a nil image has its error at the same index.
func (c *Composer) loadAll(ctx context.Context, refs []string) ([]image.Image, []error) {
	images := make([]image.Image, len(refs))
	errs := make([]error, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			img, err := c.source.Load(ctx, ref)
			switch {
			case err != nil:
				errs[i] = fmt.Errorf("%w: photo %s: %w", ErrAssetLoad, ref, err)
			case img == nil || img.Bounds().Empty():
				errs[i] = fmt.Errorf("%w: photo %s is empty", ErrAssetLoad, ref)
			default:
				images[i] = img
			}
		}(i, ref)
	}
	wg.Wait()
	return images, errs
}

func kindOf(tmpl types.Template) types.LayoutKind {
	kind, err := types.ParseLayout(string(tmpl.Layout))
	if err != nil {
		return types.LayoutStrip
	}
	return kind
}
