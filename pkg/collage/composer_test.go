package collage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/menta2k/booth-compositor/pkg/render"
	"github.com/menta2k/booth-compositor/pkg/types"
)

var (
	red    = color.NRGBA{220, 20, 20, 255}
	green  = color.NRGBA{20, 220, 20, 255}
	blue   = color.NRGBA{20, 20, 220, 255}
	yellow = color.NRGBA{220, 220, 20, 255}
	purple = color.NRGBA{128, 0, 128, 255}
)

// memSource serves decoded images from memory
type memSource map[string]image.Image

func (m memSource) Load(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("not found: %s", ref)
	}
	return img, nil
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// createFrame creates an opaque purple frame with fully transparent holes
func createFrame(w, h int, holes ...image.Rectangle) *image.NRGBA {
	img := solid(w, h, purple)
	for _, r := range holes {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetNRGBA(x, y, color.NRGBA{})
			}
		}
	}
	return img
}

func threeHoleFrame() *image.NRGBA {
	return createFrame(300, 900,
		image.Rect(50, 60, 250, 240),
		image.Rect(50, 360, 250, 540),
		image.Rect(50, 660, 250, 840),
	)
}

func newComposer(t *testing.T, src Source) *Composer {
	t.Helper()
	fonts, err := render.NewFontSet()
	if err != nil {
		t.Fatalf("Failed to load fonts: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2025, 10, 31, 20, 0, 0, 0, time.UTC) }
	return New(src, nil, nil, fonts, cfg)
}

func photoSource() memSource {
	return memSource{
		"red.png":    solid(400, 300, red),
		"green.png":  solid(400, 300, green),
		"blue.png":   solid(400, 300, blue),
		"yellow.png": solid(300, 400, yellow),
	}
}

func near(got color.RGBA, want color.NRGBA) bool {
	d := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	return d(got.R, want.R) <= 3 && d(got.G, want.G) <= 3 && d(got.B, want.B) <= 3
}

func TestComposeFrameMode(t *testing.T) {
	src := photoSource()
	src["frame.png"] = threeHoleFrame()
	c := newComposer(t, src)

	tmpl := types.Template{ID: "circles", Name: "Circles", PhotoCount: 3, Layout: types.LayoutStrip, FrameURL: "frame.png"}
	res, err := c.Compose(context.Background(), tmpl, []string{"red.png", "green.png", "blue.png"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if res.Mode != ModeFrame {
		t.Fatalf("Expected frame mode, got %s (warnings %v)", res.Mode, res.Warnings)
	}
	if res.Image.Bounds() != image.Rect(0, 0, 300, 900) {
		t.Errorf("Expected native frame size, got %v", res.Image.Bounds())
	}
	if len(res.Slots) != 3 || res.PhotosUsed != 3 {
		t.Fatalf("Expected 3 slots and photos, got %d/%d", len(res.Slots), res.PhotosUsed)
	}
	for i := 1; i < len(res.Slots); i++ {
		if res.Slots[i].Y <= res.Slots[i-1].Y {
			t.Errorf("Slots not in top-to-bottom order: %+v", res.Slots)
		}
	}

	// Photos land in detected order
	for i, want := range []color.NRGBA{red, green, blue} {
		y := 150 + i*300
		if got := res.Image.RGBAAt(150, y); !near(got, want) {
			t.Errorf("Slot %d center: got %v, want %v", i, got, want)
		}
	}

	// Frame stays visible above the photos
	if got := res.Image.RGBAAt(10, 10); !near(got, purple) {
		t.Errorf("Expected frame color at edge, got %v", got)
	}
	if got := res.Image.RGBAAt(150, 300); !near(got, purple) {
		t.Errorf("Expected frame color between slots, got %v", got)
	}

	// Slot corners are outside the elliptical clip and show the background
	bg := render.ParseHexColor("#050510")
	if got := res.Image.RGBAAt(52, 62); !near(got, bg) {
		t.Errorf("Expected background at slot corner, got %v", got)
	}
}

func TestComposeGridFallback(t *testing.T) {
	c := newComposer(t, photoSource())
	tmpl := types.Template{ID: "grid", Name: "Midnight Manor", PhotoCount: 4, Layout: types.LayoutGrid, ThemeText: "SPOOKY NIGHT"}

	res, err := c.Compose(context.Background(), tmpl, []string{"red.png", "green.png", "blue.png", "yellow.png"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if res.Mode != ModeFallback || len(res.Slots) != 0 {
		t.Fatalf("Expected fallback without slots, got %s %v", res.Mode, res.Slots)
	}
	if res.Image.Bounds().Dx() != 1100 || res.Image.Bounds().Dy() != 1142 {
		t.Errorf("Expected 1100x1142 canvas, got %v", res.Image.Bounds())
	}

	// 2x2 arrangement
	centers := []image.Point{{287, 338}, {812, 338}, {287, 744}, {812, 744}}
	for i, want := range []color.NRGBA{red, green, blue, yellow} {
		if got := res.Image.RGBAAt(centers[i].X, centers[i].Y); !near(got, want) {
			t.Errorf("Cell %d center: got %v, want %v", i, got, want)
		}
	}

	// White backing border around the first cell
	if got := res.Image.RGBAAt(46, 300); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("Expected white backing, got %v", got)
	}

	if n := countBright(res.Image, image.Rect(0, 50, 1100, 100)); n == 0 {
		t.Error("Expected a title in the header")
	}
	h := res.Image.Bounds().Dy()
	if n := countBright(res.Image, image.Rect(0, h-170, 1100, h-110)); n == 0 {
		t.Error("Expected theme text in the footer")
	}
}

func countBright(img *image.RGBA, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R > 200 && c.G > 200 && c.B > 200 {
				n++
			}
		}
	}
	return n
}

func TestComposeMissingFrameFallsBack(t *testing.T) {
	c := newComposer(t, photoSource())
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 2, FrameURL: "missing.png"}

	res, err := c.Compose(context.Background(), tmpl, []string{"red.png", "green.png"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if res.Mode != ModeFallback {
		t.Errorf("Expected fallback, got %s", res.Mode)
	}
	if len(res.Warnings) == 0 || !errors.Is(res.Warnings[0], ErrAssetLoad) {
		t.Errorf("Expected ErrAssetLoad warning, got %v", res.Warnings)
	}
	if res.Image.Bounds().Dx() != 700 {
		t.Errorf("Expected strip width 700, got %d", res.Image.Bounds().Dx())
	}
}

func TestComposeOpaqueFrameFallsBack(t *testing.T) {
	src := photoSource()
	src["opaque.png"] = createFrame(300, 300)
	c := newComposer(t, src)
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 1, FrameURL: "opaque.png"}

	res, err := c.Compose(context.Background(), tmpl, []string{"red.png"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if res.Mode != ModeFallback {
		t.Errorf("Expected fallback, got %s", res.Mode)
	}
	if len(res.Warnings) == 0 || !errors.Is(res.Warnings[0], ErrNoUsableRegions) {
		t.Errorf("Expected ErrNoUsableRegions warning, got %v", res.Warnings)
	}
}

func TestComposeManualSlotsTakePrecedence(t *testing.T) {
	src := photoSource()
	src["frame.png"] = threeHoleFrame()
	c := newComposer(t, src)

	manual := []types.Slot{{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.2}}
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 1, FrameURL: "frame.png", Slots: manual}

	res, err := c.Compose(context.Background(), tmpl, []string{"red.png", "green.png"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFrame {
		t.Fatalf("Expected frame mode, got %s", res.Mode)
	}
	if len(res.Slots) != 1 || res.Slots[0] != manual[0] {
		t.Errorf("Expected manual slots, got %+v", res.Slots)
	}
	if res.PhotosUsed != 1 {
		t.Errorf("Expected one photo used, got %d", res.PhotosUsed)
	}
}

func TestComposeTruncatesToShorterList(t *testing.T) {
	src := photoSource()
	src["frame.png"] = threeHoleFrame()
	c := newComposer(t, src)
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 3, FrameURL: "frame.png"}

	res, err := c.Compose(context.Background(), tmpl, []string{"red.png", "green.png"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFrame || res.PhotosUsed != 2 || len(res.Slots) != 2 {
		t.Fatalf("Expected 2 photos in frame mode, got %s %d %d", res.Mode, res.PhotosUsed, len(res.Slots))
	}
	// Unmatched third slot shows the background
	bg := render.ParseHexColor("#050510")
	if got := res.Image.RGBAAt(150, 750); !near(got, bg) {
		t.Errorf("Expected empty slot to show background, got %v", got)
	}

	res, err = c.Compose(context.Background(), tmpl, []string{"red.png", "green.png", "blue.png", "yellow.png"})
	if err != nil {
		t.Fatal(err)
	}
	if res.PhotosUsed != 3 {
		t.Errorf("Expected extra photos to be ignored, got %d used", res.PhotosUsed)
	}
}

func TestComposeFramePhotoFailureFallsBack(t *testing.T) {
	src := photoSource()
	src["frame.png"] = threeHoleFrame()
	c := newComposer(t, src)
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 3, FrameURL: "frame.png"}

	res, err := c.Compose(context.Background(), tmpl, []string{"red.png", "gone.png", "blue.png"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFallback {
		t.Errorf("Expected fallback after a photo failure, got %s", res.Mode)
	}
	if res.PhotosUsed != 2 {
		t.Errorf("Expected the failed photo to be skipped, got %d used", res.PhotosUsed)
	}
}

func TestComposeErrors(t *testing.T) {
	c := newComposer(t, photoSource())
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 1}

	if _, err := c.Compose(context.Background(), tmpl, nil); !errors.Is(err, ErrInsufficientPhotos) {
		t.Errorf("Expected ErrInsufficientPhotos, got %v", err)
	}
	if _, err := c.Compose(context.Background(), tmpl, []string{"a.png", "b.png"}); !errors.Is(err, ErrAssetLoad) {
		t.Errorf("Expected ErrAssetLoad, got %v", err)
	}
	if _, err := c.Compose(context.Background(), types.Template{ID: "bad"}, []string{"red.png"}); err == nil {
		t.Error("Expected invalid template to be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Compose(ctx, tmpl, []string{"red.png"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestComposeSingleUsesFirstPhoto(t *testing.T) {
	c := newComposer(t, photoSource())
	tmpl := types.Template{ID: "ghostly", Name: "Ghostly", PhotoCount: 1, Layout: types.LayoutSingle, ThemeText: "BOO TO YOU!"}

	res, err := c.Compose(context.Background(), tmpl, []string{"green.png", "red.png"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Image.Bounds() != image.Rect(0, 0, 900, 1000) {
		t.Errorf("Expected 900x1000, got %v", res.Image.Bounds())
	}
	if res.PhotosUsed != 1 {
		t.Errorf("Expected one photo, got %d", res.PhotosUsed)
	}
	if got := res.Image.RGBAAt(450, 470); !near(got, green) {
		t.Errorf("Expected first photo in the cell, got %v", got)
	}
}

func TestComposeShareCode(t *testing.T) {
	c := newComposer(t, photoSource())
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 1}
	plain, err := c.Compose(context.Background(), tmpl, []string{"red.png"})
	if err != nil {
		t.Fatal(err)
	}

	tmpl.ShareURL = "https://example.com/s/abc123"
	shared, err := c.Compose(context.Background(), tmpl, []string{"red.png"})
	if err != nil {
		t.Fatal(err)
	}

	b := plain.Image.Bounds()
	corner := image.Rect(b.Max.X-130, b.Max.Y-130, b.Max.X-10, b.Max.Y-10)
	if countBright(plain.Image, corner) != 0 {
		t.Fatal("Expected empty footer corner without a share url")
	}
	if countBright(shared.Image, corner) == 0 {
		t.Error("Expected a share code in the footer corner")
	}
}

func TestComposeImages(t *testing.T) {
	c := newComposer(t, nil)
	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 3}

	res, err := c.ComposeImages(context.Background(), tmpl, threeHoleFrame(), []image.Image{solid(10, 10, red)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFrame || res.PhotosUsed != 1 {
		t.Errorf("Expected one photo in frame mode, got %s %d", res.Mode, res.PhotosUsed)
	}

	res, err = c.ComposeImages(context.Background(), tmpl, nil, []image.Image{solid(10, 10, red), nil})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFallback || res.PhotosUsed != 1 {
		t.Errorf("Expected one photo in fallback mode, got %s %d", res.Mode, res.PhotosUsed)
	}

	if _, err := c.ComposeImages(context.Background(), tmpl, nil, nil); !errors.Is(err, ErrInsufficientPhotos) {
		t.Errorf("Expected ErrInsufficientPhotos, got %v", err)
	}
}

func TestNewDefaultsZeroConfig(t *testing.T) {
	c := New(nil, nil, nil, nil, Config{})
	cfg := c.Config()
	if cfg.StripWidth != 700 || cfg.GridWidth != 1100 || cfg.SingleWidth != 900 || cfg.SingleHeight != 1000 {
		t.Errorf("Expected default canvas sizes, got %+v", cfg)
	}
	if cfg.CellAspect != 0.75 || cfg.Background != "#050510" || cfg.Now == nil {
		t.Errorf("Expected default aspect, background and clock, got %+v", cfg)
	}
	if cfg.Title != "" || cfg.Gap != 0 {
		t.Errorf("Expected explicit zero values to be kept, got %+v", cfg)
	}

	tmpl := types.Template{ID: "t", Name: "T", PhotoCount: 1}
	res, err := c.ComposeImages(context.Background(), tmpl, nil, []image.Image{solid(40, 30, red)})
	if err != nil {
		t.Fatal(err)
	}
	if b := res.Image.Bounds(); b.Dx() != 700 || b.Dy() != 525 {
		t.Errorf("Expected 700x525 strip, got %v", b)
	}
}

func TestFallbackLayout(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		kind  types.LayoutKind
		n     int
		w, h  int
		cells int
		first image.Rectangle
	}{
		{types.LayoutStrip, 3, 700, 1830, 3, image.Rect(50, 160, 650, 610)},
		{types.LayoutStrip, 1, 700, 830, 1, image.Rect(50, 160, 650, 610)},
		{types.LayoutGrid, 4, 1100, 1142, 4, image.Rect(50, 160, 525, 516)},
		{types.LayoutGrid, 3, 1100, 1142, 3, image.Rect(50, 160, 525, 516)},
		{types.LayoutSingle, 4, 900, 1000, 1, image.Rect(50, 160, 850, 780)},
	}
	for _, tt := range tests {
		l := FallbackLayout(tt.kind, tt.n, cfg)
		if l.Width != tt.w || l.Height != tt.h {
			t.Errorf("%s/%d: size %dx%d, want %dx%d", tt.kind, tt.n, l.Width, l.Height, tt.w, tt.h)
		}
		if len(l.Cells) != tt.cells {
			t.Errorf("%s/%d: %d cells, want %d", tt.kind, tt.n, len(l.Cells), tt.cells)
			continue
		}
		if l.Cells[0] != tt.first {
			t.Errorf("%s/%d: first cell %v, want %v", tt.kind, tt.n, l.Cells[0], tt.first)
		}
		for _, cell := range l.Cells {
			if !cell.In(image.Rect(0, 0, l.Width, l.Height)) {
				t.Errorf("%s/%d: cell %v outside canvas", tt.kind, tt.n, cell)
			}
		}
	}

	grid := FallbackLayout(types.LayoutGrid, 4, cfg)
	if grid.Cells[1].Min.X != 575 || grid.Cells[2].Min.Y != 566 {
		t.Errorf("Unexpected grid placement: %v", grid.Cells)
	}
}
