package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/booth-compositor/pkg/types"
)

// createTestImage creates a half-transparent test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			a := uint8(255)
			if x < width/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 128, a})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "frame.png"), pngBytes(t, createTestImage(40, 30)), 0644); err != nil {
		t.Fatal(err)
	}

	p := NewProcessorWithConfig(Config{BaseDir: dir})
	for _, ref := range []string{"frame.png", "/frame.png", filepath.Join(dir, "frame.png")} {
		img, err := p.Load(context.Background(), ref)
		if err != nil {
			t.Errorf("Load(%q) failed: %v", ref, err)
			continue
		}
		if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
			t.Errorf("Load(%q) bounds %v", ref, img.Bounds())
		}
	}

	if _, err := p.Load(context.Background(), "missing.png"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadDataURL(t *testing.T) {
	p := NewProcessor()
	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, createTestImage(8, 6)))

	img, err := p.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}

	bad := []string{
		"data:image/png;base64",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,rawbytes",
		"data:image/png;base64,!!!",
	}
	for _, ref := range bad {
		if _, err := p.Load(context.Background(), ref); err == nil {
			t.Errorf("Expected error for %q", ref)
		}
	}
}

func TestLoadFromURL(t *testing.T) {
	data := pngBytes(t, createTestImage(20, 10))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			if r.Header.Get("User-Agent") == "" {
				http.Error(w, "missing agent", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.Load(context.Background(), srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}

	if _, err := p.Load(context.Background(), srv.URL+"/page"); err == nil {
		t.Error("Expected error for non-image content type")
	}
	if _, err := p.Load(context.Background(), srv.URL+"/nope.png"); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestLoadRespectsMaxBytes(t *testing.T) {
	data := pngBytes(t, createTestImage(64, 64))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	p := NewProcessorWithConfig(Config{MaxBytes: 16})
	if _, err := p.Load(context.Background(), srv.URL); err == nil {
		t.Error("Expected oversized download to fail")
	}
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProcessor().Load(ctx, "anything.png"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestEncodePNGPreservesAlpha(t *testing.T) {
	src := createTestImage(16, 16)
	data, err := EncodePNG(src)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := decoded.At(2, 2).RGBA(); a != 0 {
		t.Errorf("Expected transparent pixel, got alpha %d", a)
	}
	if _, _, _, a := decoded.At(12, 2).RGBA(); a != 0xffff {
		t.Errorf("Expected opaque pixel, got alpha %d", a)
	}
}

func TestEncodeFormats(t *testing.T) {
	img := createTestImage(32, 32)
	for _, format := range []string{"png", "jpg", "JPEG", "webp"} {
		data, err := Encode(img, format, 90, false)
		if err != nil {
			t.Errorf("Encode(%s) failed: %v", format, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("Encode(%s) returned no data", format)
		}
	}
	if _, err := Encode(img, "bmp", 90, false); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor()
	img := createTestImage(24, 12)

	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "out."+format)
		if err := SaveImage(img, path, format, 85, true); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}
		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", format, err)
		}
		if loaded.Bounds().Dx() != 24 || loaded.Bounds().Dy() != 12 {
			t.Errorf("%s: unexpected bounds %v", format, loaded.Bounds())
		}
	}
}

func TestDownscale(t *testing.T) {
	img := createTestImage(400, 100)
	out := Downscale(img, 200)
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 50 {
		t.Errorf("Expected 200x50, got %v", out.Bounds())
	}
	if Downscale(img, 1000) != image.Image(img) {
		t.Error("Expected small image to be returned unchanged")
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	slots := []types.Slot{{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5}}
	out := CreateDebugOverlay(img, slots).(*image.NRGBA)

	if c := out.NRGBAAt(10, 30); c.G != 255 || c.A != 255 {
		t.Errorf("Expected green slot outline, got %v", c)
	}
	if c := out.NRGBAAt(35, 35); c.R != 255 {
		t.Errorf("Expected red center marker, got %v", c)
	}
	if c := img.NRGBAAt(10, 30); c.A != 0 {
		t.Error("Expected source image to be untouched")
	}
}
