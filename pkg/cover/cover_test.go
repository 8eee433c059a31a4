package cover

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
)

// createStripes creates an image with a red left third, green middle and blue right third
func createStripes(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case x < width/3:
				img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
			case x < 2*width/3:
				img.SetNRGBA(x, y, color.NRGBA{0, 255, 0, 255})
			default:
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 255})
			}
		}
	}
	return img
}

func TestSourceRectPreservesAspect(t *testing.T) {
	tests := []struct {
		sw, sh, dw, dh float64
	}{
		{1920, 1080, 600, 450},
		{1080, 1920, 600, 450},
		{640, 480, 640, 480},
		{500, 500, 910, 560},
		{300, 1200, 50, 50},
		{4000, 100, 475, 356.25},
		{123, 457, 999, 13},
	}

	for _, tt := range tests {
		r := SourceRect(tt.sw, tt.sh, tt.dw, tt.dh)
		got := r.Width / r.Height
		want := tt.dw / tt.dh
		if math.Abs(got-want) > 1e-9*want {
			t.Errorf("SourceRect(%v,%v,%v,%v) ratio = %f, want %f", tt.sw, tt.sh, tt.dw, tt.dh, got, want)
		}
		if r.X < 0 || r.Y < 0 || r.X+r.Width > tt.sw+1e-9 || r.Y+r.Height > tt.sh+1e-9 {
			t.Errorf("SourceRect(%v,%v,%v,%v) = %+v escapes the source", tt.sw, tt.sh, tt.dw, tt.dh, r)
		}
		// One axis is always kept whole
		if r.Width != tt.sw && r.Height != tt.sh {
			t.Errorf("SourceRect(%v,%v,%v,%v) = %+v crops both axes", tt.sw, tt.sh, tt.dw, tt.dh, r)
		}
	}
}

func TestSourceRectCentered(t *testing.T) {
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

	// Wider source: crop width, center horizontally
	r := SourceRect(1600, 900, 400, 300)
	if !near(r.Height, 900) || !near(r.Width, 1200) || !near(r.X, 200) || r.Y != 0 {
		t.Errorf("Expected {200 0 1200 900}, got %+v", r)
	}

	// Taller source: crop height, center vertically
	r = SourceRect(900, 1600, 400, 300)
	if !near(r.Width, 900) || !near(r.Height, 675) || r.X != 0 || !near(r.Y, 462.5) {
		t.Errorf("Expected {0 462.5 900 675}, got %+v", r)
	}
}

func TestSourceRectDegenerate(t *testing.T) {
	if r := SourceRect(0, 100, 10, 10); r != (Rect{}) {
		t.Errorf("Expected zero rect for empty source, got %+v", r)
	}
	if r := SourceRect(100, 100, 10, 0); r != (Rect{}) {
		t.Errorf("Expected zero rect for empty destination, got %+v", r)
	}
}

func TestFitDimensions(t *testing.T) {
	d := New()
	out := d.Fit(createStripes(900, 300), 100, 100)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Fatalf("Expected 100x100, got %v", out.Bounds())
	}

	// Square crop of a 3:1 stripe image keeps only the green middle
	c := out.NRGBAAt(50, 50)
	if c.G < 200 || c.R > 50 || c.B > 50 {
		t.Errorf("Expected center crop to be green, got %v", c)
	}
	edge := out.NRGBAAt(1, 50)
	if edge.G < 200 {
		t.Errorf("Expected left edge of center crop to be green, got %v", edge)
	}
}

func TestFitOffsetBounds(t *testing.T) {
	src := createStripes(300, 300).(*image.NRGBA).SubImage(image.Rect(100, 0, 200, 300))
	out := New().Fit(src, 50, 50)
	c := out.NRGBAAt(25, 25)
	if c.G < 200 {
		t.Errorf("Expected sub-image crop to stay inside the green band, got %v", c)
	}
}

func TestDrawWithMask(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 200, 200))
	rect := image.Rect(50, 50, 150, 150)

	mask := image.NewAlpha(image.Rect(0, 0, 100, 100))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			mask.SetAlpha(x, y, color.Alpha{255})
		}
	}

	src := imaging.New(10, 10, color.NRGBA{255, 255, 255, 255})
	New().Draw(dst, rect, src, mask)

	if c := dst.RGBAAt(100, 60); c.R != 255 || c.A != 255 {
		t.Errorf("Expected masked-in pixel to be white, got %v", c)
	}
	if c := dst.RGBAAt(100, 140); c.A != 0 {
		t.Errorf("Expected masked-out pixel to stay transparent, got %v", c)
	}
	if c := dst.RGBAAt(10, 10); c.A != 0 {
		t.Errorf("Expected pixel outside rect to stay transparent, got %v", c)
	}
}

func TestFilterByName(t *testing.T) {
	if f := FilterByName("nearest"); f.Support != imaging.NearestNeighbor.Support {
		t.Errorf("Expected nearest neighbor support, got %f", f.Support)
	}
	if f := FilterByName("unknown"); f.Support != imaging.Lanczos.Support {
		t.Errorf("Expected Lanczos fallback, got support %f", f.Support)
	}
}

func BenchmarkFit(b *testing.B) {
	d := New()
	src := createStripes(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Fit(src, 600, 450)
	}
}
