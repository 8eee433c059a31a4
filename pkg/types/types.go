package types

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Slot represents a normalized placement rectangle with coordinates in [0,1] range
// relative to the frame image.
type Slot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Area is the pixel area of the bounding box on the detection raster.
	// It is only used while filtering noise and is zero for manual slots.
	Area int `json:"-"`
}

// Valid reports whether the slot lies inside the unit square and has a positive size.
func (s Slot) Valid() bool {
	for _, v := range []float64{s.X, s.Y, s.Width, s.Height} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return s.Width > 0 && s.Height > 0 && s.X+s.Width <= 1+1e-9 && s.Y+s.Height <= 1+1e-9
}

// Rect maps the slot onto a canvas of the given pixel size.
func (s Slot) Rect(w, h int) image.Rectangle {
	fw, fh := float64(w), float64(h)
	x0 := int(math.Round(s.X * fw))
	y0 := int(math.Round(s.Y * fh))
	x1 := int(math.Round((s.X + s.Width) * fw))
	y1 := int(math.Round((s.Y + s.Height) * fh))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1)
}

// Center returns the normalized center point of the slot.
func (s Slot) Center() (float64, float64) {
	return s.X + s.Width/2, s.Y + s.Height/2
}

// LayoutKind selects the synthesized layout used when no frame is available.
type LayoutKind string

const (
	LayoutStrip  LayoutKind = "strip"
	LayoutGrid   LayoutKind = "grid"
	LayoutSingle LayoutKind = "single"
)

// ParseLayout converts a string into a LayoutKind. An empty string means strip.
func ParseLayout(s string) (LayoutKind, error) {
	switch LayoutKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutStrip:
		return LayoutStrip, nil
	case LayoutGrid:
		return LayoutGrid, nil
	case LayoutSingle:
		return LayoutSingle, nil
	}
	return "", fmt.Errorf("unknown layout %q (use strip, grid or single)", s)
}

// Theme carries the color hints of a template as hex strings.
type Theme struct {
	GradientTop    string `json:"gradient_top,omitempty"`
	GradientBottom string `json:"gradient_bottom,omitempty"`
	Accent         string `json:"accent,omitempty"`
}

// Template describes a booth template chosen before capture.
type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PhotoCount  int        `json:"photo_count"`
	Layout      LayoutKind `json:"layout"`
	Icon        string     `json:"icon,omitempty"`
	Decorations []string   `json:"decorations,omitempty"`
	ThemeText   string     `json:"theme_text"`
	Theme       Theme      `json:"theme"`

	// FrameURL references an overlay frame whose transparent holes receive the photos.
	FrameURL string `json:"frame_url,omitempty"`
	// Slots are manual placement rectangles used instead of auto-detection.
	Slots []Slot `json:"slots,omitempty"`
	// ShareURL is encoded as a QR code in the footer of synthesized layouts.
	ShareURL string `json:"share_url,omitempty"`
}

// Validate checks that the template can drive a composing session.
func (t Template) Validate() error {
	if t.PhotoCount < 1 {
		return fmt.Errorf("template %q: photo_count must be at least 1", t.ID)
	}
	if _, err := ParseLayout(string(t.Layout)); err != nil {
		return fmt.Errorf("template %q: %w", t.ID, err)
	}
	for i, s := range t.Slots {
		if !s.Valid() {
			return fmt.Errorf("template %q: slot %d is outside the unit square", t.ID, i)
		}
	}
	return nil
}

// Decision is the caller's verdict on a finished composite.
type Decision string

const (
	DecisionSave   Decision = "save"
	DecisionCancel Decision = "cancel"
)
