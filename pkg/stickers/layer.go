// Package stickers keeps the ordered collection of glyph stickers placed over a
// composite. Positions are percentages of the viewport so the same layout
// renders at any output resolution.
package stickers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotFound is returned when a sticker id is not in the layer.
	ErrNotFound = errors.New("sticker not found")
	// ErrInvalidScale is returned for non-positive or non-finite scales.
	ErrInvalidScale = errors.New("invalid sticker scale")
)

const (
	// DefaultX and DefaultY place new stickers in the center of the viewport.
	DefaultX = 50.0
	DefaultY = 50.0

	// MinScale and MaxScale bound the range offered to users. They are not
	// enforced by SetScale.
	MinScale = 0.5
	MaxScale = 3.0
)

// Sticker is one glyph placed over the composite.
type Sticker struct {
	ID       int64   `json:"id"`
	Glyph    string  `json:"glyph"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

// Layer is an ordered sticker collection with an optional selection.
// Insertion order is paint order. A Layer is not safe for concurrent use.
type Layer struct {
	items    []Sticker
	nextID   int64
	selected int64
}

// NewLayer creates an empty layer.
func NewLayer() *Layer {
	return &Layer{nextID: 1}
}

// Add appends a sticker at the viewport center with scale 1 and no rotation,
// selects it and returns it.
func (l *Layer) Add(glyph string) Sticker {
	if l.nextID == 0 {
		l.nextID = 1
	}
	s := Sticker{
		ID:    l.nextID,
		Glyph: glyph,
		X:     DefaultX,
		Y:     DefaultY,
		Scale: 1,
	}
	l.nextID++
	l.items = append(l.items, s)
	l.selected = s.ID
	return s
}

// Select marks the sticker as selected.
func (l *Layer) Select(id int64) error {
	if l.index(id) < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	l.selected = id
	return nil
}

// ClearSelection deselects any selected sticker.
func (l *Layer) ClearSelection() {
	l.selected = 0
}

// Selected returns the selected sticker, if any.
func (l *Layer) Selected() (Sticker, bool) {
	if i := l.index(l.selected); i >= 0 {
		return l.items[i], true
	}
	return Sticker{}, false
}

// Move sets the sticker position in viewport percent. Values are not clamped,
// so stickers may be dragged partially off the canvas.
func (l *Layer) Move(id int64, x, y float64) error {
	return l.update(id, func(s *Sticker) error {
		s.X, s.Y = x, y
		return nil
	})
}

// SetScale sets the size multiplier. v must be positive and finite.
func (l *Layer) SetScale(id int64, v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidScale, v)
	}
	return l.update(id, func(s *Sticker) error {
		s.Scale = v
		return nil
	})
}

// SetRotation sets the clockwise rotation in degrees, normalized into [0,360).
func (l *Layer) SetRotation(id int64, deg float64) error {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return fmt.Errorf("invalid rotation %v", deg)
	}
	return l.update(id, func(s *Sticker) error {
		s.Rotation = NormalizeRotation(deg)
		return nil
	})
}

// Remove deletes the sticker. Removing the selected sticker clears the selection.
func (l *Layer) Remove(id int64) error {
	i := l.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	if l.selected == id {
		l.selected = 0
	}
	return nil
}

// Stickers returns a copy of the stickers in paint order.
func (l *Layer) Stickers() []Sticker {
	out := make([]Sticker, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of stickers.
func (l *Layer) Len() int {
	return len(l.items)
}

// Clear removes every sticker and the selection. Ids keep increasing.
func (l *Layer) Clear() {
	l.items = nil
	l.selected = 0
}

// NormalizeRotation maps deg into [0,360).
func NormalizeRotation(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

type snapshot struct {
	Stickers []Sticker `json:"stickers"`
	NextID   int64     `json:"next_id"`
	Selected int64     `json:"selected,omitempty"`
}

// MarshalJSON encodes the layer including its id counter and selection.
func (l *Layer) MarshalJSON() ([]byte, error) {
	items := l.items
	if items == nil {
		items = []Sticker{}
	}
	return json.Marshal(snapshot{Stickers: items, NextID: l.nextID, Selected: l.selected})
}

// UnmarshalJSON restores a layer. Duplicate ids, invalid scales and a
// selection outside the collection are rejected.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode sticker layer: %w", err)
	}

	seen := make(map[int64]bool, len(snap.Stickers))
	maxID := int64(0)
	for i := range snap.Stickers {
		s := &snap.Stickers[i]
		if s.ID <= 0 {
			return fmt.Errorf("sticker %d has invalid id %d", i, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate sticker id %d", s.ID)
		}
		seen[s.ID] = true
		if !(s.Scale > 0) || math.IsInf(s.Scale, 1) {
			return fmt.Errorf("sticker %d: %w: %v", s.ID, ErrInvalidScale, s.Scale)
		}
		s.Rotation = NormalizeRotation(s.Rotation)
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	if snap.Selected != 0 && !seen[snap.Selected] {
		return fmt.Errorf("selected sticker %d: %w", snap.Selected, ErrNotFound)
	}

	next := snap.NextID
	if next <= maxID {
		next = maxID + 1
	}
	l.items = snap.Stickers
	l.nextID = next
	l.selected = snap.Selected
	return nil
}

func (l *Layer) index(id int64) int {
	if id == 0 {
		return -1
	}
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Layer) update(id int64, fn func(*Sticker) error) error {
	i := l.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return fn(&l.items[i])
}
