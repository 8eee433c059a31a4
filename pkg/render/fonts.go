package render

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// Style selects a typeface from a FontSet.
type Style int

const (
	Regular Style = iota
	Bold
	Glyph
)

type faceKey struct {
	style Style
	index int
	size  float64
}

// FontSet parses typefaces once and caches sized faces. The Glyph style is a
// fallback chain: extra glyph fonts first, then the bundled Go fonts.
type FontSet struct {
	mu     sync.Mutex
	fonts  map[Style][]*opentype.Font
	faces  map[faceKey]font.Face
	dpi    float64
	hinted font.Hinting
}

// NewFontSet creates a FontSet backed by the Go fonts. Additional glyph fonts,
// such as an outline emoji font, may be listed by path and take precedence for
// sticker glyphs.
func NewFontSet(glyphFontPaths ...string) (*FontSet, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}

	var glyphs []*opentype.Font
	for _, path := range glyphFontPaths {
		if path == "" {
			continue
		}
		f, err := LoadFontFile(path)
		if err != nil {
			return nil, err
		}
		glyphs = append(glyphs, f)
	}
	glyphs = append(glyphs, bold, regular)

	return &FontSet{
		fonts: map[Style][]*opentype.Font{
			Regular: {regular},
			Bold:    {bold},
			Glyph:   glyphs,
		},
		faces:  make(map[faceKey]font.Face),
		dpi:    72,
		hinted: font.HintingFull,
	}, nil
}

// LoadFontFile parses a TrueType or OpenType font from disk.
func LoadFontFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font file %s: %w", path, err)
	}
	return f, nil
}

// Face returns the first face of style at size pixels.
func (fs *FontSet) Face(style Style, size float64) (font.Face, error) {
	return fs.face(style, 0, size)
}

// FaceFor returns the face of style whose typeface covers every rune of s,
// falling back to the last face of the chain.
func (fs *FontSet) FaceFor(style Style, s string, size float64) (font.Face, error) {
	fs.mu.Lock()
	fonts := fs.fonts[style]
	fs.mu.Unlock()
	if len(fonts) == 0 {
		return nil, fmt.Errorf("no fonts registered for style %d", style)
	}

	for i, f := range fonts {
		if covers(f, s) {
			return fs.face(style, i, size)
		}
	}
	return fs.face(style, len(fonts)-1, size)
}

func (fs *FontSet) face(style Style, index int, size float64) (font.Face, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := faceKey{style: style, index: index, size: size}
	if face, ok := fs.faces[key]; ok {
		return face, nil
	}
	fonts := fs.fonts[style]
	if index >= len(fonts) {
		return nil, fmt.Errorf("no font %d registered for style %d", index, style)
	}
	face, err := opentype.NewFace(fonts[index], &opentype.FaceOptions{
		Size:    size,
		DPI:     fs.dpi,
		Hinting: fs.hinted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	fs.faces[key] = face
	return face, nil
}

// covers reports whether f maps every visible rune of s to a real glyph.
// Variation selectors and joiners are ignored.
func covers(f *opentype.Font, s string) bool {
	var buf sfnt.Buffer
	for _, r := range s {
		if r == 0x200D || (r >= 0xFE00 && r <= 0xFE0F) {
			continue
		}
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			return false
		}
	}
	return true
}
