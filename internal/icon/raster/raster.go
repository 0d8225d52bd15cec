// Package raster renders deterministic single-letter fallback icons.
package raster

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

const (
	// DefaultSize is the edge length of generated icons in pixels
	DefaultSize = 512

	// DefaultBackground is the flat fill behind the glyph
	DefaultBackground = "#4f46e5"

	// DefaultForeground is the glyph color
	DefaultForeground = "#ffffff"
)

// Rasterizer turns a label into PNG bytes
type Rasterizer interface {
	Rasterize(label string) []byte
}

// Letter draws the first letter of a label, upper-cased, centered on a flat square
type Letter struct {
	size       int
	background string
	foreground string
}

var (
	boldOnce sync.Once
	boldFont *opentype.Font
)

func goBold() *opentype.Font {
	boldOnce.Do(func() {
		f, err := opentype.Parse(gobold.TTF)
		if err != nil {
			panic(fmt.Sprintf("raster: embedded font unreadable: %v", err))
		}
		boldFont = f
	})
	return boldFont
}

// New creates a letter rasterizer producing size×size icons
func New(size int) *Letter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Letter{
		size:       size,
		background: DefaultBackground,
		foreground: DefaultForeground,
	}
}

// WithColors overrides background and glyph colors (hex notation)
func (l *Letter) WithColors(background, foreground string) *Letter {
	l.background = background
	l.foreground = foreground
	return l
}

// Size returns the edge length of generated icons
func (l *Letter) Size() int {
	return l.size
}

// Glyph returns the text drawn for label: its first character, upper-cased.
func Glyph(label string) string {
	r, _ := utf8.DecodeRuneInString(label)
	return strings.ToUpper(string(r))
}

// Rasterize renders label as a PNG. The same label always yields identical
// bytes. An empty label is a caller bug and panics.
func (l *Letter) Rasterize(label string) []byte {
	if label == "" {
		panic("raster: empty label")
	}

	// Faces keep per-instance glyph buffers, so each render gets its own.
	face, err := opentype.NewFace(goBold(), &opentype.FaceOptions{
		Size:    float64(l.size) / 2,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		panic(fmt.Sprintf("raster: font face: %v", err))
	}
	defer face.Close()

	dc := gg.NewContext(l.size, l.size)
	dc.SetHexColor(l.background)
	dc.Clear()

	dc.SetFontFace(face)
	dc.SetHexColor(l.foreground)
	center := float64(l.size) / 2
	dc.DrawStringAnchored(Glyph(label), center, center, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		panic(fmt.Sprintf("raster: encode png: %v", err))
	}
	return buf.Bytes()
}

var defaultLetter = New(DefaultSize)

// Rasterize renders label with the default size and colors
func Rasterize(label string) []byte {
	return defaultLetter.Rasterize(label)
}
