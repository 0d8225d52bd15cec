package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/gabriel-vasile/mimetype"
	ico "github.com/sergeymakinen/go-ico"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupported is returned for content that is not a decodable raster image
var ErrUnsupported = errors.New("unsupported image format")

const (
	// DefaultMaxSize is the largest edge length kept without scaling
	DefaultMaxSize = 512

	// SVGSize is the edge length vector icons are rendered at
	SVGSize = 256
)

var rasterTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/bmp",
	"image/webp",
}

// Normalizer converts icon bytes to PNG no larger than MaxSize on either edge
type Normalizer struct {
	maxSize int
}

// New creates a normalizer. maxSize <= 0 selects DefaultMaxSize.
func New(maxSize int) *Normalizer {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Normalizer{maxSize: maxSize}
}

// MaxSize returns the edge limit
func (n *Normalizer) MaxSize() int {
	return n.maxSize
}

// Detect returns the sniffed MIME type of data
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsImage reports whether data sniffs as a raster format Normalize accepts
func IsImage(data []byte) bool {
	mt := mimetype.Detect(data)
	return isICO(mt) || isSVG(mt) || mimetype.EqualsAny(mt.String(), rasterTypes...)
}

// Normalize decodes data and returns PNG bytes
func (n *Normalizer) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupported)
	}

	mt := mimetype.Detect(data)
	img, err := decode(mt, data, min(n.maxSize, SVGSize))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupported)
	}

	fits := bounds.Dx() <= n.maxSize && bounds.Dy() <= n.maxSize
	if fits && mt.Is("image/png") {
		return data, nil
	}
	if !fits {
		img = n.scale(img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(mt *mimetype.MIME, data []byte, svgSize int) (image.Image, error) {
	switch {
	case isSVG(mt):
		return renderSVG(data, svgSize)

	case isICO(mt):
		// Decode directly: format sniffing through image.Decode consumes the
		// header some ICO files need
		icon, err := ico.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode ICO: %v", ErrUnsupported, err)
		}
		return gg.NewContextForImage(icon).Image(), nil

	case mimetype.EqualsAny(mt.String(), rasterTypes...):
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode %s: %v", ErrUnsupported, mt.String(), err)
		}
		return img, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
	}
}

func isICO(mt *mimetype.MIME) bool {
	return mt.Is("image/x-icon") || mt.Is("image/vnd.microsoft.icon")
}

func isSVG(mt *mimetype.MIME) bool {
	return mt.Is("image/svg+xml")
}

// renderSVG rasterizes a vector icon onto a size x size canvas, stretching
// the view box to fill it
func renderSVG(data []byte, size int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse SVG: %v", ErrUnsupported, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("%w: SVG has no dimensions", ErrUnsupported)
	}

	icon.SetTarget(0, 0, float64(size), float64(size))
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1)
	return img, nil
}

// scale fits img into a maxSize square keeping its aspect ratio
func (n *Normalizer) scale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*n.maxSize/w)
		w = n.maxSize
	} else {
		w = max(1, w*n.maxSize/h)
		h = n.maxSize
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
