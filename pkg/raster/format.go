// ABOUTME: Packed pixel format strategies (ARGB1555, ARGB8888) selected at canvas construction
// ABOUTME: Each format knows how to fill, composite glyph coverage, and decode a pixel

package raster

import (
	"fmt"
	"image/color"
	"strings"
)

// Format encodes colours into packed pixel memory.
// Implementations are stateless and safe for concurrent use.
type Format interface {
	// Name returns the format tag handed to the compositor ("argb1555", "argb8888").
	Name() string
	// BytesPerPixel is the packed size of one pixel.
	BytesPerPixel() int
	// Fill writes c to the pixel at p.
	Fill(p []byte, c color.NRGBA)
	// Composite draws fg with glyph coverage a (1..255) over the pixel at p.
	Composite(p []byte, fg color.NRGBA, a uint8)
	// Decode reads the pixel at p.
	Decode(p []byte) color.NRGBA
}

// ARGB1555 is the 16-bit little-endian format: 1 alpha marker bit, 5 bits per channel.
var ARGB1555 Format = argb1555{}

// ARGB8888 is the 32-bit format stored in B, G, R, A byte order.
var ARGB8888 Format = argb8888{}

// outlineColor is painted under partially covered glyph pixels in ARGB1555 so
// anti-aliased edges read against bright video.
var outlineColor = color.NRGBA{R: 45, G: 45, B: 45, A: 255}

// FormatByName resolves a config tag to a Format. Empty selects ARGB1555.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "argb1555", "rgb1555", "1555":
		return ARGB1555, nil
	case "argb8888", "8888":
		return ARGB8888, nil
	default:
		return nil, fmt.Errorf("unknown pixel format %q", name)
	}
}

type argb1555 struct{}

func (argb1555) Name() string       { return "argb1555" }
func (argb1555) BytesPerPixel() int { return 2 }

func (argb1555) Fill(p []byte, c color.NRGBA) {
	var marker byte
	if c.A != 0 {
		marker = 0x80
	}
	p[0] = (c.G&0x38)<<2 | c.B>>3
	p[1] = marker | (c.R&0xf8)>>1 | c.G>>6
}

func (f argb1555) Composite(p []byte, fg color.NRGBA, a uint8) {
	if a == 255 {
		f.Fill(p, color.NRGBA{R: fg.R, G: fg.G, B: fg.B, A: 255})
		return
	}
	f.Fill(p, outlineColor)

	px := uint16(p[0]) | uint16(p[1])<<8
	bb := int(px & 0x1f)
	bg := int(px>>5) & 0x1f
	br := int(px>>10) & 0x1f
	marker := px & 0x8000

	r := blend(br, int(fg.R>>3), int(a))
	g := blend(bg, int(fg.G>>3), int(a))
	b := blend(bb, int(fg.B>>3), int(a))

	px = marker | uint16(r)<<10 | uint16(g)<<5 | uint16(b)
	p[0] = byte(px)
	p[1] = byte(px >> 8)
}

func (argb1555) Decode(p []byte) color.NRGBA {
	px := uint16(p[0]) | uint16(p[1])<<8
	c := color.NRGBA{
		R: expand5(uint8(px>>10) & 0x1f),
		G: expand5(uint8(px>>5) & 0x1f),
		B: expand5(uint8(px) & 0x1f),
	}
	if px&0x8000 != 0 {
		c.A = 255
	}
	return c
}

// expand5 widens a 5-bit channel to 8 bits, replicating the high bits.
func expand5(v uint8) uint8 {
	return v<<3 | v>>2
}

type argb8888 struct{}

func (argb8888) Name() string       { return "argb8888" }
func (argb8888) BytesPerPixel() int { return 4 }

func (argb8888) Fill(p []byte, c color.NRGBA) {
	p[0] = c.B
	p[1] = c.G
	p[2] = c.R
	p[3] = c.A
}

func (argb8888) Composite(p []byte, fg color.NRGBA, a uint8) {
	if a == 255 {
		p[0], p[1], p[2], p[3] = fg.B, fg.G, fg.R, 255
		return
	}
	fa := int(a)
	p[0] = uint8(blend(int(p[0]), int(fg.B), fa))
	p[1] = uint8(blend(int(p[1]), int(fg.G), fa))
	p[2] = uint8(blend(int(p[2]), int(fg.R), fa))
	v := fa * int(p[3])
	p[3] = uint8(fa + int(p[3]) - ((v + v>>8 + 0x80) >> 8))
}

func (argb8888) Decode(p []byte) color.NRGBA {
	return color.NRGBA{R: p[2], G: p[1], B: p[0], A: p[3]}
}

// blend computes bg + (fg-bg)*a/256 with an arithmetic shift.
func blend(bg, fg, a int) int {
	return ((bg << 8) + (fg-bg)*a) >> 8
}
