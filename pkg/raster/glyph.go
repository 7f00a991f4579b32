// ABOUTME: Pre-rendered glyph coverage masks and the GlyphSource backed by x/image/font faces
// ABOUTME: Converted glyphs are cached; wide runes missing from the face get runewidth advances

package raster

import (
	"image"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

// Glyph is a rendered character: an 8-bit coverage mask plus placement metrics.
// Left is the x offset from the pen position, Top the number of rows above the
// baseline, Advance the pen movement, and Stride the bytes per mask row.
type Glyph struct {
	Width    int
	Height   int
	Left     int
	Top      int
	Advance  int
	Stride   int
	Coverage []uint8
}

// GlyphSource supplies glyphs and line metrics to the rasterizer.
type GlyphSource interface {
	// Glyph returns the glyph for r; ok is false for runes that take no space.
	Glyph(r rune) (*Glyph, bool)
	// Ascent is the distance from the top of a text line to its baseline.
	Ascent() int
	// PixelSize is the nominal text height in pixels.
	PixelSize() int
}

// FaceSource adapts a font.Face. It is safe for concurrent use.
type FaceSource struct {
	mu     sync.Mutex
	face   font.Face
	cache  map[rune]*Glyph
	ascent int
	size   int
	cell   int
}

// NewFaceSource wraps face, caching glyphs as they are requested.
func NewFaceSource(face font.Face) *FaceSource {
	m := face.Metrics()
	cell, ok := face.GlyphAdvance('0')
	if !ok {
		cell = m.Height / 2
	}
	return &FaceSource{
		face:   face,
		cache:  make(map[rune]*Glyph),
		ascent: m.Ascent.Ceil(),
		size:   m.Height.Ceil(),
		cell:   cell.Round(),
	}
}

// BuiltinFace maps the configured font size index onto the faces that ship
// with x/image: 0 is 7x13, 1 is Inconsolata 8x16, 2 and above Inconsolata bold.
func BuiltinFace(size int) font.Face {
	switch {
	case size <= 0:
		return basicfont.Face7x13
	case size == 1:
		return inconsolata.Regular8x16
	default:
		return inconsolata.Bold8x16
	}
}

// Ascent implements GlyphSource.
func (s *FaceSource) Ascent() int { return s.ascent }

// PixelSize implements GlyphSource.
func (s *FaceSource) PixelSize() int { return s.size }

// Glyph implements GlyphSource.
func (s *FaceSource) Glyph(r rune) (*Glyph, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.cache[r]; ok {
		return g, g != nil
	}
	g := s.render(r)
	s.cache[r] = g
	return g, g != nil
}

func (s *FaceSource) render(r rune) *Glyph {
	if r < 0x20 || r == 0x7f {
		return nil
	}
	cells := runewidth.RuneWidth(r)
	dr, mask, maskp, adv, ok := s.face.Glyph(fixed.Point26_6{}, r)
	if !ok || mask == nil {
		if cells == 0 {
			return nil
		}
		return &Glyph{Advance: cells * s.cell}
	}

	g := &Glyph{
		Width:   dr.Dx(),
		Height:  dr.Dy(),
		Left:    dr.Min.X,
		Top:     -dr.Min.Y,
		Advance: adv.Round(),
		Stride:  dr.Dx(),
	}
	// Faces substitute a replacement glyph for missing runes; keep wide runes
	// at their cell width so columns stay aligned.
	if w := cells * s.cell; w > g.Advance {
		g.Advance = w
	}
	g.Coverage = coverage(mask, maskp, g.Width, g.Height)
	return g
}

// coverage extracts an 8-bit alpha mask from a glyph mask image.
func coverage(mask image.Image, origin image.Point, w, h int) []uint8 {
	out := make([]uint8, w*h)
	if a, ok := mask.(*image.Alpha); ok {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[y*w+x] = a.AlphaAt(origin.X+x, origin.Y+y).A
			}
		}
		return out
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_, _, _, al := mask.At(origin.X+x, origin.Y+y).RGBA()
			out[y*w+x] = uint8(al >> 8)
		}
	}
	return out
}
