// ABOUTME: Tests for FaceSource glyph conversion and caching
// ABOUTME: Runs against the built-in 7x13 face so metrics are fixed

package raster

import (
	"testing"

	"golang.org/x/image/font/basicfont"
)

func TestFaceSource_Metrics(t *testing.T) {
	t.Parallel()

	src := NewFaceSource(basicfont.Face7x13)
	if src.Ascent() != 11 {
		t.Errorf("Ascent = %d, want 11", src.Ascent())
	}
	if src.PixelSize() != 13 {
		t.Errorf("PixelSize = %d, want 13", src.PixelSize())
	}
}

func TestFaceSource_GlyphCached(t *testing.T) {
	t.Parallel()

	src := NewFaceSource(basicfont.Face7x13)
	g1, ok := src.Glyph('A')
	if !ok {
		t.Fatal("expected glyph for 'A'")
	}
	if g1.Advance != 7 {
		t.Errorf("Advance = %d, want 7", g1.Advance)
	}
	if len(g1.Coverage) != g1.Width*g1.Height {
		t.Errorf("coverage len = %d, want %d", len(g1.Coverage), g1.Width*g1.Height)
	}
	lit := 0
	for _, a := range g1.Coverage {
		if a != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Error("'A' has no covered pixels")
	}
	g2, _ := src.Glyph('A')
	if g1 != g2 {
		t.Error("second lookup should return the cached glyph")
	}
}

func TestFaceSource_ControlRunes(t *testing.T) {
	t.Parallel()

	src := NewFaceSource(basicfont.Face7x13)
	for _, r := range []rune{'\n', '\t', 0x7f} {
		if _, ok := src.Glyph(r); ok {
			t.Errorf("Glyph(%q) ok = true, want false", r)
		}
	}
}

func TestBuiltinFace(t *testing.T) {
	t.Parallel()

	if BuiltinFace(0) != basicfont.Face7x13 {
		t.Error("size 0 should map to the 7x13 face")
	}
	if BuiltinFace(1) == BuiltinFace(2) {
		t.Error("sizes 1 and 2 should map to different faces")
	}
}
