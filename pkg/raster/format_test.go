// ABOUTME: Tests for the packed pixel format strategies
// ABOUTME: Covers encoding layout, coverage compositing, and alpha accumulation

package raster

import (
	"image/color"
	"testing"
)

func TestFormatByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: ARGB1555},
		{in: "ARGB1555", want: ARGB1555},
		{in: "argb8888", want: ARGB8888},
		{in: "rgb565", wantErr: true},
	}
	for _, tt := range tests {
		got, err := FormatByName(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("FormatByName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("FormatByName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestARGB1555_FillLayout(t *testing.T) {
	t.Parallel()

	p := make([]byte, 2)
	ARGB1555.Fill(p, color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff})
	px := uint16(p[0]) | uint16(p[1])<<8
	if px != 0xfc00 {
		t.Errorf("red pixel = %#04x, want 0xfc00", px)
	}

	ARGB1555.Fill(p, color.NRGBA{R: 0, G: 0xff, B: 0xff, A: 0})
	px = uint16(p[0]) | uint16(p[1])<<8
	if px != 0x03ff {
		t.Errorf("transparent cyan = %#04x, want 0x03ff", px)
	}
}

func TestARGB1555_CompositeKeepsMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		bg     color.NRGBA
		marker bool
	}{
		{name: "opaque bg", bg: color.NRGBA{A: 255}, marker: true},
		{name: "transparent bg", bg: color.NRGBA{}, marker: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := make([]byte, 2)
			ARGB1555.Fill(p, tt.bg)
			ARGB1555.Composite(p, color.NRGBA{R: 255, G: 255, A: 255}, 128)
			got := p[1]&0x80 != 0
			if got != tt.marker {
				t.Errorf("marker = %v, want %v", got, tt.marker)
			}
		})
	}
}

func TestARGB1555_CompositeBlendsOverOutline(t *testing.T) {
	t.Parallel()

	p := make([]byte, 2)
	ARGB1555.Composite(p, color.NRGBA{R: 255, G: 255, B: 0, A: 255}, 128)
	c := ARGB1555.Decode(p)

	// Outline 45 -> 5 bits = 5; fg 31; blend = 5 + (26*128)>>8 = 18 -> expanded 148.
	if c.R != expand5(18) || c.G != expand5(18) {
		t.Errorf("blended R,G = %d,%d, want %d", c.R, c.G, expand5(18))
	}
	// Blue blends towards 0 from the outline: 5 + (-5*128)>>8 = 2.
	if c.B != expand5(2) {
		t.Errorf("blended B = %d, want %d", c.B, expand5(2))
	}
}

func TestARGB1555_FullCoverageIsSolid(t *testing.T) {
	t.Parallel()

	p := make([]byte, 2)
	fg := color.NRGBA{R: 255, G: 255, B: 0, A: 255}
	ARGB1555.Composite(p, fg, 255)
	want := make([]byte, 2)
	ARGB1555.Fill(want, fg)
	if p[0] != want[0] || p[1] != want[1] {
		t.Errorf("full coverage = %v, want %v", p, want)
	}
}

func TestARGB8888_ByteOrder(t *testing.T) {
	t.Parallel()

	p := make([]byte, 4)
	ARGB8888.Fill(p, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	if p[0] != 3 || p[1] != 2 || p[2] != 1 || p[3] != 4 {
		t.Errorf("bytes = %v, want [3 2 1 4]", p)
	}
	if got := ARGB8888.Decode(p); got != (color.NRGBA{R: 1, G: 2, B: 3, A: 4}) {
		t.Errorf("Decode = %v", got)
	}
}

func TestARGB8888_CompositeAlpha(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bgA   uint8
		a     uint8
		wantA uint8
	}{
		{name: "over transparent", bgA: 0, a: 100, wantA: 100},
		{name: "over opaque", bgA: 255, a: 100, wantA: 255},
		{name: "half over half", bgA: 128, a: 128, wantA: 192},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := []byte{0, 0, 0, tt.bgA}
			ARGB8888.Composite(p, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, tt.a)
			if p[3] != tt.wantA {
				t.Errorf("alpha = %d, want %d", p[3], tt.wantA)
			}
		})
	}
}

func TestARGB8888_CompositeChannels(t *testing.T) {
	t.Parallel()

	p := []byte{0, 0, 0, 255}
	ARGB8888.Composite(p, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, 128)
	// bg + (fg-bg)*128/256 = fg/2
	if p[2] != 100 || p[1] != 50 || p[0] != 25 {
		t.Errorf("channels B,G,R = %d,%d,%d, want 25,50,100", p[0], p[1], p[2])
	}
}
