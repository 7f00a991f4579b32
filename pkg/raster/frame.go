// ABOUTME: Packed-pixel Surface (draw.Image over raw memory) and immutable published Frames
// ABOUTME: A Frame pairs the full-resolution surface with its half-resolution preview surface

package raster

import (
	"image"
	"image/color"
	"time"
)

// Surface describes packed pixel memory the way the compositor consumes it.
// It implements draw.Image so x/image/draw can scale between surfaces.
type Surface struct {
	Width  int
	Height int
	Stride int
	Format Format
	Pix    []byte
}

// NewSurface allocates a zeroed surface.
func NewSurface(width, height int, format Format) Surface {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	stride := width * format.BytesPerPixel()
	return Surface{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    make([]byte, stride*height),
	}
}

// ColorModel implements image.Image.
func (s Surface) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (s Surface) Bounds() image.Rectangle { return image.Rect(0, 0, s.Width, s.Height) }

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (s Surface) PixOffset(x, y int) int {
	return y*s.Stride + x*s.Format.BytesPerPixel()
}

// At implements image.Image. Out-of-bounds reads return transparent.
func (s Surface) At(x, y int) color.Color {
	return s.NRGBAAt(x, y)
}

// NRGBAAt returns the decoded pixel at (x, y).
func (s Surface) NRGBAAt(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return color.NRGBA{}
	}
	i := s.PixOffset(x, y)
	return s.Format.Decode(s.Pix[i : i+s.Format.BytesPerPixel()])
}

// Set implements draw.Image. Out-of-bounds writes are skipped.
func (s Surface) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return
	}
	i := s.PixOffset(x, y)
	s.Format.Fill(s.Pix[i:i+s.Format.BytesPerPixel()], color.NRGBAModel.Convert(c).(color.NRGBA))
}

// Frame is a published canvas snapshot. Frames are immutable once returned by
// Canvas.Publish: readers may hold them for as long as they like and the
// canvas never writes to their memory again.
type Frame struct {
	Main      Surface
	Sub       Surface
	Seq       uint64
	Published time.Time
}
