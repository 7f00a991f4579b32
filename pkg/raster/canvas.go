// ABOUTME: Canvas owns the back buffer: solid fills, glyph compositing, clipping, and publishing
// ABOUTME: Publish snapshots into an immutable Frame and swaps the front pointer atomically

package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
)

// ErrClosed is returned when publishing from a closed canvas.
var ErrClosed = errors.New("canvas closed")

// Canvas is the single owner of an overlay's back buffer. Drawing methods are
// not safe for concurrent use; callers serialize them. Current is safe to call
// from any goroutine.
type Canvas struct {
	back       Surface
	foreground color.NRGBA
	background color.NRGBA

	front  atomic.Pointer[Frame]
	seq    uint64
	closed bool
}

// NewCanvas allocates the back buffer for a width x height canvas.
// The foreground defaults to opaque black and the background to transparent.
func NewCanvas(width, height int, format Format) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	if format == nil {
		format = ARGB1555
	}
	c := &Canvas{
		back:       NewSurface(width, height, format),
		foreground: color.NRGBA{A: 255},
	}
	c.Clear()
	return c, nil
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.back.Width }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.back.Height }

// Stride returns the back buffer line length in bytes.
func (c *Canvas) Stride() int { return c.back.Stride }

// Format returns the pixel format strategy.
func (c *Canvas) Format() Format { return c.back.Format }

// Bounds returns the drawable rectangle.
func (c *Canvas) Bounds() image.Rectangle { return c.back.Bounds() }

// Pixels exposes the back buffer. It is only valid until the next draw call.
func (c *Canvas) Pixels() []byte { return c.back.Pix }

// At reads the back buffer pixel at (x, y).
func (c *Canvas) At(x, y int) color.NRGBA { return c.back.NRGBAAt(x, y) }

// SetForeground sets the glyph colour.
func (c *Canvas) SetForeground(col color.Color) {
	c.foreground = color.NRGBAModel.Convert(col).(color.NRGBA)
}

// SetBackground sets the colour used by Clear.
func (c *Canvas) SetBackground(col color.Color) {
	c.background = color.NRGBAModel.Convert(col).(color.NRGBA)
}

// Background returns the configured clear colour.
func (c *Canvas) Background() color.NRGBA { return c.background }

// SolidFill writes col into r, clipped to the canvas.
func (c *Canvas) SolidFill(r image.Rectangle, col color.Color) {
	if c.closed {
		return
	}
	r = r.Intersect(c.back.Bounds())
	if r.Empty() {
		return
	}
	nc := color.NRGBAModel.Convert(col).(color.NRGBA)
	f := c.back.Format
	bpp := f.BytesPerPixel()

	// Encode one pixel, then replicate it across the first row and copy that row down.
	first := c.back.PixOffset(r.Min.X, r.Min.Y)
	rowLen := r.Dx() * bpp
	row := c.back.Pix[first : first+rowLen]
	f.Fill(row[:bpp], nc)
	for i := bpp; i < rowLen; i *= 2 {
		copy(row[i:], row[:i])
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		off := c.back.PixOffset(r.Min.X, y)
		copy(c.back.Pix[off:off+rowLen], row)
	}
}

// Clear fills the whole canvas with the background colour, or with the first
// colour given.
func (c *Canvas) Clear(col ...color.Color) {
	var fill color.Color = c.background
	if len(col) > 0 && col[0] != nil {
		fill = col[0]
	}
	c.SolidFill(c.back.Bounds(), fill)
}

// DrawText composites s at (x, y), where y is the top of the text line, and
// returns the x position after the last glyph. Pixels falling outside the
// canvas are skipped.
func (c *Canvas) DrawText(x, y int, s string, src GlyphSource) int {
	if c.closed || s == "" || src == nil {
		return x
	}
	baseline := y + src.Ascent()
	for _, r := range s {
		g, ok := src.Glyph(r)
		if !ok {
			continue
		}
		c.drawGlyph(x+g.Left, baseline-g.Top, g)
		x += g.Advance
	}
	return x
}

func (c *Canvas) drawGlyph(x0, y0 int, g *Glyph) {
	f := c.back.Format
	bpp := f.BytesPerPixel()
	for j := 0; j < g.Height; j++ {
		py := y0 + j
		if py < 0 || py >= c.back.Height {
			continue
		}
		for i := 0; i < g.Width; i++ {
			px := x0 + i
			if px < 0 || px >= c.back.Width {
				continue
			}
			a := g.Coverage[j*g.Stride+i]
			if a == 0 {
				continue
			}
			off := c.back.PixOffset(px, py)
			f.Composite(c.back.Pix[off:off+bpp], c.foreground, a)
		}
	}
}

// Publish snapshots the back buffer into a new Frame, derives the
// half-resolution surface, and makes it the frame returned by Current.
func (c *Canvas) Publish() (*Frame, error) {
	if c.closed {
		return nil, ErrClosed
	}
	main := Surface{
		Width:  c.back.Width,
		Height: c.back.Height,
		Stride: c.back.Stride,
		Format: c.back.Format,
		Pix:    make([]byte, len(c.back.Pix)),
	}
	copy(main.Pix, c.back.Pix)

	sub := NewSurface(main.Width/2, main.Height/2, main.Format)
	if sub.Width > 0 && sub.Height > 0 {
		draw.NearestNeighbor.Scale(sub, sub.Bounds(), main, main.Bounds(), draw.Src, nil)
	}

	c.seq++
	f := &Frame{Main: main, Sub: sub, Seq: c.seq, Published: time.Now()}
	c.front.Store(f)
	return f, nil
}

// Current returns the last published frame, or nil before the first Publish.
func (c *Canvas) Current() *Frame {
	return c.front.Load()
}

// Close releases the back buffer and the published frame together.
func (c *Canvas) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.back.Pix = nil
	c.front.Store(nil)
}
