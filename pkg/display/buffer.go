// ABOUTME: Scrolling overlay text buffer: wrapped rows, dirty tracking, eviction, idle expiry
// ABOUTME: Render paints dirty rows (or everything after a scroll) and publishes the canvas

package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/font/basicfont"

	"github.com/mauromedda/posoverlay/pkg/raster"
)

// Defaults applied by New for zero-valued options.
const (
	DefaultWidth         = 600
	DefaultHeight        = 700
	DefaultMarginX       = 6
	DefaultIdleThreshold = 100
	DefaultInterval      = 100 * time.Millisecond
)

// Yellow is the default overlay text colour.
var Yellow = color.NRGBA{R: 255, G: 255, A: 255}

// Sink receives every published frame.
type Sink interface {
	Present(f *raster.Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(*raster.Frame) error

// Present implements Sink.
func (fn SinkFunc) Present(f *raster.Frame) error { return fn(f) }

// Options configures a Buffer.
type Options struct {
	Width   int
	Height  int
	Format  raster.Format
	Glyphs  raster.GlyphSource
	MarginX int

	// IdleThreshold is the number of renders without an Append after which the
	// rows are cleared. Negative disables expiry.
	IdleThreshold int

	Foreground color.Color
	Background color.Color
	Sink       Sink
}

// Row is one wrapped line of overlay text.
type Row struct {
	Text     string
	Top      int
	Baseline int
	Dirty    bool
}

// RenderResult describes what a Render call did.
type RenderResult struct {
	Full    bool // whole canvas was cleared and repainted
	Painted int  // rows drawn
	Expired bool // rows were cleared by idle expiry
	Frame   *raster.Frame
	Err     error // sink failure; the previous frame stays visible
}

// Buffer owns one overlay canvas. Its methods are safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	opts     Options
	canvas   *raster.Canvas
	rows     []Row
	scrolled bool
	idle     int

	rowHeight int
	maxRows   int
	marginY   int
}

// AlignWidth rounds w up to the next multiple of 8, the granularity overlay
// planes are allocated in.
func AlignWidth(w int) int {
	return (w + 7) &^ 7
}

// New allocates the canvas and derives the row layout from the glyph metrics.
func New(opts Options) (*Buffer, error) {
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultHeight
	}
	opts.Width = AlignWidth(opts.Width)
	if opts.Glyphs == nil {
		opts.Glyphs = raster.NewFaceSource(basicfont.Face7x13)
	}
	if opts.MarginX == 0 {
		opts.MarginX = DefaultMarginX
	}
	if opts.IdleThreshold == 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.Foreground == nil {
		opts.Foreground = Yellow
	}
	if opts.Background == nil {
		opts.Background = color.Transparent
	}

	px := opts.Glyphs.PixelSize()
	if px <= 0 {
		return nil, errors.New("glyph source reports no pixel size")
	}
	rowHeight := px + 5*px/14
	maxRows := opts.Height / rowHeight
	if maxRows == 0 {
		return nil, fmt.Errorf("canvas height %d is smaller than one %dpx row", opts.Height, rowHeight)
	}
	if opts.Width-2*opts.MarginX <= 0 {
		return nil, fmt.Errorf("canvas width %d leaves no room inside %dpx margins", opts.Width, opts.MarginX)
	}

	canvas, err := raster.NewCanvas(opts.Width, opts.Height, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("display canvas: %w", err)
	}
	canvas.SetForeground(opts.Foreground)
	canvas.SetBackground(opts.Background)
	canvas.Clear()

	return &Buffer{
		opts:      opts,
		canvas:    canvas,
		rowHeight: rowHeight,
		maxRows:   maxRows,
		marginY:   (opts.Height - maxRows*rowHeight) / 2,
	}, nil
}

// Append wraps text into rows, evicting the oldest rows when the buffer would
// exceed MaxRows. New rows are dirty.
func (b *Buffer) Append(text string) {
	lines := Wrap(text, b.opts.Width-2*b.opts.MarginX, b.opts.Glyphs)
	if len(lines) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.idle = 0
	if len(lines) > b.maxRows {
		lines = lines[len(lines)-b.maxRows:]
	}
	if over := len(b.rows) + len(lines) - b.maxRows; over > 0 {
		b.rows = append(b.rows[:0:0], b.rows[over:]...)
		b.scrolled = true
	}
	for _, l := range lines {
		b.rows = append(b.rows, Row{Text: l, Dirty: true})
	}
	b.layout()
}

// layout assigns each row its vertical position by index.
func (b *Buffer) layout() {
	ascent := b.opts.Glyphs.Ascent()
	for i := range b.rows {
		top := b.marginY + i*b.rowHeight
		b.rows[i].Top = top
		b.rows[i].Baseline = top + ascent
	}
}

// Render brings the canvas up to date and publishes it. Nothing is published
// when no row changed.
func (b *Buffer) Render() RenderResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	var res RenderResult
	if len(b.rows) > 0 && b.opts.IdleThreshold > 0 {
		b.idle++
		if b.idle >= b.opts.IdleThreshold {
			b.rows = nil
			b.idle = 0
			b.scrolled = true
			res.Expired = true
		}
	}

	if b.scrolled {
		b.canvas.Clear()
		for i := range b.rows {
			b.paint(&b.rows[i])
		}
		res.Full = true
		res.Painted = len(b.rows)
	} else {
		for i := range b.rows {
			if !b.rows[i].Dirty {
				continue
			}
			r := b.rows[i]
			band := image.Rect(0, r.Top, b.canvas.Width(), r.Top+b.rowHeight)
			b.canvas.SolidFill(band, b.canvas.Background())
			b.paint(&b.rows[i])
			res.Painted++
		}
		if res.Painted == 0 {
			return res
		}
	}
	b.scrolled = false

	frame, err := b.canvas.Publish()
	if err != nil {
		res.Err = err
		return res
	}
	res.Frame = frame
	if b.opts.Sink != nil {
		if err := b.opts.Sink.Present(frame); err != nil {
			res.Err = fmt.Errorf("present frame %d: %w", frame.Seq, err)
		}
	}
	return res
}

func (b *Buffer) paint(r *Row) {
	b.canvas.DrawText(b.opts.MarginX, r.Top, r.Text, b.opts.Glyphs)
	r.Dirty = false
}

// Run renders every interval until ctx is cancelled. report, if non-nil, sees
// every render that published or failed.
func (b *Buffer) Run(ctx context.Context, interval time.Duration, report func(RenderResult)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res := b.Render()
			if report != nil && (res.Frame != nil || res.Err != nil) {
				report(res)
			}
		}
	}
}

// Clear drops every row; the next Render repaints a blank canvas.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = nil
	b.idle = 0
	b.scrolled = true
}

// Rows returns a copy of the current rows, oldest first.
func (b *Buffer) Rows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Row, len(b.rows))
	copy(out, b.rows)
	return out
}

// Len returns the number of rows held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Scrolled reports whether rows were evicted or cleared since the last Render.
func (b *Buffer) Scrolled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scrolled
}

// MaxRows returns how many rows fit on the canvas.
func (b *Buffer) MaxRows() int { return b.maxRows }

// RowHeight returns the row pitch in pixels.
func (b *Buffer) RowHeight() int { return b.rowHeight }

// Width returns the canvas width after alignment.
func (b *Buffer) Width() int { return b.opts.Width }

// Height returns the canvas height.
func (b *Buffer) Height() int { return b.opts.Height }

// Current returns the last published frame without locking.
func (b *Buffer) Current() *raster.Frame { return b.canvas.Current() }

// Close releases the canvas. The buffer must not be used afterwards.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = nil
	b.canvas.Close()
}
