// ABOUTME: Software Media: keeps the latest frame per channel and blends it onto RGBA video
// ABOUTME: Main-stream video gets the full frame, narrower sub-stream video the half-size one

package compositor

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/mauromedda/posoverlay/pkg/raster"
)

type softChannel struct {
	pos    Position
	frame  atomic.Pointer[raster.Frame]
	paused atomic.Bool

	mu         sync.Mutex
	minW, maxW int
}

// SoftMedia composites in software. Update and Compose may run on different
// goroutines; Compose never blocks on Update.
type SoftMedia struct {
	mu    sync.RWMutex
	chans map[int]*softChannel
}

// NewSoftMedia returns an empty software compositor.
func NewSoftMedia() *SoftMedia {
	return &SoftMedia{chans: make(map[int]*softChannel)}
}

func (m *SoftMedia) channel(ch int) (*softChannel, error) {
	m.mu.RLock()
	c, ok := m.chans[ch]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d is not attached", ErrChannel, ch)
	}
	return c, nil
}

// Attach implements Media.
func (m *SoftMedia) Attach(ch int, pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chans[ch]; ok {
		return fmt.Errorf("channel %d already has an overlay", ch)
	}
	m.chans[ch] = &softChannel{pos: pos}
	return nil
}

// Update implements Media.
func (m *SoftMedia) Update(ch int, f *raster.Frame) error {
	c, err := m.channel(ch)
	if err != nil {
		return err
	}
	c.frame.Store(f)
	return nil
}

// Detach implements Media.
func (m *SoftMedia) Detach(ch int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chans[ch]; !ok {
		return fmt.Errorf("%w: %d is not attached", ErrChannel, ch)
	}
	delete(m.chans, ch)
	return nil
}

// Pause implements Media.
func (m *SoftMedia) Pause(ch int) error {
	c, err := m.channel(ch)
	if err != nil {
		return err
	}
	c.paused.Store(true)
	return nil
}

// Resume implements Media.
func (m *SoftMedia) Resume(ch int) error {
	c, err := m.channel(ch)
	if err != nil {
		return err
	}
	c.paused.Store(false)
	return nil
}

// Frame returns the frame last handed to ch, or nil.
func (m *SoftMedia) Frame(ch int) *raster.Frame {
	c, err := m.channel(ch)
	if err != nil {
		return nil
	}
	return c.frame.Load()
}

// Compose blends ch's current overlay onto video and reports whether anything
// was drawn. Video narrower than the widest seen on ch is treated as the sub
// stream. Overlays larger than the video are skipped.
func (m *SoftMedia) Compose(ch int, video draw.Image) (bool, error) {
	c, err := m.channel(ch)
	if err != nil {
		return false, err
	}
	f := c.frame.Load()
	if f == nil || c.paused.Load() {
		return false, nil
	}

	vb := video.Bounds()
	w := vb.Dx()
	c.mu.Lock()
	if c.minW == 0 || w < c.minW {
		c.minW = w
	}
	if w > c.maxW {
		c.maxW = w
	}
	main := w == c.maxW
	c.mu.Unlock()

	surface := f.Main
	if !main {
		surface = f.Sub
	}
	osd := image.Pt(surface.Width, surface.Height)
	if osd.X == 0 || osd.X > w || osd.Y > vb.Dy() {
		return false, nil
	}
	at := vb.Min.Add(Placement(c.pos, vb.Size(), osd))
	draw.Draw(video, image.Rectangle{Min: at, Max: at.Add(osd)}, surface, image.Point{}, draw.Over)
	return true, nil
}
