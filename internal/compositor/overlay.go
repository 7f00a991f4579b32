// ABOUTME: Overlay binds one POS source's display to its video channels
// ABOUTME: Present forwards each published frame to every active bound channel

package compositor

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mauromedda/posoverlay/pkg/raster"
)

// Overlay implements the display sink for one source.
type Overlay struct {
	ctx      *Context
	channels []int
	pos      Position

	mu     sync.Mutex
	paused map[int]bool
	closed bool
}

// NewOverlay attaches a plane on every channel. On failure the channels
// attached so far are detached again.
func (c *Context) NewOverlay(channels []int, pos Position) (*Overlay, error) {
	for _, ch := range channels {
		if err := c.CheckChannel(ch); err != nil {
			return nil, err
		}
	}
	o := &Overlay{
		ctx:      c,
		channels: slices.Clone(channels),
		pos:      pos,
		paused:   make(map[int]bool),
	}
	for i, ch := range o.channels {
		if err := c.media.Attach(ch, pos); err != nil {
			for _, prev := range o.channels[:i] {
				_ = c.media.Detach(prev)
			}
			return nil, fmt.Errorf("attach channel %d: %w", ch, err)
		}
	}
	return o, nil
}

// Channels returns the bound channel ids.
func (o *Overlay) Channels() []int { return slices.Clone(o.channels) }

// Position returns the overlay anchor.
func (o *Overlay) Position() Position { return o.pos }

// Present updates every bound, unpaused channel with f.
func (o *Overlay) Present(f *raster.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	var errs []error
	for _, ch := range o.channels {
		if o.paused[ch] {
			continue
		}
		if err := o.ctx.media.Update(ch, f); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// Pause stops compositing on ch.
func (o *Overlay) Pause(ch int) error {
	return o.setPaused(ch, true)
}

// Resume restarts compositing on ch.
func (o *Overlay) Resume(ch int) error {
	return o.setPaused(ch, false)
}

func (o *Overlay) setPaused(ch int, paused bool) error {
	if !slices.Contains(o.channels, ch) {
		return fmt.Errorf("%w: %d is not bound to this overlay", ErrChannel, ch)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paused[ch] == paused {
		return nil
	}
	var err error
	if paused {
		err = o.ctx.media.Pause(ch)
	} else {
		err = o.ctx.media.Resume(ch)
	}
	if err != nil {
		return fmt.Errorf("channel %d: %w", ch, err)
	}
	o.paused[ch] = paused
	return nil
}

// Paused reports whether ch is paused.
func (o *Overlay) Paused(ch int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused[ch]
}

// Close detaches every channel.
func (o *Overlay) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	var errs []error
	for _, ch := range o.channels {
		if err := o.ctx.media.Detach(ch); err != nil {
			errs = append(errs, fmt.Errorf("detach channel %d: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}
