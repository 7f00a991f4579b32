// ABOUTME: Compositor context: channel count plus the video compositor handle, built once
// ABOUTME: Media is the contract every overlay plane backend implements

package compositor

import (
	"errors"
	"fmt"

	"github.com/mauromedda/posoverlay/pkg/raster"
)

// ErrChannel is returned for channel ids outside the recorder's range.
var ErrChannel = errors.New("invalid video channel")

// Media blends published overlay frames onto video channels.
type Media interface {
	// Attach reserves an overlay plane on ch anchored at pos.
	Attach(ch int, pos Position) error
	// Update hands ch the frame to show from now on.
	Update(ch int, f *raster.Frame) error
	// Detach releases the plane on ch.
	Detach(ch int) error
	// Pause stops compositing on ch without releasing the plane.
	Pause(ch int) error
	// Resume restarts compositing on a paused channel.
	Resume(ch int) error
}

// Context carries the process-wide compositor state. It is built once at
// startup and shared by reference; its fields never change.
type Context struct {
	channels int
	media    Media
}

// NewContext validates and returns a compositor context.
func NewContext(channels int, media Media) (*Context, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("channel count %d must be positive", channels)
	}
	if media == nil {
		return nil, errors.New("compositor media is nil")
	}
	return &Context{channels: channels, media: media}, nil
}

// Channels returns the number of video channels.
func (c *Context) Channels() int { return c.channels }

// Media returns the compositor handle.
func (c *Context) Media() Media { return c.media }

// CheckChannel reports ErrChannel for ids outside [0, Channels).
func (c *Context) CheckChannel(ch int) error {
	if ch < 0 || ch >= c.channels {
		return fmt.Errorf("%w: %d (recorder has %d)", ErrChannel, ch, c.channels)
	}
	return nil
}
