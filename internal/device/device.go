// ABOUTME: One POS source wired end to end: framer, assembler, display buffer, and video overlay
// ABOUTME: Feed runs on the station reactor; Run drives the render cadence on its own goroutine

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mauromedda/posoverlay/internal/assembler"
	"github.com/mauromedda/posoverlay/internal/compositor"
	"github.com/mauromedda/posoverlay/internal/config"
	"github.com/mauromedda/posoverlay/internal/log"
	"github.com/mauromedda/posoverlay/internal/terminal"
	"github.com/mauromedda/posoverlay/pkg/display"
	"github.com/mauromedda/posoverlay/pkg/framer"
	"github.com/mauromedda/posoverlay/pkg/raster"
)

// OverflowEvery limits how often one source logs buffer overflows and
// discarded text.
const OverflowEvery = 10 * time.Second

// EventKind classifies what a device reports to the station.
type EventKind int

const (
	// Framed carries a parser event.
	Framed EventKind = iota
	// Overflow reports a framing buffer reset.
	Overflow
	// Rendered reports a published overlay frame.
	Rendered
)

func (k EventKind) String() string {
	switch k {
	case Framed:
		return "framed"
	case Overflow:
		return "overflow"
	case Rendered:
		return "rendered"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one observation from a device.
type Event struct {
	PosID  int
	RunID  string
	Kind   EventKind
	Framed framer.Event
	Frame  *raster.Frame
	At     time.Time
}

// Options wires a device to the station's shared collaborators.
type Options struct {
	Source  config.Source
	Display config.DisplaySettings
	// Compositor may be nil, in which case frames are rendered but not shown.
	Compositor *compositor.Context
	Sink       assembler.Sink
	Validator  *terminal.Validator
	OnEvent    func(Event)
	Clock      func() time.Time
}

// Stats counts a device's traffic.
type Stats struct {
	Bytes     int64
	Events    int64
	Overflows int64
	// Skipped counts bytes outside any transaction, whitespace and
	// separators excluded.
	Skipped   int64
	Renders   int64
	Assembler assembler.Stats
}

// Device owns the per-source pipeline. Feed and Close must be serialized by
// the caller; Run may run concurrently with both.
type Device struct {
	src    config.Source
	runID  string
	logger *log.Logger
	clock  func() time.Time
	notify func(Event)

	parser   *framer.Parser
	asm      *assembler.Assembler
	buffer   *display.Buffer
	overlay  *compositor.Overlay
	interval time.Duration
	overflow *rate.Limiter
	skipLog  *rate.Limiter

	bytes     atomic.Int64
	events    atomic.Int64
	overflows atomic.Int64
	skipped   atomic.Int64
	renders   atomic.Int64

	closeOnce sync.Once
}

// New builds the pipeline for opts.Source. The overlay is attached only when
// a compositor is given and the source composes.
func New(opts Options) (*Device, error) {
	src := opts.Source
	logger := log.Named("pos %d", src.ID)

	cfg, err := src.Framing()
	if err != nil {
		return nil, fmt.Errorf("pos %d framing: %w", src.ID, err)
	}
	parser, err := framer.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("pos %d framing: %w", src.ID, err)
	}
	if err := parser.EncodingErr(); err != nil {
		logger.Warn("passing bytes through unconverted: %v", err)
	}
	if cfg.Mode == framer.ModeTerminal && opts.Validator == nil {
		return nil, fmt.Errorf("pos %d: terminal mode needs a payload validator", src.ID)
	}

	format, err := raster.FormatByName(opts.Display.Format)
	if err != nil {
		return nil, fmt.Errorf("pos %d display: %w", src.ID, err)
	}
	pos := compositor.MiddleRight
	if src.Position != "" {
		if pos, err = compositor.ParsePosition(src.Position); err != nil {
			return nil, fmt.Errorf("pos %d overlay: %w", src.ID, err)
		}
	}
	policy, ok := assembler.ParsePolicy(src.Orphan)
	if !ok {
		return nil, fmt.Errorf("pos %d: unknown orphan policy %q", src.ID, src.Orphan)
	}

	d := &Device{
		src:      src,
		runID:    uuid.NewString(),
		logger:   logger,
		clock:    opts.Clock,
		notify:   opts.OnEvent,
		parser:   parser,
		interval: opts.Display.RenderInterval(),
		overflow: rate.NewLimiter(rate.Every(OverflowEvery), 1),
		skipLog:  rate.NewLimiter(rate.Every(OverflowEvery), 1),
	}
	if d.clock == nil {
		d.clock = time.Now
	}

	var sink display.Sink
	if opts.Compositor != nil && src.Composes() && len(src.Channels) > 0 {
		ov, err := opts.Compositor.NewOverlay(src.Channels, pos)
		if err != nil {
			return nil, fmt.Errorf("pos %d overlay: %w", src.ID, err)
		}
		d.overlay = ov
		sink = ov
	}

	buf, err := display.New(display.Options{
		Width:         opts.Display.Width,
		Height:        opts.Display.Height,
		Format:        format,
		Glyphs:        raster.NewFaceSource(raster.BuiltinFace(src.FontSize)),
		MarginX:       opts.Display.MarginX,
		IdleThreshold: opts.Display.IdleTicks,
		Sink:          sink,
	})
	if err != nil {
		if d.overlay != nil {
			_ = d.overlay.Close()
		}
		return nil, fmt.Errorf("pos %d display: %w", src.ID, err)
	}
	d.buffer = buf

	d.asm = assembler.New(assembler.Options{
		Mode: cfg.Mode,
		Binding: assembler.Binding{
			PosID:    src.ID,
			PosName:  src.Name,
			Channels: src.Channels,
		},
		Policy:    policy,
		Display:   buf,
		Sink:      opts.Sink,
		Validator: opts.Validator,
		Clock:     d.clock,
		Logger:    logger,
	})

	logger.Info("attached (%s mode, run %s, channels %v)", cfg.Mode, d.runID, src.Channels)
	return d, nil
}

// ID returns the source id.
func (d *Device) ID() int { return d.src.ID }

// RunID identifies this instance of the source in logs and events.
func (d *Device) RunID() string { return d.runID }

// Source returns the configuration the device was built from.
func (d *Device) Source() config.Source { return d.src }

// Overlay returns the attached overlay, or nil.
func (d *Device) Overlay() *compositor.Overlay { return d.overlay }

// Buffer returns the display buffer.
func (d *Device) Buffer() *display.Buffer { return d.buffer }

// Frame returns the last published overlay frame.
func (d *Device) Frame() *raster.Frame { return d.buffer.Current() }

// Pending returns the open transaction, if any.
func (d *Device) Pending() ([]string, bool) {
	rec, ok := d.asm.Pending()
	return rec.Items, ok
}

// Feed frames chunk and applies every resulting event. Overflows reset the
// framing buffer and feeding continues with the rest of the chunk.
func (d *Device) Feed(chunk []byte) {
	d.bytes.Add(int64(len(chunk)))
	before := d.parser.Skipped()
	defer func() {
		if n := d.parser.Skipped() - before; n > 0 {
			total := d.skipped.Add(n)
			if d.skipLog.Allow() {
				d.logger.Warn("discarded %d bytes outside any transaction, %d so far", n, total)
			}
		}
	}()
	for len(chunk) > 0 {
		events, consumed, err := d.parser.Feed(chunk)
		for _, ev := range events {
			d.events.Add(1)
			d.emit(Event{Kind: Framed, Framed: ev})
			d.asm.Handle(ev)
		}
		if err != nil {
			if !errors.Is(err, framer.ErrBufferOverflow) {
				d.logger.Error("framing: %v", err)
				return
			}
			d.overflows.Add(1)
			d.emit(Event{Kind: Overflow})
			if d.overflow.Allow() {
				d.logger.Warn("framing buffer overflow, %d so far; resynchronizing", d.overflows.Load())
			}
		}
		if consumed <= 0 {
			return
		}
		chunk = chunk[consumed:]
	}
}

// Render paints pending rows now.
func (d *Device) Render() display.RenderResult {
	res := d.buffer.Render()
	d.report(res)
	return res
}

func (d *Device) report(res display.RenderResult) {
	if res.Err != nil {
		d.logger.Warn("overlay update failed, frame left stale: %v", res.Err)
	}
	if res.Frame != nil {
		d.renders.Add(1)
		d.emit(Event{Kind: Rendered, Frame: res.Frame})
	}
	if res.Expired {
		d.logger.Debug("overlay cleared after idle period")
	}
}

// Run renders at the configured cadence until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	return d.buffer.Run(ctx, d.interval, d.report)
}

// Pause stops compositing on ch.
func (d *Device) Pause(ch int) error {
	if d.overlay == nil {
		return fmt.Errorf("pos %d has no overlay", d.src.ID)
	}
	return d.overlay.Pause(ch)
}

// Resume restarts compositing on ch.
func (d *Device) Resume(ch int) error {
	if d.overlay == nil {
		return fmt.Errorf("pos %d has no overlay", d.src.ID)
	}
	return d.overlay.Resume(ch)
}

// Stats returns the device counters.
func (d *Device) Stats() Stats {
	return Stats{
		Bytes:     d.bytes.Load(),
		Events:    d.events.Load(),
		Overflows: d.overflows.Load(),
		Skipped:   d.skipped.Load(),
		Renders:   d.renders.Load(),
		Assembler: d.asm.Stats(),
	}
}

// Close flushes an open transaction, detaches the overlay, and releases the
// canvas and parser state. The render loop must have stopped first.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.asm.Close()
		if d.overlay != nil {
			err = d.overlay.Close()
		}
		d.buffer.Close()
		d.parser.Reset()
		d.logger.Info("detached (run %s)", d.runID)
	})
	return err
}

func (d *Device) emit(ev Event) {
	if d.notify == nil {
		return
	}
	ev.PosID = d.src.ID
	ev.RunID = d.runID
	ev.At = d.clock()
	d.notify(ev)
}
