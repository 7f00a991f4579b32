// ABOUTME: Turns framer events into transaction records for the archive and text for the overlay
// ABOUTME: Receipt mode assembles START/ITEM/STOP; plaintext and terminal modes make one-item records

package assembler

import (
	"slices"
	"sync"
	"time"

	"github.com/mauromedda/posoverlay/internal/log"
	"github.com/mauromedda/posoverlay/internal/store"
	"github.com/mauromedda/posoverlay/internal/terminal"
	"github.com/mauromedda/posoverlay/pkg/framer"
)

// Binding is the source identity stamped on every record started under it.
type Binding struct {
	PosID    int
	PosName  string
	Channels []int
}

// Policy decides what happens to a pending record when a new START arrives.
type Policy int

const (
	// OrphanFlush archives the pending record marked partial.
	OrphanFlush Policy = iota
	// OrphanDiscard drops the pending record.
	OrphanDiscard
)

// ParsePolicy maps "flush" and "discard" onto a Policy. Empty means flush.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "flush":
		return OrphanFlush, true
	case "discard":
		return OrphanDiscard, true
	}
	return 0, false
}

// Display receives overlay text.
type Display interface {
	Append(text string)
}

// Sink receives finished records. Submissions must not block.
type Sink interface {
	Submit(rec store.Record)
	SubmitTerminal(rec store.TerminalRecord)
}

// Options configures an Assembler.
type Options struct {
	Mode      framer.Mode
	Binding   Binding
	Policy    Policy
	Display   Display
	Sink      Sink
	Validator *terminal.Validator
	Clock     func() time.Time
	Logger    *log.Logger
}

// Stats counts what the assembler has produced.
type Stats struct {
	Records   int
	Partial   int
	Discarded int
	Invalid   int
	Ignored   int
}

// Assembler is driven one event at a time by its source. It is safe for
// concurrent use, though events are expected from a single goroutine.
type Assembler struct {
	mu      sync.Mutex
	opts    Options
	binding Binding
	pending *store.Record
	stats   Stats
}

// New returns an assembler. Terminal mode requires a Validator.
func New(opts Options) *Assembler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Mode == "" {
		opts.Mode = framer.ModeReceipt
	}
	a := &Assembler{opts: opts}
	a.binding = cloneBinding(opts.Binding)
	return a
}

func cloneBinding(b Binding) Binding {
	b.Channels = slices.Clone(b.Channels)
	return b
}

// SetBinding replaces the identity used for records started from now on.
// A pending record keeps the binding it started with.
func (a *Assembler) SetBinding(b Binding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.binding = cloneBinding(b)
}

// Pending returns a copy of the open record, if any.
func (a *Assembler) Pending() (store.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return store.Record{}, false
	}
	rec := *a.pending
	rec.Items = slices.Clone(rec.Items)
	rec.Channels = slices.Clone(rec.Channels)
	return rec, true
}

// Stats returns the counters so far.
func (a *Assembler) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Handle applies one event.
func (a *Assembler) Handle(ev framer.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.opts.Mode {
	case framer.ModePlaintext:
		if ev.Kind == framer.Item {
			a.plaintext(ev.Text)
		}
		return
	case framer.ModeTerminal:
		if ev.Kind == framer.Item {
			a.terminal(ev.Text)
		}
		return
	}

	switch ev.Kind {
	case framer.Start:
		a.start()
	case framer.Item:
		a.item(ev.Text)
	case framer.Stop:
		a.stop()
	}
}

func (a *Assembler) start() {
	if a.pending != nil {
		a.orphan()
	}
	a.pending = &store.Record{
		PosID:    a.binding.PosID,
		PosName:  a.binding.PosName,
		Channels: slices.Clone(a.binding.Channels),
		Start:    a.opts.Clock(),
	}
}

func (a *Assembler) orphan() {
	rec := a.pending
	a.pending = nil
	if a.opts.Policy == OrphanDiscard {
		a.stats.Discarded++
		a.opts.Logger.Debug("discarding unterminated transaction with %d items", len(rec.Items))
		return
	}
	a.opts.Logger.Warn("transaction without stop tag, archiving %d items as partial", len(rec.Items))
	a.finish(rec, true)
}

func (a *Assembler) item(text string) {
	if a.pending == nil {
		a.stats.Ignored++
		a.opts.Logger.Debug("item outside a transaction: %q", text)
		return
	}
	a.pending.Items = append(a.pending.Items, text)
	a.show(text)
}

func (a *Assembler) stop() {
	if a.pending == nil {
		a.stats.Ignored++
		a.opts.Logger.Debug("stop tag without start")
		return
	}
	rec := a.pending
	a.pending = nil
	a.finish(rec, false)
	a.show("\n")
}

func (a *Assembler) finish(rec *store.Record, partial bool) {
	rec.Stop = a.opts.Clock()
	if rec.Stop.Before(rec.Start) {
		rec.Stop = rec.Start
	}
	rec.Partial = partial
	if partial {
		a.stats.Partial++
	}
	a.stats.Records++
	if a.opts.Sink != nil {
		a.opts.Sink.Submit(*rec)
	}
}

func (a *Assembler) single(text string) {
	now := a.opts.Clock()
	rec := store.Record{
		PosID:    a.binding.PosID,
		PosName:  a.binding.PosName,
		Channels: slices.Clone(a.binding.Channels),
		Start:    now,
		Stop:     now,
		Items:    []string{text},
	}
	a.stats.Records++
	if a.opts.Sink != nil {
		a.opts.Sink.Submit(rec)
	}
}

func (a *Assembler) plaintext(text string) {
	if text == "" {
		return
	}
	a.show(text + "\n")
	a.single(text)
}

func (a *Assembler) terminal(raw string) {
	if a.opts.Validator == nil {
		a.stats.Invalid++
		a.opts.Logger.Error("terminal payload dropped: no validator configured")
		return
	}
	p, err := a.opts.Validator.Parse([]byte(raw))
	if err != nil {
		a.stats.Invalid++
		a.opts.Logger.Warn("terminal payload dropped: %v", err)
		return
	}
	b := a.binding
	enriched, err := p.Enrich(b.PosID, b.PosName, b.Channels)
	if err != nil {
		a.stats.Invalid++
		a.opts.Logger.Error("terminal payload dropped: %v", err)
		return
	}

	a.show(p.DisplayText())
	rec := p.Record(b.PosID, b.PosName, b.Channels)
	rec.DevTime = a.opts.Clock()
	if a.opts.Sink != nil {
		a.opts.Sink.SubmitTerminal(rec)
	}
	a.single(string(enriched))
}

func (a *Assembler) show(text string) {
	if a.opts.Display != nil {
		a.opts.Display.Append(text)
	}
}

// Close archives a pending record as partial under the flush policy, or drops
// it under the discard policy.
func (a *Assembler) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.orphan()
	}
}
