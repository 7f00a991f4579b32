// ABOUTME: Streaming tag scanner turning raw POS bytes into START/ITEM/STOP events
// ABOUTME: Bounded buffer with split-tag carryover; overflow resets and reports ErrBufferOverflow

package framer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrBufferOverflow is returned by Feed when a separator-delimited field does not
// fit in the accumulation buffer. The buffer has been reset; framing state is kept.
var ErrBufferOverflow = errors.New("framer buffer overflow")

// Parser frames one source's byte stream. It performs no I/O and is not safe for
// concurrent use; each source owns its parser.
type Parser struct {
	cfg   Config
	start []byte // start tag with separator appended
	stop  []byte
	sep   []byte
	buf   []byte

	started bool
	norm    *Normalizer
	skipped int64
}

// New validates cfg and returns a parser in the idle state.
func New(cfg Config) (*Parser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("framer config: %w", err)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeReceipt
	}
	p := &Parser{
		cfg:   cfg,
		start: []byte(cfg.StartTag + cfg.Separator),
		stop:  []byte(cfg.StopTag),
		sep:   []byte(cfg.Separator),
		norm:  NewNormalizer(cfg.Encoding),
	}
	if cfg.Mode == ModeReceipt {
		p.buf = make([]byte, 0, cfg.capacity())
	}
	return p, nil
}

// Config returns the configuration the parser was built with.
func (p *Parser) Config() Config { return p.cfg }

// Started reports whether a transaction is open.
func (p *Parser) Started() bool { return p.started }

// Pending returns a copy of the bytes held for the next Feed.
func (p *Parser) Pending() []byte { return bytes.Clone(p.buf) }

// Skipped returns how many bytes other than whitespace and separators were
// discarded outside any transaction. That includes text following a field that began with the stop tag.
func (p *Parser) Skipped() int64 { return p.skipped }

// EncodingErr reports why text conversion is disabled, or nil.
func (p *Parser) EncodingErr() error { return p.norm.Err() }

// Reset drops buffered bytes and returns to the idle state.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.started = false
}

// Feed appends chunk to the stream and returns the events it completes and the
// number of chunk bytes taken. consumed is len(chunk) unless err is
// ErrBufferOverflow, in which case the caller feeds chunk[consumed:] again.
func (p *Parser) Feed(chunk []byte) (events []Event, consumed int, err error) {
	switch p.cfg.Mode {
	case ModePlaintext:
		if text := p.norm.Text(chunk); text != "" {
			events = append(events, Event{Kind: Item, Text: text})
		}
		return events, len(chunk), nil
	case ModeTerminal:
		if text := strings.TrimSpace(p.norm.Convert(chunk)); text != "" {
			events = append(events, Event{Kind: Item, Text: text})
		}
		return events, len(chunk), nil
	}

	limit := cap(p.buf)
	for consumed < len(chunk) {
		n := min(limit-len(p.buf), len(chunk)-consumed)
		if n == 0 {
			p.buf = p.buf[:0]
			return events, consumed, ErrBufferOverflow
		}
		p.buf = append(p.buf, chunk[consumed:consumed+n]...)
		consumed += n
		events = p.scan(events)
	}
	return events, consumed, nil
}

// scan makes every framing decision the buffered bytes allow.
func (p *Parser) scan(events []Event) []Event {
	for {
		if !p.started {
			i := bytes.Index(p.buf, p.start)
			if i < 0 {
				// A start tag can only begin in the last len(start)-1 bytes.
				if keep := len(p.start) - 1; len(p.buf) > keep {
					p.skip(len(p.buf) - keep)
				}
				return events
			}
			p.skip(i)
			p.drop(len(p.start))
			p.started = true
			events = append(events, Event{Kind: Start})
			continue
		}

		var done bool
		if len(p.sep) == 0 {
			events, done = p.scanStream(events)
		} else {
			events, done = p.scanFields(events)
		}
		if !done {
			return events
		}
		p.started = false
		events = append(events, Event{Kind: Stop})
	}
}

// scanStream handles transactions without a separator. Text is held until the
// stop tag appears or the buffer fills; a full buffer is emitted as an item,
// minus any tail that could still be the beginning of the stop tag or of a
// multi-byte character.
func (p *Parser) scanStream(events []Event) ([]Event, bool) {
	if j := bytes.Index(p.buf, p.stop); j >= 0 {
		events = p.item(events, p.buf[:j])
		p.drop(j + len(p.stop))
		return events, true
	}
	if len(p.buf) < cap(p.buf) {
		return events, false
	}
	cut := len(p.buf) - partialSuffix(p.buf, p.stop)
	if c := p.norm.Boundary(p.buf[:cut]); c > 0 {
		cut = c
	}
	events = p.item(events, p.buf[:cut])
	p.drop(cut)
	return events, false
}

// scanFields handles separator-delimited transactions. A field that begins with
// the stop tag ends the transaction without waiting for a trailing separator;
// whatever follows the tag is then idle input and counts as skipped.
func (p *Parser) scanFields(events []Event) ([]Event, bool) {
	for {
		lead := len(p.buf) - len(bytes.TrimLeft(p.buf, " \t\r\n"))
		field := p.buf[lead:]
		if bytes.HasPrefix(field, p.stop) {
			p.drop(lead + len(p.stop))
			return events, true
		}
		if bytes.HasPrefix(p.stop, field) {
			return events, false
		}
		i := bytes.Index(p.buf, p.sep)
		if i < 0 {
			return events, false
		}
		events = p.item(events, p.buf[:i])
		p.drop(i + len(p.sep))
	}
}

func (p *Parser) item(events []Event, raw []byte) []Event {
	if len(raw) == 0 {
		return events
	}
	if text := p.norm.Text(raw); text != "" {
		events = append(events, Event{Kind: Item, Text: text})
	}
	return events
}

// skip drops n idle bytes, counting the ones that are neither whitespace nor
// separator bytes.
func (p *Parser) skip(n int) {
	for _, c := range p.buf[:n] {
		switch {
		case c == ' ', c == '\t', c == '\r', c == '\n':
		case bytes.IndexByte(p.sep, c) >= 0:
		default:
			p.skipped++
		}
	}
	p.drop(n)
}

// drop discards the first n buffered bytes, keeping the buffer's backing array.
func (p *Parser) drop(n int) {
	p.buf = p.buf[:copy(p.buf, p.buf[n:])]
}

// partialSuffix returns the length of the longest proper prefix of tag that
// ends buf.
func partialSuffix(buf, tag []byte) int {
	for n := min(len(tag)-1, len(buf)); n > 0; n-- {
		if bytes.HasSuffix(buf, tag[:n]) {
			return n
		}
	}
	return 0
}
