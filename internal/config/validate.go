// ABOUTME: Settings validation: source ids, framing tags, channel ranges, and named options
// ABOUTME: Every problem found is reported at once, wrapped in ErrInvalid

package config

import (
	"errors"
	"fmt"

	"github.com/mauromedda/posoverlay/internal/assembler"
	"github.com/mauromedda/posoverlay/internal/compositor"
	"github.com/mauromedda/posoverlay/pkg/framer"
	"github.com/mauromedda/posoverlay/pkg/raster"
)

// Framing returns the source's framer configuration.
func (s Source) Framing() (framer.Config, error) {
	mode, err := framer.ParseMode(s.Mode)
	if err != nil {
		return framer.Config{}, err
	}
	cfg := framer.Config{
		Mode:      mode,
		StartTag:  s.StartTag,
		StopTag:   s.StopTag,
		Separator: s.Separator,
		Encoding:  s.Encoding,
		Capacity:  s.Capacity,
	}
	return cfg, cfg.Validate()
}

// Validate checks s and returns every problem joined under ErrInvalid.
func Validate(s *Settings) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if s.Channels <= 0 {
		add("channels: %d must be positive", s.Channels)
	}
	if s.Store.Backlog < 0 {
		add("store.backlog: %d is negative", s.Store.Backlog)
	}
	if s.Store.Attempts < 0 {
		add("store.attempts: %d is negative", s.Store.Attempts)
	}
	if s.Display.Width <= 0 || s.Display.Height <= 0 {
		add("display: size %dx%d must be positive", s.Display.Width, s.Display.Height)
	}
	if s.Display.RenderMS < 0 {
		add("display.render_ms: %d is negative", s.Display.RenderMS)
	}
	if _, err := raster.FormatByName(s.Display.Format); err != nil {
		add("display.format: %v", err)
	}

	seen := make(map[int]bool, len(s.Sources))
	// An overlay channel can carry one source.
	bound := make(map[int]int)
	for _, src := range s.Sources {
		where := fmt.Sprintf("source %d", src.ID)
		if src.ID < 0 {
			add("%s: id must not be negative", where)
		}
		if seen[src.ID] {
			add("%s: duplicate id", where)
		}
		seen[src.ID] = true

		if _, err := src.Framing(); err != nil {
			add("%s: %v", where, err)
		}
		if _, err := compositor.ParsePosition(orDefault(src.Position, "middle-right")); err != nil {
			add("%s: %v", where, err)
		}
		if _, ok := assembler.ParsePolicy(src.Orphan); !ok {
			add("%s: unknown orphan policy %q", where, src.Orphan)
		}
		if src.FontSize < 0 {
			add("%s: font_size %d is negative", where, src.FontSize)
		}
		for _, ch := range src.Channels {
			if ch < 0 || (s.Channels > 0 && ch >= s.Channels) {
				add("%s: channel %d outside [0, %d)", where, ch, s.Channels)
				continue
			}
			if !src.Composes() {
				continue
			}
			if other, ok := bound[ch]; ok && other != src.ID {
				add("%s: channel %d already shows source %d", where, ch, other)
				continue
			}
			bound[ch] = src.ID
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
