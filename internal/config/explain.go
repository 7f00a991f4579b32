// ABOUTME: Human-readable rendering of effective configuration
// ABOUTME: Used by the "config" CLI subcommand to show merged settings

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Explain renders a human-readable summary of the effective settings.
// Shows non-zero values grouped by section.
func Explain(s *Settings) string {
	if s == nil {
		s = &Settings{}
	}

	var b strings.Builder

	b.WriteString("=== General ===\n")
	if s.LogLevel != "" {
		fmt.Fprintf(&b, "  LogLevel:  %s\n", s.LogLevel)
	}
	fmt.Fprintf(&b, "  Channels:  %d\n", s.Channels)
	b.WriteString("\n")

	b.WriteString("=== Store ===\n")
	if s.Store.Path != "" {
		fmt.Fprintf(&b, "  Path:      %s\n", s.Store.Path)
	}
	if s.Store.Backlog != 0 {
		fmt.Fprintf(&b, "  Backlog:   %d\n", s.Store.Backlog)
	}
	if s.Store.Attempts != 0 {
		fmt.Fprintf(&b, "  Attempts:  %d\n", s.Store.Attempts)
	}
	if s.Store.RetryMS != 0 {
		fmt.Fprintf(&b, "  Retry:     %s\n", s.Store.RetryInterval())
	}
	b.WriteString("\n")

	b.WriteString("=== Display ===\n")
	fmt.Fprintf(&b, "  Size:      %dx%d\n", s.Display.Width, s.Display.Height)
	if s.Display.Format != "" {
		fmt.Fprintf(&b, "  Format:    %s\n", s.Display.Format)
	}
	if s.Display.RenderMS != 0 {
		fmt.Fprintf(&b, "  Render:    %s\n", s.Display.RenderInterval())
	}
	if s.Display.IdleTicks < 0 {
		b.WriteString("  Idle:      never clears\n")
	} else if s.Display.IdleTicks > 0 {
		fmt.Fprintf(&b, "  Idle:      %d renders\n", s.Display.IdleTicks)
	}
	b.WriteString("\n")

	b.WriteString("=== Sources ===\n")
	if len(s.Sources) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, src := range s.Sources {
		mode := src.Mode
		if mode == "" {
			mode = "receipt"
		}
		fmt.Fprintf(&b, "  [%d] %s (%s)\n", src.ID, src.Name, mode)
		if src.StartTag != "" || src.StopTag != "" {
			fmt.Fprintf(&b, "      Tags:      %q .. %q", src.StartTag, src.StopTag)
			if src.Separator != "" {
				fmt.Fprintf(&b, " sep %q", src.Separator)
			}
			b.WriteString("\n")
		}
		if src.Encoding != "" {
			fmt.Fprintf(&b, "      Encoding:  %s\n", src.Encoding)
		}
		if len(src.Channels) > 0 {
			chs := make([]string, len(src.Channels))
			for i, ch := range src.Channels {
				chs[i] = strconv.Itoa(ch)
			}
			fmt.Fprintf(&b, "      Channels:  %s\n", strings.Join(chs, ", "))
		}
		if src.Position != "" {
			fmt.Fprintf(&b, "      Position:  %s\n", src.Position)
		}
		if !src.Composes() {
			b.WriteString("      Overlay:   off\n")
		}
		if src.Transport != "" {
			fmt.Fprintf(&b, "      Transport: %s\n", src.Transport)
		}
	}

	return b.String()
}
