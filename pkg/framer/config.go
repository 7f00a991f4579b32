// ABOUTME: Stream framing configuration: mode, start/stop tags, item separator, encoding
// ABOUTME: Validate rejects tag layouts that could never fit inside the accumulation buffer

package framer

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCapacity is the accumulation buffer size used when Config.Capacity is zero.
const DefaultCapacity = 512

// Mode selects how a source's byte stream is framed.
type Mode string

const (
	// ModeReceipt frames transactions between start and stop tags.
	ModeReceipt Mode = "receipt"
	// ModePlaintext treats every chunk as one complete line of text.
	ModePlaintext Mode = "plaintext"
	// ModeTerminal treats every chunk as one card-terminal JSON payload.
	ModeTerminal Mode = "terminal"
)

// ParseMode maps a configuration string onto a Mode. Empty means receipt.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeReceipt:
		return ModeReceipt, nil
	case ModePlaintext, "text":
		return ModePlaintext, nil
	case ModeTerminal, "json":
		return ModeTerminal, nil
	default:
		return "", fmt.Errorf("unknown framing mode %q", s)
	}
}

// Config describes one source's framing. StartTag is matched with Separator
// appended, so callers pass the bare tag.
type Config struct {
	Mode      Mode
	StartTag  string
	StopTag   string
	Separator string
	Encoding  string
	Capacity  int
}

// capacity returns the effective buffer size.
func (c Config) capacity() int {
	if c.Capacity > 0 {
		return c.Capacity
	}
	return DefaultCapacity
}

// Validate reports configuration that the parser cannot frame.
func (c Config) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("capacity %d is negative", c.Capacity)
	}
	if c.Mode != "" && c.Mode != ModeReceipt {
		if c.Mode != ModePlaintext && c.Mode != ModeTerminal {
			return fmt.Errorf("unknown framing mode %q", c.Mode)
		}
		return nil
	}
	if c.StartTag == "" || c.StopTag == "" {
		return errors.New("receipt mode requires start and stop tags")
	}
	limit := c.capacity()
	if n := len(c.StartTag) + len(c.Separator); n >= limit {
		return fmt.Errorf("start tag and separator (%d bytes) do not fit a %d byte buffer", n, limit)
	}
	if n := len(c.StopTag) + len(c.Separator); n >= limit {
		return fmt.Errorf("stop tag and separator (%d bytes) do not fit a %d byte buffer", n, limit)
	}
	return nil
}
