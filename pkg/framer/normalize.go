// ABOUTME: Text normalization applied to emitted items: source encoding to UTF-8, NFC,
// ABOUTME: space-run collapsing, and trimming. None of it influences framing decisions.

package framer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer converts raw item bytes into display text.
type Normalizer struct {
	name string
	enc  encoding.Encoding
	err  error
}

// NewNormalizer resolves the named source encoding. Empty and UTF-8 names need
// no conversion. An unknown name leaves the normalizer in pass-through mode and
// records the failure in Err.
func NewNormalizer(name string) *Normalizer {
	n := &Normalizer{name: name}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "utf-8" || key == "utf8" {
		return n
	}
	if enc, err := htmlindex.Get(key); err == nil {
		n.enc = enc
		return n
	}
	enc, err := ianaindex.IANA.Encoding(key)
	switch {
	case err != nil:
		n.err = fmt.Errorf("open encoding %q: %w", name, err)
	case enc == nil:
		n.err = fmt.Errorf("open encoding %q: not supported", name)
	default:
		n.enc = enc
	}
	return n
}

// Err reports why conversion is disabled, or nil.
func (n *Normalizer) Err() error { return n.err }

// Encoding returns the configured encoding name.
func (n *Normalizer) Encoding() string { return n.name }

// Convert decodes b to UTF-8 and applies NFC. Undecodable input passes through.
func (n *Normalizer) Convert(b []byte) string {
	if n.enc != nil {
		if out, err := n.enc.NewDecoder().Bytes(b); err == nil {
			b = out
		}
	}
	return norm.NFC.String(string(b))
}

// Boundary returns the length of the longest prefix of b that does not end
// inside a multi-byte character of the source encoding. Bytes past it begin a
// character that is still incomplete. Pass-through normalizers cannot tell
// and return len(b).
func (n *Normalizer) Boundary(b []byte) int {
	switch {
	case n.err != nil:
		return len(b)
	case n.enc == nil:
		return utf8Boundary(b)
	}
	dec := n.enc.NewDecoder()
	dst := make([]byte, 4*len(b)+utf8.UTFMax)
	src := b
	for len(src) > 0 {
		_, nSrc, err := dec.Transform(dst, src, false)
		src = src[nSrc:]
		switch {
		case errors.Is(err, transform.ErrShortSrc):
			return len(b) - len(src)
		case errors.Is(err, transform.ErrShortDst) && nSrc > 0:
			continue
		default:
			return len(b)
		}
	}
	return len(b)
}

func utf8Boundary(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

// Text converts b and tidies its whitespace.
func (n *Normalizer) Text(b []byte) string {
	return strings.TrimSpace(CollapseSpaces(n.Convert(b)))
}

// CollapseSpaces reduces runs of spaces to one and drops spaces that directly
// precede a line break.
func CollapseSpaces(s string) string {
	if !strings.Contains(s, "  ") && !strings.Contains(s, " \n") && !strings.Contains(s, " \r") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			pending = true
			continue
		}
		if pending && c != '\n' && c != '\r' {
			b.WriteByte(' ')
		}
		pending = false
		b.WriteByte(c)
	}
	if pending {
		b.WriteByte(' ')
	}
	return b.String()
}
