// ABOUTME: Pixel-width word wrapping using glyph advances and Unicode line-break rules
// ABOUTME: Hard newlines split rows; words wider than a row break at grapheme boundaries

package display

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/mauromedda/posoverlay/pkg/raster"
)

var controlReplacer = strings.NewReplacer("\r", "", "\t", " ")

// Wrap splits text into rows no wider than width pixels when drawn with src.
// A trailing newline ends the last row rather than starting an empty one, so
// "a\n" is one row and "\n" is a single blank row.
func Wrap(text string, width int, src raster.GlyphSource) []string {
	if text == "" || width <= 0 {
		return nil
	}
	pieces := strings.Split(controlReplacer.Replace(text), "\n")
	if len(pieces) > 1 && pieces[len(pieces)-1] == "" {
		pieces = pieces[:len(pieces)-1]
	}
	var rows []string
	for _, p := range pieces {
		rows = append(rows, wrapLine(p, width, src)...)
	}
	return rows
}

func wrapLine(s string, width int, src raster.GlyphSource) []string {
	if s == "" {
		return []string{""}
	}
	var (
		rows  []string
		cur   strings.Builder
		curW  int
		state = -1
	)
	flush := func() {
		rows = append(rows, strings.TrimRight(cur.String(), " "))
		cur.Reset()
		curW = 0
	}

	for len(s) > 0 {
		seg, rest, _, next := uniseg.FirstLineSegmentInString(s, state)
		s, state = rest, next

		segW := Advance(seg, src)
		wordW := Advance(strings.TrimRight(seg, " "), src)
		if curW+wordW <= width {
			cur.WriteString(seg)
			curW += segW
			continue
		}
		if cur.Len() > 0 {
			flush()
		}
		if wordW <= width {
			cur.WriteString(seg)
			curW = segW
			continue
		}
		// Word wider than a row: break between grapheme clusters.
		gs := -1
		for len(seg) > 0 {
			var g string
			g, seg, _, gs = uniseg.FirstGraphemeClusterInString(seg, gs)
			w := Advance(g, src)
			if curW+w > width {
				if g == " " {
					continue
				}
				if cur.Len() > 0 {
					flush()
				}
			}
			cur.WriteString(g)
			curW += w
		}
	}
	if cur.Len() > 0 || len(rows) == 0 {
		flush()
	}
	return rows
}

// Advance returns the pixel width of s drawn with src.
func Advance(s string, src raster.GlyphSource) int {
	w := 0
	for _, r := range s {
		if g, ok := src.Glyph(r); ok {
			w += g.Advance
		}
	}
	return w
}
