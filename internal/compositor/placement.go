// ABOUTME: Overlay anchor positions on a video frame, nine-way grid with a right-edge inset
// ABOUTME: Coordinates are rounded to even values as the video scaler requires

package compositor

import (
	"fmt"
	"image"
	"strings"
)

// Position selects where an overlay sits on the video.
type Position int

const (
	TopRight Position = iota
	TopCenter
	TopLeft
	Center
	MiddleRight
	MiddleLeft
	BottomRight
	BottomCenter
	BottomLeft
)

var positionNames = []string{
	"top-right", "top-center", "top-left", "center", "middle-right",
	"middle-left", "bottom-right", "bottom-center", "bottom-left",
}

func (p Position) String() string {
	if p >= 0 && int(p) < len(positionNames) {
		return positionNames[p]
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

// ParsePosition accepts a position name or its number.
func ParsePosition(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range positionNames {
		if s == n || s == fmt.Sprint(i) {
			return Position(i), nil
		}
	}
	return 0, fmt.Errorf("unknown overlay position %q", s)
}

// Placement returns the top-left corner of an osd-sized overlay on a video of
// the given size. Unknown positions fall back to MiddleRight.
func Placement(pos Position, video, osd image.Point) image.Point {
	w, h := video.X, video.Y
	even := func(v int) int { return (v >> 1) << 1 }

	right := even(int(float64(w-osd.X) - 50*(float64(w)/1000.0) + 1))
	centerX := even((w - osd.X) / 2)
	middle := even((h - osd.Y) / 2)
	bottom := even(h - osd.Y)

	switch pos {
	case TopRight:
		return image.Pt(right, 0)
	case TopCenter:
		return image.Pt(centerX, 0)
	case TopLeft:
		return image.Pt(0, 0)
	case Center:
		return image.Pt(centerX, middle)
	case MiddleLeft:
		return image.Pt(0, middle)
	case BottomRight:
		return image.Pt(right, bottom)
	case BottomCenter:
		return image.Pt(centerX, bottom)
	case BottomLeft:
		return image.Pt(0, bottom)
	default:
		return image.Pt(right, even((h-osd.Y)/2+1))
	}
}
