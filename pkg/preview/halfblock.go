// ABOUTME: ANSI half-block rendering of overlay frames for terminal previews
// ABOUTME: Uses ▄ with fg/bg true-color escapes to double vertical resolution

package preview

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mauromedda/posoverlay/pkg/raster"
)

// Backdrop stands in for the video behind transparent overlay pixels.
var Backdrop = color.RGBA{R: 24, G: 24, B: 32, A: 255}

// Frame renders f at most maxCols columns wide against Backdrop. The
// half-resolution surface is used when it is already wide enough.
func Frame(f *raster.Frame, maxCols int) []string {
	if f == nil {
		return nil
	}
	src := f.Main
	if f.Sub.Width >= maxCols && f.Sub.Height > 0 {
		src = f.Sub
	}
	return RenderHalfBlock(Flatten(src, Backdrop), maxCols)
}

// Flatten composites img over an opaque backdrop.
func Flatten(img image.Image, backdrop color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(backdrop), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// RenderHalfBlock converts an image to ANSI art using the lower-half block character (▄).
// For every 2 rows of pixels: background = top pixel color, foreground = bottom pixel color.
// The image is scaled to maxCols width preserving aspect ratio.
func RenderHalfBlock(img image.Image, maxCols int) []string {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW == 0 || srcH == 0 || maxCols <= 0 {
		return nil
	}

	targetW := srcW
	targetH := srcH
	if targetW > maxCols {
		targetH = targetH * maxCols / targetW
		targetW = maxCols
	}
	targetW = max(targetW, 1)
	targetH = max(targetH, 1)

	var scaled image.Image = img
	if targetW != srcW || targetH != srcH {
		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		scaled = dst
	}
	origin := scaled.Bounds().Min

	var lines []string
	for y := 0; y < targetH; y += 2 {
		var b strings.Builder
		for x := range targetW {
			topR, topG, topB := rgbAt(scaled, origin.X+x, origin.Y+y)

			// Bottom pixel is black past the last row.
			var botR, botG, botB uint8
			if y+1 < targetH {
				botR, botG, botB = rgbAt(scaled, origin.X+x, origin.Y+y+1)
			}

			fmt.Fprintf(&b, "\x1b[48;2;%d;%d;%dm\x1b[38;2;%d;%d;%dm▄",
				topR, topG, topB, botR, botG, botB)
		}
		b.WriteString("\x1b[0m")
		lines = append(lines, b.String())
	}

	return lines
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}
