// Package annotate draws face boxes and name labels onto images.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	borderWidth = 2
	labelPad    = 2
	labelGap    = 4
)

var (
	boxColor  = color.RGBA{0, 255, 0, 255}
	textColor = color.RGBA{0, 0, 0, 255}
)

// Label is one face to draw.
type Label struct {
	BBox []float64 // [x1, y1, x2, y2] in pixels
	Text string
}

// Draw returns a copy of img with a rectangle and label per face.
func Draw(img image.Image, labels []Label) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	scale := LabelScale(bounds.Dx())
	for _, l := range labels {
		if len(l.BBox) != 4 {
			continue
		}
		r := image.Rect(int(l.BBox[0]), int(l.BBox[1]), int(l.BBox[2]), int(l.BBox[3]))
		drawRect(dst, r, boxColor, borderWidth)
		if l.Text != "" {
			drawLabel(dst, r, l.Text, scale)
		}
	}
	return dst
}

// LabelScale returns the integer magnification of label text for an image
// of the given width, so labels stay readable on large photos.
func LabelScale(width int) int {
	return max(1, width/400)
}

func drawRect(dst *image.RGBA, r image.Rectangle, c color.Color, width int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// drawLabel renders text on a filled box above r, or below it when the
// box would leave the image.
func drawLabel(dst *image.RGBA, r image.Rectangle, text string, scale int) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	textW := font.MeasureString(face, text).Ceil()
	textH := metrics.Height.Ceil()

	small := image.NewRGBA(image.Rect(0, 0, textW+2*labelPad, textH+2*labelPad))
	draw.Draw(small, small.Bounds(), image.NewUniform(boxColor), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(labelPad, labelPad+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)

	w, h := small.Bounds().Dx()*scale, small.Bounds().Dy()*scale
	top := r.Min.Y - labelGap - h
	if top < dst.Bounds().Min.Y {
		top = r.Max.Y + labelGap
	}
	left := max(dst.Bounds().Min.X, min(r.Min.X, dst.Bounds().Max.X-w))
	target := image.Rect(left, top, left+w, top+h)
	draw.NearestNeighbor.Scale(dst, target, small, small.Bounds(), draw.Src, nil)
}

// Encode writes img as JPEG when format is "jpg" or "jpeg", PNG otherwise.
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "jpg", "jpeg":
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 95}); err != nil {
			return fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
	}
	return nil
}

// Save writes img to path, choosing the format from the extension.
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(f, img, filepath.Ext(path)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
