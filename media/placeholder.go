package media

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	placeholderBackground = color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
	placeholderForeground = color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
)

const placeholderLineGap = 18

// placeholderLines is the caption drawn on a synthetic thumbnail.
func placeholderLines(filename string) []string {
	return []string{"RAW", extensionLabel(filename), "No preview available"}
}

// renderText draws s with the built-in bitmap face and scales it up, since
// the face itself is only 13px tall.
func renderText(s string, scale int) image.Image {
	face := basicfont.Face7x13
	width := font.MeasureString(face, s).Ceil()
	height := face.Height
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(placeholderForeground),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)

	if scale <= 1 {
		return canvas
	}
	return imaging.Resize(canvas, width*scale, height*scale, imaging.NearestNeighbor)
}

// renderPlaceholder builds the flat grey fallback image for filename.
func renderPlaceholder(filename string) image.Image {
	bg := imaging.New(ThumbnailSize, ThumbnailSize, placeholderBackground)

	lines := placeholderLines(filename)
	scales := []int{4, 3, 2}
	rendered := make([]image.Image, len(lines))
	total := 0
	for i, line := range lines {
		scale := scales[i]
		// shrink long extensions until they fit
		for scale > 1 && font.MeasureString(basicfont.Face7x13, line).Ceil()*scale > ThumbnailSize-20 {
			scale--
		}
		rendered[i] = renderText(line, scale)
		total += rendered[i].Bounds().Dy()
	}
	total += placeholderLineGap * (len(lines) - 1)

	y := (ThumbnailSize - total) / 2
	var out image.Image = bg
	for _, img := range rendered {
		b := img.Bounds()
		x := (ThumbnailSize - b.Dx()) / 2
		out = imaging.Overlay(out, img, image.Pt(x, y), 1.0)
		y += b.Dy() + placeholderLineGap
	}
	return out
}
