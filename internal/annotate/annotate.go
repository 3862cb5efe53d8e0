// Package annotate draws detection overlays and encodes frames for image
// publication.
package annotate

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/visiona/sscape-adapter/internal/types"
)

const borderWidth = 4

// Category colors follow the scene controller's palette: person red,
// vehicle and bicycle salmon, everything else pink.
var (
	colorPerson  = color.RGBA{R: 255, A: 255}
	colorVehicle = color.RGBA{R: 128, G: 128, B: 255, A: 255}
	colorOther   = color.RGBA{R: 255, G: 83, B: 207, A: 255}
)

func categoryColor(category string) color.RGBA {
	switch category {
	case "person":
		return colorPerson
	case "vehicle", "bicycle":
		return colorVehicle
	default:
		return colorOther
	}
}

// DrawObjects draws the pixel bounding box of every object onto img.
func DrawObjects(img draw.Image, objects map[string][]*types.ObjectRecord) {
	for category, records := range objects {
		col := categoryColor(category)
		for _, rec := range records {
			box := rec.BoundingBoxPx
			drawRect(img,
				int(box.X), int(box.Y),
				int(box.X+box.Width), int(box.Y+box.Height),
				col)
		}
	}
}

// DrawFPS overlays the frame rate in the top-left corner, scaled with the
// frame height so it stays readable on large frames.
func DrawFPS(img draw.Image, fps float64) {
	bounds := img.Bounds()
	scale := (bounds.Dy() + 479) / 480
	if scale < 1 {
		scale = 1
	}
	label := fmt.Sprintf("FPS %.1f", fps)
	// Shadowed text: black offset backdrop under white foreground.
	drawText(img, label, 1, 30*scale+1, color.Black)
	drawText(img, label, 0, 30*scale, color.White)
}

// EncodeJPEG encodes img as base64 JPEG, the wire form of image messages.
func EncodeJPEG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return "", fmt.Errorf("jpeg encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func drawRect(img draw.Image, x0, y0, x1, y1 int, col color.RGBA) {
	fill := image.NewUniform(col)
	// Four border strips rather than an outline walk keeps the drawing to
	// plain draw.Draw calls.
	draw.Draw(img, image.Rect(x0, y0, x1, y0+borderWidth), fill, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x0, y1-borderWidth, x1, y1), fill, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x0, y0, x0+borderWidth, y1), fill, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x1-borderWidth, y0, x1, y1), fill, image.Point{}, draw.Src)
}

func drawText(img draw.Image, text string, x, y int, col color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
