package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// CropFace cuts the box out of the frame, scales it to cropSize x cropSize
// and re-encodes it as JPEG for the embedder. Boxes with either side below
// minSize are rejected with ErrFaceTooSmall; coordinates are clamped to the
// frame bounds.
func CropFace(frame Frame, box Box, minSize, cropSize int) ([]byte, error) {
	if box.Width() < minSize || box.Height() < minSize {
		return nil, fmt.Errorf("%w: %dx%d", ErrFaceTooSmall, box.Width(), box.Height())
	}

	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: box outside frame", ErrFaceTooSmall)
	}

	resized := image.NewRGBA(image.Rect(0, 0, cropSize, cropSize))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, rect, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}

	return buf.Bytes(), nil
}

// Brightness returns the mean luma of the frame in the 0-255 range.
// Enrollment skips frames that are too dark to produce a usable sample.
func Brightness(frame Frame) (float64, error) {
	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return 0, nil
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, scaled back from 16-bit channels.
			sum += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
		}
	}

	pixels := float64(bounds.Dx() * bounds.Dy())
	return sum / pixels, nil
}
