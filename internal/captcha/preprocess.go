package captcha

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"
)

// upscale is the enlargement applied before OCR; tesseract reads small
// glyphs poorly.
const upscale = 2

// Preprocess decodes a captcha image and returns a cleaned, upscaled PNG with
// dark glyphs on a white background.
func Preprocess(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode captcha image: %w", err)
	}

	gray := effect.Grayscale(src)
	bin := Threshold(gray, OtsuLevel(gray))
	// a 3x3 median drops isolated speckles and keeps glyph strokes
	clean := effect.Median(bin, 1)
	b := clean.Bounds()
	out := transform.Resize(clean, b.Dx()*upscale, b.Dy()*upscale, transform.NearestNeighbor)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode captcha image: %w", err)
	}
	return buf.Bytes(), nil
}

// OtsuLevel picks the threshold that maximises between-class variance.
// Pixels at or below the level belong to the dark class.
func OtsuLevel(img *image.Gray) uint8 {
	var hist [256]int
	for _, p := range img.Pix {
		hist[p]++
	}

	total := len(img.Pix)
	if total == 0 {
		return 127
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var sumB, best float64
	var wB int
	level := 127
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = t
		}
	}
	return uint8(level)
}

// Threshold binarizes the image. Pixels above level become white. When most of
// the result is black the polarity is flipped so glyphs end up dark.
func Threshold(img *image.Gray, level uint8) *image.Gray {
	if level == 255 {
		// nothing is above the level
		return segment.Threshold(effect.Invert(img), 0)
	}
	dst := segment.Threshold(img, level+1)

	black := 0
	for _, p := range dst.Pix {
		if p == 0 {
			black++
		}
	}
	if black*2 <= len(dst.Pix) {
		return dst
	}
	// inverted, a pixel at or below level lands at or above 255-level
	return segment.Threshold(effect.Invert(img), 255-level)
}
