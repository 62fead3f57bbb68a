package captcha

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/anthonynsimon/bild/effect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// glyphImage draws a dark 6x6 block on a light background with one isolated
// dark speckle in the corner.
func glyphImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 20, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{R: 230, G: 220, B: 210, A: 255})
		}
	}
	for y := 3; y < 9; y++ {
		for x := 7; x < 13; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 30, B: 60, A: 255})
		}
	}
	img.Set(1, 1, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessPipeline(t *testing.T) {
	out, err := Preprocess(encodePNG(t, glyphImage()))
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	gray := effect.Grayscale(decoded)

	assert.Equal(t, 40, gray.Bounds().Dx())
	assert.Equal(t, 24, gray.Bounds().Dy())

	for _, p := range gray.Pix {
		assert.True(t, p == 0 || p == 255, "output must be binary")
	}

	assert.Equal(t, uint8(255), gray.GrayAt(2, 2).Y, "speckle removed")
	assert.Equal(t, uint8(0), gray.GrayAt(20, 12).Y, "glyph kept dark")
	assert.Equal(t, uint8(255), gray.GrayAt(0, 0).Y, "background white")
}

func TestThresholdInvertsLightOnDark(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	img.Pix = []uint8{10, 10, 10, 240}

	bin := Threshold(img, OtsuLevel(img))
	assert.Equal(t, []uint8{255, 255, 255, 0}, bin.Pix)
}

func TestThresholdKeepsDarkOnLight(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	img.Pix = []uint8{200, 30, 200, 200}

	level := OtsuLevel(img)
	assert.Equal(t, uint8(30), level)
	assert.Equal(t, []uint8{255, 0, 255, 255}, Threshold(img, level).Pix)

	assert.Equal(t, []uint8{255, 255, 255, 255}, Threshold(img, 255).Pix, "a level no pixel exceeds leaves a blank page")
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	_, err := Preprocess([]byte("not an image"))
	assert.Error(t, err)
}
