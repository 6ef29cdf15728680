package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/chai2010/webp"
)

// TinyPNG returns a valid 1x1 PNG payload.
func TinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	buf := bytes.NewBuffer(nil)
	_ = png.Encode(buf, img)
	return buf.Bytes()
}

func noisy(w, h int) *image.RGBA {
	// #nosec G404: weak random is fine for test image generation
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				// #nosec G115: Intn(256) is safe for uint8
				R: uint8(rng.Intn(256)),
				// #nosec G115
				G: uint8(rng.Intn(256)),
				// #nosec G115
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

// NoisyPNG returns a w x h PNG of random pixels.
func NoisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, noisy(w, h)); err != nil {
		t.Fatalf("encode noisy png: %v", err)
	}
	return buf.Bytes()
}

// NoisyJPEG returns a w x h JPEG of random pixels.
func NoisyJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, noisy(w, h), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode noisy jpeg: %v", err)
	}
	return buf.Bytes()
}

// NoisyWebP returns a w x h lossless WebP of random pixels.
func NoisyWebP(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, noisy(w, h), &webp.Options{Lossless: true}); err != nil {
		t.Fatalf("encode noisy webp: %v", err)
	}
	return buf.Bytes()
}

// SolidGIF returns a w x h single-color GIF.
func SolidGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	palette := color.Palette{color.Black, color.RGBA{R: 200, G: 30, B: 30, A: 255}}
	img := image.NewPaletted(image.Rect(0, 0, w, h), palette)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetColorIndex(x, y, 1)
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := gif.Encode(buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

// AnimatedGIFColors are the frame colors used by AnimatedGIF, in frame order.
var AnimatedGIFColors = []color.RGBA{
	{R: 200, G: 30, B: 30, A: 255},
	{R: 30, G: 200, B: 30, A: 255},
	{R: 30, G: 30, B: 200, A: 255},
}

// AnimatedGIF returns a w x h GIF with one solid frame per AnimatedGIFColors entry,
// each shown for 10 hundredths of a second.
func AnimatedGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	palette := color.Palette{color.Black}
	for _, c := range AnimatedGIFColors {
		palette = append(palette, c)
	}

	anim := &gif.GIF{LoopCount: 0}
	for i := range AnimatedGIFColors {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), palette)
		for p := range frame.Pix {
			frame.Pix[p] = uint8(i + 1)
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}

	buf := bytes.NewBuffer(nil)
	if err := gif.EncodeAll(buf, anim); err != nil {
		t.Fatalf("encode animated gif: %v", err)
	}
	return buf.Bytes()
}
