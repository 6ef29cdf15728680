package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"guestbook/internal/config"
	"guestbook/internal/models"
	"guestbook/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImageService(t *testing.T) *ImageService {
	t.Helper()
	return NewImageService(&config.Config{
		PhotoDir:             t.TempDir(),
		ImageMaxWidth:        200,
		ImageMaxHeight:       150,
		ImageMaxUploadSizeMB: 1,
	})
}

func writePhoto(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func decodeFile(t *testing.T, path string) (image.Image, string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img, format
}

func TestNewImageService_Defaults(t *testing.T) {
	s := NewImageService(nil)
	assert.Equal(t, DefaultPhotoDir, s.PhotoDir())
	assert.Equal(t, DefaultPhotoMaxWidth, s.maxWidth)
	assert.Equal(t, DefaultPhotoMaxHeight, s.maxHeight)
}

func TestImageService_ResizeShrinksToFitBox(t *testing.T) {
	tests := []struct {
		name   string
		data   func(t *testing.T) []byte
		format string
		wantW  int
		wantH  int
	}{
		{"png landscape", func(t *testing.T) []byte { return testutil.NoisyPNG(t, 800, 400) }, "png", 200, 100},
		{"jpeg portrait", func(t *testing.T) []byte { return testutil.NoisyJPEG(t, 300, 600) }, "jpeg", 75, 150},
		{"gif", func(t *testing.T) []byte { return testutil.SolidGIF(t, 400, 300) }, "gif", 200, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestImageService(t)
			path := writePhoto(t, s.PhotoDir(), "photo."+tt.format, tt.data(t))

			require.NoError(t, s.Resize(context.Background(), path))

			img, format := decodeFile(t, path)
			assert.Equal(t, tt.format, format, "format is preserved")
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}
}

func TestImageService_ResizeAnimatedGIFKeepsFrames(t *testing.T) {
	s := newTestImageService(t)
	path := writePhoto(t, s.PhotoDir(), "photo.gif", testutil.AnimatedGIF(t, 400, 300))

	require.NoError(t, s.Resize(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)

	require.Len(t, anim.Image, len(testutil.AnimatedGIFColors))
	assert.Equal(t, 200, anim.Config.Width)
	assert.Equal(t, 150, anim.Config.Height)
	assert.Equal(t, []int{10, 10, 10}, anim.Delay)
	for i, frame := range anim.Image {
		assert.Equal(t, 200, frame.Bounds().Dx(), "frame %d", i)
		assert.Equal(t, 150, frame.Bounds().Dy(), "frame %d", i)
		assert.Equal(t, testutil.AnimatedGIFColors[i], color.RGBAModel.Convert(frame.At(100, 75)), "frame %d", i)
	}
}

func TestImageService_ResizeSmallAnimatedGIFIsUntouched(t *testing.T) {
	s := newTestImageService(t)
	original := testutil.AnimatedGIF(t, 40, 30)
	path := writePhoto(t, s.PhotoDir(), "photo.gif", original)

	require.NoError(t, s.Resize(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestImageService_ResizeWebP(t *testing.T) {
	s := newTestImageService(t)
	path := writePhoto(t, s.PhotoDir(), "photo.webp", testutil.NoisyWebP(t, 640, 480))

	require.NoError(t, s.Resize(context.Background(), path))

	img, format := decodeFile(t, path)
	assert.Equal(t, "webp", format)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())
}

func TestImageService_ResizeSmallImageKeepsDimensions(t *testing.T) {
	s := newTestImageService(t)
	path := writePhoto(t, s.PhotoDir(), "tiny.png", testutil.TinyPNG())

	require.NoError(t, s.Resize(context.Background(), path))

	img, _ := decodeFile(t, path)
	assert.Equal(t, 1, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
}

func TestImageService_ResizeLeavesNoTempFiles(t *testing.T) {
	s := newTestImageService(t)
	writePhoto(t, s.PhotoDir(), "big.png", testutil.NoisyPNG(t, 600, 600))

	require.NoError(t, s.Resize(context.Background(), filepath.Join(s.PhotoDir(), "big.png")))

	entries, err := os.ReadDir(s.PhotoDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "big.png", entries[0].Name())
}

func TestImageService_ResizeFailures(t *testing.T) {
	s := newTestImageService(t)

	err := s.Resize(context.Background(), filepath.Join(s.PhotoDir(), "missing.jpg"))
	assert.ErrorIs(t, err, models.ErrOptimizationFailed)

	garbage := writePhoto(t, s.PhotoDir(), "garbage.jpg", []byte("definitely not an image"))
	err = s.Resize(context.Background(), garbage)
	assert.ErrorIs(t, err, models.ErrOptimizationFailed)

	data, readErr := os.ReadFile(garbage)
	require.NoError(t, readErr)
	assert.Equal(t, "definitely not an image", string(data), "failed optimization leaves the file untouched")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := writePhoto(t, s.PhotoDir(), "ok.png", testutil.NoisyPNG(t, 400, 400))
	assert.ErrorIs(t, s.Resize(ctx, ok), models.ErrOptimizationFailed)
}

func TestImageService_StorePhoto(t *testing.T) {
	s := newTestImageService(t)

	name, err := s.StorePhoto(context.Background(), UploadPhotoInput{
		Filename:    "me.png",
		ContentType: "image/png",
		Content:     testutil.NoisyPNG(t, 32, 32),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{12}\.png$`, name)

	_, statErr := os.Stat(filepath.Join(s.PhotoDir(), name))
	assert.NoError(t, statErr)

	jpg, err := s.StorePhoto(context.Background(), UploadPhotoInput{Content: testutil.NoisyJPEG(t, 16, 16)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(jpg, ".jpg"))
}

func TestImageService_StorePhotoValidation(t *testing.T) {
	s := newTestImageService(t)

	tests := []struct {
		name string
		in   UploadPhotoInput
		msg  string
	}{
		{"empty", UploadPhotoInput{}, "No file uploaded"},
		{"not an image", UploadPhotoInput{Content: []byte("hello world")}, "Invalid image type"},
		{"too large", UploadPhotoInput{Content: bytes.Repeat([]byte{0}, 2*1024*1024)}, "File too large"},
		{"type mismatch", UploadPhotoInput{ContentType: "image/gif", Content: testutil.TinyPNG()}, "Image content type mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.StorePhoto(context.Background(), tt.in)
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
			assert.Contains(t, appErr.Message, tt.msg)
		})
	}
}

func TestResizeToFit(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 10))
	out := resizeToFit(src, 200, 150)
	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 2, out.Bounds().Dy())

	same := resizeToFit(src, 2000, 2000)
	assert.Same(t, src, same)
}

func TestImageService_RemovePhoto(t *testing.T) {
	s := newTestImageService(t)
	name, err := s.StorePhoto(context.Background(), UploadPhotoInput{Content: testutil.TinyPNG()})
	require.NoError(t, err)

	require.NoError(t, s.RemovePhoto(context.Background(), name))
	assert.NoFileExists(t, filepath.Join(s.PhotoDir(), name))
	assert.NoError(t, s.RemovePhoto(context.Background(), name), "missing file is fine")
}
