package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"guestbook/internal/config"
	"guestbook/internal/models"
	"guestbook/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultPhotoDir             = "/tmp/guestbook/uploads/photos"
	DefaultImageMaxUploadSizeMB = 10
	DefaultPhotoMaxWidth        = 200
	DefaultPhotoMaxHeight       = 150
	JPEGQuality                 = 82
	WebPQuality                 = 70
)

// UploadPhotoInput is a photo received with a comment submission.
type UploadPhotoInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService stores submitted photos and shrinks them once their comment is published.
type ImageService struct {
	photoDir           string
	maxWidth           int
	maxHeight          int
	maxUploadSizeBytes int64
}

// NewImageService builds an ImageService from cfg; a nil cfg uses the defaults.
func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{
		photoDir:           DefaultPhotoDir,
		maxWidth:           DefaultPhotoMaxWidth,
		maxHeight:          DefaultPhotoMaxHeight,
		maxUploadSizeBytes: DefaultImageMaxUploadSizeMB * 1024 * 1024,
	}

	if cfg != nil {
		if cfg.PhotoDir != "" {
			s.photoDir = cfg.PhotoDir
		}
		if cfg.ImageMaxWidth > 0 {
			s.maxWidth = cfg.ImageMaxWidth
		}
		if cfg.ImageMaxHeight > 0 {
			s.maxHeight = cfg.ImageMaxHeight
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			s.maxUploadSizeBytes = int64(cfg.ImageMaxUploadSizeMB) * 1024 * 1024
		}
	}

	return s
}

// PhotoDir is the directory holding stored photos.
func (s *ImageService) PhotoDir() string {
	return s.photoDir
}

// StorePhoto validates an uploaded photo and writes it under PhotoDir with a random name.
// It returns the stored filename.
func (s *ImageService) StorePhoto(_ context.Context, in UploadPhotoInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil || !isSupportedDecodedFormat(format) {
		return "", models.NewValidationError("Invalid image file")
	}

	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, decodedFormatToMime(format)) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	filename := randomPhotoName() + "." + extensionFor(format)
	if err := writeBytesToFile(filepath.Join(s.photoDir, filename), in.Content); err != nil {
		return "", models.NewInternalError(err)
	}
	return filename, nil
}

// RemovePhoto deletes a stored photo. A missing file is not an error.
func (s *ImageService) RemovePhoto(_ context.Context, filename string) error {
	err := os.Remove(filepath.Join(s.photoDir, filepath.Base(filename)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Resize shrinks the image at path to fit the configured box and recompresses it in
// its own format. The file is replaced atomically; on any failure it is left as it was.
func (s *ImageService) Resize(ctx context.Context, path string) error {
	span, ctx := observability.NewSpan(ctx, "image.resize")
	defer span.End()
	span.AddAttributes(attribute.String("image.path", path))

	if err := ctx.Err(); err != nil {
		span.SetError(err)
		return fmt.Errorf("%w: %v", models.ErrOptimizationFailed, err)
	}

	err := s.resize(path)
	if err != nil {
		span.SetError(err)
	}
	return err
}

func (s *ImageService) resize(path string) error {
	original, err := os.ReadFile(path)
	if err != nil {
		observability.PhotosOptimized.WithLabelValues("unknown", "unreadable").Inc()
		return fmt.Errorf("%w: read %s: %v", models.ErrOptimizationFailed, path, err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(original))
	if err != nil || !isSupportedDecodedFormat(format) {
		observability.PhotosOptimized.WithLabelValues("unknown", "unsupported").Inc()
		return fmt.Errorf("%w: decode %s: unsupported or corrupt image", models.ErrOptimizationFailed, path)
	}

	if format == "gif" {
		// image.Decode keeps only the first frame.
		if anim, err := gif.DecodeAll(bytes.NewReader(original)); err == nil && len(anim.Image) > 1 {
			return s.resizeAnimated(path, anim)
		}
	}

	resized := resizeToFit(decoded, s.maxWidth, s.maxHeight)
	encoded, err := encodeAs(format, resized)
	if err != nil {
		observability.PhotosOptimized.WithLabelValues(format, "encode_failed").Inc()
		return fmt.Errorf("%w: encode %s: %v", models.ErrOptimizationFailed, path, err)
	}

	if resized == decoded && len(encoded) >= len(original) {
		observability.PhotosOptimized.WithLabelValues(format, "unchanged").Inc()
		return nil
	}

	if err := replaceFile(path, encoded); err != nil {
		observability.PhotosOptimized.WithLabelValues(format, "write_failed").Inc()
		return fmt.Errorf("%w: write %s: %v", models.ErrOptimizationFailed, path, err)
	}

	observability.PhotosOptimized.WithLabelValues(format, "rewritten").Inc()
	return nil
}

func (s *ImageService) resizeAnimated(path string, anim *gif.GIF) error {
	scaled, changed := resizeGIF(anim, s.maxWidth, s.maxHeight)
	if !changed {
		observability.PhotosOptimized.WithLabelValues("gif", "unchanged").Inc()
		return nil
	}

	buf := bytes.NewBuffer(nil)
	if err := gif.EncodeAll(buf, scaled); err != nil {
		observability.PhotosOptimized.WithLabelValues("gif", "encode_failed").Inc()
		return fmt.Errorf("%w: encode %s: %v", models.ErrOptimizationFailed, path, err)
	}
	if err := replaceFile(path, buf.Bytes()); err != nil {
		observability.PhotosOptimized.WithLabelValues("gif", "write_failed").Inc()
		return fmt.Errorf("%w: write %s: %v", models.ErrOptimizationFailed, path, err)
	}

	observability.PhotosOptimized.WithLabelValues("gif", "rewritten").Inc()
	return nil
}

// resizeGIF scales every frame of anim to fit the box. Frames are composited first,
// honoring their disposal methods, so each output frame is a full picture.
func resizeGIF(anim *gif.GIF, maxWidth, maxHeight int) (*gif.GIF, bool) {
	w, h := anim.Config.Width, anim.Config.Height
	if w <= 0 || h <= 0 {
		var bounds image.Rectangle
		for _, frame := range anim.Image {
			bounds = bounds.Union(frame.Bounds())
		}
		w, h = bounds.Max.X, bounds.Max.Y
	}
	newW, newH, ok := fitSize(w, h, maxWidth, maxHeight)
	if !ok {
		return anim, false
	}

	out := &gif.GIF{
		LoopCount: anim.LoopCount,
		Config:    image.Config{Width: newW, Height: newH},
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, frame := range anim.Image {
		disposal := byte(gif.DisposalNone)
		if i < len(anim.Disposal) {
			disposal = anim.Disposal[i]
		}
		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = image.NewRGBA(canvas.Bounds())
			copy(previous.Pix, canvas.Pix)
		}

		xdraw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, xdraw.Over)

		scaled := image.NewRGBA(image.Rect(0, 0, newW, newH))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
		paletted := image.NewPaletted(scaled.Bounds(), frame.Palette)
		xdraw.FloydSteinberg.Draw(paletted, paletted.Bounds(), scaled, image.Point{})

		out.Image = append(out.Image, paletted)
		delay := 0
		if i < len(anim.Delay) {
			delay = anim.Delay[i]
		}
		out.Delay = append(out.Delay, delay)
		out.Disposal = append(out.Disposal, gif.DisposalNone)

		switch disposal {
		case gif.DisposalBackground:
			xdraw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return out, true
}

// fitSize returns the largest size with the aspect of w x h that fits the box, and
// whether that differs from w x h.
func fitSize(w, h, maxWidth, maxHeight int) (int, int, bool) {
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return w, h, false
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH, true
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	newW, newH, ok := fitSize(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if !ok {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeAs(format string, img image.Image) ([]byte, error) {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return encodeJPEG(img, JPEGQuality)
	case "png":
		buf := bytes.NewBuffer(nil)
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "gif":
		buf := bytes.NewBuffer(nil)
		if err := gif.Encode(buf, img, nil); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "webp":
		return encodeWebP(img, WebPQuality)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func extensionFor(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "jpg"
	default:
		return strings.ToLower(strings.TrimSpace(format))
	}
}

func randomPhotoName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// replaceFile writes data next to path and renames it over path.
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".optimize-*"+filepath.Ext(path))
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
