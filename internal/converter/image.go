package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	defaultJPEGQuality = 85
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

// ImageOptimizer narrows oversized raster images inside a rewritten book.
// Images keep their format so manifest media types stay valid.
type ImageOptimizer struct {
	MaxWidth    int
	JPEGQuality int
	MaxPixels   int // Total pixel count limit for decode (width * height)
}

// OptimizedImage holds the result of Optimize. Changed is false when Data is
// the input returned as-is; Warning explains why when that was not expected.
type OptimizedImage struct {
	Data    []byte
	Width   int
	Height  int
	Format  string
	Changed bool
	Warning string
}

// NewImageOptimizer returns nil when maxWidth disables downscaling.
func NewImageOptimizer(maxWidth, quality int) *ImageOptimizer {
	if maxWidth <= 0 {
		return nil
	}
	if quality <= 0 {
		quality = defaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}
	return &ImageOptimizer{
		MaxWidth:    maxWidth,
		JPEGQuality: quality,
		MaxPixels:   defaultMaxPixels,
	}
}

// Optimize downscales input to MaxWidth when it is wider. Decode problems are
// reported through Warning with the input passed through; only encoding
// failures return an error.
func (o *ImageOptimizer) Optimize(mediaType string, input []byte) (OptimizedImage, error) {
	out := OptimizedImage{Data: input, Format: mediaTypeToFormat(mediaType)}
	if out.Format == "" {
		return out, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("image header unreadable: %v", err)
		return out, nil
	}
	out.Width, out.Height = cfg.Width, cfg.Height
	if cfg.Width <= o.MaxWidth {
		return out, nil
	}
	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if o.MaxPixels > 0 && pixels > uint64(o.MaxPixels) {
		out.Warning = fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
		return out, nil
	}

	if out.Format == "gif" {
		if animated, err := isAnimatedGIF(input); err == nil && animated {
			out.Warning = "animated gif left unchanged"
			return out, nil
		}
	}

	src, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	resized := imaging.Resize(src, o.MaxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	switch out.Format {
	case "jpeg":
		err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(o.JPEGQuality))
	case "png":
		err = imaging.Encode(&buf, resized, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case "gif":
		err = imaging.Encode(&buf, resized, imaging.GIF)
	}
	if err != nil {
		return out, fmt.Errorf("%s encode failed: %w", out.Format, err)
	}

	out.Data = buf.Bytes()
	out.Width = resized.Bounds().Dx()
	out.Height = resized.Bounds().Dy()
	out.Changed = true
	return out, nil
}

func mediaTypeToFormat(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	default:
		return ""
	}
}

func isAnimatedGIF(data []byte) (bool, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}
