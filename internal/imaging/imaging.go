// Package imaging provides frame decoding and the pixel-level helpers used by the
// pipeline, the quality gate and enrollment thumbnails.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrEmptyFrame is returned when the frame payload is empty.
var ErrEmptyFrame = errors.New("empty frame")

// DecodeFrame decodes a base64 frame, optionally prefixed by a data URI header
// ("data:image/jpeg;base64,...").
func DecodeFrame(frame string) (image.Image, error) {
	if idx := strings.IndexByte(frame, ','); idx >= 0 {
		frame = frame[idx+1:]
	}
	frame = strings.TrimSpace(frame)
	if frame == "" {
		return nil, ErrEmptyFrame
	}

	data, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 frame: %w", err)
	}
	return Decode(data)
}

// Decode decodes raw image bytes (JPEG, PNG, GIF, BMP or WebP).
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ResizeToWidth scales an image down to maxWidth keeping aspect ratio.
// Images not wider than maxWidth are returned unchanged.
func ResizeToWidth(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	if maxWidth <= 0 || width <= maxWidth {
		return img
	}

	newHeight := int(float64(bounds.Dy()) * float64(maxWidth) / float64(width))
	if newHeight < 1 {
		newHeight = 1
	}
	return scale(img, bounds, maxWidth, newHeight)
}

// scale draws the src region of img into a new width x height RGBA image.
func scale(img image.Image, src image.Rectangle, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes an image as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail crops rect padded by pad pixels (clamped to the frame), scales the crop
// to size x size and returns it as base64 JPEG.
func Thumbnail(img image.Image, rect image.Rectangle, pad, size int) (string, error) {
	bounds := img.Bounds()
	crop := image.Rect(
		rect.Min.X-pad, rect.Min.Y-pad,
		rect.Max.X+pad, rect.Max.Y+pad,
	).Intersect(bounds)
	if crop.Empty() {
		return "", errors.New("thumbnail region outside frame")
	}

	thumb := scale(img, crop, size, size)
	data, err := EncodeJPEG(thumb, jpegQuality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

const jpegQuality = 85
