package ai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // decoders for DecodeImageFile
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
)

const jpegQuality = 85

// encodeImages JPEG-encodes each image and base64s the result. Images that
// cannot be encoded are dropped.
func encodeImages(images []image.Image, logger *slog.Logger) []string {
	out := make([]string, 0, len(images))
	for i, img := range images {
		if img == nil || img.Bounds().Empty() {
			logger.Debug("skipping empty image", "index", i)
			continue
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			logger.Debug("skipping image that failed to encode", "index", i, "error", err)
			continue
		}
		out = append(out, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return out
}

// DecodeImageFile reads a PNG, JPEG or GIF screenshot from disk.
func DecodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}
