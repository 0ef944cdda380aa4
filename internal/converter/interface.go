package converter

import (
	"context"
	"image"
)

// ImageCodec decodes a source image and re-encodes it to a target path.
// Every method must observe ctx and return an error wrapping ctx.Err() when it gives up
// because of cancellation.
type ImageCodec interface {
	// Load decodes the image at path. Missing or unreadable files and
	// unrecognised content are reported as errors.
	Load(ctx context.Context, path string) (image.Image, error)

	// SaveJPEG writes img to path as JPEG with the given quality (5-100).
	SaveJPEG(ctx context.Context, img image.Image, path string, quality int) error

	// SavePNG writes img to path as PNG with the given compression level (0-9).
	SavePNG(ctx context.Context, img image.Image, path string, level int) error
}
