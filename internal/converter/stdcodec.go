package converter

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// StdCodec decodes BMP, TIFF, PNG, JPEG and GIF sources and encodes JPEG or PNG.
// Output is written to a temporary file next to the target and renamed into place,
// so a failed or cancelled save leaves no partial file behind.
type StdCodec struct{}

// NewStdCodec creates the default codec
func NewStdCodec() *StdCodec {
	return &StdCodec{}
}

func (c *StdCodec) Load(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(&ctxReader{ctx: ctx, r: f})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func (c *StdCodec) SaveJPEG(ctx context.Context, img image.Image, path string, quality int) error {
	return c.save(ctx, path, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	})
}

func (c *StdCodec) SavePNG(ctx context.Context, img image.Image, path string, level int) error {
	enc := &png.Encoder{CompressionLevel: pngCompressionLevel(level)}
	return c.save(ctx, path, func(w io.Writer) error {
		return enc.Encode(w, img)
	})
}

func (c *StdCodec) save(ctx context.Context, path string, encode func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(&ctxWriter{ctx: ctx, w: tmp})
	err = encode(bw)
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		// a cancel that lands after the last write still wins
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// pngCompressionLevel maps the 0-9 scale onto the encoder's four levels.
func pngCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type ctxWriter struct {
	ctx context.Context
	w   io.Writer
}

func (w *ctxWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}
