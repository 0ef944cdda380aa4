// Package testutil creates source image fixtures for package tests.
package testutil

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Size is the width and height of every generated fixture.
const Size = 100

func redSquare() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	red := color.RGBA{R: 255, A: 255}
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			img.Set(x, y, red)
		}
	}
	return img
}

func newPath(dir, ext string) string {
	return filepath.Join(dir, uuid.NewString()+"."+ext)
}

// WriteImage writes a 100x100 red image in the given source format ("bmp" or "tif"/"tiff").
func WriteImage(t *testing.T, dir, format string) string {
	t.Helper()
	ext := strings.ToLower(format)
	p := newPath(dir, ext)
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	switch ext {
	case "bmp":
		err = bmp.Encode(f, redSquare())
	case "tif", "tiff":
		err = tiff.Encode(f, redSquare(), nil)
	default:
		t.Fatalf("unsupported fixture format %q", format)
	}
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func WriteBMP(t *testing.T, dir string) string  { return WriteImage(t, dir, "bmp") }
func WriteTIFF(t *testing.T, dir string) string { return WriteImage(t, dir, "tif") }

// WriteCorrupt writes a file with an image extension and non-image content.
func WriteCorrupt(t *testing.T, dir, ext string) string {
	t.Helper()
	p := newPath(dir, ext)
	if err := os.WriteFile(p, []byte("NO GOOD"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// AssertImage checks that path decodes as the given format with the fixture dimensions.
func AssertImage(t *testing.T, path, format string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, got, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	if got != format {
		t.Errorf("%s: format = %s, expected %s", path, got, format)
	}
	if cfg.Width != Size || cfg.Height != Size {
		t.Errorf("%s: size = %dx%d, expected %dx%d", path, cfg.Width, cfg.Height, Size, Size)
	}
}

// AssertMissing fails if path exists.
func AssertMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("%s should not exist (err=%v)", path, err)
	}
}
