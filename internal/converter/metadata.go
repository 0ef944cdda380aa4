package converter

import (
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureTime returns the EXIF DateTime of src, falling back to its modification time.
// TIFF sources carry their EXIF IFD directly; BMP sources always fall back.
func CaptureTime(src string) (time.Time, error) {
	f, err := os.Open(src)
	if err != nil {
		return time.Time{}, fmt.Errorf("open src for exif: %w", err)
	}
	defer f.Close()

	if x, err := exif.Decode(f); err == nil {
		if tm, err := x.DateTime(); err == nil {
			return tm, nil
		}
	}

	fi, err := f.Stat()
	if err != nil {
		return time.Time{}, fmt.Errorf("stat src: %w", err)
	}
	return fi.ModTime(), nil
}

// PreserveCaptureTime stamps the capture time of src onto dst's access and modification times.
func PreserveCaptureTime(src, dst string) error {
	tm, err := CaptureTime(src)
	if err != nil {
		return err
	}
	if err := os.Chtimes(dst, tm, tm); err != nil {
		return fmt.Errorf("chtimes %s: %w", dst, err)
	}
	return nil
}
