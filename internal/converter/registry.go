package converter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for a target format token that has no encoder.
var ErrUnsupportedFormat = errors.New("format not supported")

// Format is a target encoding with its canonical file extension.
type Format struct {
	Name string // canonical token, e.g. "jpg"
	Ext  string // extension including the dot
}

var (
	JPEG = Format{Name: "jpg", Ext: ".jpg"}
	PNG  = Format{Name: "png", Ext: ".png"}
)

var formats = map[string]Format{
	"jpg":  JPEG,
	"jpeg": JPEG,
	"png":  PNG,
}

// ParseFormat resolves a case-insensitive target token.
func ParseFormat(token string) (Format, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return Format{}, fmt.Errorf("target file type %q: %w", token, ErrUnsupportedFormat)
	}
	return f, nil
}

// SupportedFormats lists the canonical target tokens.
func SupportedFormats() []string {
	return []string{JPEG.Name, PNG.Name}
}

// OutputPath replaces the extension of src with the format's canonical extension.
// A path without an extension gets one appended.
// Source: /a/b/photo.bmp -> Output: /a/b/photo.jpg
func OutputPath(src string, f Format) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + f.Ext
}
