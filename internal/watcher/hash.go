package watcher

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// contentDigest returns the hex md5 of the file at path, read in chunk-sized blocks.
// The index uses it to notice a source that was rewritten in place.
func contentDigest(path string, chunk int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if chunk <= 0 {
		chunk = 32 * 1024
	}
	h := md5.New()
	// hide File.WriteTo so reads go through the chunk buffer
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, make([]byte, chunk)); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
