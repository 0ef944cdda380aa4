package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// IsSourceImage reports whether path has a BMP or TIFF extension.
func IsSourceImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

func WaitFileStable(path string, delay time.Duration) error {
	// Wait for two consecutive identical sizes separated by delay
	var lastSize int64 = -1
	for i := 0; i < 5; i++ {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		sz := fi.Size()
		if lastSize == sz {
			return nil
		}
		lastSize = sz
		time.Sleep(delay)
	}
	return nil
}
