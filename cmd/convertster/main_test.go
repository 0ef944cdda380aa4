package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/blinkenlights/convertster/internal/testutil"
)

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"jpg"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("exit code = %d, expected %d", code, exitUsage)
	}
	if !strings.Contains(stderr.String(), "usage: convertster") {
		t.Errorf("usage not printed: %q", stderr.String())
	}
}

func TestRunConvertsFiles(t *testing.T) {
	dir := t.TempDir()
	bmpPath := testutil.WriteBMP(t, dir)
	tifPath := testutil.WriteTIFF(t, dir)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-workers", "2", "PNG", bmpPath, tifPath}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, stdout %q stderr %q", code, stdout.String(), stderr.String())
	}
	if !strings.Contains(stdout.String(), "Successfully converted 2 file(s).") {
		t.Errorf("unexpected output %q", stdout.String())
	}
	testutil.AssertImage(t, converter.OutputPath(bmpPath, converter.PNG), "png")
	testutil.AssertImage(t, converter.OutputPath(tifPath, converter.PNG), "png")
}

func TestRunReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteBMP(t, dir)
	bad := testutil.WriteCorrupt(t, dir, "bmp")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"jpg", good, bad}, &stdout, &stderr); code != exitFailed {
		t.Errorf("exit code = %d, expected %d", code, exitFailed)
	}
	if !strings.Contains(stdout.String(), "Converted 1 file(s) (1 failed).") {
		t.Errorf("unexpected output %q", stdout.String())
	}

	stdout.Reset()
	if code := run([]string{"gif", good}, &stdout, &stderr); code != exitFailed {
		t.Errorf("unsupported target: exit code = %d, expected %d", code, exitFailed)
	}
}

func TestRunSkipExisting(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteBMP(t, dir)
	out := converter.OutputPath(src, converter.JPEG)
	if err := os.WriteFile(out, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-skip-existing", "jpg", src}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "keep me" {
		t.Errorf("existing target was modified: %q %v", data, err)
	}
	if !strings.Contains(stdout.String(), "target already exists") {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		summary  converter.Summary
		expected int
	}{
		{converter.Summary{Total: 2, Succeeded: 2}, exitOK},
		{converter.Summary{Total: 2, Succeeded: 1, Failed: 1}, exitFailed},
		{converter.Summary{Total: 2, Failed: 1, Skipped: 1, Cancelled: true}, exitCancelled},
		{converter.Summary{}, exitOK},
	}
	for _, tt := range tests {
		if got := exitCode(tt.summary); got != tt.expected {
			t.Errorf("exitCode(%+v) = %d, expected %d", tt.summary, got, tt.expected)
		}
	}
}
