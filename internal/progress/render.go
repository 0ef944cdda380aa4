package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/mattn/go-isatty"
)

var ansi = map[Indicator]string{
	Green: "\x1b[32m",
	Gold:  "\x1b[33m",
	Red:   "\x1b[31m",
	Gray:  "\x1b[90m",
}

const ansiReset = "\x1b[0m"

// Renderer prints one line per finished file and a closing message.
type Renderer struct {
	mu        sync.Mutex
	w         io.Writer
	color     bool
	total     int
	succeeded int
	failed    int
	skipped   int
}

// NewRenderer writes to w, colouring output only when w is a terminal.
func NewRenderer(w io.Writer, total int) *Renderer {
	return &Renderer{w: w, total: total, color: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Outcome renders a single file outcome.
func (r *Renderer) Outcome(o converter.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch o.Status {
	case converter.StatusSucceeded:
		r.succeeded++
	case converter.StatusFailed:
		r.failed++
	case converter.StatusSkipped:
		r.skipped++
	}
	done := r.succeeded + r.failed + r.skipped
	ind := Running(r.succeeded, r.failed, r.total-done)

	line := fmt.Sprintf("[%d/%d] %s  %s", done, r.total, filepath.Base(o.Path), o.Status)
	if o.Status == converter.StatusFailed && o.Err != nil {
		line += ": " + o.Err.Error()
	}
	fmt.Fprintln(r.w, r.paint(ind, line))
}

// Finish renders the closing message for s.
func (r *Renderer) Finish(s converter.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ind := Message(s)
	fmt.Fprintln(r.w, r.paint(ind, msg))
}

func (r *Renderer) paint(ind Indicator, s string) string {
	if !r.color {
		return s
	}
	return ansi[ind] + s + ansiReset
}
