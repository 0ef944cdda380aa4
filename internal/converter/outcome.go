package converter

import "fmt"

// Status is the terminal classification of one file's conversion attempt.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of processing one input path.
type Outcome struct {
	Path   string // input path as submitted
	Output string // computed target path; empty when the target format is unsupported
	Status Status
	Err    error // cause of a Failed or Skipped outcome
}

// Handler receives one Outcome per input path, in completion order.
type Handler func(Outcome)

// Summary aggregates the outcomes of one batch.
type Summary struct {
	Total     int  `json:"total"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Cancelled bool `json:"cancelled"`
}
