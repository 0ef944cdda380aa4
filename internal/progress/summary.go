// Package progress tracks batch progress and turns outcome counts into status messages.
package progress

import (
	"fmt"

	"github.com/blinkenlights/convertster/internal/converter"
)

// Indicator is the colour of the progress display.
type Indicator string

const (
	Green Indicator = "green"
	Gold  Indicator = "gold"
	Red   Indicator = "red"
	Gray  Indicator = "gray"
)

// Running returns the indicator while a batch is in progress. Gold means partial
// failure; red is only shown once everything finished without a single success.
func Running(succeeded, failed, remaining int) Indicator {
	switch {
	case failed == 0:
		return Green
	case remaining > 0:
		return Gold
	case succeeded > 0:
		return Gold
	default:
		return Red
	}
}

// Message returns the final status line of a batch and its indicator.
func Message(s converter.Summary) (string, Indicator) {
	switch {
	case s.Cancelled:
		return "Conversion cancelled.", Gray
	case s.Succeeded == 0 && s.Failed > 0:
		return fmt.Sprintf("Failed to convert %d file(s).", s.Failed), Red
	case s.Failed > 0:
		return fmt.Sprintf("Converted %d file(s) (%d failed).", s.Succeeded, s.Failed), Gold
	default:
		return fmt.Sprintf("Successfully converted %d file(s).", s.Succeeded), Green
	}
}
