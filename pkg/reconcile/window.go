package reconcile

import (
	"fmt"
	"time"
)

// Mode selects the extraction window.
type Mode string

const (
	// ModeDaily extracts orders created exactly yesterday.
	ModeDaily Mode = "daily"

	// ModeBackfill extracts orders created on or before yesterday.
	ModeBackfill Mode = "backfill"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDaily, ModeBackfill:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("mode must be %q or %q (got %q)", ModeDaily, ModeBackfill, s)
	}
}

// Window is the caller-supplied extraction window an order's creation date
// must fall within.
type Window struct {
	mode      Mode
	yesterday time.Time
}

// NewWindow builds the window for a run executing at now, in now's location.
func NewWindow(mode Mode, now time.Time) Window {
	y := now.AddDate(0, 0, -1)
	return Window{
		mode:      mode,
		yesterday: time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, y.Location()),
	}
}

// Contains reports whether a creation date belongs to the window.
func (w Window) Contains(created time.Time) bool {
	day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, w.yesterday.Location())
	switch w.mode {
	case ModeBackfill:
		return !day.After(w.yesterday)
	default:
		return day.Equal(w.yesterday)
	}
}

// Mode returns the window's mode.
func (w Window) Mode() Mode {
	return w.mode
}
