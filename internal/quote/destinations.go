package quote

import (
	"errors"
	"strings"
)

// ErrInvalidRange is returned for a destination range without destination or
// with fewer than one night.
var ErrInvalidRange = errors.New("quote: invalid destination range")

// DestinationRange assigns a destination to a run of consecutive days.
// The first day is addressed by DayID or, when empty, by StartDate.
type DestinationRange struct {
	DayID       string `json:"day_id,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	Nights      int    `json:"nights" validate:"min=1"`
	Destination string `json:"destination" validate:"required"`
	Overwrite   bool   `json:"overwrite"`
}

// ApplyDestinationRange writes the destination on Nights days starting at the
// addressed day. Without Overwrite, days that already have a destination are
// left alone. The run is clipped to the end of the trip.
func ApplyDestinationRange(q Quote, r DestinationRange) (Quote, error) {
	dest := strings.TrimSpace(r.Destination)
	if dest == "" || r.Nights < 1 {
		return q, ErrInvalidRange
	}
	start := -1
	for i, d := range q.Days {
		if (r.DayID != "" && d.ID == r.DayID) || (r.DayID == "" && r.StartDate != "" && d.Date == r.StartDate) {
			start = i
			break
		}
	}
	if start < 0 {
		return q, ErrDayNotFound
	}

	next := q.Clone()
	end := min(start+r.Nights, len(next.Days))
	for i := start; i < end; i++ {
		if !r.Overwrite && strings.TrimSpace(next.Days[i].Destination) != "" {
			continue
		}
		next.Days[i].Destination = dest
	}
	return next, nil
}

// FirstOfDestinationBlock reports whether day i opens a run of days sharing
// the same non-empty destination.
func FirstOfDestinationBlock(days []Day, i int) bool {
	if i < 0 || i >= len(days) {
		return false
	}
	dest := strings.TrimSpace(days[i].Destination)
	if dest == "" {
		return false
	}
	return i == 0 || strings.TrimSpace(days[i-1].Destination) != dest
}

// NightsFromIndex counts consecutive days starting at i that share the
// destination of day i.
func NightsFromIndex(days []Day, i int) int {
	if i < 0 || i >= len(days) {
		return 0
	}
	dest := strings.TrimSpace(days[i].Destination)
	if dest == "" {
		return 0
	}
	n := 0
	for j := i; j < len(days) && strings.TrimSpace(days[j].Destination) == dest; j++ {
		n++
	}
	return n
}
