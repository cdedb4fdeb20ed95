package quote

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/noah-isme/quote-editor/internal/pricing"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// MaxTripDays caps the number of days a date range may expand into.
const MaxTripDays = 366

var (
	// ErrInvalidDate is returned when a start or end date does not parse.
	ErrInvalidDate = errors.New("quote: invalid date")
	// ErrTripTooLong is returned when a date range exceeds MaxTripDays.
	ErrTripTooLong = errors.New("quote: trip too long")
)

// TripDays returns the number of days covered by start..end inclusive.
// An end date before the start yields a single day.
func TripDays(start, end string) (int, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return 0, ErrInvalidDate
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return 0, ErrInvalidDate
	}
	n := int(math.Round(e.Sub(s).Hours()/24)) + 1
	if n < 1 {
		n = 1
	}
	if n > MaxTripDays {
		return 0, ErrTripTooLong
	}
	return n, nil
}

// SetDates stores the trip range and resizes the day sequence to match it.
// Existing days keep their lines and destination; each day is re-dated from
// the start date. Extra days are dropped; missing days are appended without
// lines and inherit the first day's destination.
func SetDates(q Quote, start, end string) (Quote, error) {
	n, err := TripDays(start, end)
	if err != nil {
		return q, err
	}
	first, _ := time.Parse(DateLayout, start)

	next := q.Clone()
	next.StartDate = start
	next.EndDate = end

	var dest string
	if len(next.Days) > 0 {
		dest = next.Days[0].Destination
	}
	days := make([]Day, n)
	for i := range days {
		if i < len(next.Days) {
			days[i] = next.Days[i]
		} else {
			days[i] = Day{ID: NewID(), Destination: dest, Lines: []Line{}}
		}
		days[i].Date = first.AddDate(0, 0, i).Format(DateLayout)
	}
	next.Days = days
	return next, nil
}

// Blank returns a new unsaved quote for two travellers over start..end, with
// a Trip info line on the first day.
func Blank(start, end, destination string) (Quote, error) {
	q, err := SetDates(Quote{Pax: 2, Margin: pricing.Float(pricing.DefaultMargin)}, start, end)
	if err != nil {
		return Quote{}, err
	}
	info, err := NewLine(CategoryTripInfo)
	if err != nil {
		return Quote{}, err
	}
	dest := strings.TrimSpace(destination)
	for i := range q.Days {
		q.Days[i].Destination = dest
	}
	q.Days[0].Lines = append(q.Days[0].Lines, info)
	return q, nil
}
