package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/noah-isme/quote-editor/internal/pricing"
)

var (
	// ErrDayNotFound is returned when a day identifier does not resolve.
	ErrDayNotFound = errors.New("quote: day not found")
	// ErrLineNotFound is returned when a line identifier does not resolve.
	ErrLineNotFound = errors.New("quote: line not found")
	// ErrInvalidCategory is returned when a line is created without category.
	ErrInvalidCategory = errors.New("quote: invalid category")
	// ErrInvalidVisibility is returned for unknown visibility values.
	ErrInvalidVisibility = errors.New("quote: invalid visibility")
	// ErrInvalidOverride is returned for unknown override kinds or phases.
	ErrInvalidOverride = errors.New("quote: invalid override")
)

// Override names one of the two synthetic fee rows.
type Override string

const (
	OverrideOnspot Override = "onspot"
	OverrideHassle Override = "hassle"
)

// Phase distinguishes in-progress typing from a committed (blurred) value.
type Phase string

const (
	PhaseTyping Phase = "typing"
	PhaseCommit Phase = "commit"
)

// ApplyLineEdit applies a raw numeric edit to one price field of a line.
// Priced lines go through the price synchroniser, falling back to the quote
// rate when the line has none; Trip info and Internal info lines store the
// parsed value as-is.
func ApplyLineEdit(q Quote, dayID, lineID string, field pricing.Field, raw any) (Quote, error) {
	return withLine(q, dayID, lineID, func(l *Line) error {
		var (
			next pricing.Prices
			err  error
		)
		if l.Priced() {
			next, err = pricing.SyncWithFX(l.Prices, field, raw, q.Header.FXRate)
		} else {
			next, err = pricing.Set(l.Prices, field, raw)
		}
		if err != nil {
			return err
		}
		l.Prices = next
		return nil
	})
}

// ApplyOverride stores a manual Onspot or Hassle value. Typing keeps the
// parsed value unclamped; committing clamps Onspot to 27 and Hassle to 0.
func ApplyOverride(q Quote, which Override, raw string, phase Phase) (Quote, error) {
	var value float64
	switch phase {
	case PhaseTyping:
		value = pricing.TypeOverride(raw)
	case PhaseCommit:
		switch which {
		case OverrideOnspot:
			value = pricing.CommitOnspot(raw)
		case OverrideHassle:
			value = pricing.CommitHassle(raw)
		default:
			return q, ErrInvalidOverride
		}
	default:
		return q, ErrInvalidOverride
	}
	next := q.Clone()
	switch which {
	case OverrideOnspot:
		next.OnspotManual = &value
	case OverrideHassle:
		next.HassleManual = &value
	default:
		return q, ErrInvalidOverride
	}
	return next, nil
}

// ClearOverride resets an override so the fee tracks its formula default again.
func ClearOverride(q Quote, which Override) (Quote, error) {
	next := q.Clone()
	switch which {
	case OverrideOnspot:
		next.OnspotManual = nil
	case OverrideHassle:
		next.HassleManual = nil
	default:
		return q, ErrInvalidOverride
	}
	return next, nil
}

// SetMargin stores the commission margin parsed from displayed percent text.
func SetMargin(q Quote, text string) Quote {
	next := q.Clone()
	m := pricing.ParseMargin(text)
	next.Margin = &m
	return next
}

// SetPax updates the party size.
func SetPax(q Quote, pax int) Quote {
	next := q.Clone()
	next.Pax = max(pax, 0)
	return next
}

// SetTitle updates the quote title.
func SetTitle(q Quote, title string) Quote {
	next := q.Clone()
	next.Title = strings.TrimSpace(title)
	return next
}

// SetHeader replaces the presentation header.
func SetHeader(q Quote, h Header) Quote {
	next := q.Clone()
	next.Header = h
	next.Header.FXRate = cloneFloat(h.FXRate)
	return next
}

// SetDestination sets the destination name of one day.
func SetDestination(q Quote, dayID, destination string) (Quote, error) {
	return withDay(q, dayID, func(d *Day) error {
		d.Destination = strings.TrimSpace(destination)
		return nil
	})
}

// SetDayImages replaces the decorative images of a day, keeping at most two
// non-blank URLs.
func SetDayImages(q Quote, dayID string, urls []string) (Quote, error) {
	return withDay(q, dayID, func(d *Day) error {
		images := make([]string, 0, MaxDecorativeImages)
		for _, u := range urls {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			images = append(images, u)
			if len(images) == MaxDecorativeImages {
				break
			}
		}
		d.DecorativeImages = images
		return nil
	})
}

// NewLine builds an empty line for the category with zeroed amounts.
func NewLine(category string) (Line, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Line{}, ErrInvalidCategory
	}
	line := Line{
		ID:         NewID(),
		Category:   category,
		Visibility: VisibilityClient,
		Prices: pricing.Prices{
			PurchaseEUR: pricing.Float(0),
			PurchaseUSD: pricing.Float(0),
			SaleUSD:     pricing.Float(0),
		},
		Details: Details{kind: KindForCategory(category)},
	}
	switch category {
	case CategoryTripInfo:
		line.Title = "Trip info (edit me…)"
	case CategoryInternalInfo:
		line.Title = "Internal note (edit only here)"
		line.Visibility = VisibilityInternal
	default:
		line.Title = "New " + category
	}
	return line, nil
}

// AddLine appends an empty line of the category to a day.
func AddLine(q Quote, dayID, category string) (Quote, Line, error) {
	line, err := NewLine(category)
	if err != nil {
		return q, Line{}, err
	}
	next, err := withDay(q, dayID, func(d *Day) error {
		d.Lines = append(d.Lines, line)
		return nil
	})
	if err != nil {
		return q, Line{}, err
	}
	return next, line, nil
}

// AddDetailedLine appends a line built from an editor form payload. A car
// rental with an expected drop-off date also gets a "Drop off the car" note
// on the matching day, or on the first day when no day has that date.
func AddDetailedLine(q Quote, dayID, category, title string, details json.RawMessage) (Quote, Line, error) {
	line, err := NewLine(category)
	if err != nil {
		return q, Line{}, err
	}
	if t := strings.TrimSpace(title); t != "" {
		line.Title = t
	}
	line.Details, err = DecodeDetails(line.Category, details)
	if err != nil {
		return q, Line{}, fmt.Errorf("decode details: %w", err)
	}
	next, err := withDay(q, dayID, func(d *Day) error {
		d.Lines = append(d.Lines, line)
		return nil
	})
	if err != nil {
		return q, Line{}, err
	}

	if line.Category != CategoryCarRental {
		return next, line, nil
	}
	rental, err := line.Details.CarRental()
	if err != nil || strings.TrimSpace(rental.ExpectedDropoffDate) == "" {
		return next, line, nil
	}
	target := slices.IndexFunc(next.Days, func(d Day) bool { return d.Date == rental.ExpectedDropoffDate })
	if target < 0 {
		target = 0
	}
	dropoff, err := NewLine(CategoryTripInfo)
	if err != nil {
		return q, Line{}, err
	}
	dropoff.Title = "Drop off the car"
	dropoff.Details, err = NewDetails(CategoryTripInfo, NoteDetails{Title: "Drop off the car"})
	if err != nil {
		return q, Line{}, err
	}
	next.Days[target].Lines = append(next.Days[target].Lines, dropoff)
	return next, line, nil
}

// LinePatch carries the descriptive fields of a line that may be updated.
// Nil members are left untouched.
type LinePatch struct {
	Title        *string         `json:"title"`
	SupplierName *string         `json:"supplier_name"`
	Visibility   *string         `json:"visibility"`
	Details      json.RawMessage `json:"details"`
}

// UpdateLine applies a descriptive patch to a line. Details keys are merged
// into the existing payload.
func UpdateLine(q Quote, dayID, lineID string, patch LinePatch) (Quote, error) {
	return withLine(q, dayID, lineID, func(l *Line) error {
		if patch.Title != nil {
			l.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.SupplierName != nil {
			name := strings.TrimSpace(*patch.SupplierName)
			if name == "" {
				l.SupplierName = nil
			} else {
				l.SupplierName = &name
			}
		}
		if patch.Visibility != nil {
			switch v := strings.TrimSpace(*patch.Visibility); v {
			case VisibilityClient, VisibilityInternal, VisibilityCostOnly:
				l.Visibility = v
			default:
				return ErrInvalidVisibility
			}
		}
		if len(patch.Details) > 0 {
			merged, err := l.Details.Merge(patch.Details)
			if err != nil {
				return fmt.Errorf("merge details: %w", err)
			}
			l.Details = merged
		}
		return nil
	})
}

// RemoveLine removes a line from its day and returns it.
func RemoveLine(q Quote, dayID, lineID string) (Quote, Line, error) {
	var removed Line
	next, err := withDay(q, dayID, func(d *Day) error {
		idx := d.lineIndex(lineID)
		if idx < 0 {
			return ErrLineNotFound
		}
		removed = d.Lines[idx]
		d.Lines = slices.Delete(d.Lines, idx, idx+1)
		return nil
	})
	if err != nil {
		return q, Line{}, err
	}
	return next, removed, nil
}

// RestoreLine appends a previously removed line to a day. When the day no
// longer exists the line goes to the first day.
func RestoreLine(q Quote, dayID string, line Line) (Quote, error) {
	if len(q.Days) == 0 {
		return q, ErrDayNotFound
	}
	next := q.Clone()
	idx := next.dayIndex(dayID)
	if idx < 0 {
		idx = 0
	}
	next.Days[idx].Lines = append(next.Days[idx].Lines, line.Clone())
	return next, nil
}

// MoveLine moves a line to position index of another (or the same) day.
// The index is clamped to the target day bounds.
func MoveLine(q Quote, fromDayID, lineID, toDayID string, index int) (Quote, error) {
	next, line, err := RemoveLine(q, fromDayID, lineID)
	if err != nil {
		return q, err
	}
	target := next.dayIndex(toDayID)
	if target < 0 {
		return q, ErrDayNotFound
	}
	lines := next.Days[target].Lines
	index = min(max(index, 0), len(lines))
	next.Days[target].Lines = slices.Insert(lines, index, line)
	return next, nil
}

func withDay(q Quote, dayID string, fn func(*Day) error) (Quote, error) {
	idx := q.dayIndex(dayID)
	if idx < 0 {
		return q, ErrDayNotFound
	}
	next := q.Clone()
	if err := fn(&next.Days[idx]); err != nil {
		return q, err
	}
	return next, nil
}

func withLine(q Quote, dayID, lineID string, fn func(*Line) error) (Quote, error) {
	return withDay(q, dayID, func(d *Day) error {
		idx := d.lineIndex(lineID)
		if idx < 0 {
			return ErrLineNotFound
		}
		return fn(&d.Lines[idx])
	})
}
