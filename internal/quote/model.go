package quote

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"

	"github.com/noah-isme/quote-editor/internal/pricing"
)

// Line categories offered by the editor. Catalog-sourced lines may carry any
// other free-text category.
const (
	CategoryTripInfo     = pricing.CategoryTripInfo
	CategoryInternalInfo = pricing.CategoryInternalInfo
	CategoryCost         = "Cost"
	CategoryFlight       = "Flight"
	CategoryTrain        = "Train"
	CategoryFerry        = "Ferry"
	CategoryCarRental    = "Car Rental"
	CategoryNewHotel     = "New Hotel"
	CategoryNewService   = "New Service"
	CategoryHotel        = "Hotel"
	CategoryActivity     = "Activity"
	CategoryTransport    = "Transport"
)

// Categories lists the categories a line can be created with from the editor.
var Categories = []string{
	CategoryTripInfo,
	CategoryInternalInfo,
	CategoryCost,
	CategoryFlight,
	CategoryTrain,
	CategoryFerry,
	CategoryCarRental,
	CategoryNewHotel,
	CategoryNewService,
}

// Visibility values for a line.
const (
	VisibilityClient   = "client"
	VisibilityInternal = "internal"
	VisibilityCostOnly = "cost_only"
)

// MaxDecorativeImages bounds the decorative images attached to a day.
const MaxDecorativeImages = 2

// Header carries the presentation fields of a quote.
type Header struct {
	DisplayTitle  string   `json:"display_title,omitempty"`
	HeroPhoto1    string   `json:"hero_photo_1,omitempty"`
	HeroPhoto2    string   `json:"hero_photo_2,omitempty"`
	TravelAgency  string   `json:"travel_agency,omitempty"`
	TravelAdvisor string   `json:"travel_advisor,omitempty"`
	ClientName    string   `json:"client_name,omitempty"`
	InternalNote  string   `json:"internal_note,omitempty"`
	FXRate        *float64 `json:"fx_rate,omitempty"`
}

// Quote is the root aggregate of a trip quote.
type Quote struct {
	ID           *int64   `json:"id"`
	Title        string   `json:"title"`
	Pax          int      `json:"pax"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Days         []Day    `json:"days"`
	Margin       *float64 `json:"margin_pct"`
	OnspotManual *float64 `json:"onspot_manual"`
	HassleManual *float64 `json:"hassle_manual"`
	Header       Header   `json:"header"`
}

// Day is one calendar day of a quote.
type Day struct {
	ID               string   `json:"id"`
	Date             string   `json:"date"`
	Destination      string   `json:"destination"`
	Lines            []Line   `json:"lines"`
	DecorativeImages []string `json:"decorative_images,omitempty"`
}

// Line is a service entry within a day.
type Line struct {
	ID            string         `json:"id"`
	ServiceID     *int64         `json:"service_id,omitempty"`
	Category      string         `json:"category"`
	Title         string         `json:"title"`
	SupplierName  *string        `json:"supplier_name"`
	Visibility    string         `json:"visibility"`
	Prices        pricing.Prices `json:"prices"`
	Currency      *string        `json:"currency,omitempty"`
	BaseNetAmount *float64       `json:"base_net_amount,omitempty"`
	Details       Details        `json:"details"`
}

// UnmarshalJSON decodes a line and tags its details by category.
func (l *Line) UnmarshalJSON(data []byte) error {
	type plain Line
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	decoded.Details = decoded.Details.Retag(decoded.Category)
	*l = Line(decoded)
	return nil
}

// Priced reports whether the line takes part in price synchronisation.
func (l Line) Priced() bool {
	return pricing.IsPricedCategory(l.Category)
}

// DayCount returns the number of days in the trip.
func (q Quote) DayCount() int {
	return len(q.Days)
}

// EffectiveMargin returns the stored margin or the default.
func (q Quote) EffectiveMargin() float64 {
	if q.Margin == nil {
		return pricing.DefaultMargin
	}
	return *q.Margin
}

// Lines flattens all lines across days in order.
func (q Quote) Lines() []Line {
	var out []Line
	for _, d := range q.Days {
		out = append(out, d.Lines...)
	}
	return out
}

// PricingInput projects the quote onto the aggregator input.
func (q Quote) PricingInput() pricing.Input {
	lines := q.Lines()
	items := make([]pricing.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, pricing.Item{
			Category:    l.Category,
			PurchaseUSD: l.Prices.PurchaseUSD,
			SaleUSD:     l.Prices.SaleUSD,
		})
	}
	return pricing.Input{
		Items:        items,
		Pax:          q.Pax,
		DayCount:     q.DayCount(),
		OnspotManual: q.OnspotManual,
		HassleManual: q.HassleManual,
		Margin:       q.Margin,
	}
}

// Summarize computes the pricing totals of the quote.
func Summarize(q Quote) pricing.Summary {
	return pricing.Compute(q.PricingInput())
}

// Clone returns a deep copy of the quote tree.
func (q Quote) Clone() Quote {
	out := q
	out.ID = cloneInt(q.ID)
	out.Margin = cloneFloat(q.Margin)
	out.OnspotManual = cloneFloat(q.OnspotManual)
	out.HassleManual = cloneFloat(q.HassleManual)
	out.Header.FXRate = cloneFloat(q.Header.FXRate)
	if q.Days != nil {
		out.Days = make([]Day, len(q.Days))
		for i, d := range q.Days {
			out.Days[i] = d.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the day.
func (d Day) Clone() Day {
	out := d
	out.DecorativeImages = slices.Clone(d.DecorativeImages)
	if d.Lines != nil {
		out.Lines = make([]Line, len(d.Lines))
		for i, l := range d.Lines {
			out.Lines[i] = l.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the line.
func (l Line) Clone() Line {
	out := l
	out.ServiceID = cloneInt(l.ServiceID)
	out.SupplierName = cloneString(l.SupplierName)
	out.Currency = cloneString(l.Currency)
	out.BaseNetAmount = cloneFloat(l.BaseNetAmount)
	out.Prices = l.Prices.Clone()
	out.Details = l.Details.Clone()
	return out
}

// NewID generates an identifier for days and lines.
func NewID() string {
	return uuid.NewString()
}

func (q Quote) dayIndex(dayID string) int {
	return slices.IndexFunc(q.Days, func(d Day) bool { return d.ID == dayID })
}

func (d Day) lineIndex(lineID string) int {
	return slices.IndexFunc(d.Lines, func(l Line) bool { return l.ID == lineID })
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
