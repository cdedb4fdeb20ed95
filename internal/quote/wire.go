package quote

import (
	"encoding/json"
	"fmt"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/quote-editor/internal/pricing"
)

// LinePayload is a line as exchanged with the quote backend. Price fields are
// independent numeric-or-null values.
type LinePayload struct {
	ID            *int64          `json:"id,omitempty"`
	Position      int             `json:"position"`
	ServiceID     *int64          `json:"service_id"`
	Category      string          `json:"category" validate:"required"`
	Title         string          `json:"title"`
	SupplierName  *string         `json:"supplier_name"`
	Visibility    string          `json:"visibility" validate:"omitempty,oneof=client internal cost_only"`
	PurchaseEUR   *float64        `json:"achat_eur"`
	PurchaseUSD   *float64        `json:"achat_usd"`
	SaleUSD       *float64        `json:"vente_usd"`
	FXRate        *float64        `json:"fx_rate"`
	Currency      *string         `json:"currency"`
	BaseNetAmount *float64        `json:"base_net_amount"`
	RawJSON       json.RawMessage `json:"raw_json"`
}

// DayPayload is a day as exchanged with the quote backend.
type DayPayload struct {
	ID               *int64        `json:"id,omitempty"`
	Position         int           `json:"position"`
	Date             string        `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Destination      string        `json:"destination"`
	DecorativeImages []string      `json:"decorative_images" validate:"max=2"`
	Lines            []LinePayload `json:"lines" validate:"dive"`
}

// Payload is the body of a quote save request.
type Payload struct {
	Title         string       `json:"title"`
	DisplayTitle  string       `json:"display_title"`
	HeroPhoto1    string       `json:"hero_photo_1"`
	HeroPhoto2    string       `json:"hero_photo_2"`
	Pax           int          `json:"pax" validate:"gte=0"`
	StartDate     string       `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate       string       `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	TravelAgency  string       `json:"travel_agency"`
	TravelAdvisor string       `json:"travel_advisor"`
	ClientName    string       `json:"client_name"`
	FXRate        *float64     `json:"fx_rate"`
	InternalNote  string       `json:"internal_note"`
	Days          []DayPayload `json:"days" validate:"dive"`
	Margin        *float64     `json:"margin_pct"`
	OnspotManual  *float64     `json:"onspot_manual"`
	HassleManual  *float64     `json:"hassle_manual"`
}

// Record is a quote as returned by the backend. Totals are informational;
// the editor always recomputes them locally.
type Record struct {
	ID *int64 `json:"id"`
	Payload
	OnspotTotal       *float64 `json:"onspot_total,omitempty"`
	HassleTotal       *float64 `json:"hassle_total,omitempty"`
	CommissionableNet *float64 `json:"commissionable_net,omitempty"`
	CommissionTotal   *float64 `json:"commission_total,omitempty"`
	SellTotal         *float64 `json:"sell_total,omitempty"`
	GrandTotal        *float64 `json:"grand_total,omitempty"`
}

// Summary is a row of the recent quotes listing.
type Summary struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Pax       int    `json:"pax"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

var validate = validator.New()

// Validate checks a payload before it is sent to the backend.
func (p Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validate quote: %w", err)
	}
	return nil
}

// ToPayload serialises a quote for saving. Amounts are copied exactly and
// positions follow slice order.
func ToPayload(q Quote) Payload {
	p := Payload{
		Title:         q.Title,
		DisplayTitle:  q.Header.DisplayTitle,
		HeroPhoto1:    q.Header.HeroPhoto1,
		HeroPhoto2:    q.Header.HeroPhoto2,
		Pax:           q.Pax,
		StartDate:     q.StartDate,
		EndDate:       q.EndDate,
		TravelAgency:  q.Header.TravelAgency,
		TravelAdvisor: q.Header.TravelAdvisor,
		ClientName:    q.Header.ClientName,
		FXRate:        cloneFloat(q.Header.FXRate),
		InternalNote:  q.Header.InternalNote,
		Days:          make([]DayPayload, 0, len(q.Days)),
		Margin:        cloneFloat(q.Margin),
		OnspotManual:  cloneFloat(q.OnspotManual),
		HassleManual:  cloneFloat(q.HassleManual),
	}
	for i, d := range q.Days {
		dp := DayPayload{
			Position:         i,
			Date:             d.Date,
			Destination:      d.Destination,
			DecorativeImages: append([]string{}, d.DecorativeImages...),
			Lines:            make([]LinePayload, 0, len(d.Lines)),
		}
		for j, l := range d.Lines {
			details := l.Details
			if withFX, err := details.With("fx", pricing.ResolveFX(l.Prices.FXRate, q.Header.FXRate)); err == nil {
				details = withFX
			}
			raw, _ := details.MarshalJSON()
			visibility := l.Visibility
			if visibility == "" {
				visibility = VisibilityClient
			}
			dp.Lines = append(dp.Lines, LinePayload{
				Position:      j,
				ServiceID:     cloneInt(l.ServiceID),
				Category:      l.Category,
				Title:         l.Title,
				SupplierName:  cloneString(l.SupplierName),
				Visibility:    visibility,
				PurchaseEUR:   cloneFloat(l.Prices.PurchaseEUR),
				PurchaseUSD:   cloneFloat(l.Prices.PurchaseUSD),
				SaleUSD:       cloneFloat(l.Prices.SaleUSD),
				FXRate:        cloneFloat(l.Prices.FXRate),
				Currency:      cloneString(l.Currency),
				BaseNetAmount: cloneFloat(l.BaseNetAmount),
				RawJSON:       raw,
			})
		}
		p.Days = append(p.Days, dp)
	}
	return p
}

// FromRecord builds an editable quote from a backend record. Days and lines
// get fresh identifiers; a missing margin is defaulted here and only here.
func FromRecord(r Record) (Quote, error) {
	q := Quote{
		ID:           cloneInt(r.ID),
		Title:        r.Title,
		Pax:          r.Pax,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Days:         make([]Day, 0, len(r.Days)),
		Margin:       cloneFloat(r.Margin),
		OnspotManual: cloneFloat(r.OnspotManual),
		HassleManual: cloneFloat(r.HassleManual),
		Header: Header{
			DisplayTitle:  r.DisplayTitle,
			HeroPhoto1:    r.HeroPhoto1,
			HeroPhoto2:    r.HeroPhoto2,
			TravelAgency:  r.TravelAgency,
			TravelAdvisor: r.TravelAdvisor,
			ClientName:    r.ClientName,
			InternalNote:  r.InternalNote,
			FXRate:        cloneFloat(r.FXRate),
		},
	}
	if q.Margin == nil {
		m := pricing.DefaultMargin
		q.Margin = &m
	}
	for _, dp := range r.Days {
		d := Day{
			ID:               NewID(),
			Date:             dp.Date,
			Destination:      dp.Destination,
			DecorativeImages: append([]string{}, dp.DecorativeImages...),
			Lines:            make([]Line, 0, len(dp.Lines)),
		}
		for _, lp := range dp.Lines {
			details, err := DecodeDetails(lp.Category, lp.RawJSON)
			if err != nil {
				return Quote{}, fmt.Errorf("decode raw_json: %w", err)
			}
			visibility := lp.Visibility
			if visibility == "" {
				visibility = VisibilityClient
			}
			d.Lines = append(d.Lines, Line{
				ID:           NewID(),
				ServiceID:    cloneInt(lp.ServiceID),
				Category:     lp.Category,
				Title:        lp.Title,
				SupplierName: cloneString(lp.SupplierName),
				Visibility:   visibility,
				Prices: pricing.Prices{
					PurchaseEUR: cloneFloat(lp.PurchaseEUR),
					FXRate:      cloneFloat(lp.FXRate),
					PurchaseUSD: cloneFloat(lp.PurchaseUSD),
					SaleUSD:     cloneFloat(lp.SaleUSD),
				},
				Currency:      cloneString(lp.Currency),
				BaseNetAmount: cloneFloat(lp.BaseNetAmount),
				Details:       details,
			})
		}
		q.Days = append(q.Days, d)
	}
	return q, nil
}
