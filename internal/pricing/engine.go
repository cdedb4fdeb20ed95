package pricing

import "math"

// Categories carrying no pricing; they never count towards purchase totals.
const (
	CategoryTripInfo     = "Trip info"
	CategoryInternalInfo = "Internal info"
)

// Item describes a line item used for totals calculation.
type Item struct {
	Category    string
	PurchaseUSD *float64
	SaleUSD     *float64
}

// Input is the full state the aggregator depends on.
type Input struct {
	Items        []Item
	Pax          int
	DayCount     int
	OnspotManual *float64
	HassleManual *float64
	Margin       *float64
}

// Summary aggregates computed pricing components in USD.
type Summary struct {
	PurchaseService    float64 `json:"purchase_service"`
	Onspot             float64 `json:"onspot"`
	OnspotDefault      float64 `json:"onspot_default"`
	OnspotManual       bool    `json:"onspot_manual"`
	PurchaseGrandTotal float64 `json:"purchase_grand_total"`
	Margin             float64 `json:"margin_pct"`
	Commission         float64 `json:"commission"`
	SaleSubtotal       float64 `json:"sale_subtotal"`
	Hassle             float64 `json:"hassle"`
	HassleDefault      float64 `json:"hassle_default"`
	HassleManual       bool    `json:"hassle_manual"`
	SaleGrandTotal     float64 `json:"sale_grand_total"`
	GrandTotal         float64 `json:"grand_total"`
	GrandRounded       float64 `json:"grand_rounded"`
}

// IsPricedCategory reports whether lines of the category count towards the
// purchase total. Only the exact strings "Trip info" and "Internal info" are
// excluded.
func IsPricedCategory(category string) bool {
	return category != CategoryTripInfo && category != CategoryInternalInfo
}

// Compute calculates quote totals. It is a pure function of its input.
//
// Sale amounts are summed over every item, including the unpriced
// categories, while purchase amounts skip them. Unpriced lines carry zero
// sale amounts in practice, so the asymmetry is kept as-is.
func Compute(in Input) Summary {
	var purchase, sale float64
	for _, it := range in.Items {
		if IsPricedCategory(it.Category) {
			purchase += ParseNumber(it.PurchaseUSD)
		}
		sale += ParseNumber(it.SaleUSD)
	}

	onspotDefault := OnspotDefault(in.Pax, in.DayCount)
	hassleDefault := HassleDefault(in.Pax)
	onspot := Effective(in.OnspotManual, onspotDefault)
	hassle := Effective(in.HassleManual, hassleDefault)

	margin := DefaultMargin
	if in.Margin != nil && !math.IsNaN(*in.Margin) && !math.IsInf(*in.Margin, 0) {
		margin = *in.Margin
	}

	purchaseTotal := purchase + onspot
	commission := purchaseTotal * margin
	saleTotal := sale + hassle
	grand := saleTotal + commission + purchaseTotal

	return Summary{
		PurchaseService:    purchase,
		Onspot:             onspot,
		OnspotDefault:      onspotDefault,
		OnspotManual:       in.OnspotManual != nil,
		PurchaseGrandTotal: purchaseTotal,
		Margin:             margin,
		Commission:         commission,
		SaleSubtotal:       sale,
		Hassle:             hassle,
		HassleDefault:      hassleDefault,
		HassleManual:       in.HassleManual != nil,
		SaleGrandTotal:     saleTotal,
		GrandTotal:         grand,
		GrandRounded:       RoundWhole(grand),
	}
}
