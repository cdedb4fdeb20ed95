package quote

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/quote-editor/internal/pricing"
)

// GridKindMeta marks the synthetic Onspot and Hassle rows.
const GridKindMeta = "meta"

// paidCategories are the categories that appear in the price grid.
var paidCategories = map[string]struct{}{
	CategoryActivity:   {},
	CategoryHotel:      {},
	CategoryTransport:  {},
	CategoryFlight:     {},
	CategoryTrain:      {},
	CategoryFerry:      {},
	CategoryCost:       {},
	CategoryNewHotel:   {},
	CategoryNewService: {},
}

// GridRow is one row of the spreadsheet-style price preview.
type GridRow struct {
	Kind        string   `json:"kind,omitempty"`
	Destination string   `json:"destination"`
	Name        string   `json:"name"`
	PurchaseEUR float64  `json:"achat_eur"`
	FXRate      *float64 `json:"fx_rate"`
	PurchaseUSD float64  `json:"achat_usd"`
	SaleUSD     float64  `json:"vente_usd"`
}

// Grid is the price preview of a quote.
type Grid struct {
	Rows        []GridRow `json:"rows"`
	TotalEUR    float64   `json:"total_eur"`
	TotalUSD    float64   `json:"total_usd"`
	TotalSale   float64   `json:"total_sale"`
	DisplayEUR  string    `json:"display_eur"`
	DisplayUSD  string    `json:"display_usd"`
	DisplaySale string    `json:"display_sale"`
}

// BuildGrid lays out the price preview: the Onspot and Hassle rows first,
// then every paid line day by day. The destination is printed on the first
// paid row of each day only.
func BuildGrid(q Quote) Grid {
	onspot := pricing.Effective(q.OnspotManual, pricing.OnspotDefault(q.Pax, q.DayCount()))
	hassle := pricing.Effective(q.HassleManual, pricing.HassleDefault(q.Pax))

	rows := []GridRow{
		{Kind: GridKindMeta, Name: "Onspot", PurchaseUSD: onspot},
		{Kind: GridKindMeta, Name: "Hassle", SaleUSD: hassle},
	}
	var sumEUR, sumUSD, sumSale float64
	for _, d := range q.Days {
		printed := false
		for _, l := range d.Lines {
			if _, ok := paidCategories[strings.TrimSpace(l.Category)]; !ok {
				continue
			}
			row := GridRow{
				Name:        l.Title,
				PurchaseEUR: pricing.ParseNumber(l.Prices.PurchaseEUR),
				FXRate:      cloneFloat(l.Prices.FXRate),
				PurchaseUSD: pricing.ParseNumber(l.Prices.PurchaseUSD),
				SaleUSD:     pricing.ParseNumber(l.Prices.SaleUSD),
			}
			if row.Name == "" {
				row.Name = "—"
			}
			if !printed {
				row.Destination = d.Destination
				printed = true
			}
			rows = append(rows, row)
			sumEUR += row.PurchaseEUR
			sumUSD += row.PurchaseUSD
			sumSale += row.SaleUSD
		}
	}

	g := Grid{
		Rows:      rows,
		TotalEUR:  pricing.Round2(sumEUR),
		TotalUSD:  pricing.Round2(sumUSD + onspot),
		TotalSale: pricing.Round2(sumSale + hassle),
	}
	g.DisplayEUR = FormatMoney("€", g.TotalEUR)
	g.DisplayUSD = FormatMoney("$", g.TotalUSD)
	g.DisplaySale = FormatMoney("$", g.TotalSale)
	return g
}

// FormatMoney renders an amount with two decimals behind a currency symbol.
func FormatMoney(symbol string, v float64) string {
	return symbol + decimal.NewFromFloat(pricing.Round2(v)).StringFixed(2)
}
