package pricing

import (
	"math"
	"testing"
)

func TestComputeEndToEnd(t *testing.T) {
	summary := Compute(Input{
		Items:    []Item{{Category: "Hotel", PurchaseUSD: Float(500), SaleUSD: Float(700)}},
		Pax:      2,
		DayCount: 1,
	})
	if summary.Onspot != 27 {
		t.Fatalf("expected onspot 27, got %v", summary.Onspot)
	}
	if summary.PurchaseGrandTotal != 527 {
		t.Fatalf("expected purchase total 527, got %v", summary.PurchaseGrandTotal)
	}
	if math.Abs(summary.Commission-85.7429) > 1e-9 {
		t.Fatalf("expected commission 85.7429, got %v", summary.Commission)
	}
	if summary.Hassle != 300 || summary.SaleGrandTotal != 1000 {
		t.Fatalf("unexpected sale totals %+v", summary)
	}
	if summary.GrandRounded != 1613 {
		t.Fatalf("expected grand total 1613, got %v", summary.GrandRounded)
	}
	if summary.Margin != DefaultMargin {
		t.Fatalf("expected default margin, got %v", summary.Margin)
	}
}

func TestComputeIdempotent(t *testing.T) {
	in := Input{
		Items: []Item{
			{Category: "Flight", PurchaseUSD: Float(812.4), SaleUSD: Float(990)},
			{Category: "Cost", PurchaseUSD: Float(12.35)},
		},
		Pax:      5,
		DayCount: 6,
		Margin:   Float(0.2),
	}
	first := Compute(in)
	second := Compute(in)
	if first != second {
		t.Fatalf("expected identical summaries, got %+v and %+v", first, second)
	}
}

func TestComputeCategoryExclusion(t *testing.T) {
	trip := Compute(Input{Items: []Item{{Category: "Trip info", PurchaseUSD: Float(999)}}, Pax: 1, DayCount: 1})
	if trip.PurchaseService != 0 {
		t.Fatalf("trip info must be excluded, got %v", trip.PurchaseService)
	}
	internal := Compute(Input{Items: []Item{{Category: "Internal info", PurchaseUSD: Float(999)}}, Pax: 1, DayCount: 1})
	if internal.PurchaseService != 0 {
		t.Fatalf("internal info must be excluded, got %v", internal.PurchaseService)
	}
	hotel := Compute(Input{Items: []Item{{Category: "Hotel", PurchaseUSD: Float(999)}}, Pax: 1, DayCount: 1})
	if hotel.PurchaseService != 999 {
		t.Fatalf("hotel must be included, got %v", hotel.PurchaseService)
	}
	// the exclusion is exact: casing variants are priced
	lower := Compute(Input{Items: []Item{{Category: "trip info", PurchaseUSD: Float(10)}}, Pax: 1, DayCount: 1})
	if lower.PurchaseService != 10 {
		t.Fatalf("expected exact match exclusion, got %v", lower.PurchaseService)
	}
}

// Sale amounts are summed over every line, unpriced categories included.
func TestComputeSaleSumsAllCategories(t *testing.T) {
	summary := Compute(Input{Items: []Item{{Category: "Trip info", SaleUSD: Float(40)}}, Pax: 0, DayCount: 1})
	if summary.SaleSubtotal != 40 {
		t.Fatalf("expected trip info sale to be counted, got %v", summary.SaleSubtotal)
	}
}

func TestComputeOverrides(t *testing.T) {
	in := Input{Pax: 13, DayCount: 3, OnspotManual: Float(50), HassleManual: Float(0)}
	summary := Compute(in)
	if summary.Onspot != 50 || !summary.OnspotManual || summary.OnspotDefault != 81 {
		t.Fatalf("unexpected onspot resolution %+v", summary)
	}
	if summary.Hassle != 0 || !summary.HassleManual {
		t.Fatalf("a zero hassle override still wins, got %+v", summary)
	}

	in.OnspotManual = nil
	in.DayCount = 4
	summary = Compute(in)
	if summary.Onspot != 108 {
		t.Fatalf("cleared override must track the live default, got %v", summary.Onspot)
	}
}

func TestComputeMalformedAmountsDegradeToZero(t *testing.T) {
	nan := math.NaN()
	summary := Compute(Input{
		Items:  []Item{{Category: "Hotel", PurchaseUSD: &nan, SaleUSD: nil}},
		Pax:    0,
		Margin: &nan,
	})
	if summary.PurchaseService != 0 || summary.SaleSubtotal != 0 {
		t.Fatalf("expected zero sums, got %+v", summary)
	}
	if summary.Margin != DefaultMargin {
		t.Fatalf("non-finite margin falls back to the default, got %+v", summary)
	}
	if summary.GrandRounded != 31 {
		t.Fatalf("expected onspot floor plus commission, got %v", summary.GrandRounded)
	}
}
