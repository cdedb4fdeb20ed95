package pricing

import "math"

const (
	// OnspotFloor is the minimum Onspot fee in USD.
	OnspotFloor = 27.0
	// OnspotCardRate is billed per card per trip day.
	OnspotCardRate = 9.0
	// OnspotPaxPerCard is the party size covered by one Onspot card.
	OnspotPaxPerCard = 6
	// HassleRate is the flat per-passenger Hassle fee.
	HassleRate = 150.0
)

// OnspotDefault returns max(27, 9 * ceil(pax/6) * max(1, dayCount)).
func OnspotDefault(pax, dayCount int) float64 {
	if pax < 0 {
		pax = 0
	}
	if dayCount < 1 {
		dayCount = 1
	}
	cards := math.Ceil(float64(pax) / OnspotPaxPerCard)
	return math.Max(OnspotFloor, OnspotCardRate*cards*float64(dayCount))
}

// HassleDefault returns 150 * pax.
func HassleDefault(pax int) float64 {
	if pax < 0 {
		return 0
	}
	return HassleRate * float64(pax)
}

// Effective resolves a nullable manual override against the formula default.
func Effective(manual *float64, def float64) float64 {
	if manual == nil {
		return def
	}
	return finiteOrZero(*manual)
}

// TypeOverride parses an override while the user is still typing. No clamp
// is applied so intermediate values stay visible.
func TypeOverride(raw string) float64 {
	return ParseAmountText(raw)
}

// CommitOnspot parses and clamps an Onspot override on commit.
func CommitOnspot(raw string) float64 {
	return math.Max(OnspotFloor, ParseAmountText(raw))
}

// CommitHassle parses and clamps a Hassle override on commit.
func CommitHassle(raw string) float64 {
	return math.Max(0, ParseAmountText(raw))
}
