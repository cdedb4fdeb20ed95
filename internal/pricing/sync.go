package pricing

import (
	"errors"
	"strings"
)

// ErrUnknownField is returned when a price field name is not recognised.
var ErrUnknownField = errors.New("pricing: unknown price field")

// Field identifies one of the four editable price boxes of a line.
type Field string

const (
	FieldPurchaseEUR Field = "achat_eur"
	FieldFXRate      Field = "fx_rate"
	FieldPurchaseUSD Field = "achat_usd"
	FieldSaleUSD     Field = "vente_usd"
)

// ParseField resolves a wire name into a Field.
func ParseField(name string) (Field, error) {
	switch Field(strings.ToLower(strings.TrimSpace(name))) {
	case FieldPurchaseEUR:
		return FieldPurchaseEUR, nil
	case FieldFXRate:
		return FieldFXRate, nil
	case FieldPurchaseUSD:
		return FieldPurchaseUSD, nil
	case FieldSaleUSD:
		return FieldSaleUSD, nil
	default:
		return "", ErrUnknownField
	}
}

// Prices holds the pricing fields of a line. Every field is nullable on the
// wire and stored exactly as last computed.
type Prices struct {
	PurchaseEUR *float64 `json:"achat_eur"`
	FXRate      *float64 `json:"fx_rate"`
	PurchaseUSD *float64 `json:"achat_usd"`
	SaleUSD     *float64 `json:"vente_usd"`
}

// Clone returns a copy that shares no pointers with p.
func (p Prices) Clone() Prices {
	return Prices{
		PurchaseEUR: clonePtr(p.PurchaseEUR),
		FXRate:      clonePtr(p.FXRate),
		PurchaseUSD: clonePtr(p.PurchaseUSD),
		SaleUSD:     clonePtr(p.SaleUSD),
	}
}

// DefaultFX is the EUR to USD rate used when neither the line nor the quote
// carries one.
const DefaultFX = 0.75

// ResolveFX returns the line rate, else the quote rate, else DefaultFX.
func ResolveFX(line, quote *float64) float64 {
	switch {
	case line != nil:
		return *line
	case quote != nil:
		return *quote
	default:
		return DefaultFX
	}
}

// Sync applies an edit of one field and re-derives the single dependent
// field. A line without its own rate falls back to DefaultFX; see SyncWithFX.
func Sync(current Prices, field Field, raw any) (Prices, error) {
	return SyncWithFX(current, field, raw, nil)
}

// SyncWithFX is Sync with a quote-level rate used when the line has none.
// The edited value always wins; the dependent field is left as it was
// whenever the purchase EUR amount driving the formula is zero. EUR and USD
// edits on a line without a rate store the resolved rate on the line.
//
//	achat_eur -> achat_usd = round2(eur_new * fx)
//	fx_rate   -> achat_usd = round2(eur * fx_new)
//	achat_usd -> fx_rate   = round2(usd_new / eur)
func SyncWithFX(current Prices, field Field, raw any, quoteFX *float64) (Prices, error) {
	next := current.Clone()
	value := ParseNumber(raw)

	switch field {
	case FieldPurchaseEUR:
		fx := ResolveFX(current.FXRate, quoteFX)
		next.PurchaseEUR = ptr(value)
		next.FXRate = ptr(fx)
		if value != 0 {
			next.PurchaseUSD = ptr(Round2(value * fx))
		}
	case FieldFXRate:
		next.FXRate = ptr(value)
		if eur := ParseNumber(current.PurchaseEUR); eur != 0 {
			next.PurchaseUSD = ptr(Round2(eur * value))
		}
	case FieldPurchaseUSD:
		next.PurchaseUSD = ptr(value)
		if eur := ParseNumber(current.PurchaseEUR); eur != 0 {
			next.FXRate = ptr(Round2(value / eur))
		} else {
			next.FXRate = ptr(ResolveFX(current.FXRate, quoteFX))
		}
	case FieldSaleUSD:
		next.SaleUSD = ptr(value)
	default:
		return current, ErrUnknownField
	}
	return next, nil
}

// Set stores a parsed value without any derivation. Used for lines that carry
// no pricing semantics.
func Set(current Prices, field Field, raw any) (Prices, error) {
	next := current.Clone()
	value := ptr(ParseNumber(raw))
	switch field {
	case FieldPurchaseEUR:
		next.PurchaseEUR = value
	case FieldFXRate:
		next.FXRate = value
	case FieldPurchaseUSD:
		next.PurchaseUSD = value
	case FieldSaleUSD:
		next.SaleUSD = value
	default:
		return current, ErrUnknownField
	}
	return next, nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func ptr(v float64) *float64 { return &v }

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
