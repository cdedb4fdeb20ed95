package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/pricing"
)

func TestSyncPurchaseEURDerivesUSD(t *testing.T) {
	current := pricing.Prices{PurchaseEUR: pricing.Float(100), FXRate: pricing.Float(0.75), PurchaseUSD: pricing.Float(75)}
	next, err := pricing.Sync(current, pricing.FieldPurchaseEUR, "200")
	require.NoError(t, err)
	require.Equal(t, 200.0, *next.PurchaseEUR)
	require.Equal(t, 150.0, *next.PurchaseUSD)
	require.Equal(t, 0.75, *next.FXRate)
	require.Equal(t, 75.0, *current.PurchaseUSD, "input must not be mutated")
}

func TestSyncPurchaseEURZeroKeepsUSD(t *testing.T) {
	current := pricing.Prices{PurchaseEUR: pricing.Float(100), FXRate: pricing.Float(0.75), PurchaseUSD: pricing.Float(75)}
	next, err := pricing.Sync(current, pricing.FieldPurchaseEUR, "")
	require.NoError(t, err)
	require.Equal(t, 0.0, *next.PurchaseEUR)
	require.Equal(t, 75.0, *next.PurchaseUSD)
}

func TestSyncFXRateDerivesUSD(t *testing.T) {
	current := pricing.Prices{PurchaseEUR: pricing.Float(100), PurchaseUSD: pricing.Float(70)}
	next, err := pricing.Sync(current, pricing.FieldFXRate, 0.8)
	require.NoError(t, err)
	require.Equal(t, 0.8, *next.FXRate)
	require.Equal(t, 80.0, *next.PurchaseUSD)
}

func TestSyncPurchaseUSDDerivesFX(t *testing.T) {
	current := pricing.Prices{PurchaseEUR: pricing.Float(50), FXRate: pricing.Float(0.75)}
	next, err := pricing.Sync(current, pricing.FieldPurchaseUSD, "45")
	require.NoError(t, err)
	require.Equal(t, 45.0, *next.PurchaseUSD)
	require.Equal(t, 0.9, *next.FXRate)
	require.Equal(t, 50.0, *next.PurchaseEUR)
}

func TestSyncZeroEURGuard(t *testing.T) {
	current := pricing.Prices{PurchaseEUR: pricing.Float(0), FXRate: pricing.Float(0.75), PurchaseUSD: pricing.Float(33)}

	next, err := pricing.Sync(current, pricing.FieldFXRate, "1.3")
	require.NoError(t, err)
	require.Equal(t, 33.0, *next.PurchaseUSD)
	require.Equal(t, 1.3, *next.FXRate)

	next, err = pricing.Sync(current, pricing.FieldPurchaseUSD, "90")
	require.NoError(t, err)
	require.Equal(t, 90.0, *next.PurchaseUSD)
	require.Equal(t, 0.75, *next.FXRate, "fx must not be derived from a zero divisor")
}

func TestSyncNullEURGuard(t *testing.T) {
	next, err := pricing.Sync(pricing.Prices{}, pricing.FieldPurchaseUSD, "90")
	require.NoError(t, err)
	require.Equal(t, pricing.DefaultFX, *next.FXRate)
	require.Equal(t, 90.0, *next.PurchaseUSD)
	require.Nil(t, next.PurchaseEUR)
}

func TestSyncPurchaseEURWithoutLineRate(t *testing.T) {
	next, err := pricing.Sync(pricing.Prices{}, pricing.FieldPurchaseEUR, "100")
	require.NoError(t, err)
	require.Equal(t, 75.0, *next.PurchaseUSD)
	require.Equal(t, pricing.DefaultFX, *next.FXRate)

	next, err = pricing.SyncWithFX(pricing.Prices{}, pricing.FieldPurchaseEUR, "100", pricing.Float(1.0837))
	require.NoError(t, err)
	require.Equal(t, 108.37, *next.PurchaseUSD)
	require.Equal(t, 1.0837, *next.FXRate)

	current := pricing.Prices{FXRate: pricing.Float(0.9)}
	next, err = pricing.SyncWithFX(current, pricing.FieldPurchaseEUR, "100", pricing.Float(1.0837))
	require.NoError(t, err)
	require.Equal(t, 90.0, *next.PurchaseUSD, "the line rate wins over the quote rate")
}

func TestResolveFX(t *testing.T) {
	require.Equal(t, 0.9, pricing.ResolveFX(pricing.Float(0.9), pricing.Float(1.1)))
	require.Equal(t, 1.1, pricing.ResolveFX(nil, pricing.Float(1.1)))
	require.Equal(t, pricing.DefaultFX, pricing.ResolveFX(nil, nil))
	require.Equal(t, 0.0, pricing.ResolveFX(pricing.Float(0), nil), "an explicit zero is kept")
}

func TestSyncSaleIsIndependent(t *testing.T) {
	current := pricing.Prices{PurchaseEUR: pricing.Float(10), FXRate: pricing.Float(1.1), PurchaseUSD: pricing.Float(11)}
	next, err := pricing.Sync(current, pricing.FieldSaleUSD, "abc")
	require.NoError(t, err)
	require.Equal(t, 0.0, *next.SaleUSD)
	require.Equal(t, current.PurchaseEUR, next.PurchaseEUR)
	require.Equal(t, 11.0, *next.PurchaseUSD)
}

func TestSyncRoundsToCents(t *testing.T) {
	current := pricing.Prices{FXRate: pricing.Float(1.0837)}
	next, err := pricing.Sync(current, pricing.FieldPurchaseEUR, "123.45")
	require.NoError(t, err)
	require.Equal(t, 133.78, *next.PurchaseUSD)
}

func TestSyncUnknownField(t *testing.T) {
	_, err := pricing.Sync(pricing.Prices{}, pricing.Field("price"), "1")
	require.ErrorIs(t, err, pricing.ErrUnknownField)

	_, err = pricing.ParseField("nope")
	require.ErrorIs(t, err, pricing.ErrUnknownField)

	f, err := pricing.ParseField(" FX_RATE ")
	require.NoError(t, err)
	require.Equal(t, pricing.FieldFXRate, f)
}

func TestSetStoresVerbatim(t *testing.T) {
	current := pricing.Prices{PurchaseEUR: pricing.Float(10), FXRate: pricing.Float(2)}
	next, err := pricing.Set(current, pricing.FieldPurchaseEUR, "20")
	require.NoError(t, err)
	require.Equal(t, 20.0, *next.PurchaseEUR)
	require.Nil(t, next.PurchaseUSD)
}
