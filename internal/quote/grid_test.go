package quote_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/pricing"
	"github.com/noah-isme/quote-editor/internal/quote"
)

func TestBuildGrid(t *testing.T) {
	q := fixture(t)
	day := q.Days[0].ID
	activity := q.Days[0].Lines[0].ID

	q, err := quote.ApplyLineEdit(q, day, activity, pricing.FieldFXRate, "1.1")
	require.NoError(t, err)
	q, err = quote.ApplyLineEdit(q, day, activity, pricing.FieldPurchaseEUR, "100")
	require.NoError(t, err)
	q, err = quote.ApplyLineEdit(q, day, activity, pricing.FieldSaleUSD, "150")
	require.NoError(t, err)

	q, _, err = quote.AddLine(q, day, quote.CategoryTripInfo)
	require.NoError(t, err)
	q, hotel, err := quote.AddLine(q, day, quote.CategoryHotel)
	require.NoError(t, err)
	q, err = quote.ApplyLineEdit(q, day, hotel.ID, pricing.FieldPurchaseUSD, "50.25")
	require.NoError(t, err)
	q, _, err = quote.AddLine(q, q.Days[1].ID, quote.CategoryCarRental)
	require.NoError(t, err)

	g := quote.BuildGrid(q)
	require.Len(t, g.Rows, 4)
	require.Equal(t, "Onspot", g.Rows[0].Name)
	require.Equal(t, quote.GridKindMeta, g.Rows[0].Kind)
	require.InDelta(t, 27.0, g.Rows[0].PurchaseUSD, 1e-9)
	require.Equal(t, "Hassle", g.Rows[1].Name)
	require.InDelta(t, 600.0, g.Rows[1].SaleUSD, 1e-9)

	require.Equal(t, "Tokyo", g.Rows[2].Destination)
	require.Equal(t, "", g.Rows[3].Destination)
	require.Equal(t, "New Hotel", g.Rows[3].Name)

	require.InDelta(t, 100.0, g.TotalEUR, 1e-9)
	require.InDelta(t, 187.25, g.TotalUSD, 1e-9)
	require.InDelta(t, 750.0, g.TotalSale, 1e-9)
	require.Equal(t, "$187.25", g.DisplayUSD)
	require.Equal(t, "€100.00", g.DisplayEUR)
}

func TestFormatMoney(t *testing.T) {
	require.Equal(t, "$1234.50", quote.FormatMoney("$", 1234.5))
	require.Equal(t, "$0.00", quote.FormatMoney("$", 0))
	require.Equal(t, "$-3.10", quote.FormatMoney("$", -3.1))
}
