package quote_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/quote"
)

func TestSetDatesGrowsAndShrinks(t *testing.T) {
	q := fixture(t)
	firstDay := q.Days[0]

	grown, err := quote.SetDates(q, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	require.Len(t, grown.Days, 5)
	require.Equal(t, firstDay.ID, grown.Days[0].ID)
	require.Equal(t, "Tokyo", grown.Days[0].Destination)
	require.Len(t, grown.Days[0].Lines, 1)
	require.Equal(t, "2025-03-05", grown.Days[4].Date)
	require.NotEmpty(t, grown.Days[4].ID)
	require.Equal(t, "Tokyo", grown.Days[4].Destination)
	require.Empty(t, grown.Days[4].Lines)

	shrunk, err := quote.SetDates(grown, "2025-04-10", "2025-04-11")
	require.NoError(t, err)
	require.Len(t, shrunk.Days, 2)
	require.Equal(t, "2025-04-10", shrunk.Days[0].Date)
	require.Equal(t, "2025-04-11", shrunk.Days[1].Date)
	require.Equal(t, "2025-04-10", shrunk.StartDate)
	require.Len(t, grown.Days, 5)
}

func TestSetDatesEdgeCases(t *testing.T) {
	q := fixture(t)

	single, err := quote.SetDates(q, "2025-03-05", "2025-03-01")
	require.NoError(t, err)
	require.Len(t, single.Days, 1)

	_, err = quote.SetDates(q, "2025-03-", "2025-03-01")
	require.ErrorIs(t, err, quote.ErrInvalidDate)

	_, err = quote.SetDates(q, "2025-01-01", "2027-01-01")
	require.ErrorIs(t, err, quote.ErrTripTooLong)
}

func TestTripDaysAcrossDST(t *testing.T) {
	n, err := quote.TripDays("2025-03-29", "2025-04-01")
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestBlankQuote(t *testing.T) {
	q, err := quote.Blank("2025-04-07", "2025-04-09", " Paris ")
	require.NoError(t, err)
	require.Nil(t, q.ID)
	require.Equal(t, 2, q.Pax)
	require.InDelta(t, 0.1627, q.EffectiveMargin(), 1e-12)
	require.Len(t, q.Days, 3)
	for _, d := range q.Days {
		require.Equal(t, "Paris", d.Destination)
	}
	require.Len(t, q.Days[0].Lines, 1)
	require.Equal(t, quote.CategoryTripInfo, q.Days[0].Lines[0].Category)

	_, err = quote.Blank("nope", "2025-04-09", "")
	require.ErrorIs(t, err, quote.ErrInvalidDate)
}
