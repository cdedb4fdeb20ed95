package quote_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/quote"
)

func TestApplyDestinationRange(t *testing.T) {
	q, err := quote.SetDates(quote.Quote{}, "2025-05-01", "2025-05-05")
	require.NoError(t, err)
	q, err = quote.SetDestination(q, q.Days[2].ID, "Kyoto")
	require.NoError(t, err)

	kept, err := quote.ApplyDestinationRange(q, quote.DestinationRange{StartDate: "2025-05-02", Nights: 3, Destination: "Osaka"})
	require.NoError(t, err)
	require.Equal(t, "", kept.Days[0].Destination)
	require.Equal(t, "Osaka", kept.Days[1].Destination)
	require.Equal(t, "Kyoto", kept.Days[2].Destination)
	require.Equal(t, "Osaka", kept.Days[3].Destination)
	require.Equal(t, "", kept.Days[4].Destination)

	over, err := quote.ApplyDestinationRange(q, quote.DestinationRange{DayID: q.Days[3].ID, Nights: 10, Destination: " Nara ", Overwrite: true})
	require.NoError(t, err)
	require.Equal(t, "Nara", over.Days[3].Destination)
	require.Equal(t, "Nara", over.Days[4].Destination)
	require.Equal(t, "Kyoto", over.Days[2].Destination)
}

func TestApplyDestinationRangeRejects(t *testing.T) {
	q, err := quote.SetDates(quote.Quote{}, "2025-05-01", "2025-05-02")
	require.NoError(t, err)

	_, err = quote.ApplyDestinationRange(q, quote.DestinationRange{DayID: q.Days[0].ID, Nights: 0, Destination: "Osaka"})
	require.ErrorIs(t, err, quote.ErrInvalidRange)

	_, err = quote.ApplyDestinationRange(q, quote.DestinationRange{DayID: q.Days[0].ID, Nights: 1, Destination: "  "})
	require.ErrorIs(t, err, quote.ErrInvalidRange)

	_, err = quote.ApplyDestinationRange(q, quote.DestinationRange{StartDate: "2024-01-01", Nights: 1, Destination: "Osaka"})
	require.ErrorIs(t, err, quote.ErrDayNotFound)
}

func TestDestinationBlocks(t *testing.T) {
	days := []quote.Day{
		{Destination: "Tokyo"},
		{Destination: "Tokyo"},
		{Destination: ""},
		{Destination: "Kyoto"},
		{Destination: "Kyoto"},
		{Destination: "Kyoto"},
	}
	require.True(t, quote.FirstOfDestinationBlock(days, 0))
	require.False(t, quote.FirstOfDestinationBlock(days, 1))
	require.False(t, quote.FirstOfDestinationBlock(days, 2))
	require.True(t, quote.FirstOfDestinationBlock(days, 3))
	require.False(t, quote.FirstOfDestinationBlock(days, 9))

	require.Equal(t, 2, quote.NightsFromIndex(days, 0))
	require.Equal(t, 0, quote.NightsFromIndex(days, 2))
	require.Equal(t, 3, quote.NightsFromIndex(days, 3))
	require.Equal(t, 1, quote.NightsFromIndex(days, 5))
}
