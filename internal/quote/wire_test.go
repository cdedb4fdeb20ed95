package quote_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/pricing"
	"github.com/noah-isme/quote-editor/internal/quote"
)

const backendRecord = `{
  "id": 42,
  "title": "Vietnam",
  "pax": 2,
  "start_date": "2025-06-01",
  "end_date": "2025-06-02",
  "fx_rate": 1.08,
  "client_name": "Martin",
  "margin_pct": null,
  "onspot_manual": 40,
  "hassle_manual": null,
  "grand_total": 999,
  "days": [
    {"id": 7, "position": 0, "date": "2025-06-01", "destination": "Hanoi", "decorative_images": ["a.jpg"], "lines": [
      {"id": 70, "position": 0, "category": "Hotel", "title": "Metropole", "supplier_name": null, "visibility": "client",
       "achat_eur": 123.456, "fx_rate": 1.0837, "achat_usd": 133.79, "vente_usd": null,
       "raw_json": {"hotel_name": "Metropole", "stars": 5, "breakfast": true, "vendor_ref": "X-1"}}
    ]},
    {"id": 8, "position": 1, "date": "2025-06-02", "destination": "", "lines": []}
  ]
}`

func TestFromRecordAssignsIDsAndDefaultsMargin(t *testing.T) {
	var rec quote.Record
	require.NoError(t, json.Unmarshal([]byte(backendRecord), &rec))

	q, err := quote.FromRecord(rec)
	require.NoError(t, err)
	require.EqualValues(t, 42, *q.ID)
	require.InDelta(t, pricing.DefaultMargin, *q.Margin, 1e-12)
	require.InDelta(t, 40.0, *q.OnspotManual, 1e-12)
	require.Nil(t, q.HassleManual)
	require.Equal(t, "Martin", q.Header.ClientName)
	require.Len(t, q.Days, 2)
	require.NotEmpty(t, q.Days[0].ID)
	require.NotEqual(t, q.Days[0].ID, q.Days[1].ID)

	line := q.Days[0].Lines[0]
	require.NotEmpty(t, line.ID)
	require.Equal(t, quote.KindHotel, line.Details.Kind())
	hotel, err := line.Details.Hotel()
	require.NoError(t, err)
	require.Equal(t, 5, hotel.Stars)
	require.True(t, hotel.Breakfast)
	require.Nil(t, line.Prices.SaleUSD)
}

func TestToPayloadRoundTripsExactValues(t *testing.T) {
	var rec quote.Record
	require.NoError(t, json.Unmarshal([]byte(backendRecord), &rec))
	q, err := quote.FromRecord(rec)
	require.NoError(t, err)

	p := quote.ToPayload(q)
	require.NoError(t, p.Validate())

	line := p.Days[0].Lines[0]
	require.Equal(t, 123.456, *line.PurchaseEUR)
	require.Equal(t, 1.0837, *line.FXRate)
	require.Equal(t, 133.79, *line.PurchaseUSD)
	require.Nil(t, line.SaleUSD)
	require.Equal(t, 1, p.Days[1].Position)
	require.JSONEq(t, `{"hotel_name":"Metropole","stars":5,"breakfast":true,"vendor_ref":"X-1","fx":1.0837}`, string(line.RawJSON))

	body, err := json.Marshal(p)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(body, &generic))
	require.InDelta(t, pricing.DefaultMargin, generic["margin_pct"], 1e-12)
	require.Nil(t, generic["hassle_manual"])
}

func TestToPayloadRecordsResolvedRate(t *testing.T) {
	q, err := quote.Blank("2025-05-01", "2025-05-01", "Hue")
	require.NoError(t, err)
	q, _, err = quote.AddLine(q, q.Days[0].ID, quote.CategoryNewHotel)
	require.NoError(t, err)

	raw := func(q quote.Quote) map[string]any {
		var fields map[string]any
		require.NoError(t, json.Unmarshal(quote.ToPayload(q).Days[0].Lines[1].RawJSON, &fields))
		return fields
	}
	require.Equal(t, pricing.DefaultFX, raw(q)["fx"])

	q = quote.SetHeader(q, quote.Header{FXRate: pricing.Float(1.12)})
	require.Equal(t, 1.12, raw(q)["fx"])
	require.Nil(t, quote.ToPayload(q).Days[0].Lines[1].FXRate, "the line rate column is sent as stored")
}

func TestPayloadValidate(t *testing.T) {
	p := quote.Payload{Pax: -1}
	require.Error(t, p.Validate())

	p = quote.Payload{StartDate: "01/02/2025"}
	require.Error(t, p.Validate())

	p = quote.Payload{Days: []quote.DayPayload{{DecorativeImages: []string{"a", "b", "c"}}}}
	require.Error(t, p.Validate())

	p = quote.Payload{Days: []quote.DayPayload{{Lines: []quote.LinePayload{{Category: "Hotel", Visibility: "public"}}}}}
	require.Error(t, p.Validate())

	p = quote.Payload{Pax: 2, StartDate: "2025-01-01", Days: []quote.DayPayload{{Lines: []quote.LinePayload{{Category: "Hotel"}}}}}
	require.NoError(t, p.Validate())
}

func TestLineJSONKeepsDetailsKind(t *testing.T) {
	q := fixture(t)
	q, _, err := quote.AddDetailedLine(q, q.Days[0].ID, quote.CategoryFlight, "", json.RawMessage(`{"from":"CDG","to":"HND"}`))
	require.NoError(t, err)

	body, err := json.Marshal(q)
	require.NoError(t, err)
	var decoded quote.Quote
	require.NoError(t, json.Unmarshal(body, &decoded))

	flight, err := decoded.Days[0].Lines[1].Details.Flight()
	require.NoError(t, err)
	require.Equal(t, "HND", flight.To)
	require.Equal(t, q.Days[0].Lines[1].ID, decoded.Days[0].Lines[1].ID)
}
