package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/backend"
	"github.com/noah-isme/quote-editor/internal/quote"
)

func newClient(t *testing.T, h http.Handler) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.New(backend.Config{
		BaseURL:     srv.URL + "/",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	}, zerolog.Nop())
}

func TestGetQuote(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quotes/12", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"id":12,"title":"Peru","pax":3,"margin_pct":0.2,"days":[]}`))
	}))

	rec, err := client.GetQuote(context.Background(), 12)
	require.NoError(t, err)
	require.EqualValues(t, 12, *rec.ID)
	require.Equal(t, "Peru", rec.Title)
	require.InDelta(t, 0.2, *rec.Margin, 1e-12)
}

func TestGetQuoteNotFound(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Quote not found"}`))
	}))

	_, err := client.GetQuote(context.Background(), 1)
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func TestStatusErrorCarriesDetail(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"pax must be >= 0"}`))
	}))

	_, err := client.SaveQuote(context.Background(), 5, quote.Payload{})
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnprocessableEntity, se.Status)
	require.Equal(t, "pax must be >= 0", se.Detail)
}

func TestStatusErrorWithoutJSONBody(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`conflict`))
	}))

	_, err := client.SaveQuote(context.Background(), 5, quote.Payload{})
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "HTTP 409", se.Detail)
}

func TestSaveQuoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p quote.Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		require.Equal(t, 4, p.Pax)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":5,"pax":4}`))
	}))

	rec, err := client.SaveQuote(context.Background(), 5, quote.Payload{Pax: 4})
	require.NoError(t, err)
	require.Equal(t, 4, rec.Pax)
	require.EqualValues(t, 2, calls.Load())
}

func TestCreateQuoteReturnsAssignedID(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/quotes", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":99,"title":"New"}`))
	}))

	rec, err := client.CreateOrSaveQuote(context.Background(), quote.Payload{Title: "New"})
	require.NoError(t, err)
	require.EqualValues(t, 99, *rec.ID)
}

func TestRecentQuotesClampsLimit(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quotes/recent", r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"items":[{"id":1,"title":"A","pax":2,"start_date":"2025-01-01","end_date":null,"updated_at":"2025-01-02T10:00:00"}]}`))
	}))

	items, err := client.RecentQuotes(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "A", items[0].Title)
}

func TestRepriceQuote(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quotes/3/reprice", r.URL.Path)
		_, _ = w.Write([]byte(`{"quote_id":3,"onspot_total":27,"grand_total":1613}`))
	}))

	res, err := client.RepriceQuote(context.Background(), 3)
	require.NoError(t, err)
	require.EqualValues(t, 3, res.QuoteID)
	require.InDelta(t, 1613.0, res.GrandTotal, 1e-9)
}
