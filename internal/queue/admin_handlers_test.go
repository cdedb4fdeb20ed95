package queue_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/queue"
)

func deadMessage(t *testing.T, key string, attempt int) []byte {
	t.Helper()
	raw, err := json.Marshal(struct {
		Kind        string `json:"kind"`
		Key         string `json:"key"`
		Payload     []byte `json:"payload"`
		Attempt     int    `json:"attempt"`
		MaxAttempts int    `json:"max_attempts"`
		AvailableAt int64  `json:"available_at"`
	}{
		Kind:        queue.KindReprice,
		Key:         key,
		Payload:     []byte(`{"quote_id":` + key + `}`),
		Attempt:     attempt,
		MaxAttempts: 3,
		AvailableAt: time.Now().UnixNano(),
	})
	require.NoError(t, err)
	return raw
}

func TestDLQReplay(t *testing.T) {
	client := newRedis(t)
	store := queue.NewRedisDLQ(client, "adm")
	handler := queue.AdminHandler{
		Store:             store,
		Queue:             queue.Enqueuer{R: client, Prefix: "adm", DedupTTL: time.Minute, MaxAttempts: 5},
		PageSize:          10,
		VisibilityTimeout: 60 * time.Second,
	}

	id, err := store.Insert(context.Background(), queue.DLQEntry{
		Kind:           queue.KindReprice,
		IdempotencyKey: "12",
		Payload:        deadMessage(t, "12", 3),
		Attempts:       3,
	})
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"ids":["` + id.String() + `","not-a-uuid"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/queues/dlq/replay", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.ReplayDLQ(rr, req)

	res := rr.Result()
	require.Equal(t, http.StatusOK, res.StatusCode)
	defer func() { _ = res.Body.Close() }()

	var resp struct {
		Replayed []string          `json:"replayed"`
		Failed   map[string]string `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	require.Contains(t, resp.Replayed, id.String())
	require.Equal(t, "invalid uuid", resp.Failed["not-a-uuid"])

	depth, err := client.ZCard(context.Background(), "adm:queue:"+queue.KindReprice).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)

	_, err = store.Get(context.Background(), id)
	require.ErrorIs(t, err, queue.ErrDLQEntryNotFound)
}

func TestDLQListAndStats(t *testing.T) {
	client := newRedis(t)
	store := queue.NewRedisDLQ(client, "adm")
	handler := queue.AdminHandler{
		Store: store,
		Queue: queue.Enqueuer{R: client, Prefix: "adm"},
	}

	_, err := store.Insert(context.Background(), queue.DLQEntry{
		Kind:     queue.KindReprice,
		Payload:  deadMessage(t, "4", 3),
		Attempts: 3,
	})
	require.NoError(t, err)
	_, err = queue.EnqueueReprice(context.Background(), handler.Queue, 5)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ListDLQ(rr, httptest.NewRequest(http.MethodGet, "/dlq?kind="+queue.KindReprice, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var list struct {
		Data []struct {
			Attempts int             `json:"attempts"`
			Payload  json.RawMessage `json:"payload"`
		} `json:"data"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.EqualValues(t, 1, list.Total)
	require.Len(t, list.Data, 1)
	require.JSONEq(t, `{"quote_id":4}`, string(list.Data[0].Payload))

	rr = httptest.NewRecorder()
	handler.Stats(rr, httptest.NewRequest(http.MethodGet, "/stats?kind="+queue.KindReprice, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.EqualValues(t, 1, stats["ready"])
	require.EqualValues(t, 1, stats["dlq"])

	rr = httptest.NewRecorder()
	handler.Stats(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
