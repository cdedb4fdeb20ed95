package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// KindReprice asks the quote backend to recompute a stored quote's totals.
const KindReprice = "quote_reprice"

// RepricePayload is the body of a reprice task.
type RepricePayload struct {
	QuoteID int64 `json:"quote_id"`
}

// EnqueueReprice schedules a reprice of quoteID. Requests for the same quote
// collapse into one pending task. It reports whether a task was added.
func EnqueueReprice(ctx context.Context, e Enqueuer, quoteID int64) (bool, error) {
	if quoteID <= 0 {
		return false, fmt.Errorf("queue: invalid quote id %d", quoteID)
	}
	payload, err := json.Marshal(RepricePayload{QuoteID: quoteID})
	if err != nil {
		return false, err
	}
	return e.EnqueueUnique(ctx, Task{
		Kind:           KindReprice,
		Payload:        payload,
		IdempotencyKey: strconv.FormatInt(quoteID, 10),
	})
}

// RepriceHandler adapts a per-quote function into a worker handler.
func RepriceHandler(fn func(ctx context.Context, quoteID int64) error) func(context.Context, Task) error {
	return func(ctx context.Context, t Task) error {
		var p RepricePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode reprice payload: %w", err)
		}
		if p.QuoteID <= 0 {
			return errors.New("queue: reprice payload without quote id")
		}
		return fn(ctx, p.QuoteID)
	}
}
