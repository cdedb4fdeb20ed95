package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quote-editor/internal/resilience"
)

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
	// Attempt is the 1-based delivery number seen by handlers. On enqueue it
	// seeds the counter of a replayed task.
	Attempt int
}

// Enqueuer publishes tasks to Redis backed queues.
type Enqueuer struct {
	R           *redis.Client
	Prefix      string
	DedupTTL    time.Duration
	MaxAttempts int
}

// Enqueue inserts the task into the queue. If an idempotency key is supplied the
// task is only enqueued once within the configured deduplication window.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	_, err := e.enqueue(ctx, t)
	return err
}

// EnqueueUnique behaves like Enqueue and reports whether the task was new.
func (e Enqueuer) EnqueueUnique(ctx context.Context, t Task) (bool, error) {
	return e.enqueue(ctx, t)
}

func (e Enqueuer) enqueue(ctx context.Context, t Task) (bool, error) {
	if e.R == nil {
		return false, errors.New("queue: redis client not configured")
	}
	kind := sanitizeKind(t.Kind)
	if kind == "" {
		return false, errors.New("queue: task kind is required")
	}
	msg := taskMessage{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		Attempt:     max(t.Attempt, 0),
		MaxAttempts: t.MaxAttempts,
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = e.MaxAttempts
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = 10
	}
	msg.AvailableAt = time.Now().Add(t.Delay).UnixNano()

	k := keys{prefix: e.Prefix}
	if msg.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, k.dedup(kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return false, err
		}
		if !ok {
			QueueEnqueuedTotal.WithLabelValues(kind, "duplicate").Inc()
			return false, nil
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return false, err
	}
	if err := e.R.ZAdd(ctx, k.queue(kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err(); err != nil {
		return false, err
	}
	QueueEnqueuedTotal.WithLabelValues(kind, "new").Inc()
	return true, nil
}

// Depth returns the number of ready or delayed tasks of a kind.
func (e Enqueuer) Depth(ctx context.Context, kind string) (int64, error) {
	if e.R == nil {
		return 0, errors.New("queue: redis client not configured")
	}
	return e.R.ZCard(ctx, keys{prefix: e.Prefix}.queue(sanitizeKind(kind))).Result()
}

func sanitizeKind(kind string) string {
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		if c >= 'a' && c <= 'z' {
			continue
		}
		if c >= '0' && c <= '9' {
			continue
		}
		if c == '-' || c == '_' || c == ':' {
			continue
		}
		return ""
	}
	return kind
}

// Worker consumes tasks for a specific kind.
type Worker struct {
	R                 *redis.Client
	Prefix            string
	Kind              string
	Concurrency       int
	VisibilityTimeout time.Duration
	// SoftDeadline bounds a single handler call. Defaults to the visibility
	// timeout.
	SoftDeadline time.Duration
	Handler      func(context.Context, Task) error
	RetryBase    time.Duration
	RetryJitter  float64
	// Store receives tasks that exhausted their attempts. Nil drops them.
	Store  DLQStore
	Logger *zerolog.Logger
}

// Run starts processing tasks until the context is cancelled. Active tasks are
// tracked in a processing set to enable redelivery when workers crash.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return errors.New("queue: worker kind is required")
	}
	concurrency := max(w.Concurrency, 1)
	visibility := w.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	soft := w.SoftDeadline
	if soft <= 0 || soft > visibility {
		soft = visibility
	}
	retryBase := w.RetryBase
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}

	k := keys{prefix: w.Prefix}
	queueKey, processingKey := k.queue(kind), k.processing(kind)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	requeueTicker := time.NewTicker(time.Second)
	defer requeueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-requeueTicker.C:
			if err := w.requeueExpired(ctx, processingKey, queueKey); err != nil && ctx.Err() == nil {
				return err
			}
		default:
		}

		res, err := w.R.ZPopMin(ctx, queueKey, 1).Result()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			if errors.Is(err, redis.Nil) {
				sleepCtx(ctx, 100*time.Millisecond)
				continue
			}
			return err
		}
		if len(res) == 0 {
			sleepCtx(ctx, 50*time.Millisecond)
			continue
		}
		member, ok := res[0].Member.(string)
		if !ok {
			continue
		}
		msg, err := decodeMessage(member)
		if err != nil {
			w.logger().Warn().Err(err).Str("kind", kind).Msg("queue_message_undecodable")
			continue
		}
		now := time.Now().UnixNano()
		if msg.AvailableAt > now {
			// not due yet, push back and wait
			_ = w.R.ZAdd(ctx, queueKey, redis.Z{Score: float64(msg.AvailableAt), Member: member}).Err()
			sleepCtx(ctx, min(time.Duration(msg.AvailableAt-now), 50*time.Millisecond))
			continue
		}

		msg.Attempt++
		rawBytes, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		raw := string(rawBytes)
		deadline := time.Now().Add(visibility).UnixNano()
		if err := w.R.ZAdd(ctx, processingKey, redis.Z{Score: float64(deadline), Member: raw}).Err(); err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return err
		}
		QueueDepth.WithLabelValues(kind).Set(float64(w.R.ZCard(ctx, queueKey).Val()))

		sem <- struct{}{}
		wg.Add(1)
		go func(raw string, m taskMessage) {
			defer func() { <-sem }()
			defer wg.Done()
			jobCtx, cancel := context.WithTimeout(ctx, soft)
			started := time.Now()
			err := w.Handler(jobCtx, Task{Kind: kind, Payload: m.Payload, IdempotencyKey: m.Key, MaxAttempts: m.MaxAttempts, Attempt: m.Attempt})
			cancel()
			QueueTaskDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
			// bookkeeping must survive the shutdown of the run context
			bookCtx, bookCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer bookCancel()
			if err != nil {
				w.handleFailure(bookCtx, queueKey, processingKey, raw, m, retryBase, err)
				return
			}
			w.ack(bookCtx, processingKey, raw, m)
		}(raw, msg)
	}
}

func (w Worker) handleFailure(ctx context.Context, queueKey, processingKey, raw string, msg taskMessage, base time.Duration, cause error) {
	_ = w.R.ZRem(ctx, processingKey, raw).Err()
	log := w.logger().With().Str("kind", msg.Kind).Str("key", msg.Key).Int("attempt", msg.Attempt).Logger()

	if msg.MaxAttempts > 0 && msg.Attempt >= msg.MaxAttempts {
		QueueProcessedTotal.WithLabelValues(msg.Kind, "dead").Inc()
		if msg.Key != "" {
			_ = w.R.Del(ctx, keys{prefix: w.Prefix}.dedup(msg.Kind, msg.Key)).Err()
		}
		if w.Store == nil {
			log.Error().Err(cause).Msg("queue_task_dropped")
			return
		}
		encoded, err := json.Marshal(msg)
		if err != nil {
			return
		}
		lastErr := cause.Error()
		if _, err := w.Store.Insert(ctx, DLQEntry{
			Kind:           msg.Kind,
			IdempotencyKey: msg.Key,
			Payload:        encoded,
			Attempts:       msg.Attempt,
			LastError:      &lastErr,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			log.Error().Err(err).Msg("queue_dlq_insert_failed")
			return
		}
		if n, err := w.Store.Count(ctx, msg.Kind); err == nil {
			QueueDLQSize.WithLabelValues(msg.Kind).Set(float64(n))
		}
		log.Warn().Err(cause).Msg("queue_task_dead_lettered")
		return
	}

	QueueProcessedTotal.WithLabelValues(msg.Kind, "retry").Inc()
	delay := resilience.Backoff(base, msg.Attempt, w.RetryJitter)
	msg.AvailableAt = time.Now().Add(delay).UnixNano()
	rawBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}
	log.Debug().Err(cause).Dur("delay", delay).Msg("queue_task_retry")
	_ = w.R.ZAdd(ctx, queueKey, redis.Z{Score: float64(msg.AvailableAt), Member: string(rawBytes)}).Err()
}

func (w Worker) ack(ctx context.Context, processingKey, raw string, msg taskMessage) {
	_ = w.R.ZRem(ctx, processingKey, raw).Err()
	if msg.Key != "" {
		_ = w.R.Del(ctx, keys{prefix: w.Prefix}.dedup(msg.Kind, msg.Key)).Err()
	}
	QueueProcessedTotal.WithLabelValues(msg.Kind, "ok").Inc()
}

func (w Worker) requeueExpired(ctx context.Context, processingKey, queueKey string) error {
	now := float64(time.Now().UnixNano())
	due, err := w.R.ZRangeByScore(ctx, processingKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, raw := range due {
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		removed, err := w.R.ZRem(ctx, processingKey, raw).Result()
		if err != nil || removed == 0 {
			continue
		}
		msg.AvailableAt = time.Now().UnixNano()
		encoded, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		_ = w.R.ZAdd(ctx, queueKey, redis.Z{Score: float64(msg.AvailableAt), Member: encoded}).Err()
	}
	return nil
}

func (w Worker) logger() *zerolog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type keys struct{ prefix string }

func (k keys) base() string {
	if k.prefix == "" {
		return "queue"
	}
	return k.prefix
}

func (k keys) queue(kind string) string { return fmt.Sprintf("%s:queue:%s", k.base(), kind) }

func (k keys) processing(kind string) string {
	return fmt.Sprintf("%s:%s:processing", k.base(), kind)
}

func (k keys) dedup(kind, key string) string {
	return fmt.Sprintf("%s:dedup:%s:%s", k.base(), kind, key)
}

func decodeMessage(raw string) (taskMessage, error) {
	var msg taskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return taskMessage{}, err
	}
	return msg, nil
}

type taskMessage struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	AvailableAt int64  `json:"available_at"`
}
