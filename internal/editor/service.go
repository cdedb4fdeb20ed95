// Package editor keeps quote drafts for the browser editor. Every edit is a
// pure transition from package quote applied under a per-draft lock; totals
// are derived on read.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/quote-editor/internal/cache"
	"github.com/noah-isme/quote-editor/internal/lock"
	"github.com/noah-isme/quote-editor/internal/obs"
	"github.com/noah-isme/quote-editor/internal/pricing"
	"github.com/noah-isme/quote-editor/internal/queue"
	"github.com/noah-isme/quote-editor/internal/quote"
)

// Backend is the subset of the quote REST API the editor needs.
type Backend interface {
	GetQuote(ctx context.Context, id int64) (quote.Record, error)
	SaveQuote(ctx context.Context, id int64, p quote.Payload) (quote.Record, error)
	CreateOrSaveQuote(ctx context.Context, p quote.Payload) (quote.Record, error)
	RecentQuotes(ctx context.Context, limit int) ([]quote.Summary, error)
}

// Options wires a Service.
type Options struct {
	Redis   *redis.Client
	Backend Backend
	// Queue receives reprice tasks. A zero Enqueuer disables them.
	Queue     queue.Enqueuer
	Logger    zerolog.Logger
	Prefix    string
	DraftTTL  time.Duration
	LockTTL   time.Duration
	RecentTTL time.Duration
	// BackendTimeout bounds shared backend calls that outlive their caller.
	BackendTimeout time.Duration
	MemoSize       int
	Now            func() time.Time
}

// Service implements the draft operations.
type Service struct {
	store   *Store
	locker  lock.Locker
	backend Backend
	queue   queue.Enqueuer
	logger  zerolog.Logger
	lockTTL time.Duration
	timeout time.Duration
	recent  *cache.Cache
	memo    *viewMemo
	group   singleflight.Group
	now     func() time.Time
}

// NewService builds a Service.
func NewService(opts Options) *Service {
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	recentTTL := opts.RecentTTL
	if recentTTL <= 0 {
		recentTTL = 15 * time.Second
	}
	timeout := opts.BackendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   NewStore(opts.Redis, opts.Prefix, opts.DraftTTL),
		locker:  lock.Locker{R: opts.Redis, RetryBackoff: 10 * time.Millisecond, MaxWait: 2 * lockTTL},
		backend: opts.Backend,
		queue:   opts.Queue,
		logger:  opts.Logger.With().Str("component", "editor").Logger(),
		lockTTL: lockTTL,
		timeout: timeout,
		recent:  cache.New(opts.Redis, recentTTL),
		memo:    newViewMemo(opts.MemoSize),
		now:     now,
	}
}

// New starts a draft over a blank quote covering start..end.
func (s *Service) New(ctx context.Context, start, end, destination string) (View, error) {
	q, err := quote.Blank(start, end, destination)
	if err != nil {
		return View{}, err
	}
	return s.create(ctx, q, true)
}

// Open starts a draft over a quote fetched from the backend.
func (s *Service) Open(ctx context.Context, quoteID int64) (View, error) {
	if s.backend == nil {
		return View{}, errors.New("editor: backend not configured")
	}
	rec, err := s.backend.GetQuote(ctx, quoteID)
	if err != nil {
		return View{}, fmt.Errorf("fetch quote %d: %w", quoteID, err)
	}
	q, err := quote.FromRecord(rec)
	if err != nil {
		return View{}, err
	}
	return s.create(ctx, q, false)
}

func (s *Service) create(ctx context.Context, q quote.Quote, dirty bool) (View, error) {
	d := Draft{
		ID:        uuid.NewString(),
		Version:   1,
		Quote:     q,
		Dirty:     dirty,
		Trash:     []TrashedLine{},
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, d); err != nil {
		return View{}, err
	}
	s.logger.Info().Str("draft_id", d.ID).Bool("from_backend", q.ID != nil).Msg("draft_created")
	return s.view(d), nil
}

// Get returns the current view of a draft.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	d, err := s.store.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(d), nil
}

// Discard drops a draft without saving it.
func (s *Service) Discard(ctx context.Context, id string) error {
	if _, err := s.store.Load(ctx, id); err != nil {
		return err
	}
	s.memo.forget(id)
	return s.store.Delete(ctx, id)
}

// EditLine applies a raw edit to one price box of a line.
func (s *Service) EditLine(ctx context.Context, id string, expect int64, dayID, lineID string, field pricing.Field, raw any) (View, error) {
	return s.apply(ctx, id, expect, string(field), func(q quote.Quote) (quote.Quote, error) {
		return quote.ApplyLineEdit(q, dayID, lineID, field, raw)
	})
}

// SetOverride stores a typed or committed Onspot/Hassle value.
func (s *Service) SetOverride(ctx context.Context, id string, expect int64, which quote.Override, raw string, phase quote.Phase) (View, error) {
	return s.apply(ctx, id, expect, string(which)+"_manual", func(q quote.Quote) (quote.Quote, error) {
		return quote.ApplyOverride(q, which, raw, phase)
	})
}

// ClearOverride makes Onspot or Hassle track its default again.
func (s *Service) ClearOverride(ctx context.Context, id string, expect int64, which quote.Override) (View, error) {
	return s.apply(ctx, id, expect, string(which)+"_manual", func(q quote.Quote) (quote.Quote, error) {
		return quote.ClearOverride(q, which)
	})
}

// SetMargin stores the commission margin from its displayed percent text.
func (s *Service) SetMargin(ctx context.Context, id string, expect int64, text string) (View, error) {
	return s.apply(ctx, id, expect, "margin_pct", func(q quote.Quote) (quote.Quote, error) {
		return quote.SetMargin(q, text), nil
	})
}

// SetPax stores the party size.
func (s *Service) SetPax(ctx context.Context, id string, expect int64, pax int) (View, error) {
	return s.apply(ctx, id, expect, "pax", func(q quote.Quote) (quote.Quote, error) {
		return quote.SetPax(q, pax), nil
	})
}

// SetTitle stores the quote title.
func (s *Service) SetTitle(ctx context.Context, id string, expect int64, title string) (View, error) {
	return s.apply(ctx, id, expect, "title", func(q quote.Quote) (quote.Quote, error) {
		return quote.SetTitle(q, title), nil
	})
}

// SetHeader replaces the presentation header.
func (s *Service) SetHeader(ctx context.Context, id string, expect int64, h quote.Header) (View, error) {
	return s.apply(ctx, id, expect, "header", func(q quote.Quote) (quote.Quote, error) {
		return quote.SetHeader(q, h), nil
	})
}

// QuotePatch carries quote-level fields to change together. Nil members are
// left untouched.
type QuotePatch struct {
	Title  *string       `json:"title"`
	Pax    *int          `json:"pax" validate:"omitempty,gte=0"`
	Margin *string       `json:"margin"`
	Header *quote.Header `json:"header"`
}

// Patch applies several quote-level edits as one version.
func (s *Service) Patch(ctx context.Context, id string, expect int64, p QuotePatch) (View, error) {
	v, err := s.apply(ctx, id, expect, "", func(q quote.Quote) (quote.Quote, error) {
		if p.Title != nil {
			q = quote.SetTitle(q, *p.Title)
		}
		if p.Pax != nil {
			q = quote.SetPax(q, *p.Pax)
		}
		if p.Margin != nil {
			q = quote.SetMargin(q, *p.Margin)
		}
		if p.Header != nil {
			q = quote.SetHeader(q, *p.Header)
		}
		return q, nil
	})
	if err != nil {
		return View{}, err
	}
	for field, set := range map[string]bool{"title": p.Title != nil, "pax": p.Pax != nil, "margin_pct": p.Margin != nil, "header": p.Header != nil} {
		if set {
			obs.CountEdit(field)
		}
	}
	return v, nil
}

// SetDates changes the trip range and resizes the days.
func (s *Service) SetDates(ctx context.Context, id string, expect int64, start, end string) (View, error) {
	v, err := s.apply(ctx, id, expect, "dates", func(q quote.Quote) (quote.Quote, error) {
		return quote.SetDates(q, start, end)
	})
	if err == nil {
		s.scheduleReprice(ctx, v.Quote)
	}
	return v, err
}

// SetDestination sets the destination of one day.
func (s *Service) SetDestination(ctx context.Context, id string, expect int64, dayID, destination string) (View, error) {
	return s.apply(ctx, id, expect, "destination", func(q quote.Quote) (quote.Quote, error) {
		return quote.SetDestination(q, dayID, destination)
	})
}

// ApplyDestinationRange writes a destination over consecutive days.
func (s *Service) ApplyDestinationRange(ctx context.Context, id string, expect int64, r quote.DestinationRange) (View, error) {
	v, err := s.apply(ctx, id, expect, "destination_range", func(q quote.Quote) (quote.Quote, error) {
		return quote.ApplyDestinationRange(q, r)
	})
	if err == nil {
		s.scheduleReprice(ctx, v.Quote)
	}
	return v, err
}

// SetDayImages replaces the decorative images of a day.
func (s *Service) SetDayImages(ctx context.Context, id string, expect int64, dayID string, urls []string) (View, error) {
	return s.apply(ctx, id, expect, "decorative_images", func(q quote.Quote) (quote.Quote, error) {
		return quote.SetDayImages(q, dayID, urls)
	})
}

// AddLine appends an empty line, or one built from details when given.
func (s *Service) AddLine(ctx context.Context, id string, expect int64, dayID, category, title string, details json.RawMessage) (View, quote.Line, error) {
	var added quote.Line
	v, err := s.apply(ctx, id, expect, "line_add", func(q quote.Quote) (quote.Quote, error) {
		var (
			next quote.Quote
			err  error
		)
		if len(details) == 0 && title == "" {
			next, added, err = quote.AddLine(q, dayID, category)
		} else {
			next, added, err = quote.AddDetailedLine(q, dayID, category, title, details)
		}
		return next, err
	})
	return v, added, err
}

// UpdateLine patches the descriptive fields of a line.
func (s *Service) UpdateLine(ctx context.Context, id string, expect int64, dayID, lineID string, patch quote.LinePatch) (View, error) {
	return s.apply(ctx, id, expect, "line_update", func(q quote.Quote) (quote.Quote, error) {
		return quote.UpdateLine(q, dayID, lineID, patch)
	})
}

// MoveLine moves a line within or across days.
func (s *Service) MoveLine(ctx context.Context, id string, expect int64, dayID, lineID, toDayID string, index int) (View, error) {
	return s.apply(ctx, id, expect, "line_move", func(q quote.Quote) (quote.Quote, error) {
		return quote.MoveLine(q, dayID, lineID, toDayID, index)
	})
}

// RemoveLine moves a line to the draft trash.
func (s *Service) RemoveLine(ctx context.Context, id string, expect int64, dayID, lineID string) (View, error) {
	return s.update(ctx, id, expect, "line_remove", func(d *Draft) error {
		next, removed, err := quote.RemoveLine(d.Quote, dayID, lineID)
		if err != nil {
			return err
		}
		d.Quote = next
		d.Trash = append(d.Trash, TrashedLine{DayID: dayID, Line: removed, RemovedAt: s.now().UTC()})
		return nil
	})
}

// RestoreLine puts a trashed line back on its day.
func (s *Service) RestoreLine(ctx context.Context, id string, expect int64, lineID string) (View, error) {
	return s.update(ctx, id, expect, "line_restore", func(d *Draft) error {
		idx := trashIndex(d.Trash, lineID)
		if idx < 0 {
			return ErrTrashNotFound
		}
		next, err := quote.RestoreLine(d.Quote, d.Trash[idx].DayID, d.Trash[idx].Line)
		if err != nil {
			return err
		}
		d.Quote = next
		d.Trash = append(d.Trash[:idx:idx], d.Trash[idx+1:]...)
		return nil
	})
}

// PurgeLine deletes a trashed line for good.
func (s *Service) PurgeLine(ctx context.Context, id string, expect int64, lineID string) (View, error) {
	return s.update(ctx, id, expect, "line_purge", func(d *Draft) error {
		idx := trashIndex(d.Trash, lineID)
		if idx < 0 {
			return ErrTrashNotFound
		}
		d.Trash = append(d.Trash[:idx:idx], d.Trash[idx+1:]...)
		return nil
	})
}

// Save validates the draft and writes it to the backend. The backend copy
// replaces the draft quote unless the draft was edited while saving, in
// which case only the assigned id is taken over and the draft stays dirty.
func (s *Service) Save(ctx context.Context, id string, expect int64) (View, error) {
	if s.backend == nil {
		return View{}, errors.New("editor: backend not configured")
	}
	ctx, span := obs.StartDraftSpan(ctx, "save", id)
	var err error
	defer func() { obs.EndSpan(span, err) }()

	snapshot, err := s.store.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if expect > 0 && snapshot.Version != expect {
		err = ErrVersionConflict
		return View{}, err
	}
	payload := quote.ToPayload(snapshot.Quote)
	if err = payload.Validate(); err != nil {
		obs.CountSave("invalid")
		return View{}, err
	}

	var rec quote.Record
	if snapshot.Quote.ID != nil {
		rec, err = s.backend.SaveQuote(ctx, *snapshot.Quote.ID, payload)
	} else {
		rec, err = s.backend.CreateOrSaveQuote(ctx, payload)
	}
	if err != nil {
		obs.CountSave("error")
		s.logger.Warn().Err(err).Str("draft_id", id).Msg("draft_save_failed")
		return View{}, fmt.Errorf("save quote: %w", err)
	}
	saved, err := quote.FromRecord(rec)
	if err != nil {
		obs.CountSave("error")
		return View{}, err
	}

	var result Draft
	err = s.locker.WithLock(ctx, s.store.lockKey(id), s.lockTTL, func(ctx context.Context) error {
		d, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if d.Version == snapshot.Version {
			d.Quote = saved
			d.Dirty = false
		} else {
			d.Quote.ID = saved.ID
		}
		d.Version++
		d.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, d); err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return View{}, err
	}
	obs.CountSave("ok")
	view := s.view(result)
	obs.ObserveGrandTotal(view.Totals.GrandRounded)
	s.logger.Info().Str("draft_id", id).Int64("version", result.Version).Float64("grand_total", view.Totals.GrandRounded).Msg("draft_saved")
	return view, nil
}

// Recent lists recently updated quotes from the backend. Results are cached
// briefly and concurrent callers share one backend request.
func (s *Service) Recent(ctx context.Context, limit int) ([]quote.Summary, error) {
	if s.backend == nil {
		return nil, errors.New("editor: backend not configured")
	}
	limit = min(max(limit, 1), 50)
	key := s.store.recentKey(strconv.Itoa(limit))
	var items []quote.Summary
	if found, err := s.recent.GetJSON(ctx, key, &items); err == nil && found {
		return items, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiting caller, so it must not die with the first one.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		items, err := s.backend.RecentQuotes(ctx, limit)
		if err != nil {
			return nil, err
		}
		if err := s.recent.SetJSON(ctx, key, items); err != nil {
			s.logger.Warn().Err(err).Msg("recent_cache_store_failed")
		}
		return items, nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent quotes: %w", err)
	}
	return v.([]quote.Summary), nil
}

func (s *Service) apply(ctx context.Context, id string, expect int64, field string, fn func(quote.Quote) (quote.Quote, error)) (View, error) {
	return s.update(ctx, id, expect, field, func(d *Draft) error {
		next, err := fn(d.Quote)
		if err != nil {
			return err
		}
		d.Quote = next
		return nil
	})
}

// update runs fn on the stored draft under its lock and stores the result
// as the next version. fn must not keep references into the draft.
func (s *Service) update(ctx context.Context, id string, expect int64, field string, fn func(*Draft) error) (View, error) {
	op := field
	if op == "" {
		op = "patch"
	}
	ctx, span := obs.StartDraftSpan(ctx, op, id)
	var result Draft
	err := s.locker.WithLock(ctx, s.store.lockKey(id), s.lockTTL, func(ctx context.Context) error {
		d, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if expect > 0 && d.Version != expect {
			return ErrVersionConflict
		}
		if err := fn(&d); err != nil {
			return err
		}
		d.Version++
		d.Dirty = true
		d.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, d); err != nil {
			return err
		}
		result = d
		return nil
	})
	obs.EndSpan(span, err)
	if err != nil {
		return View{}, err
	}
	if field != "" {
		obs.CountEdit(field)
	}
	return s.view(result), nil
}

func (s *Service) scheduleReprice(ctx context.Context, q quote.Quote) {
	if q.ID == nil || s.queue.R == nil {
		return
	}
	added, err := queue.EnqueueReprice(ctx, s.queue, *q.ID)
	switch {
	case err != nil:
		obs.CountReprice("enqueue_failed")
		s.logger.Warn().Err(err).Int64("quote_id", *q.ID).Msg("reprice_enqueue_failed")
	case added:
		obs.CountReprice("enqueued")
	default:
		obs.CountReprice("duplicate")
	}
}

func trashIndex(trash []TrashedLine, lineID string) int {
	for i, t := range trash {
		if t.Line.ID == lineID {
			return i
		}
	}
	return -1
}
