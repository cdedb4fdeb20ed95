package editor

import (
	"sync"

	"github.com/noah-isme/quote-editor/internal/pricing"
	"github.com/noah-isme/quote-editor/internal/quote"
)

// DestinationBlock describes a run of consecutive days sharing a destination.
type DestinationBlock struct {
	DayID       string `json:"day_id"`
	Destination string `json:"destination"`
	Nights      int    `json:"nights"`
}

// View is what the editor renders: the draft plus everything derived from it.
type View struct {
	Draft
	Totals        pricing.Summary    `json:"totals"`
	Grid          quote.Grid         `json:"grid"`
	Blocks        []DestinationBlock `json:"destination_blocks"`
	MarginDisplay string             `json:"margin_display"`
	MarginEdit    string             `json:"margin_edit"`
	GrandDisplay  string             `json:"grand_display"`
}

type derived struct {
	totals pricing.Summary
	grid   quote.Grid
	blocks []DestinationBlock
}

func derive(q quote.Quote) derived {
	totals := quote.Summarize(q)
	blocks := make([]DestinationBlock, 0, len(q.Days))
	for i, day := range q.Days {
		if day.Destination == "" || !quote.FirstOfDestinationBlock(q.Days, i) {
			continue
		}
		blocks = append(blocks, DestinationBlock{
			DayID:       day.ID,
			Destination: day.Destination,
			Nights:      quote.NightsFromIndex(q.Days, i),
		})
	}
	return derived{totals: totals, grid: quote.BuildGrid(q), blocks: blocks}
}

type memoKey struct {
	id      string
	version int64
}

// viewMemo caches derived values per draft version. Entries for older
// versions of a draft are replaced when a newer one is computed.
type viewMemo struct {
	mu      sync.Mutex
	max     int
	entries map[string]memoEntry
}

type memoEntry struct {
	version int64
	value   derived
}

func newViewMemo(max int) *viewMemo {
	if max <= 0 {
		max = 1024
	}
	return &viewMemo{max: max, entries: make(map[string]memoEntry)}
}

func (m *viewMemo) get(k memoKey, compute func() derived) derived {
	m.mu.Lock()
	if e, ok := m.entries[k.id]; ok && e.version == k.version {
		m.mu.Unlock()
		return e.value
	}
	m.mu.Unlock()

	v := compute()

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[k.id]; ok && e.version > k.version {
		return v
	}
	if _, ok := m.entries[k.id]; !ok && len(m.entries) >= m.max {
		for id := range m.entries {
			delete(m.entries, id)
			break
		}
	}
	m.entries[k.id] = memoEntry{version: k.version, value: v}
	return v
}

func (m *viewMemo) forget(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

func (s *Service) view(d Draft) View {
	dv := s.memo.get(memoKey{id: d.ID, version: d.Version}, func() derived { return derive(d.Quote) })
	if d.Trash == nil {
		d.Trash = []TrashedLine{}
	}
	margin := d.Quote.EffectiveMargin()
	return View{
		Draft:         d,
		Totals:        dv.totals,
		Grid:          dv.grid,
		Blocks:        dv.blocks,
		MarginDisplay: pricing.FormatMargin(margin),
		MarginEdit:    pricing.MarginEditBuffer(margin),
		GrandDisplay:  quote.FormatMoney("$", dv.totals.GrandRounded),
	}
}
