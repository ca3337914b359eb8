// Package history walks a device's remote event feed through cursor
// pagination, deduplicating events and detecting feed exhaustion.
package history

import (
	"context"

	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
)

// PageSize is the number of events requested per feed page
const PageSize = 100

// Source fetches one page of a device's history feed
type Source interface {
	FetchHistoryPage(ctx context.Context, deviceID int64, limit int, olderThan string) ([]ring.Event, error)
}

// Pager retrieves a device's history newest-first across pages. Events are
// deduplicated by id across the whole walk; events without a usable id are
// kept (they cannot collide) but never used as cursors.
type Pager struct {
	source   Source
	logger   logger.Logger
	pageSize int

	// OnPage is called after each page with the page number, how many events
	// were requested and how many arrived. Optional.
	OnPage func(page, requested, received int)
}

// NewPager creates a pager over the given feed source
func NewPager(source Source, log logger.Logger) *Pager {
	return &Pager{source: source, logger: log, pageSize: PageSize}
}

// SetPageSize overrides the per-page request size
func (p *Pager) SetPageSize(n int) {
	if n > 0 {
		p.pageSize = n
	}
}

// Fetch walks the feed until totalLimit deduplicated events are collected or
// the feed is exhausted. totalLimit <= 0 means no bound; pagination continues
// until the feed runs out. startOlderThan seeds the cursor; empty starts at
// the newest events. On a page fetch error the events collected so far are
// returned alongside the error.
func (p *Pager) Fetch(ctx context.Context, deviceID int64, totalLimit int, startOlderThan string) ([]ring.Event, error) {
	unbounded := totalLimit <= 0

	capacity := p.pageSize
	if !unbounded && totalLimit < capacity {
		capacity = totalLimit
	}
	collected := make([]ring.Event, 0, capacity)
	seen := make(map[int64]struct{}, capacity)

	cursor := startOlderThan
	page := 0

	for unbounded || len(collected) < totalLimit {
		requested := p.pageSize
		if !unbounded {
			if remaining := totalLimit - len(collected); remaining < requested {
				requested = remaining
			}
		}

		page++
		events, err := p.source.FetchHistoryPage(ctx, deviceID, requested, cursor)
		if err != nil {
			return collected, err
		}

		p.logger.DebugWithFields("history page fetched", map[string]interface{}{
			"device_id": deviceID,
			"page":      page,
			"requested": requested,
			"received":  len(events),
		})
		if p.OnPage != nil {
			p.OnPage(page, requested, len(events))
		}

		if len(events) == 0 {
			break
		}

		for _, ev := range events {
			if !unbounded && len(collected) >= totalLimit {
				break
			}
			if id, ok := ev.ID.Int64(); ok {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			} else {
				p.logger.DebugWithFields("event id unparsable", map[string]interface{}{
					"device_id": deviceID,
					"page":      page,
					"raw_id":    ev.ID.String(),
				})
			}
			collected = append(collected, ev)
		}

		if len(events) < requested {
			break
		}

		next := lastCursor(events)
		if next == "" || next == cursor {
			p.logger.WarnWithFields("pagination cursor indeterminate, stopping", map[string]interface{}{
				"device_id": deviceID,
				"page":      page,
			})
			break
		}
		cursor = next
	}

	return collected, nil
}

// lastCursor returns the id of the last id-bearing event on the page, walking
// backwards past events with unusable ids
func lastCursor(events []ring.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if _, ok := events[i].ID.Int64(); ok {
			return events[i].ID.String()
		}
	}
	return ""
}
