package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "ringhist/pkg/errors"
	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
)

// fakeFeed serves canned pages keyed by cursor, ignoring the requested limit
// the way a server with fixed page contents would
type fakeFeed struct {
	pages    map[string][]ring.Event
	cursors  []string
	requests int
	failOn   int
}

func (f *fakeFeed) FetchHistoryPage(ctx context.Context, deviceID int64, limit int, olderThan string) ([]ring.Event, error) {
	f.requests++
	f.cursors = append(f.cursors, olderThan)
	if f.failOn > 0 && f.requests == f.failOn {
		return nil, errs.New(errs.ErrorTypeServerError, "feed unavailable")
	}
	return f.pages[olderThan], nil
}

func makeEvents(ids ...int64) []ring.Event {
	events := make([]ring.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, ring.Event{
			ID:        ring.NewEventID(id),
			Kind:      "motion",
			CreatedAt: ring.NewTimestamp(time.Date(2024, 1, 30, 1, 0, 0, 0, time.UTC)),
		})
	}
	return events
}

func collectIDs(t *testing.T, events []ring.Event) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		id, ok := ev.ID.Int64()
		require.True(t, ok)
		ids = append(ids, id)
	}
	return ids
}

func TestFetchWalksCursors(t *testing.T) {
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"":   makeEvents(50, 49, 48),
		"48": makeEvents(47, 46),
		"46": {},
	}}

	pager := NewPager(feed, logger.NewNopLogger())
	pager.SetPageSize(2)
	events, err := pager.Fetch(context.Background(), 11, 1000, "")
	require.NoError(t, err)

	assert.Equal(t, []int64{50, 49, 48, 47, 46}, collectIDs(t, events))
	assert.Equal(t, []string{"", "48", "46"}, feed.cursors)
	assert.Equal(t, 3, feed.requests)
}

func TestFetchDeduplicatesAcrossPages(t *testing.T) {
	// Page boundary overlap: 48 appears on both pages
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"":   makeEvents(50, 49, 48),
		"48": makeEvents(48, 47, 46),
		"46": {},
	}}

	pager := NewPager(feed, logger.NewNopLogger())
	pager.SetPageSize(2)
	events, err := pager.Fetch(context.Background(), 11, 1000, "")
	require.NoError(t, err)

	assert.Equal(t, []int64{50, 49, 48, 47, 46}, collectIDs(t, events))
}

func TestFetchStopsAtLimit(t *testing.T) {
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"":   makeEvents(50, 49, 48),
		"48": makeEvents(47, 46),
	}}

	pager := NewPager(feed, logger.NewNopLogger())
	pager.SetPageSize(2)
	events, err := pager.Fetch(context.Background(), 11, 4, "")
	require.NoError(t, err)

	assert.Equal(t, []int64{50, 49, 48, 47}, collectIDs(t, events))
}

func TestFetchZeroLimitPagesUntilExhaustion(t *testing.T) {
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"":   makeEvents(50, 49),
		"49": makeEvents(48, 47),
		"47": {},
	}}

	pager := NewPager(feed, logger.NewNopLogger())
	pager.SetPageSize(2)
	events, err := pager.Fetch(context.Background(), 11, 0, "")
	require.NoError(t, err)

	assert.Equal(t, []int64{50, 49, 48, 47}, collectIDs(t, events))
	assert.Equal(t, 3, feed.requests)
}

func TestFetchNegativeLimitIsUnbounded(t *testing.T) {
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"": makeEvents(50, 49),
	}}

	pager := NewPager(feed, logger.NewNopLogger())

	var events []ring.Event
	var err error
	assert.NotPanics(t, func() {
		events, err = pager.Fetch(context.Background(), 11, -1, "")
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 49}, collectIDs(t, events))
}

func TestFetchResumeCursorSeedsFirstRequest(t *testing.T) {
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"100": makeEvents(99, 98),
		"98":  {},
	}}

	pager := NewPager(feed, logger.NewNopLogger())
	pager.SetPageSize(2)
	events, err := pager.Fetch(context.Background(), 11, 1000, "100")
	require.NoError(t, err)

	assert.Equal(t, "100", feed.cursors[0])
	for _, id := range collectIDs(t, events) {
		assert.Less(t, id, int64(100))
	}
}

func TestFetchShortPageEndsWalk(t *testing.T) {
	// A page smaller than requested means the feed is exhausted
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"": makeEvents(50, 49),
	}}

	pager := NewPager(feed, logger.NewNopLogger())
	events, err := pager.Fetch(context.Background(), 11, 1000, "")
	require.NoError(t, err)

	assert.Len(t, events, 2)
	assert.Equal(t, 1, feed.requests)
}

func TestFetchStuckCursorStops(t *testing.T) {
	// PageSize full pages whose last id never advances would loop forever
	// without the cursor check
	stuck := makeEvents(50)
	for len(stuck) < PageSize {
		stuck = append(stuck, ring.Event{Kind: "motion"})
	}
	// Move the id-bearing event to the end so it is the cursor
	stuck[0], stuck[PageSize-1] = stuck[PageSize-1], stuck[0]

	feed := &fakeFeed{pages: map[string][]ring.Event{
		"":   stuck,
		"50": stuck,
	}}

	pager := NewPager(feed, logger.NewNopLogger())
	_, err := pager.Fetch(context.Background(), 11, 10000, "")
	require.NoError(t, err)
	assert.Equal(t, 2, feed.requests)
}

func TestFetchReturnsPartialOnError(t *testing.T) {
	// PageSize-sized first page keeps the walk going into the failing fetch
	full := makeEvents()
	for id := int64(50 + PageSize - 1); id >= 50; id-- {
		full = append(full, makeEvents(id)...)
	}
	feed := &fakeFeed{
		pages:  map[string][]ring.Event{"": full},
		failOn: 2,
	}

	pager := NewPager(feed, logger.NewNopLogger())
	events, err := pager.Fetch(context.Background(), 11, 10000, "")
	require.Error(t, err)
	assert.Len(t, events, PageSize)
}

func TestFetchKeepsEventsWithoutIDs(t *testing.T) {
	page := makeEvents(50, 49)
	page = append(page, ring.Event{Kind: "motion"})

	feed := &fakeFeed{pages: map[string][]ring.Event{"": page}}

	log := logger.NewTestLogger()
	pager := NewPager(feed, log)
	events, err := pager.Fetch(context.Background(), 11, 1000, "")
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.True(t, log.HasMessage("event id unparsable"))
}

func TestFetchOnPageHook(t *testing.T) {
	feed := &fakeFeed{pages: map[string][]ring.Event{
		"": makeEvents(50, 49),
	}}

	var pages []int
	pager := NewPager(feed, logger.NewNopLogger())
	pager.OnPage = func(page, requested, received int) {
		pages = append(pages, page)
		assert.Equal(t, 2, received)
	}

	_, err := pager.Fetch(context.Background(), 11, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, pages)
}
