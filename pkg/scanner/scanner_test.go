package scanner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringhist/pkg/checkpoint"
	"ringhist/pkg/config"
	"ringhist/pkg/download"
	errs "ringhist/pkg/errors"
	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
)

// fakeSession serves canned devices and feed pages and records requests
type fakeSession struct {
	mu         sync.Mutex
	devices    []ring.Device
	devicesErr error
	feeds      map[int64]map[string][]ring.Event
	cursors    map[int64][]string
	feedErr    error
	recordErr  error
	downloads  []int64
}

func (f *fakeSession) FetchDevices(ctx context.Context) ([]ring.Device, error) {
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	return f.devices, nil
}

func (f *fakeSession) FetchHistoryPage(ctx context.Context, deviceID int64, limit int, olderThan string) ([]ring.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cursors == nil {
		f.cursors = make(map[int64][]string)
	}
	f.cursors[deviceID] = append(f.cursors[deviceID], olderThan)

	if f.feedErr != nil {
		return nil, f.feedErr
	}
	return f.feeds[deviceID][olderThan], nil
}

func (f *fakeSession) DownloadRecording(ctx context.Context, eventID int64, sink func(io.Reader) error) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, eventID)
	f.mu.Unlock()

	if f.recordErr != nil {
		return f.recordErr
	}
	return sink(strings.NewReader("video-bytes"))
}

func (f *fakeSession) RecordingURL(ctx context.Context, eventID int64) (string, error) {
	return "", errs.New(errs.ErrorTypeNotFound, "no recording url")
}

func (f *fakeSession) FetchURL(ctx context.Context, url string, sink func(io.Reader) error) error {
	return errs.New(errs.ErrorTypeNetwork, "unreachable")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Scan.Timezone = "UTC"
	cfg.Scan.StateFile = filepath.Join(dir, "state.json")
	cfg.Download.Directory = filepath.Join(dir, "videos")
	return cfg
}

func eventAt(id int64, hour, minute int) ring.Event {
	return ring.Event{
		ID:        ring.NewEventID(id),
		Kind:      "motion",
		CreatedAt: ring.NewTimestamp(time.Date(2024, 1, 30, hour, minute, 0, 0, time.UTC)),
	}
}

func TestRunDownloadsWindowHits(t *testing.T) {
	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {
				eventAt(50, 3, 15),  // inside window
				eventAt(49, 12, 0),  // outside
				eventAt(48, 5, 30),  // boundary, inside
				eventAt(47, 23, 59), // outside
			}},
		},
	}

	scanner, err := New(testConfig(t), session, logger.NewNopLogger())
	require.NoError(t, err)

	summary, err := scanner.Run(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, summary.Reports, 1)

	report := summary.Reports[0]
	assert.Equal(t, 4, report.EventsScanned)
	assert.Len(t, report.Hits, 2)
	assert.Equal(t, 2, report.Downloaded)
	assert.ElementsMatch(t, []int64{50, 48}, session.downloads)
}

func TestRunWritesCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {eventAt(50, 12, 0), eventAt(48, 13, 0), eventAt(49, 14, 0)}},
		},
	}

	scanner, err := New(cfg, session, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = scanner.Run(context.Background(), false)
	require.NoError(t, err)

	store := checkpoint.NewStore(checkpoint.NewFileKV(cfg.Scan.StateFile), logger.NewNopLogger())
	state := store.Load()
	require.Contains(t, state, "11")
	assert.Equal(t, checkpoint.CursorID("48"), state["11"].OlderThanID)
	assert.NotEmpty(t, state["11"].LastRunUTC)
}

func TestRunResumeSeedsCursor(t *testing.T) {
	cfg := testConfig(t)

	store := checkpoint.NewStore(checkpoint.NewFileKV(cfg.Scan.StateFile), logger.NewNopLogger())
	require.NoError(t, store.Save(checkpoint.State{
		"11": {OlderThanID: "100"},
	}))

	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"100": {eventAt(99, 12, 0)}},
		},
	}

	scanner, err := New(cfg, session, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = scanner.Run(context.Background(), true)
	require.NoError(t, err)

	require.NotEmpty(t, session.cursors[11])
	assert.Equal(t, "100", session.cursors[11][0])
}

func TestRunResumeIgnoresUnparsableCursor(t *testing.T) {
	cfg := testConfig(t)

	store := checkpoint.NewStore(checkpoint.NewFileKV(cfg.Scan.StateFile), logger.NewNopLogger())
	require.NoError(t, store.Save(checkpoint.State{
		"11": {OlderThanID: "not-a-number"},
	}))

	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {eventAt(99, 12, 0)}},
		},
	}

	scanner, err := New(cfg, session, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = scanner.Run(context.Background(), true)
	require.NoError(t, err)

	// The broken cursor never reaches the API; the scan starts from newest
	require.NotEmpty(t, session.cursors[11])
	assert.Equal(t, "", session.cursors[11][0])
}

func TestRunWithoutResumeIgnoresCheckpoint(t *testing.T) {
	cfg := testConfig(t)

	store := checkpoint.NewStore(checkpoint.NewFileKV(cfg.Scan.StateFile), logger.NewNopLogger())
	require.NoError(t, store.Save(checkpoint.State{
		"11": {OlderThanID: "100"},
	}))

	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {eventAt(99, 12, 0)}},
		},
	}

	scanner, err := New(cfg, session, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = scanner.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, "", session.cursors[11][0])
}

func TestRunNoIDEventsNeverCheckpointed(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {{Kind: "motion", CreatedAt: ring.NewTimestamp(time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC))}}},
		},
	}

	scanner, err := New(cfg, session, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = scanner.Run(context.Background(), false)
	require.NoError(t, err)

	store := checkpoint.NewStore(checkpoint.NewFileKV(cfg.Scan.StateFile), logger.NewNopLogger())
	assert.NotContains(t, store.Load(), "11")
}

func TestRunDownloadFailuresDoNotFailScan(t *testing.T) {
	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {eventAt(50, 3, 15)}},
		},
		recordErr: errs.New(errs.ErrorTypeServerError, "transfer failed"),
	}

	scanner, err := New(testConfig(t), session, logger.NewNopLogger())
	require.NoError(t, err)

	summary, err := scanner.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalFailed())
}

func TestRunSkipsExistingRecordings(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Download.Directory, 0755))

	existing := filepath.Join(cfg.Download.Directory, "2024-01-30_03-15-00_Front_Door.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0644))

	session := &fakeSession{
		devices: []ring.Device{{ID: 11, Description: "Front Door"}},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {eventAt(50, 3, 15)}},
		},
	}

	scanner, err := New(cfg, session, logger.NewNopLogger())
	require.NoError(t, err)

	summary, err := scanner.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reports[0].SkippedExisting)
	assert.Empty(t, session.downloads)
}

func TestRunMultipleDevices(t *testing.T) {
	session := &fakeSession{
		devices: []ring.Device{
			{ID: 11, Description: "Front Door"},
			{ID: 22, Description: "Garden Cam"},
		},
		feeds: map[int64]map[string][]ring.Event{
			11: {"": {eventAt(50, 3, 15)}},
			22: {"": {eventAt(70, 4, 0), eventAt(69, 22, 0)}},
		},
	}

	scanner, err := New(testConfig(t), session, logger.NewNopLogger())
	require.NoError(t, err)

	summary, err := scanner.Run(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, summary.Reports, 2)
	assert.Equal(t, 2, summary.TotalHits())
}

func TestRunDeviceListingErrorFails(t *testing.T) {
	session := &fakeSession{
		devicesErr: errs.New(errs.ErrorTypeAuth, "session expired"),
	}

	scanner, err := New(testConfig(t), session, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = scanner.Run(context.Background(), false)
	assert.Error(t, err)
}

func TestRunNoDevices(t *testing.T) {
	scanner, err := New(testConfig(t), &fakeSession{}, logger.NewNopLogger())
	require.NoError(t, err)

	summary, err := scanner.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, summary.Reports)
}

func TestHitsByDayGroupsAndSorts(t *testing.T) {
	summary := &Summary{Reports: []DeviceReport{
		{Hits: []Hit{
			{Device: "A", Local: time.Date(2024, 1, 31, 2, 0, 0, 0, time.UTC), Outcome: download.OutcomeDownloaded},
			{Device: "A", Local: time.Date(2024, 1, 30, 4, 0, 0, 0, time.UTC), Outcome: download.OutcomeDownloaded},
		}},
		{Hits: []Hit{
			{Device: "B", Local: time.Date(2024, 1, 30, 1, 0, 0, 0, time.UTC), Outcome: download.OutcomeDownloaded},
		}},
	}}

	days, byDay := summary.HitsByDay()
	require.Equal(t, []string{"2024-01-30", "2024-01-31"}, days)
	require.Len(t, byDay["2024-01-30"], 2)
	assert.Equal(t, "B", byDay["2024-01-30"][0].Device)
	assert.Equal(t, "A", byDay["2024-01-30"][1].Device)
}
