// Package download acquires event recordings idempotently. Existing files are
// never re-fetched or overwritten, and a failed primary transfer falls back
// to fetching the recording's storage URL directly.
package download

import (
	"context"
	"io"
	"strings"
	"time"

	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
	"ringhist/pkg/storage"
)

// Outcome is the result of a recording acquisition attempt
type Outcome int

const (
	OutcomeDownloaded Outcome = iota
	OutcomeSkippedExisting
	OutcomeSkippedNoID
	OutcomeFailed
)

// String returns the outcome name for logs and summaries
func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkippedExisting:
		return "skipped_existing"
	case OutcomeSkippedNoID:
		return "skipped_no_id"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecordingSource transfers recordings from the API
type RecordingSource interface {
	DownloadRecording(ctx context.Context, eventID int64, sink func(io.Reader) error) error
	RecordingURL(ctx context.Context, eventID int64) (string, error)
	FetchURL(ctx context.Context, url string, sink func(io.Reader) error) error
}

// Orchestrator coordinates recording acquisition against local storage
type Orchestrator struct {
	source  RecordingSource
	storage *storage.Manager
	logger  logger.Logger
}

// NewOrchestrator creates a download orchestrator
func NewOrchestrator(source RecordingSource, store *storage.Manager, log logger.Logger) *Orchestrator {
	return &Orchestrator{source: source, storage: store, logger: log}
}

// Filename builds the recording filename from the event's local time and its
// device name. An empty or fully-sanitized-away device name drops the device
// segment.
func Filename(local time.Time, deviceName string) string {
	stamp := local.Format("2006-01-02_15-04-05")
	device := sanitizeDeviceName(deviceName)
	if device == "" {
		return stamp + ".mp4"
	}
	return stamp + "_" + device + ".mp4"
}

// sanitizeDeviceName keeps letters, digits, underscores and hyphens; every
// other rune becomes an underscore. Leading and trailing underscores are
// trimmed.
func sanitizeDeviceName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// Acquire downloads the event's recording to the storage directory unless a
// file with the computed name already exists. The primary API transfer is
// tried first; on failure the storage URL is fetched directly. The returned
// path is the final file location for downloaded and skipped-existing
// outcomes.
func (o *Orchestrator) Acquire(ctx context.Context, deviceName string, ev ring.Event, local time.Time) (Outcome, string, error) {
	eventID, ok := ev.ID.Int64()
	if !ok {
		o.logger.WarnWithFields("event has no usable id, skipping download", map[string]interface{}{
			"device": deviceName,
			"raw_id": ev.ID.String(),
		})
		return OutcomeSkippedNoID, "", nil
	}

	target := o.storage.TargetPath(Filename(local, deviceName))

	if o.storage.Exists(target) {
		o.logger.DebugWithFields("recording already on disk", map[string]interface{}{
			"device":   deviceName,
			"event_id": eventID,
			"path":     target,
		})
		return OutcomeSkippedExisting, target, nil
	}

	save := func(r io.Reader) error {
		return o.storage.SaveStream(r, target)
	}

	primaryErr := o.source.DownloadRecording(ctx, eventID, save)
	if primaryErr == nil {
		logger.LogDownload(deviceName, eventID, OutcomeDownloaded.String(), nil)
		return OutcomeDownloaded, target, nil
	}

	o.logger.WarnWithFields("primary transfer failed, trying storage url", map[string]interface{}{
		"device":   deviceName,
		"event_id": eventID,
		"error":    primaryErr.Error(),
	})

	url, err := o.source.RecordingURL(ctx, eventID)
	if err != nil {
		logger.LogDownload(deviceName, eventID, OutcomeFailed.String(), err)
		return OutcomeFailed, "", primaryErr
	}

	if err := o.source.FetchURL(ctx, url, save); err != nil {
		logger.LogDownload(deviceName, eventID, OutcomeFailed.String(), err)
		return OutcomeFailed, "", err
	}

	logger.LogDownload(deviceName, eventID, OutcomeDownloaded.String(), nil)
	return OutcomeDownloaded, target, nil
}
