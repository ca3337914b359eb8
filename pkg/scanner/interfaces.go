package scanner

import (
	"context"
	"io"

	"ringhist/pkg/ring"
)

// Session is the API surface the scanner needs. *ring.Client satisfies it;
// tests substitute fakes.
type Session interface {
	FetchDevices(ctx context.Context) ([]ring.Device, error)
	FetchHistoryPage(ctx context.Context, deviceID int64, limit int, olderThan string) ([]ring.Event, error)
	DownloadRecording(ctx context.Context, eventID int64, sink func(io.Reader) error) error
	RecordingURL(ctx context.Context, eventID int64) (string, error)
	FetchURL(ctx context.Context, url string, sink func(io.Reader) error) error
}
