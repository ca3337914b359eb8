package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ringhist/internal/downloader"
	"ringhist/pkg/checkpoint"
	"ringhist/pkg/config"
	"ringhist/pkg/download"
	errs "ringhist/pkg/errors"
	"ringhist/pkg/history"
	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
	"ringhist/pkg/storage"
	"ringhist/pkg/timewindow"
)

// Hit is an event whose local time fell inside the match window
type Hit struct {
	Device   string
	EventID  string
	Kind     string
	Answered bool
	Local    time.Time
	Outcome  download.Outcome
	Path     string
	Err      error
}

// Day returns the hit's local calendar day
func (h Hit) Day() string {
	return h.Local.Format("2006-01-02")
}

// DeviceReport summarizes one device's scan
type DeviceReport struct {
	Device          ring.Device
	EventsScanned   int
	SkippedNoTime   int
	Hits            []Hit
	Downloaded      int
	SkippedExisting int
	SkippedNoID     int
	Failed          int
	Err             error
}

// Summary is the result of a full scan
type Summary struct {
	Reports   []DeviceReport
	StartedAt time.Time
	Duration  time.Duration
}

// TotalHits returns the number of window hits across all devices
func (s *Summary) TotalHits() int {
	total := 0
	for _, r := range s.Reports {
		total += len(r.Hits)
	}
	return total
}

// TotalFailed returns the number of failed downloads across all devices
func (s *Summary) TotalFailed() int {
	total := 0
	for _, r := range s.Reports {
		total += r.Failed
	}
	return total
}

// HitsByDay groups all hits by local calendar day, days sorted ascending
func (s *Summary) HitsByDay() ([]string, map[string][]Hit) {
	byDay := make(map[string][]Hit)
	for _, r := range s.Reports {
		for _, h := range r.Hits {
			byDay[h.Day()] = append(byDay[h.Day()], h)
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		sort.Slice(byDay[day], func(i, j int) bool {
			return byDay[day][i].Local.Before(byDay[day][j].Local)
		})
		days = append(days, day)
	}
	sort.Strings(days)

	return days, byDay
}

// Scanner runs the full history scan: device discovery, feed pagination,
// window classification, recording downloads, and resume checkpointing.
type Scanner struct {
	cfg        *config.Config
	session    Session
	classifier *timewindow.Classifier
	checkpoint *checkpoint.Store
	storage    *storage.Manager
	logger     logger.Logger
}

// New creates a scanner from the given configuration and API session
func New(cfg *config.Config, session Session, log logger.Logger) (*Scanner, error) {
	endHour, endMinute, err := config.ParseWindowEnd(cfg.Scan.WindowEnd)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeConfig, "invalid window end: %v", err)
	}

	classifier := timewindow.NewClassifier(
		timewindow.Window{EndHour: endHour, EndMinute: endMinute},
		cfg.Scan.Timezone,
		log,
	)

	store, err := storage.NewManager(cfg.Download.Directory)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypePersistence, "failed to prepare download directory: %v", err)
	}

	return &Scanner{
		cfg:        cfg,
		session:    session,
		classifier: classifier,
		checkpoint: checkpoint.NewStore(checkpoint.NewFileKV(cfg.Scan.StateFile), log),
		storage:    store,
		logger:     log,
	}, nil
}

// ResetCheckpoints discards all persisted resume state
func (s *Scanner) ResetCheckpoints() error {
	return s.checkpoint.Reset()
}

// Run scans every device on the account. With resume set, each device starts
// from its persisted cursor; otherwise the scan starts at the newest events.
// Download failures are reported in the summary, not as errors; only failures
// that prevent scanning (device listing, all-device feed errors) return one.
func (s *Scanner) Run(ctx context.Context, resume bool) (*Summary, error) {
	start := time.Now()

	devices, err := s.session.FetchDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		s.logger.Warn("no history-capable devices on account")
		return &Summary{StartedAt: start, Duration: time.Since(start)}, nil
	}

	state := s.checkpoint.Load()
	summary := &Summary{StartedAt: start}

	for _, device := range devices {
		report := s.scanDevice(ctx, device, state, resume)
		summary.Reports = append(summary.Reports, report)

		if ctx.Err() != nil {
			break
		}
	}

	if err := s.checkpoint.Save(state); err != nil {
		s.logger.WithError(err).Error("failed to persist resume state")
	} else {
		logger.LogCheckpointSaved(s.cfg.Scan.StateFile, len(state))
	}

	summary.Duration = time.Since(start)

	// The scan failed outright only if every device errored
	failed := 0
	for _, r := range summary.Reports {
		if r.Err != nil {
			failed++
		}
	}
	if failed == len(summary.Reports) && failed > 0 {
		return summary, summary.Reports[0].Err
	}

	return summary, nil
}

// scanDevice walks one device's feed and downloads window hits
func (s *Scanner) scanDevice(ctx context.Context, device ring.Device, state checkpoint.State, resume bool) DeviceReport {
	report := DeviceReport{Device: device}
	log := s.logger.WithField("device", device.Name())

	startCursor := ""
	if resume {
		if cp, ok := state[device.Key()]; ok {
			if _, valid := cp.OlderThanID.Int64(); valid {
				startCursor = string(cp.OlderThanID)
				log.InfoWithFields("resuming from checkpoint", map[string]interface{}{
					"older_than": startCursor,
				})
			} else if cp.OlderThanID != "" {
				log.WarnWithFields("resume cursor unparsable, starting from newest", map[string]interface{}{
					"older_than": string(cp.OlderThanID),
				})
			}
		}
	}

	pager := history.NewPager(s.session, log)
	events, pageErr := pager.Fetch(ctx, device.ID, s.cfg.Scan.HistoryLimit, startCursor)
	if pageErr != nil {
		log.WithError(pageErr).Error("history fetch incomplete")
		report.Err = pageErr
	}
	report.EventsScanned = len(events)

	hits := s.classifyEvents(events, device, &report, log)
	s.downloadHits(ctx, device, hits, &report)
	s.updateCheckpoint(events, device, state, log)

	log.InfoWithFields("device scan finished", map[string]interface{}{
		"events_scanned": report.EventsScanned,
		"hits":           len(report.Hits),
		"downloaded":     report.Downloaded,
		"failed":         report.Failed,
	})

	return report
}

// pendingHit pairs a window hit with its source event for downloading
type pendingHit struct {
	event ring.Event
	hit   Hit
}

// classifyEvents filters events to window hits
func (s *Scanner) classifyEvents(events []ring.Event, device ring.Device, report *DeviceReport, log logger.Logger) []pendingHit {
	var hits []pendingHit
	for _, ev := range events {
		local, inWindow, err := s.classifier.Classify(ev.CreatedAt)
		if err != nil {
			report.SkippedNoTime++
			log.DebugWithFields("event skipped, no usable timestamp", map[string]interface{}{
				"event_id": ev.ID.String(),
				"error":    err.Error(),
			})
			continue
		}
		if !inWindow {
			continue
		}

		hits = append(hits, pendingHit{
			event: ev,
			hit: Hit{
				Device:   device.Name(),
				EventID:  ev.ID.String(),
				Kind:     ev.Kind,
				Answered: ev.Answered,
				Local:    local,
			},
		})
	}
	return hits
}

// downloadHits acquires recordings for the hits through a worker pool and
// records per-outcome counts in the report. Hits without a usable id never
// reach the pool; id-bearing hits are unique after feed deduplication, so
// results match back by id.
func (s *Scanner) downloadHits(ctx context.Context, device ring.Device, hits []pendingHit, report *DeviceReport) {
	if len(hits) == 0 {
		return
	}

	orchestrator := download.NewOrchestrator(s.session, s.storage, s.logger)
	pool := downloader.NewWorkerPool(s.cfg.Download.ConcurrentDownloads, orchestrator, s.logger)

	// The map is fully built before workers start, so the result goroutine
	// only ever reads it
	hitByID := make(map[string]Hit, len(hits))
	for _, p := range hits {
		if _, ok := p.event.ID.Int64(); ok {
			hitByID[p.hit.EventID] = p.hit
		}
	}

	pool.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range pool.Results() {
			hit := hitByID[result.Job.Event.ID.String()]
			hit.Outcome = result.Outcome
			hit.Path = result.Path
			hit.Err = result.Error

			switch result.Outcome {
			case download.OutcomeDownloaded:
				report.Downloaded++
			case download.OutcomeSkippedExisting:
				report.SkippedExisting++
			case download.OutcomeFailed:
				report.Failed++
			}

			report.Hits = append(report.Hits, hit)
		}
	}()

	// Hits handled outside the pool are appended only after the result
	// goroutine finishes, so the report is never written concurrently
	var unsubmitted []Hit

	for _, p := range hits {
		if _, ok := p.event.ID.Int64(); !ok {
			p.hit.Outcome = download.OutcomeSkippedNoID
			unsubmitted = append(unsubmitted, p.hit)
			continue
		}

		if err := pool.Submit(downloader.DownloadJob{
			Device: device.Name(),
			Event:  p.event,
			Local:  p.hit.Local,
		}); err != nil {
			p.hit.Outcome = download.OutcomeFailed
			p.hit.Err = err
			unsubmitted = append(unsubmitted, p.hit)
		}
	}

	pool.Stop()
	<-done

	for _, hit := range unsubmitted {
		switch hit.Outcome {
		case download.OutcomeSkippedNoID:
			report.SkippedNoID++
		case download.OutcomeFailed:
			report.Failed++
		}
		report.Hits = append(report.Hits, hit)
	}

	if ctx.Err() != nil {
		s.logger.Warn("scan interrupted during downloads")
	}
}

// updateCheckpoint records the oldest id-bearing event as the device's resume
// cursor. Devices whose scan saw no usable ids keep their previous cursor.
func (s *Scanner) updateCheckpoint(events []ring.Event, device ring.Device, state checkpoint.State, log logger.Logger) {
	var oldestID int64
	var oldestTS ring.Timestamp
	found := false

	for _, ev := range events {
		id, ok := ev.ID.Int64()
		if !ok {
			continue
		}
		if !found || id < oldestID {
			oldestID = id
			oldestTS = ev.CreatedAt
			found = true
		}
	}

	if !found {
		return
	}

	cp := checkpoint.Checkpoint{
		OlderThanID: checkpoint.CursorID(fmt.Sprintf("%d", oldestID)),
		LastRunUTC:  time.Now().UTC().Format(time.RFC3339),
	}

	if utc, err := oldestTS.UTC(); err == nil {
		cp.OldestTimestampUTC = utc.Format(time.RFC3339)
		cp.OldestTimestampLoc = utc.In(s.classifier.Zone()).Format(time.RFC3339)
	}

	state[device.Key()] = cp
	log.DebugWithFields("checkpoint updated", map[string]interface{}{
		"older_than": string(cp.OlderThanID),
	})
}
