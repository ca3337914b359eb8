// Package timewindow classifies event instants against a local time-of-day
// window. Events are compared in a configured IANA zone so the window tracks
// local wall-clock time across DST transitions.
package timewindow

import (
	"fmt"
	"time"

	errs "ringhist/pkg/errors"
	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
)

// Window is a time-of-day interval from midnight to an inclusive end, with
// second precision. An event at exactly the end boundary matches; one second
// later does not.
type Window struct {
	EndHour   int
	EndMinute int
}

// Contains reports whether the local wall-clock time of t falls within the
// window
func (w Window) Contains(t time.Time) bool {
	eventSeconds := t.Hour()*3600 + t.Minute()*60 + t.Second()
	endSeconds := w.EndHour*3600 + w.EndMinute*60
	return eventSeconds <= endSeconds
}

// String renders the window for display
func (w Window) String() string {
	return fmt.Sprintf("00:00-%02d:%02d", w.EndHour, w.EndMinute)
}

// Classifier converts event timestamps to a configured local zone and tests
// them against a window
type Classifier struct {
	window Window
	zone   *time.Location
}

// NewClassifier creates a classifier for the given window and IANA zone name.
// An unset zone or one that cannot be loaded falls back to the host's local
// zone with a single warning; classification still proceeds.
func NewClassifier(window Window, zoneName string, log logger.Logger) *Classifier {
	zone := time.Local
	if zoneName == "" {
		log.Warn("no timezone configured, using host local zone")
	} else if loaded, err := time.LoadLocation(zoneName); err != nil {
		log.WarnWithFields("timezone unavailable, falling back to host local zone", map[string]interface{}{
			"timezone": zoneName,
			"error":    err.Error(),
		})
	} else {
		zone = loaded
	}

	return &Classifier{window: window, zone: zone}
}

// Zone returns the zone events are classified in
func (c *Classifier) Zone() *time.Location {
	return c.zone
}

// Window returns the configured window
func (c *Classifier) Window() Window {
	return c.window
}

// Classify resolves the event timestamp to the local zone and reports whether
// it falls inside the window. The returned local time is valid whenever err
// is nil.
func (c *Classifier) Classify(ts ring.Timestamp) (time.Time, bool, error) {
	utc, err := ts.UTC()
	if err != nil {
		return time.Time{}, false, err
	}

	local := utc.In(c.zone)
	return local, c.window.Contains(local), nil
}

// ParseZone validates an IANA zone name up front
func ParseZone(name string) (*time.Location, error) {
	zone, err := time.LoadLocation(name)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeConfig, "unknown timezone %q", name)
	}
	return zone, nil
}
