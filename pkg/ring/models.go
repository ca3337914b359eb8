package ring

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	errs "ringhist/pkg/errors"
)

// Device is a Ring device capable of producing history events
type Device struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	DeviceID    string `json:"device_id"`
}

// Name returns the human-readable device name
func (d Device) Name() string {
	return d.Description
}

// Key returns the stable identifier used to key checkpoint state
func (d Device) Key() string {
	return strconv.FormatInt(d.ID, 10)
}

// DevicesResponse is the device listing returned by the API
type DevicesResponse struct {
	Doorbots           []Device `json:"doorbots"`
	AuthorizedDoorbots []Device `json:"authorized_doorbots"`
	StickupCams        []Device `json:"stickup_cams"`
}

// All returns every history-capable device in the response
func (r DevicesResponse) All() []Device {
	devices := make([]Device, 0, len(r.Doorbots)+len(r.AuthorizedDoorbots)+len(r.StickupCams))
	devices = append(devices, r.Doorbots...)
	devices = append(devices, r.AuthorizedDoorbots...)
	devices = append(devices, r.StickupCams...)
	return devices
}

// Event is one remote history record
type Event struct {
	ID        EventID   `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt Timestamp `json:"created_at"`
	Answered  bool      `json:"answered"`
	Recording Recording `json:"recording"`
}

// Recording carries the recording availability state of an event
type Recording struct {
	Status string `json:"status"`
}

// EventID is a history event identifier. The feed serialises ids as JSON
// numbers or digit strings; anything else is preserved raw and reported as
// invalid so callers can drop the event with a diagnostic.
type EventID struct {
	raw   string
	value int64
	valid bool
}

// NewEventID creates a valid EventID from an integer
func NewEventID(v int64) EventID {
	return EventID{raw: strconv.FormatInt(v, 10), value: v, valid: true}
}

// Int64 returns the integer id and whether it could be parsed
func (id EventID) Int64() (int64, bool) {
	return id.value, id.valid
}

// String returns the raw id as received from the feed
func (id EventID) String() string {
	return id.raw
}

// UnmarshalJSON accepts either a JSON number or a digit string
func (id *EventID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*id = EventID{}
		return nil
	}

	raw := string(trimmed)
	if trimmed[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			*id = EventID{raw: raw}
			return nil
		}
		raw = unquoted
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*id = EventID{raw: raw}
		return nil
	}

	*id = EventID{raw: raw, value: value, valid: true}
	return nil
}

// MarshalJSON writes a valid id as a number and preserves invalid raw text
func (id EventID) MarshalJSON() ([]byte, error) {
	if id.valid {
		return []byte(strconv.FormatInt(id.value, 10)), nil
	}
	return []byte(strconv.Quote(id.raw)), nil
}

// timestampKind tags the source representation of a Timestamp
type timestampKind int

const (
	timestampAbsent timestampKind = iota
	timestampInstant
	timestampEpoch
	timestampText
	timestampInvalid
)

// Timestamp is an event creation time of unknown source representation: an
// absolute instant, numeric epoch seconds, or ISO-8601 text. UTC resolves it
// to an absolute instant or a typed parse error.
type Timestamp struct {
	kind    timestampKind
	instant time.Time
	epoch   float64
	text    string
}

// NewTimestamp creates a Timestamp from an absolute instant
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{kind: timestampInstant, instant: t}
}

// EpochTimestamp creates a Timestamp from epoch seconds
func EpochTimestamp(sec float64) Timestamp {
	return Timestamp{kind: timestampEpoch, epoch: sec}
}

// TextTimestamp creates a Timestamp from ISO-8601 text
func TextTimestamp(s string) Timestamp {
	return Timestamp{kind: timestampText, text: s}
}

// IsZero reports whether no timestamp value is present
func (ts Timestamp) IsZero() bool {
	return ts.kind == timestampAbsent
}

// UnmarshalJSON accepts a JSON number (epoch seconds) or an ISO-8601 string
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*ts = Timestamp{}
		return nil
	}

	if trimmed[0] == '"' {
		text, err := strconv.Unquote(string(trimmed))
		if err != nil {
			*ts = Timestamp{kind: timestampInvalid, text: string(trimmed)}
			return nil
		}
		*ts = Timestamp{kind: timestampText, text: text}
		return nil
	}

	epoch, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		*ts = Timestamp{kind: timestampInvalid, text: string(trimmed)}
		return nil
	}
	*ts = Timestamp{kind: timestampEpoch, epoch: epoch}
	return nil
}

// MarshalJSON writes the timestamp back in its source representation
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	switch ts.kind {
	case timestampInstant:
		return []byte(strconv.Quote(ts.instant.Format(time.RFC3339Nano))), nil
	case timestampEpoch:
		return []byte(strconv.FormatFloat(ts.epoch, 'f', -1, 64)), nil
	case timestampText:
		return []byte(strconv.Quote(ts.text)), nil
	default:
		return []byte("null"), nil
	}
}

// Layouts tried for ISO-8601 text without an explicit offset. Values parsed
// with these are treated as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UTC normalizes the timestamp to an absolute UTC instant. Normalization
// order: absolute-instant passthrough, epoch seconds as UTC, then ISO-8601
// text where a literal Z means +00:00 and a missing offset means UTC.
func (ts Timestamp) UTC() (time.Time, error) {
	switch ts.kind {
	case timestampInstant:
		return ts.instant.UTC(), nil
	case timestampEpoch:
		sec, frac := int64(ts.epoch), ts.epoch-float64(int64(ts.epoch))
		return time.Unix(sec, int64(frac*float64(time.Second))).UTC(), nil
	case timestampText:
		if t, err := time.Parse(time.RFC3339Nano, ts.text); err == nil {
			return t.UTC(), nil
		}
		for _, layout := range naiveLayouts {
			if t, err := time.Parse(layout, ts.text); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, errs.Newf(errs.ErrorTypeParsing, "unparsable timestamp %q", ts.text)
	default:
		return time.Time{}, errs.New(errs.ErrorTypeParsing, "missing or malformed timestamp")
	}
}

// RecordingURLResponse is the payload returned when a recording URL is
// requested with redirects disabled
type RecordingURLResponse struct {
	URL string `json:"url"`
}

// String renders an event for diagnostics
func (e Event) String() string {
	var b strings.Builder
	b.WriteString("event ")
	b.WriteString(e.ID.String())
	if e.Kind != "" {
		b.WriteString(" (")
		b.WriteString(e.Kind)
		b.WriteString(")")
	}
	return b.String()
}
