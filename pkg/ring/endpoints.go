package ring

import "fmt"

// BaseURL is the Ring client API base
const BaseURL = "https://api.ring.com"

// devicesEndpoint returns the device listing URL
func devicesEndpoint(base string) string {
	return base + "/clients_api/ring_devices"
}

// historyEndpoint returns the history feed URL for a device. olderThan is
// the exclusive pagination cursor; empty means start from the newest events.
func historyEndpoint(base string, deviceID int64, limit int, olderThan string) string {
	url := fmt.Sprintf("%s/clients_api/doorbots/%d/history?limit=%d", base, deviceID, limit)
	if olderThan != "" {
		url += "&older_than=" + olderThan
	}
	return url
}

// recordingEndpoint returns the recording transfer URL for an event
func recordingEndpoint(base string, eventID int64) string {
	return fmt.Sprintf("%s/clients_api/dings/%d/recording", base, eventID)
}

// recordingURLEndpoint returns the recording URL with redirects disabled, so
// the response body carries the storage URL instead of a redirect
func recordingURLEndpoint(base string, eventID int64) string {
	return recordingEndpoint(base, eventID) + "?disable_redirect=true"
}
