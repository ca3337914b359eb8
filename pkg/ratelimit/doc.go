// Package ratelimit paces outbound Ring API calls so long history scans do
// not trip server-side throttling.
package ratelimit
