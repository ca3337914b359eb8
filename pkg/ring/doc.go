// Package ring implements the Ring API client: device listing, the
// cursor-paginated history feed, and recording transfers. Feed payloads are
// tolerant of schema drift; event ids and timestamps are decoded through
// flexible types that preserve malformed values for diagnostics instead of
// failing the whole page.
package ring
