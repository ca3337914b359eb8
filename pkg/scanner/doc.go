// Package scanner drives the full history scan. It discovers devices, pages
// each device's event feed, classifies events against the local time window,
// downloads matching recordings through a worker pool, and persists resume
// checkpoints so interrupted scans pick up where they stopped.
package scanner
