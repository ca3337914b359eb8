// Package storage manages the recording download directory. All writes go
// through a write-then-rename sequence so interrupted transfers never leave a
// file at the final path.
package storage
