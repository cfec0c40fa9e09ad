// Package storage is the byte-oriented persistence boundary for schedule
// snapshots.
//
// A Store keeps exactly one blob: Save replaces it, Load returns it or
// ErrNotFound when nothing was saved yet. Drivers:
//   - file: a single file written atomically (tmp + rename) through afero
//   - sqlite: one row per key in a SQLite database
package storage
