// Package store provides SQLite-backed durable storage for the content grid.
//
// The store is the source of truth behind the feed:
//   - Items: grid cells addressed by (grid_column, grid_row)
//   - Item likes: one row per (item, user)
//   - Comments: top-level comments and one level of replies
//   - Comment likes: one row per (comment, user)
//
// # Ordering
//
// Column reads MUST use ORDER BY grid_row ASC, id ASC COLLATE BINARY so that
// offset cursors enumerate every item exactly once. Comment lists are ordered
// by the seq column (insertion order), never by wall-clock timestamps.
//
// Offsets are not snapshot-isolated: an insert ahead of a reader's cursor
// shifts later rows by one. This is a tolerated anomaly of offset pagination.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
