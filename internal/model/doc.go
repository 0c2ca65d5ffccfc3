// Package model defines the grid feed data model shared by every layer.
//
// This package contains type definitions and small helpers only. All other
// internal packages import model; model imports nothing internal, so it stays
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Items are addressed by Coordinate (column, row); rows within a column are
//     totally ordered but need not be contiguous.
//   - Item and comment IDs are immutable and never reused.
//   - A comment's like count is always the size of its LikedBy set; no
//     separate counter is stored.
//   - All JSON tags use snake_case.
package model
