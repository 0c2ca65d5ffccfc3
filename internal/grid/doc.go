// Package grid holds the client-side assembled grid and the per-item comment
// board.
//
// The Grid is a read-through cache of the backing store keyed by
// coordinate. Pages merge into it; a repeated item overwrites data fields in
// place, never creating a second cell. Items pinned by the mutation ledger
// keep their locally adjusted like and comment counters across merges, so a
// page fetched while a toggle is in flight cannot clobber the optimistic
// view.
//
// Neither type is safe for concurrent use. Both are owned by the feed
// controller and mutated only from its event loop.
package grid
