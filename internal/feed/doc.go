// Package feed is the root of the client core: the Controller owns the
// assembled grid, the comment board, the mutation ledger, per-column cursor
// state and the scroll controller of each column.
//
// Nothing outside the Controller holds a reference to that state. All
// access goes through its methods, and all methods (plus the completions
// its Dispatcher delivers) must run on one event loop. Runner wraps a
// Controller and an eventloop.Loop for callers that want to block on an
// operation.
//
// Page fetches are serialized per column: the fetch for cursor N+1 is never
// issued before the page for cursor N has merged, and a failed fetch leaves
// the cursor where it was. Rendering order within a column always follows
// rows because the grid is keyed by coordinate.
//
// Rows appended to a column after it has looped are not spliced into the
// running loop. They take effect when the column is re-entered or reloaded,
// which builds a fresh scroll controller over the new length.
package feed
