// Package ledger applies user mutations optimistically and reconciles them
// with the server.
//
// Every mutation follows one shape: apply a tentative change to the
// assembled state at once, dispatch the authoritative request, then either
// confirm the change or revert exactly what was applied. The shape is
// implemented once by the toggle machinery (item likes and comment likes)
// and once for comment submission; each tentative record resolves exactly
// once.
//
// Toggles are serialized per key. While a request is in flight further
// clicks only move the desired state; when the request resolves a follow-up
// is issued from the confirmed state if the desired state still differs.
// Two optimistic deltas are never stacked, so counts cannot drift.
//
// The ledger assumes a single writer per session. A like changed from
// another session is only picked up by the next page fetch or comment load.
//
// The ledger is not safe for concurrent use. Its methods and the completion
// callbacks it hands to the Dispatcher must all run on one event loop.
package ledger
