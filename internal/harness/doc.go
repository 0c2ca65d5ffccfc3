// Package harness replays feed scenarios written in YAML.
//
// A scenario seeds an in-memory server, drives a feed controller through a
// flow of steps and asserts on the trace of controller events and on the
// final state. Collaborator calls are held by a manual dispatcher and only
// resolve on explicit run, fail and timeout steps, which makes the window
// between an optimistic update and its server confirmation scriptable.
//
// # Scenario Format
//
//	name: like_revert
//	description: A rejected like restores the prior count
//	setup:
//	  items:
//	    - { id: v1, column: 0, row: 0, like_count: 5 }
//	flow:
//	  - invoke: select
//	    args: { column: 0 }
//	  - invoke: run
//	  - invoke: like
//	    args: { item: v1 }
//	  - invoke: fail
//	assertions:
//	  - type: item_state
//	    item: v1
//	    expect: { like_count: 5, liked: false }
//	  - type: trace_contains
//	    action: mutation
//	    args: { kind: like, error: MUTATION_REJECTED }
//
// # Steps
//
// Controller steps: load_columns, select, fetch, reload, measure, scroll,
// like, comment, comment_like, load_comments. Clock: advance. Dispatcher:
// run (all, a count, or the oldest call for an op), fail, timeout. Server:
// inject and heal (failure injection per op), add_item, remove_item.
//
// # Assertion Types
//
//   - trace_contains: an event with matching args exists
//   - trace_order: events appear in the given order
//   - trace_count: an event (optionally with matching args) appears N times
//   - item_state: the controller's view of an item
//   - column_state: the status of a column
//   - comments: loaded top-level comments of an item
//   - pending: the number of unresolved mutations
//   - remote_calls: the number of server calls for an op or call key
//
// # Deterministic Testing
//
// Every run uses a fake clock starting at Epoch, sequential tentative IDs
// and a logical sequence counter for trace entries, so traces are
// byte-identical across runs and can be compared against golden files.
package harness
