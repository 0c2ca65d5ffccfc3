package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEntry // Events for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for i, entry := range e.Trace {
			if entry.Type == TraceEvent {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", i+1, entry.Action, formatFields(entry.Args))
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks if the trace contains an event matching the
// specified action and args (subset match).
func assertTraceContains(trace []TraceEntry, assertion Assertion) error {
	for _, entry := range trace {
		if entry.Type == TraceEvent && entry.Action == assertion.Action {
			if matchArgs(entry.Args, assertion.Args) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s with %s", assertion.Action, formatFields(assertion.Args)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if events appear in the specified order.
// Events don't need to be consecutive; each expected event matches the
// first occurrence after the previous match.
func assertTraceOrder(trace []TraceEntry, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Actions {
		found := false
		for pos < len(trace) {
			entry := trace[pos]
			pos++
			if entry.Type == TraceEvent && entry.Action == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("%s missing or out of order", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the event appears exactly the specified number
// of times, counting only entries whose args match.
func assertTraceCount(trace []TraceEntry, assertion Assertion) error {
	count := 0
	for _, entry := range trace {
		if entry.Type == TraceEvent && entry.Action == assertion.Action && matchArgs(entry.Args, assertion.Args) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertItemState checks the controller's view of an item. Supported keys:
// present, like_count, liked, comment_count, column, row.
func assertItemState(ctl *feed.Controller, assertion Assertion) error {
	item, ok := ctl.Item(assertion.Item)
	actual := map[string]interface{}{"present": ok}
	if ok {
		actual["like_count"] = item.LikeCount
		actual["liked"] = item.LikedByViewer
		actual["comment_count"] = item.CommentCount
		actual["column"] = item.Coordinate.Column
		actual["row"] = item.Coordinate.Row
	}
	return compareFields(AssertItemState, "item "+assertion.Item, actual, assertion.Expect)
}

// assertColumnState checks a column's status. Supported keys: state,
// loaded, pages, exhausted, fetching, position, next_offset, error.
func assertColumnState(ctl *feed.Controller, assertion Assertion) error {
	st := ctl.State(assertion.Column)
	actual := map[string]interface{}{
		"state":     st.State,
		"loaded":    st.Loaded,
		"pages":     st.Pages,
		"exhausted": st.Exhausted,
		"fetching":  st.Fetching,
		"position":  st.Position,
		"error":     "",
	}
	if st.Next != nil {
		actual["next_offset"] = st.Next.Offset
	}
	if st.LastError != nil {
		actual["error"] = errorCode(st.LastError)
	}
	return compareFields(AssertColumnState, fmt.Sprintf("column %d", assertion.Column), actual, assertion.Expect)
}

// assertComments checks the loaded top-level comments of an item: their
// number and, when IDs is set, their order.
func assertComments(ctl *feed.Controller, assertion Assertion) error {
	list := ctl.Comments(assertion.Item)
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}

	if len(list) != assertion.Count {
		return &AssertionError{
			Type:     AssertComments,
			Expected: fmt.Sprintf("%d comments on %s", assertion.Count, assertion.Item),
			Actual:   fmt.Sprintf("%d comments %v", len(list), ids),
		}
	}
	if assertion.IDs != nil && !reflect.DeepEqual(ids, assertion.IDs) {
		return &AssertionError{
			Type:     AssertComments,
			Expected: fmt.Sprintf("comments %v", assertion.IDs),
			Actual:   fmt.Sprintf("comments %v", ids),
		}
	}
	return nil
}

func assertPending(ctl *feed.Controller, assertion Assertion) error {
	if n := ctl.Pending(); n != assertion.Count {
		return &AssertionError{
			Type:     AssertPending,
			Expected: fmt.Sprintf("%d unresolved mutations", assertion.Count),
			Actual:   fmt.Sprintf("%d unresolved mutations", n),
		}
	}
	return nil
}

// assertRemoteCalls counts server calls. Call is an operation name
// ("toggle_like") or a full log entry ("fetch_page 0@10").
func assertRemoteCalls(remote *testutil.FakeRemote, assertion Assertion) error {
	if n := remote.CallCount(assertion.Call); n != assertion.Count {
		return &AssertionError{
			Type:     AssertRemoteCalls,
			Expected: fmt.Sprintf("%d calls of %s", assertion.Count, assertion.Call),
			Actual:   fmt.Sprintf("%d calls; log %v", n, remote.Calls()),
		}
	}
	return nil
}

// compareFields checks expected keys against actual (subset semantics).
func compareFields(kind, subject string, actual, expected map[string]interface{}) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s field %q = %v", subject, key, expected[key]),
				Actual:   fmt.Sprintf("field %q not available", key),
			}
		}
		if !valuesEqual(got, expected[key]) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s field %q = %v", subject, key, expected[key]),
				Actual:   fmt.Sprintf("field %q = %v", key, got),
			}
		}
	}
	return nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual map[string]interface{}, expected map[string]interface{}) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values, treating integer types as equal when
// their values are.
func valuesEqual(actual, expected interface{}) bool {
	if a, ok := asInt64(actual); ok {
		if e, ok := asInt64(expected); ok {
			return a == e
		}
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return "(no fields)"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

// AssertionContext provides the final state assertions inspect.
type AssertionContext struct {
	Controller *feed.Controller
	Remote     *testutil.FakeRemote
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertItemState, AssertColumnState, AssertComments, AssertPending:
			if actx == nil || actx.Controller == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a controller", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertItemState:
				err = assertItemState(actx.Controller, assertion)
			case AssertColumnState:
				err = assertColumnState(actx.Controller, assertion)
			case AssertComments:
				err = assertComments(actx.Controller, assertion)
			default:
				err = assertPending(actx.Controller, assertion)
			}
		case AssertRemoteCalls:
			if actx == nil || actx.Remote == nil {
				err = fmt.Errorf("assertion[%d]: remote_calls requires a server", i)
			} else {
				err = assertRemoteCalls(actx.Remote, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
