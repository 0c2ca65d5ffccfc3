package harness

// Trace entry types.
const (
	TraceStep  = "step"
	TraceEvent = "event"
)

// TraceEntry is one line of a scenario trace: either a flow step with its
// result, or a controller event emitted while the step ran.
type TraceEntry struct {
	Type   string                 `json:"type"`
	Action string                 `json:"action"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
	Seq    int64                  `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps and events in execution order.
	Trace []TraceEntry `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addStep appends a step entry and returns its index so the result can be
// filled in once the step finishes.
func (r *Result) addStep(action string, args map[string]interface{}, seq int64) int {
	r.Trace = append(r.Trace, TraceEntry{
		Type:   TraceStep,
		Action: action,
		Args:   args,
		Seq:    seq,
	})
	return len(r.Trace) - 1
}

func (r *Result) addEvent(kind string, fields map[string]interface{}, seq int64) {
	r.Trace = append(r.Trace, TraceEntry{
		Type:   TraceEvent,
		Action: kind,
		Args:   fields,
		Seq:    seq,
	})
}
