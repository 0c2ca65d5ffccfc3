package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario drives a feed controller through a flow of steps against an
// in-memory server and asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Viewer is the identity the controller acts as. Defaults to "me".
	Viewer ViewerFixture `yaml:"viewer,omitempty"`

	// PageSize overrides the pager's page size when positive.
	PageSize int `yaml:"page_size,omitempty"`

	// SettleWindowMS overrides the loop settle window when positive.
	SettleWindowMS int `yaml:"settle_window_ms,omitempty"`

	// Setup seeds the fake server before the flow starts.
	Setup Setup `yaml:"setup"`

	// Flow lists the steps to execute in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// ViewerFixture names the acting viewer.
type ViewerFixture struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// Setup is the server-side content present before the flow.
type Setup struct {
	// Columns fills whole columns with generated items.
	Columns []ColumnFixture `yaml:"columns,omitempty"`

	// Items places individual items.
	Items []ItemFixture `yaml:"items,omitempty"`

	// Comments seeds authoritative comments.
	Comments []CommentFixture `yaml:"comments,omitempty"`
}

// ColumnFixture generates Count items with IDs "<prefix>1".."<prefix>N" at
// rows 0, Step, 2*Step, ...
type ColumnFixture struct {
	Column int    `yaml:"column"`
	Count  int    `yaml:"count"`
	Step   int    `yaml:"step,omitempty"`
	Prefix string `yaml:"prefix"`
}

// ItemFixture is a single item.
type ItemFixture struct {
	ID        string `yaml:"id"`
	Column    int    `yaml:"column"`
	Row       int    `yaml:"row"`
	Kind      string `yaml:"kind,omitempty"`
	Access    string `yaml:"access,omitempty"`
	LikeCount int    `yaml:"like_count,omitempty"`
	Liked     bool   `yaml:"liked,omitempty"`
}

// CommentFixture is a single authoritative comment.
type CommentFixture struct {
	ID      string   `yaml:"id"`
	Item    string   `yaml:"item"`
	Parent  string   `yaml:"parent,omitempty"`
	Author  string   `yaml:"author,omitempty"`
	Text    string   `yaml:"text"`
	LikedBy []string `yaml:"liked_by,omitempty"`
}

// FlowStep invokes one harness action.
type FlowStep struct {
	// Invoke is the action name (see the Action constants).
	Invoke string `yaml:"invoke"`

	// Args contains the action arguments.
	Args map[string]interface{} `yaml:"args"`

	// Expect validates the step's immediate result. If nil, the step must
	// not return an error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected step outcome.
type ExpectClause struct {
	// Error is the expected error code (e.g. "VALIDATION"). Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step's result fields.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Action names accepted by FlowStep.Invoke.
const (
	ActionLoadColumns  = "load_columns"
	ActionSelect       = "select"
	ActionFetch        = "fetch"
	ActionReload       = "reload"
	ActionMeasure      = "measure"
	ActionScroll       = "scroll"
	ActionAdvance      = "advance"
	ActionLike         = "like"
	ActionComment      = "comment"
	ActionCommentLike  = "comment_like"
	ActionLoadComments = "load_comments"
	ActionRun          = "run"
	ActionFail         = "fail"
	ActionTimeout      = "timeout"
	ActionInject       = "inject"
	ActionHeal         = "heal"
	ActionAddItem      = "add_item"
	ActionRemoveItem   = "remove_item"
)

var knownActions = map[string]bool{
	ActionLoadColumns: true, ActionSelect: true, ActionFetch: true,
	ActionReload: true, ActionMeasure: true, ActionScroll: true,
	ActionAdvance: true, ActionLike: true, ActionComment: true,
	ActionCommentLike: true, ActionLoadComments: true, ActionRun: true,
	ActionFail: true, ActionTimeout: true, ActionInject: true,
	ActionHeal: true, ActionAddItem: true, ActionRemoveItem: true,
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "trace_contains": an entry with Action and matching Args exists
	//   - "trace_order": Actions appear in this order
	//   - "trace_count": Action appears exactly Count times
	//   - "item_state": the controller's view of Item matches Expect
	//   - "column_state": the status of Column matches Expect
	//   - "comments": Item has Count loaded top-level comments (and IDs)
	//   - "pending": the ledger holds Count unresolved mutations
	//   - "remote_calls": the server saw Call exactly Count times
	Type string `yaml:"type"`

	Action  string                 `yaml:"action,omitempty"`
	Args    map[string]interface{} `yaml:"args,omitempty"`
	Actions []string               `yaml:"actions,omitempty"`
	Count   int                    `yaml:"count,omitempty"`

	Item   string                 `yaml:"item,omitempty"`
	Column int                    `yaml:"column,omitempty"`
	Expect map[string]interface{} `yaml:"expect,omitempty"`
	IDs    []string               `yaml:"ids,omitempty"`
	Call   string                 `yaml:"call,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertItemState     = "item_state"
	AssertColumnState   = "column_state"
	AssertComments      = "comments"
	AssertPending       = "pending"
	AssertRemoteCalls   = "remote_calls"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario from YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.PageSize < 0 {
		return fmt.Errorf("page_size must be non-negative")
	}

	for i, c := range s.Setup.Columns {
		if c.Prefix == "" {
			return fmt.Errorf("setup.columns[%d]: prefix is required", i)
		}
		if c.Column < 0 || c.Count < 0 {
			return fmt.Errorf("setup.columns[%d]: column and count must be non-negative", i)
		}
	}
	for i, it := range s.Setup.Items {
		if it.ID == "" {
			return fmt.Errorf("setup.items[%d]: id is required", i)
		}
	}
	for i, c := range s.Setup.Comments {
		if c.ID == "" || c.Item == "" {
			return fmt.Errorf("setup.comments[%d]: id and item are required", i)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !knownActions[step.Invoke] {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertItemState:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for item_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for item_state", index)
		}
	case AssertColumnState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for column_state", index)
		}
	case AssertComments:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for comments", index)
		}
	case AssertPending:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pending", index)
		}
	case AssertRemoteCalls:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for remote_calls", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
