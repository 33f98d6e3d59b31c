package harness

// Trace event types.
const (
	EventCompile = "compile"
	EventInvoke  = "invoke"
	EventError   = "error"
)

// TraceEvent is one thing that happened while a scenario ran.
type TraceEvent struct {
	Type    string `json:"type"` // compile, invoke or error
	Step    string `json:"step"`
	Session string `json:"session"`

	// Symbol is the invoked entry point (invoke events).
	Symbol string `json:"symbol,omitempty"`

	// Args describes what was compiled (compile events).
	Args map[string]any `json:"args,omitempty"`

	// Result is the int32 value or the record map (invoke events).
	Result any `json:"result,omitempty"`

	// Code is the error code (error events).
	Code string `json:"code,omitempty"`

	Seq int64 `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every compile, invoke and error event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
