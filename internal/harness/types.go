package harness

import "github.com/roach88/perks/internal/ir"

// Event types in a trace.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent is one journaled invocation or completion.
type TraceEvent struct {
	Type   string     `json:"type"`
	Seq    int64      `json:"seq"`
	Op     string     `json:"op,omitempty"`
	Args   []string   `json:"args,omitempty"`
	Error  string     `json:"error,omitempty"`
	Result ir.IRValue `json:"result,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Digest is the state digest of the store after the flow.
	Digest string `json:"digest"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
