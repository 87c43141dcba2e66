package harness

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Args    any    `json:"args,omitempty"`
	Outcome string `json:"outcome"` // "ok" or a store error code
	Matched *int   `json:"matched,omitempty"`
	State   string `json:"state"`
}

// String renders the event as one trace line, e.g.
//
//	2 delete 1 -> ok [dirty-pending]
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.Step, e.Op)
	if e.Args != nil {
		data, err := json.Marshal(e.Args)
		if err != nil {
			data = []byte(fmt.Sprint(e.Args))
		}
		b.WriteString(" ")
		b.Write(data)
	}
	fmt.Fprintf(&b, " -> %s", e.Outcome)
	if e.Matched != nil {
		fmt.Fprintf(&b, " matched=%d", *e.Matched)
	}
	fmt.Fprintf(&b, " [%s]", e.State)
	return b.String()
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// File is the store file content after the last step.
	File string `json:"file"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
