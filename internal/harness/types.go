package harness

import "github.com/roach88/exproxy/internal/deploy"

// StepTrace is the labelled outcome of one flow step.
type StepTrace struct {
	Call   string       `json:"call"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Value  int64        `json:"value,omitempty"`
	Status string       `json:"status"`
	Error  string       `json:"error,omitempty"`
	Result any          `json:"result,omitempty"`
	Events []EventTrace `json:"events,omitempty"`
}

// EventTrace is one event of a step, with addresses replaced by labels.
type EventTrace struct {
	Name    string `json:"name"`
	Emitter string `json:"emitter"`
	Fields  any    `json:"fields,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one entry per executed flow step.
	Trace []StepTrace `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Deployment is what the manifest deployed.
	Deployment *deploy.Deployment `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
