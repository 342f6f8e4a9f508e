package ir

import "strings"

// NamedArg is a named, typed function parameter.
// Types use EVM ABI spelling ("address", "bytes4", "uint256", "bytes",
// "tuple[]") so signatures hash to the same selectors binding tools expect.
type NamedArg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FunctionSig describes one externally callable function of a module.
// The set of FunctionSigs of a code kind is its introspectable interface.
type FunctionSig struct {
	Name    string     `json:"name"`
	Inputs  []NamedArg `json:"inputs"`
	Payable bool       `json:"payable,omitempty"`
	View    bool       `json:"view,omitempty"`
}

// Signature returns the canonical signature, e.g. "extend(bytes4,address)".
func (f FunctionSig) Signature() string {
	types := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		types[i] = in.Type
	}
	return f.Name + "(" + strings.Join(types, ",") + ")"
}

// Selector returns the dispatch selector of the function.
func (f FunctionSig) Selector() Selector {
	return SelectorOf(f.Signature())
}

// Msg is one external call submitted to the host.
type Msg struct {
	From     Address  `json:"from"`
	To       Address  `json:"to"`
	Value    int64    `json:"value"`
	Selector Selector `json:"selector"`
	Args     Object   `json:"args"`
}

// Event is an append-only audit record emitted by module code.
// Events of a failed call are discarded together with its state changes.
type Event struct {
	Seq     int64   `json:"seq"`
	ID      string  `json:"id"`
	TxID    string  `json:"tx_id"`
	Emitter Address `json:"emitter"`
	Name    string  `json:"name"`
	Fields  Object  `json:"fields"`
}

// Status is the outcome of an external call.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusReverted Status = "reverted"
)

// Receipt records the outcome of one external call.
// Reverted calls keep a receipt but none of their state or events.
type Receipt struct {
	TxID         string   `json:"tx_id"`
	Seq          int64    `json:"seq"`
	From         Address  `json:"from"`
	To           Address  `json:"to"`
	Selector     Selector `json:"selector"`
	Status       Status   `json:"status"`
	ErrorCode    string   `json:"error_code,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Result       Object   `json:"result"`
	Events       []Event  `json:"events,omitempty"`
}

// Magic return values that confirm a delegated entry point ran to completion.
const (
	MigrateSuccess     = "MIGRATE_SUCCESS"
	TransformerSuccess = "TRANSFORMER_SUCCESS"
)
