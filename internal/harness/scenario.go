package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one executable deployment test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Manifest is the CUE deployment manifest (file or directory), relative
	// to the scenario file.
	Manifest string `yaml:"manifest"`

	// Accounts names external accounts for "@name" references.
	Accounts map[string]string `yaml:"accounts,omitempty"`

	// Setup calls run before the flow and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow calls are traced and checked against their expect clauses.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// Step is one external call.
type Step struct {
	From  string         `yaml:"from"`
	To    string         `yaml:"to"`
	Call  string         `yaml:"call"`
	Value int64          `yaml:"value,omitempty"`
	Args  map[string]any `yaml:"args,omitempty"`

	// Expect checks the receipt. Nil expects success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the receipt a step must produce.
type Expect struct {
	// Status is "success" (default) or "reverted".
	Status string `yaml:"status,omitempty"`

	// Error is the expected revert code; implies status reverted.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match over the returned fields.
	Result map[string]any `yaml:"result,omitempty"`

	// Events, when set, is the exact list of emitted event names.
	Events []string `yaml:"events,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	Type string `yaml:"type"`

	// balance
	Token   string `yaml:"token,omitempty"`
	Account string `yaml:"account,omitempty"`
	Amount  *int64 `yaml:"amount,omitempty"`

	// event_count
	Event   string `yaml:"event,omitempty"`
	Emitter string `yaml:"emitter,omitempty"`
	Count   *int   `yaml:"count,omitempty"`

	// event_order
	Events []string `yaml:"events,omitempty"`

	// view
	To     string         `yaml:"to,omitempty"`
	Call   string         `yaml:"call,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance    = "balance"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertView       = "view"
)

// Expected statuses.
const (
	StatusSuccess  = "success"
	StatusReverted = "reverted"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = filepath.Dir(path)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ManifestPath returns the manifest location resolved against the scenario
// file's directory.
func (s *Scenario) ManifestPath() string {
	if filepath.IsAbs(s.Manifest) || s.dir == "" {
		return s.Manifest
	}
	return filepath.Join(s.dir, s.Manifest)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if _, err := os.Stat(s.ManifestPath()); err != nil {
		return fmt.Errorf("manifest not found: %s", s.ManifestPath())
	}

	for name, addr := range s.Accounts {
		if !strings.HasPrefix(addr, "0x") {
			return fmt.Errorf("accounts.%s: want 0x-prefixed address, got %q", name, addr)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.From == "" {
		return fmt.Errorf("from is required")
	}
	if step.To == "" {
		return fmt.Errorf("to is required")
	}
	if step.Call == "" {
		return fmt.Errorf("call is required")
	}
	if step.Value < 0 {
		return fmt.Errorf("value must be non-negative")
	}
	if e := step.Expect; e != nil {
		switch e.Status {
		case "", StatusSuccess, StatusReverted:
		default:
			return fmt.Errorf("expect.status: want %q or %q, got %q", StatusSuccess, StatusReverted, e.Status)
		}
		if e.Error != "" && e.Status == StatusSuccess {
			return fmt.Errorf("expect.error conflicts with status %q", StatusSuccess)
		}
		if e.Result != nil && (e.Status == StatusReverted || e.Error != "") {
			return fmt.Errorf("expect.result is not allowed on a reverted step")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertBalance:
		if a.Account == "" {
			return fmt.Errorf("assertions[%d]: account is required for balance", index)
		}
		if a.Amount == nil {
			return fmt.Errorf("assertions[%d]: amount is required for balance", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: event_order needs at least two events", index)
		}
	case AssertView:
		if a.To == "" || a.Call == "" {
			return fmt.Errorf("assertions[%d]: to and call are required for view", index)
		}
		if len(a.Result) == 0 {
			return fmt.Errorf("assertions[%d]: result is required for view", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q (valid: %s, %s, %s, %s)",
			index, a.Type, AssertBalance, AssertEventCount, AssertEventOrder, AssertView)
	}
	return nil
}
