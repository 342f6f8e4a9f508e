package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/exproxy/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test package.
const GoldenDir = "testdata/golden"

// ErrGoldenMismatch reports a trace that differs from its golden file.
var ErrGoldenMismatch = errors.New("trace differs from golden file")

// Snapshot renders a result's trace for golden comparison: a header line
// with the scenario name, then one canonical JSON line per flow step.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	header, err := ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(scenarioName),
		"steps":    ir.Int(len(result.Trace)),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for i, step := range result.Trace {
		v, err := ir.FromGo(step.canonicalMap())
		if err != nil {
			return nil, fmt.Errorf("trace[%d]: %w", i, err)
		}
		line, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("trace[%d]: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// canonicalMap converts a step to plain values, omitting empty fields;
// canonical JSON carries no nulls.
func (s StepTrace) canonicalMap() map[string]any {
	m := map[string]any{
		"call":   s.Call,
		"from":   s.From,
		"to":     s.To,
		"status": s.Status,
	}
	if s.Value != 0 {
		m["value"] = s.Value
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	if s.Result != nil {
		m["result"] = s.Result
	}
	if len(s.Events) > 0 {
		events := make([]any, len(s.Events))
		for i, ev := range s.Events {
			e := map[string]any{"name": ev.Name, "emitter": ev.Emitter}
			if ev.Fields != nil {
				e["fields"] = ev.Fields
			}
			events[i] = e
		}
		m["events"] = events
	}
	return m
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	opts = append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)
	g := goldie.New(t, opts...)
	g.Assert(t, scenarioName, data)
	return nil
}

// CheckGolden compares data with dir/{name}.golden outside of go test.
// With update set the file is (re)written instead.
func CheckGolden(dir, name string, data []byte, update bool) error {
	path := filepath.Join(dir, name+".golden")
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("%w: %s", ErrGoldenMismatch, path)
	}
	return nil
}
