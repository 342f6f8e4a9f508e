package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"transform_mint", "transform_native", "governance"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadTestdata(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.NotEmpty(t, result.Trace)
			require.NotNil(t, result.Deployment)
		})
	}
}

func TestRun_TraceIsLabelled(t *testing.T) {
	result, err := Run(context.Background(), loadTestdata(t, "transform_mint"))
	require.NoError(t, err)
	require.Len(t, result.Trace, 2)

	first := result.Trace[0]
	assert.Equal(t, "@alice", first.From)
	assert.Equal(t, "@dispatcher", first.To)
	assert.Equal(t, "success", first.Status)
	assert.True(t, strings.HasPrefix(first.Call, "transformERC20("), first.Call)
	assert.Equal(t, map[string]any{"outputTokenAmount": int64(100)}, first.Result)

	var transformed *EventTrace
	for i := range first.Events {
		if first.Events[i].Name == "TransformedERC20" {
			transformed = &first.Events[i]
		}
	}
	require.NotNil(t, transformed)
	assert.Equal(t, "@dispatcher", transformed.Emitter)
	fields := transformed.Fields.(map[string]any)
	assert.Equal(t, "@alice", fields["taker"])
	assert.Equal(t, "@USD", fields["inputToken"])
	assert.Equal(t, "@EUR", fields["outputToken"])

	second := result.Trace[1]
	assert.Equal(t, "reverted", second.Status)
	assert.Equal(t, "INSUFFICIENT_OUTPUT", second.Error)
	assert.Empty(t, second.Events)
}

// mutate copies a testdata scenario with changes applied.
func mutate(t *testing.T, name string, change func(*Scenario)) *Scenario {
	t.Helper()
	s := loadTestdata(t, name)
	change(s)
	return s
}

func TestRun_ReportsMismatches(t *testing.T) {
	s := mutate(t, "transform_mint", func(s *Scenario) {
		s.Flow[0].Expect.Result["outputTokenAmount"] = 99
		s.Flow[1].Expect.Error = "NOT_AUTHORIZED"
		amount := int64(1)
		s.Assertions[0].Amount = &amount
	})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `flow[0] transformERC20: result field "outputTokenAmount" mismatch`)
	assert.Contains(t, result.Errors[1], "expected error NOT_AUTHORIZED, got INSUFFICIENT_OUTPUT")
	assert.Contains(t, result.Errors[2], "assertions[0]: balance: expected @alice to hold 1 of @USD, got 800")
}

func TestRun_UnexpectedRevert(t *testing.T) {
	s := mutate(t, "governance", func(s *Scenario) {
		s.Flow[0].Expect = nil
	})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected status success, got reverted (ALREADY_MIGRATED")
}

func TestRun_SetupMustSucceed(t *testing.T) {
	s := mutate(t, "transform_mint", func(s *Scenario) {
		s.Setup[0].Call = "transfer"
		s.Setup[0].Args = map[string]any{"to": "@dispatcher", "amount": 5000}
	})

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]: transfer reverted: INSUFFICIENT_BALANCE")
}

func TestRun_ResolutionErrors(t *testing.T) {
	tests := []struct {
		name   string
		change func(*Scenario)
		want   string
	}{
		{
			name:   "unknown reference",
			change: func(s *Scenario) { s.Flow[0].From = "@carol" },
			want:   "unknown reference @carol",
		},
		{
			name:   "unknown function",
			change: func(s *Scenario) { s.Flow[0].Call = "frobnicate" },
			want:   `unknown function "frobnicate"`,
		},
		{
			name:   "ambiguous function",
			change: func(s *Scenario) { s.Flow[0].Call = "migrate" },
			want:   `function "migrate" is ambiguous`,
		},
		{
			name: "unknown transformer nonce",
			change: func(s *Scenario) {
				s.Flow[0].Args["minOutputTokenAmount"] = "@nonce.bridge"
			},
			want: `unknown transformer "bridge"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), mutate(t, "governance", tt.change))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_FullSignatureCall(t *testing.T) {
	s := mutate(t, "governance", func(s *Scenario) {
		s.Flow = []Step{{
			From:   "@owner",
			To:     "@dispatcher",
			Call:   "migrate(address,tuple)",
			Args:   map[string]any{"target": "@USD", "config": map[string]any{}},
			Expect: &Expect{Error: "MIGRATE_CALL_FAILED"},
		}}
		s.Assertions = nil
	})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "migrate(address,tuple)", result.Trace[0].Call)
	assert.Equal(t, "@owner", result.Trace[0].From)
}

func TestRun_GoldenTraceIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))

	for _, name := range []string{"transform_mint", "transform_native", "governance"} {
		first, err := Run(context.Background(), loadTestdata(t, name))
		require.NoError(t, err)
		data, err := Snapshot(name, first)
		require.NoError(t, err)
		require.NoError(t, g.Update(t, name, data))

		second, err := Run(context.Background(), loadTestdata(t, name))
		require.NoError(t, err)
		require.NoError(t, AssertGolden(t, name, second, goldie.WithFixtureDir(dir)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
