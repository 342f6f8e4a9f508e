package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	standardManifest = filepath.Join("..", "harness", "testdata", "manifests", "standard")
	scenariosDir     = filepath.Join("..", "harness", "testdata", "scenarios")
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "exproxy", cmd.Use)
	assert.Contains(t, cmd.Long, "Dispatcher")
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"deploy", "call", "selectors", "namespace", "audit", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestCallCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	callCmd, _, err := cmd.Find([]string{"call"})
	require.NoError(t, err)

	argsFlag := callCmd.Flags().Lookup("args")
	require.NotNil(t, argsFlag)
	assert.Equal(t, "{}", argsFlag.DefValue)

	for _, name := range []string{"from", "to", "value", "view"} {
		assert.NotNil(t, callCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestAuditCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	auditCmd, _, err := cmd.Find([]string{"audit"})
	require.NoError(t, err)

	for _, name := range []string{"tx", "name", "emitter", "limit", "receipts"} {
		assert.NotNil(t, auditCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "yaml", "namespace", "exproxy.ownable")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestResolveConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exproxy.toml")
	require.NoError(t, os.WriteFile(path, []byte(`database = "from-config.db"
log_level = "warn"
`), 0o644))

	t.Run("config file", func(t *testing.T) {
		opts := &RootOptions{ConfigPath: path}
		cmd := NewRootCommand()
		require.NoError(t, opts.resolve(cmd))
		assert.Equal(t, "from-config.db", opts.Config.Database)
		require.NotNil(t, opts.Logger)
	})

	t.Run("db flag overrides config", func(t *testing.T) {
		cmd := NewRootCommand()
		require.NoError(t, cmd.ParseFlags([]string{"--db", "flag.db"}))
		opts := &RootOptions{ConfigPath: path, Database: "flag.db"}
		require.NoError(t, opts.resolve(cmd))
		assert.Equal(t, "flag.db", opts.Config.Database)
	})

	t.Run("missing config file", func(t *testing.T) {
		opts := &RootOptions{ConfigPath: filepath.Join(dir, "missing.toml")}
		err := opts.resolve(NewRootCommand())
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}
