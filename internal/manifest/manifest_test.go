package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exproxy/internal/ir"
)

var (
	deployer = ir.MustAddress("0x00000000000000000000000000000000000de910")
	owner    = ir.MustAddress("0x000000000000000000000000000000000000041e")
	alice    = ir.MustAddress("0x00000000000000000000000000000000000a11ce")
)

func compileString(t *testing.T, src string) (*Manifest, error) {
	t.Helper()
	return Compile(cuecontext.New().CompileString(src))
}

func TestLoadDir_Standard(t *testing.T) {
	m, err := LoadDir(filepath.Join("testdata", "standard"))
	require.NoError(t, err)

	want := &Manifest{
		Deployer:            deployer,
		Owner:               owner,
		TransformerDeployer: deployer,
		Migration:           MigrationFull,
		Tokens: []Token{
			{Label: "EUR", Name: "Test Euro", Symbol: "EUR"},
			{Label: "USD", Name: "Test Dollar", Symbol: "USD", Mint: []Allocation{{To: alice, Amount: 1000}}},
		},
		Transformers: []string{TransformerMint, TransformerPayTaker},
		Funding:      []Allocation{{To: alice, Amount: 50}},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.cue")
	require.NoError(t, os.WriteFile(path, []byte(`package deployment

deployment: {
	deployer: "0x00000000000000000000000000000000000de910"
	owner:    "0x000000000000000000000000000000000000041e"
	migration: "initial"
}
`), 0o644))

	fromFile, err := Load(path)
	require.NoError(t, err)
	fromDir, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, MigrationInitial, fromFile.Migration)
	assert.Empty(t, cmp.Diff(fromFile, fromDir))
}

func TestCompile_Defaults(t *testing.T) {
	m, err := compileString(t, `
deployment: {
	deployer: "0x00000000000000000000000000000000000de910"
	owner:    "0x000000000000000000000000000000000000041e"
}
`)
	require.NoError(t, err)
	assert.Equal(t, MigrationFull, m.Migration)
	assert.Equal(t, deployer, m.TransformerDeployer, "transformer deployer defaults to the deployer")
	assert.Empty(t, m.Tokens)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing deployment",
			src:   `other: 1`,
			field: "deployment",
		},
		{
			name:  "missing owner",
			src:   `deployment: deployer: "0x00000000000000000000000000000000000de910"`,
			field: "owner",
		},
		{
			name: "bad address",
			src: `deployment: {
				deployer: "0x1234"
				owner:    "0x000000000000000000000000000000000000041e"
			}`,
			field: "deployer",
		},
		{
			name: "unknown migration",
			src: `deployment: {
				deployer:  "0x00000000000000000000000000000000000de910"
				owner:     "0x000000000000000000000000000000000000041e"
				migration: "partial"
			}`,
			field: "migration",
		},
		{
			name: "float amount",
			src: `deployment: {
				deployer: "0x00000000000000000000000000000000000de910"
				owner:    "0x000000000000000000000000000000000000041e"
				funding: "0x00000000000000000000000000000000000a11ce": 1.5
			}`,
			field: "funding.0x00000000000000000000000000000000000a11ce",
		},
		{
			name: "unknown transformer",
			src: `deployment: {
				deployer: "0x00000000000000000000000000000000000de910"
				owner:    "0x000000000000000000000000000000000000041e"
				transformers: ["swap"]
			}`,
			field: "transformers",
		},
		{
			name: "transformers without full migration",
			src: `deployment: {
				deployer:  "0x00000000000000000000000000000000000de910"
				owner:     "0x000000000000000000000000000000000000041e"
				migration: "initial"
				transformers: ["mint"]
			}`,
			field: "transformers",
		},
		{
			name: "token without symbol",
			src: `deployment: {
				deployer: "0x00000000000000000000000000000000000de910"
				owner:    "0x000000000000000000000000000000000000041e"
				tokens: X: name: "X"
			}`,
			field: "tokens.X.symbol",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			var merr *Error
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tt.field, merr.Field)
		})
	}
}

func TestCompile_IncompleteValueFails(t *testing.T) {
	_, err := compileString(t, `
deployment: {
	deployer: string
	owner:    "0x000000000000000000000000000000000000041e"
}
`)
	assert.Error(t, err)
}
