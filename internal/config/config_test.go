package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Solver.MaxSolutions)
	assert.Equal(t, 1000, cfg.Solver.MaxPropagation)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Batch.Workers)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
lexicon = "testdata/kick.yaml"

[solver]
max_solutions = 0

[realize]
all_trans = true
max_outputs = 3

[log]
level = "debug"
format = "json"
`))
	require.NoError(t, err)
	assert.Equal(t, "testdata/kick.yaml", cfg.Lexicon)
	assert.Equal(t, 0, cfg.Solver.MaxSolutions)
	assert.Equal(t, 1000, cfg.Solver.MaxPropagation, "missing keys keep their defaults")
	assert.True(t, cfg.Realize.AllTrans)
	assert.Equal(t, 3, cfg.Realize.MaxOutputs)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Batch.Workers)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":     "[solver]\nmax_depth = 3\n",
		"bad level":       "[log]\nlevel = \"loud\"\n",
		"negative":        "[solver]\nmax_solutions = -1\n",
		"zero rounds":     "[solver]\nmax_propagation = 0\n",
		"too many":        "[batch]\nworkers = 1000\n",
		"malformed":       "[solver\n",
		"wrong type":      "[realize]\nall_trans = \"yes\"\n",
		"unknown section": "[cache]\nsize = 1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "kuaa.toml")
	require.NoError(t, os.WriteFile(path, []byte("[batch]\nworkers = 2\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Batch.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
