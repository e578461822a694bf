package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayrisk/domain/run"
	"delayrisk/domain/schema"
	"delayrisk/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATA_PATH", "ARTIFACT_DIR", "SPLIT_SEED", "GIN_MODE", "DATABASE_URL", "FIT_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Training.SplitSeed)
	assert.Equal(t, "models", cfg.Training.ArtifactDir)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/schedules.xlsx")
	t.Setenv("SPLIT_SEED", "7")
	t.Setenv("DATABASE_URL", "postgres://localhost/runs")
	t.Setenv("GIN_MODE", "test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/schedules.xlsx", cfg.Data.Path)
	assert.Equal(t, int64(7), cfg.Training.SplitSeed)
	assert.True(t, cfg.Database.Enabled())
}

func TestLoad_RejectsMalformedSeed(t *testing.T) {
	t.Setenv("SPLIT_SEED", "forty-two")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadHyperparameters(t *testing.T) {
	params, err := LoadHyperparameters("")
	require.NoError(t, err)
	assert.Equal(t, run.DefaultHyperparameters(), params)

	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_estimators: 50\nmax_features: sqrt\n"), 0o644))

	params, err = LoadHyperparameters(path)
	require.NoError(t, err)
	assert.Equal(t, 50, params.NEstimators)
	assert.Equal(t, "sqrt", params.MaxFeatures)
	assert.Equal(t, 5, params.MaxDepth, "unset keys keep their defaults")
}

func TestLoadHyperparameters_Rejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown key":   "n_trees: 10\n",
		"invalid value": "min_samples_leaf: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadHyperparameters(path)
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadSchema(t *testing.T) {
	s, err := LoadSchema("")
	require.NoError(t, err)
	assert.Equal(t, schema.Default().Fingerprint(), s.Fingerprint())

	path := filepath.Join(t.TempDir(), "schema.yaml")
	body := "feature_columns: [a, b]\nlabel_column: y\nclip_rules:\n  - {column: a, min: 0, max: 1}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s, err = LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.FeatureColumns())
}
