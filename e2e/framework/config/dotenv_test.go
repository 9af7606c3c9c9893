package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	written, err := WriteDotEnv(path, DefaultDotEnv(), false)
	require.NoError(t, err)
	assert.True(t, written)

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "fdk-fuseki-service", env["HOST"])
	assert.Equal(t, "3030", env["PORT"])
	assert.Equal(t, "ds", env["DATASET_1"])
	assert.Len(t, env["PASSWORD"], 24)

	written, err = WriteDotEnv(path, DotEnvDefaults{Host: "other", Port: 1, Dataset: "x", Password: "p"}, false)
	require.NoError(t, err)
	assert.False(t, written, "existing file is kept")
	kept, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, env, kept)

	written, err = WriteDotEnv(path, DotEnvDefaults{Host: "other", Port: 4040, Dataset: "x", Password: "p"}, true)
	require.NoError(t, err)
	assert.True(t, written)
	env, err = godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "p", env["PASSWORD"])
	assert.Equal(t, "4040", env["PORT"])
}

func TestWriteDotEnvIsLoadable(t *testing.T) {
	dir := isolate(t)
	_, err := WriteDotEnv(filepath.Join(dir, ".env"), DefaultDotEnv(), false)
	require.NoError(t, err)

	cfg := load(t)
	assert.Equal(t, filepath.Join(dir, ".env"), cfg.DotEnvPath)
	assert.NotEmpty(t, cfg.StorePassword)
	assert.NoError(t, cfg.Validate())
	_, err = os.Stat(cfg.DotEnvPath)
	assert.NoError(t, err)
}
