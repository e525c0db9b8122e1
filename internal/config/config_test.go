package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v, err := InitViper(t.TempDir())
	require.NoError(t, err)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Storage.Driver)
	assert.Equal(t, filepath.Join(Dir(), "memory.db"), c.Storage.SQLitePath)
	assert.Equal(t, 5, c.Retrieval.TopK)
	assert.Equal(t, 1000, c.Retrieval.Budget)
	assert.EqualValues(t, 1000, c.Oracle.MaxTokens)
	assert.Equal(t, "info", c.Log.Level)
}

func TestConfigFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	doc := `
[storage]
sqlite_path = "/tmp/from-file.db"

[retrieval]
top_k = 8
budget = 300

[log]
level = "debug"
source = true
file = "/tmp/turn-memory.log"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(doc), 0o644))
	t.Setenv("TURN_MEMORY_RETRIEVAL_TOP_K", "3")

	v, err := InitViper(dir)
	require.NoError(t, err)
	c, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-file.db", c.Storage.SQLitePath)
	assert.Equal(t, 3, c.Retrieval.TopK)
	assert.Equal(t, 300, c.Retrieval.Budget)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.Source)
	assert.Equal(t, "/tmp/turn-memory.log", c.Log.File)
}

func TestAnthropicKeyFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	v, err := InitViper(t.TempDir())
	require.NoError(t, err)
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", c.Oracle.APIKey)
}

func TestLoadRejectsBadStorage(t *testing.T) {
	v, err := InitViper(t.TempDir())
	require.NoError(t, err)

	v.Set("storage.driver", "mongo")
	_, err = Load(v)
	assert.Error(t, err)

	v.Set("storage.driver", "postgres")
	_, err = Load(v)
	assert.Error(t, err)

	v.Set("storage.postgres_url", "postgres://localhost/memories")
	_, err = Load(v)
	assert.NoError(t, err)
}

func TestMalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[storage\n"), 0o644))

	_, err := InitViper(dir)
	assert.Error(t, err)
}
