package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clarion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
connections:
  local:
    provider: ollama
    base_url: http://localhost:11434
    model: llama3.1
knowledge_services:
  recipes:
    base_url: http://localhost:9200
    match_threshold: 0.25
    partial_threshold: 0.45
collections:
  - service: recipes
    name: comfort_soups
    embedding_connection: local
topic:
  connection: local
intent:
  connection: local
  categories:
    smalltalk: greetings
responses:
  - match:
      rag_results: match
    llm: local
    prompt: answer from context
  - llm: local
    prompt: fallback
`

func TestLoadValidConfig(t *testing.T) {
	cfg, warnings, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Contains(t, cfg.Connections, "local")
	assert.Equal(t, 0.25, cfg.Knowledge["recipes"].MatchThreshold)
	require.NotNil(t, cfg.Knowledge["recipes"].PartialThreshold)
	assert.Equal(t, 0.45, *cfg.Knowledge["recipes"].PartialThreshold)
	assert.Len(t, cfg.Responses, 2)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "clarion.db", cfg.Audit.Path)
	assert.Equal(t, 5, cfg.Knowledge["recipes"].TopK)
	assert.Equal(t, float64(10), cfg.RateLimit.RPS)
}

func TestLoadParsesDurations(t *testing.T) {
	withTimeouts := validConfig + `
server:
  read_timeout: 5s
  write_timeout: 90
`
	cfg, _, err := Load(writeConfig(t, withTimeouts))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout.Std())
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, _, err := Load(writeConfig(t, validConfig+"\nserver:\n  read_timeout: soon\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, _, err := Load(writeConfig(t, "responses: [unclosed"))
	assert.Error(t, err)
}

func TestLoadCollectsAllViolations(t *testing.T) {
	broken := `
connections:
  local:
    provider: ollama
    base_url: http://localhost:11434
collections:
  - service: missing_service
    name: x
    embedding_connection: missing_conn
intent:
  connection: missing_conn
topic:
  connection: missing_conn
responses:
  - match:
      rag_results: match
    llm: missing_conn
    prompt: p
`
	_, _, err := Load(writeConfig(t, broken))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Violations), 5)
}

func TestLoadRequiresConnectionsAndRules(t *testing.T) {
	_, _, err := Load(writeConfig(t, "logging:\n  level: info\n"))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations, ErrNoConnections.Error())
}

func TestLoadWarnsWithoutFallbackRule(t *testing.T) {
	noFallback := `
connections:
  local:
    provider: ollama
    base_url: http://localhost:11434
responses:
  - match:
      rag_results: match
    llm: local
    prompt: p
`
	_, warnings, err := Load(writeConfig(t, noFallback))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "fallback")
}

func TestPathResolutionOrder(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/env/path.yaml")
		assert.Equal(t, "/explicit.yaml", Path("/explicit.yaml"))
	})

	t.Run("env path over env dir", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/env/path.yaml")
		t.Setenv(EnvConfigDir, "/env/dir")
		assert.Equal(t, "/env/path.yaml", Path(""))
	})

	t.Run("env dir appends default name", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvConfigDir, "/env/dir")
		assert.Equal(t, filepath.Join("/env/dir", DefaultFileName), Path(""))
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvConfigDir, "")
		assert.Equal(t, DefaultFileName, Path(""))
	})
}
