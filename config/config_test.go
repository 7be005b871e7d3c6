package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatmon/cmd/analyzer"
	"threatmon/logentry"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, analyzer.DefaultEndpoint, cfg.Endpoint)
	assert.Zero(t, cfg.Timeout)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, DefaultHistoryKeep, cfg.History.Keep)
	assert.Equal(t, logentry.DefaultMethods, cfg.Filter.Methods)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `endpoint: https://analyzer.internal/Prod/AnalyzeOneLog
timeout: 5s
history:
  enabled: true
  path: /tmp/threatmon.db
filter:
  methods: [POST]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://analyzer.internal/Prod/AnalyzeOneLog", cfg.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, DefaultHistoryKeep, cfg.History.Keep)
	assert.Equal(t, []string{"POST"}, cfg.Filter.Methods)
	assert.Equal(t, logentry.DefaultExcludedDomains, cfg.Filter.Exclude)

	historyPath, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/threatmon.db", historyPath)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Endpoint = "https://example.org/AnalyzeOneLog"
	cfg.Timeout = 90 * time.Second
	cfg.History.Keep = 5
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLogFilterUsesEndpoint(t *testing.T) {
	cfg := Default()
	f := cfg.LogFilter()
	assert.Equal(t, cfg.Endpoint, f.Endpoint)
	assert.ErrorIs(t, f.Allow(logentry.Entry{Method: "POST", URL: cfg.Endpoint}), logentry.ErrSelfTraffic)
}
