package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.WorkflowLog)
	assert.True(t, cfg.Log.DataLog)
	assert.Equal(t, "https://finnhub.io/api/v1", cfg.Finnhub.BaseURL)
	assert.Equal(t, 10, cfg.Finnhub.TimeoutSecs)
	assert.Equal(t, "https://www.sec.gov", cfg.Edgar.BaseURL)
	assert.Equal(t, "https://data.sec.gov", cfg.Edgar.DataURL)
	assert.Equal(t, 90, cfg.Edgar.FilingsDays)
	assert.Equal(t, 10, cfg.Edgar.FilingsLimit)
	assert.Equal(t, []string{"10-K", "10-Q", "8-K"}, cfg.Edgar.Forms)
	assert.Empty(t, cfg.Edgar.UserAgent)
	assert.Equal(t, "finnhub", cfg.News.Provider)
	assert.Equal(t, 7, cfg.News.LookbackDays)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.True(t, cfg.Workflow.Parallel)
	assert.Equal(t, 20*time.Second, cfg.Workflow.StepTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL())
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: research.db
log:
  level: debug
  format: console
news:
  provider: rss
workflow:
  parallel: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "rss", cfg.News.Provider)
	assert.False(t, cfg.Workflow.Parallel)
	// Defaults still apply for unset values
	assert.Equal(t, 90, cfg.Edgar.FilingsDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
server:
  transport: sse
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("RESEARCH_LOG_LEVEL", "warn")
	t.Setenv("RESEARCH_SERVER_TRANSPORT", "http")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "http", cfg.Server.Transport)
}

func TestLoadConventionalEnvNames(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FINNHUB_API_KEY", "fh-key")
	t.Setenv("SEC_EDGAR_USER_AGENT", "Research Desk desk@example.com")
	t.Setenv("MCP_LOG_LEVEL", "debug")
	t.Setenv("MCP_ENABLE_DATA_LOG", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fh-key", cfg.Finnhub.Key)
	assert.Equal(t, "Research Desk desk@example.com", cfg.Edgar.UserAgent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.DataLog)
	assert.True(t, cfg.Log.WorkflowLog)
}

func TestLoadPrefixedEnvWinsOverAlias(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FINNHUB_API_KEY", "alias-key")
	t.Setenv("RESEARCH_FINNHUB_KEY", "prefixed-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed-key", cfg.Finnhub.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RESEARCH_NEWS_LOOKBACK_DAYS=3\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RESEARCH_NEWS_LOOKBACK_DAYS") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.News.LookbackDays)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"store driver", map[string]string{"RESEARCH_STORE_DRIVER": "mongo"}, "unsupported store driver"},
		{"postgres without url", map[string]string{"RESEARCH_STORE_DRIVER": "postgres"}, "database_url is required"},
		{"news provider", map[string]string{"RESEARCH_NEWS_PROVIDER": "twitter"}, "unsupported news provider"},
		{"transport", map[string]string{"RESEARCH_SERVER_TRANSPORT": "grpc"}, "unsupported server transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestStreamLogger(t *testing.T) {
	assert.Equal(t, zap.NewNop().Core().Enabled(zap.ErrorLevel), StreamLogger("workflow", false).Core().Enabled(zap.ErrorLevel))
	assert.NotNil(t, StreamLogger("datasource", true))
}
