package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-mcp/internal/config"
	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/workflow"
)

// offlineConfig has no provider credentials, so every step uses mock data.
func offlineConfig(driver, dsn string) *config.Config {
	return &config.Config{
		News:     config.NewsConfig{Provider: "finnhub", LookbackDays: 7},
		Edgar:    config.EdgarConfig{FilingsDays: 90, FilingsLimit: 10, Forms: []string{"10-K", "10-Q", "8-K"}},
		Store:    config.StoreConfig{Driver: driver, DatabaseURL: dsn},
		Workflow: config.WorkflowConfig{Parallel: true, StepTimeoutSecs: 5},
		Server:   config.ServerConfig{Transport: "stdio"},
		Log:      config.LogConfig{Level: "info"},
	}
}

func TestAppEnv_Close_Nil(t *testing.T) {
	env := &appEnv{}
	assert.NotPanics(t, env.Close)
}

func TestInitStore_Memory(t *testing.T) {
	cfg = offlineConfig("memory", "")
	st, err := initStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestInitApp_RejectsBadDriver(t *testing.T) {
	cfg = offlineConfig("mongodb", "")
	env, err := initApp(context.Background())
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitApp_MissingLexicon(t *testing.T) {
	cfg = offlineConfig("memory", "")
	cfg.News.LexiconPath = filepath.Join(t.TempDir(), "missing.yaml")
	env, err := initApp(context.Background())
	assert.Nil(t, env)
	assert.Error(t, err)
}

func TestInitApp_OfflineResearchPersists(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "runs.db")
	cfg = offlineConfig("sqlite", dsn)
	cfg.Cache = config.CacheConfig{Enabled: true, Dir: filepath.Join(t.TempDir(), "cache"), TTLMins: 5}

	env, err := initApp(ctx)
	require.NoError(t, err)
	require.NotNil(t, env.Store)
	require.NotNil(t, env.Cache)

	res, err := env.Engine.Run(ctx, workflow.Request{Ticker: "MSFT", IncludeFilings: true})
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, res.Status.Stage)
	assert.Equal(t, model.TotalSteps, res.Status.StepsCompleted)
	env.Close()

	// A new process sees the run through the store.
	env, err = initApp(ctx)
	require.NoError(t, err)
	defer env.Close()

	st, err := env.Tracker.Status(ctx, res.Record.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, st.Stage)

	rec, err := env.Store.GetRecord(ctx, res.Record.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", rec.Ticker)
	require.NotNil(t, rec.Synthesis)
}

func TestFormatRunsList(t *testing.T) {
	start := time.Date(2025, 3, 8, 15, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	runs := []model.WorkflowStatus{
		{ThreadID: "research_MSFT_1741446000_0a1b2c3d", Ticker: "MSFT", Stage: model.StageComplete,
			StepsCompleted: 5, TotalSteps: 5, StartTime: start, EndTime: &end},
		{ThreadID: "research_AAPL_1741446001_deadbeef", Ticker: "AAPL", Stage: model.StageRunning,
			StepsCompleted: 2, TotalSteps: 5, StartTime: start},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs, start.Add(3*time.Second))
	out := buf.String()

	assert.Contains(t, out, "THREAD_ID")
	assert.Contains(t, out, "research_MSFT_1741446000_0a1b2c3d")
	assert.Contains(t, out, "5/5")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "2/5")
	assert.Contains(t, out, "3s")
	assert.Contains(t, out, "2025-03-08 15:00")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"steps": 5}))
	assert.Equal(t, "{\n  \"steps\": 5\n}\n", buf.String())
}
