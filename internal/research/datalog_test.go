package research

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/research-mcp/internal/model"
)

func TestStripCredentials(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://finnhub.io/api/v1/quote?symbol=MSFT&token=secret", "https://finnhub.io/api/v1/quote?symbol=MSFT"},
		{"stock/profile2?symbol=MSFT&TOKEN=x", "stock/profile2?symbol=MSFT"},
		{"https://feed.example.com/rss?s=MSFT&apikey=k&api_key=k2", "https://feed.example.com/rss?s=MSFT"},
		{"submissions/CIK0000789019.json", "submissions/CIK0000789019.json"},
		{"company-news?symbol=MSFT&from=2025-03-01", "company-news?symbol=MSFT&from=2025-03-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCredentials(tt.in), tt.in)
	}
}

func TestDataLog_Record(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDataLog(zap.New(core))

	d.Record(Event{
		Tag:      model.DataTagLive,
		Provider: model.SourceFinnhub,
		Endpoint: "quote?symbol=MSFT&token=secret",
		Ticker:   "MSFT",
		Elapsed:  120 * time.Millisecond,
		Cached:   true,
	})
	d.Record(Event{
		Tag:      model.DataTagMock,
		Provider: model.SourceSECEdgar,
		Endpoint: "files/company_tickers.json",
		Ticker:   "MSFT",
		Err:      errors.New("edgar: user agent not configured"),
	})

	entries := logs.All()
	require.Len(t, entries, 2)

	live := entries[0]
	assert.Equal(t, zapcore.InfoLevel, live.Level)
	assert.Equal(t, "LIVE finnhub", live.Message)
	ctx := live.ContextMap()
	assert.Equal(t, "quote?symbol=MSFT", ctx["endpoint"])
	assert.Equal(t, "SUCCESS", ctx["status"])
	assert.Equal(t, 120*time.Millisecond, ctx["response_time"])
	assert.Equal(t, true, ctx["cached"])

	mock := entries[1]
	assert.Equal(t, zapcore.WarnLevel, mock.Level)
	assert.Equal(t, "FAILED", mock.ContextMap()["status"])
	assert.Contains(t, mock.ContextMap()["error"], "user agent")
}

func TestDataLog_Summary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDataLog(zap.New(core))

	d.Summary("MSFT", model.Summarize([]model.DataTag{model.DataTagLive, model.DataTagLive, model.DataTagCalc}))
	d.Summary("MSFT", model.Summarize([]model.DataTag{model.DataTagMock, model.DataTagMock, model.DataTagLive}))

	entries := logs.FilterMessage("SUMMARY").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(3), entries[0].ContextMap()["total"])
}

func TestDataLog_NilSafe(t *testing.T) {
	var d *DataLog
	d.Record(Event{Tag: model.DataTagLive})
	d.Summary("MSFT", model.DataSummary{})
	NewDataLog(nil).Record(Event{Tag: model.DataTagCalc})
}
