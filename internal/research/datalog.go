package research

import (
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/research-mcp/internal/model"
)

var credentialParams = []string{"token", "api_key", "apikey"}

// StripCredentials removes credential query parameters from a URL or a
// path-with-query. Unparseable input is returned unchanged.
func StripCredentials(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for key := range q {
		for _, c := range credentialParams {
			if strings.EqualFold(key, c) {
				q.Del(key)
				changed = true
			}
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Event is one data-source log line.
type Event struct {
	Tag      model.DataTag
	Provider model.Source
	Endpoint string
	Ticker   string
	Elapsed  time.Duration
	Cached   bool
	Detail   string
	Err      error
}

// DataLog writes the datasource stream: one line per provider call or
// calculation, tagged LIVE, MOCK or CALC.
type DataLog struct {
	log *zap.Logger
}

// NewDataLog wraps l; nil means a no-op logger.
func NewDataLog(l *zap.Logger) *DataLog {
	if l == nil {
		l = zap.NewNop()
	}
	return &DataLog{log: l}
}

// Record writes e. Mock substitutions are warnings.
func (d *DataLog) Record(e Event) {
	if d == nil {
		return
	}
	status := "SUCCESS"
	if e.Err != nil || e.Tag == model.DataTagMock {
		status = "FAILED"
	}
	fields := []zap.Field{
		zap.String("tag", string(e.Tag)),
		zap.String("provider", string(e.Provider)),
		zap.String("endpoint", StripCredentials(e.Endpoint)),
		zap.String("ticker", e.Ticker),
		zap.String("status", status),
		zap.Duration("response_time", e.Elapsed),
	}
	if e.Cached {
		fields = append(fields, zap.Bool("cached", true))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}
	if e.Err != nil {
		fields = append(fields, zap.String("error", StripCredentials(e.Err.Error())))
	}

	msg := string(e.Tag) + " " + string(e.Provider)
	if e.Tag == model.DataTagMock {
		d.log.Warn(msg, fields...)
		return
	}
	d.log.Info(msg, fields...)
}

// Summary writes the per-run totals line. It is a warning when mock data
// outweighs live data.
func (d *DataLog) Summary(ticker string, s model.DataSummary) {
	if d == nil {
		return
	}
	fields := []zap.Field{
		zap.String("ticker", ticker),
		zap.Int("total", s.Total),
		zap.Int("live", s.Live),
		zap.Int("mock", s.Mock),
		zap.Int("calc", s.Calc),
		zap.Float64("live_pct", s.LivePct),
		zap.Float64("mock_pct", s.MockPct),
	}
	if s.Mock > s.Live {
		d.log.Warn("SUMMARY", fields...)
		return
	}
	d.log.Info("SUMMARY", fields...)
}
