package edgar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-mcp/internal/resilience"
)

const tickersJSON = `{
	"0": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"},
	"1": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}
}`

const submissionsJSON = `{
	"cik": "789019",
	"name": "MICROSOFT CORP",
	"sic": "7372",
	"sicDescription": "Services-Prepackaged Software",
	"tickers": ["MSFT"],
	"filings": {"recent": {
		"accessionNumber": ["0000950170-25-010491", "0000789019-25-000012", "0001193125-25-000001", "0000950170-24-087843"],
		"filingDate":      ["2025-01-29", "2025-01-15", "2025-01-10", "2024-10-30"],
		"reportDate":      ["2024-12-31", "", "", "2024-09-30"],
		"form":            ["10-Q", "4", "8-K", "10-Q"],
		"primaryDocument": ["msft-20241231.htm", "xslF345X05/wk-form4.xml", "d123.htm", "msft-20240930.htm"]
	}}
}`

func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Research Test admin@example.com", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/files/company_tickers.json":
			if hits != nil {
				hits.Add(1)
			}
			_, _ = w.Write([]byte(tickersJSON))
		case "/submissions/CIK0000789019.json":
			_, _ = w.Write([]byte(submissionsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupCIK_CachesMapping(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	c := NewClient("Research Test admin@example.com", WithBaseURLs(srv.URL, srv.URL), WithRateLimit(0))

	cik, err := c.LookupCIK(context.Background(), "msft")
	require.NoError(t, err)
	assert.Equal(t, 789019, cik)

	cik, err = c.LookupCIK(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 320193, cik)

	_, err = c.LookupCIK(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, ErrUnknownTicker))

	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmissions_RecentFilter(t *testing.T) {
	srv := newTestServer(t, nil)
	c := NewClient("Research Test admin@example.com", WithBaseURLs(srv.URL, srv.URL), WithRateLimit(0))

	sub, err := c.Submissions(context.Background(), 789019)
	require.NoError(t, err)
	assert.Equal(t, "MICROSOFT CORP", sub.Name)
	assert.Equal(t, "Services-Prepackaged Software", sub.SICDescription)

	filings := sub.Recent(Filter{
		Forms: []string{"10-K", "10-Q", "8-K"},
		Since: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, filings, 2)
	assert.Equal(t, "10-Q", filings[0].Form)
	assert.Equal(t, "2024-12-31", filings[0].ReportDate)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/789019/000095017025010491/msft-20241231.htm", filings[0].DocumentURL)
	assert.Equal(t, "8-K", filings[1].Form)

	limited := sub.Recent(Filter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "0000950170-25-010491", limited[0].AccessionNumber)
}

func TestRecent_NilSubmissions(t *testing.T) {
	var s *Submissions
	assert.Empty(t, s.Recent(Filter{}))
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient("")
	_, err := c.LookupCIK(context.Background(), "MSFT")
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = c.Submissions(context.Background(), 789019)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestClient_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Request Rate Threshold Exceeded"))
	}))
	defer srv.Close()

	c := NewClient("Research Test admin@example.com", WithBaseURLs(srv.URL, srv.URL), WithRateLimit(0))
	_, err := c.Submissions(context.Background(), 789019)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
	assert.True(t, resilience.IsTransient(err))
}

func TestDocumentURL(t *testing.T) {
	assert.Empty(t, DocumentURL("", "0000950170-25-010491", "a.htm"))
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/320193/000032019325000008/aapl.htm",
		DocumentURL("320193", "0000320193-25-000008", "aapl.htm"))
}
