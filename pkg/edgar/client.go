// Package edgar reads company metadata and recent filings from SEC EDGAR.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-mcp/internal/resilience"
)

const (
	defaultBaseURL = "https://www.sec.gov"
	defaultDataURL = "https://data.sec.gov"
)

var (
	// ErrNotConfigured is returned when no User-Agent is set. SEC rejects
	// anonymous automated traffic.
	ErrNotConfigured = eris.New("edgar: user agent not configured")
	// ErrUnknownTicker is returned when the ticker has no CIK mapping.
	ErrUnknownTicker = eris.New("edgar: ticker not found")
)

// Client reads EDGAR company data.
type Client interface {
	LookupCIK(ctx context.Context, ticker string) (int, error)
	Submissions(ctx context.Context, cik int) (*Submissions, error)
}

// Submissions is the subset of data.sec.gov/submissions/CIK##########.json
// the research workflow uses.
type Submissions struct {
	CIK            string          `json:"cik"`
	Name           string          `json:"name"`
	SIC            string          `json:"sic"`
	SICDescription string          `json:"sicDescription"`
	Tickers        []string        `json:"tickers"`
	Exchanges      []string        `json:"exchanges"`
	Filings        filingsEnvelope `json:"filings"`
}

type filingsEnvelope struct {
	Recent RecentFilings `json:"recent"`
}

// RecentFilings is EDGAR's columnar filing list: element i of every slice
// describes filing i.
type RecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// Filing is one row of RecentFilings.
type Filing struct {
	AccessionNumber string
	FilingDate      time.Time
	ReportDate      string
	Form            string
	PrimaryDocument string
	DocumentURL     string
}

// Filter selects rows from RecentFilings.
type Filter struct {
	Forms []string
	Since time.Time
	Limit int
}

// Recent returns the filings matching f, newest first.
func (s *Submissions) Recent(f Filter) []Filing {
	if s == nil {
		return nil
	}
	forms := make(map[string]bool, len(f.Forms))
	for _, form := range f.Forms {
		forms[strings.ToUpper(form)] = true
	}

	cik := strings.TrimLeft(s.CIK, "0")
	r := s.Filings.Recent
	var out []Filing
	for i, acc := range r.AccessionNumber {
		if acc == "" {
			continue
		}
		form := safeIndex(r.Form, i)
		if len(forms) > 0 && !forms[strings.ToUpper(form)] {
			continue
		}
		filed, err := time.Parse(time.DateOnly, safeIndex(r.FilingDate, i))
		if err != nil {
			continue
		}
		if !f.Since.IsZero() && filed.Before(f.Since) {
			continue
		}
		doc := safeIndex(r.PrimaryDocument, i)
		out = append(out, Filing{
			AccessionNumber: acc,
			FilingDate:      filed,
			ReportDate:      safeIndex(r.ReportDate, i),
			Form:            form,
			PrimaryDocument: doc,
			DocumentURL:     DocumentURL(cik, acc, doc),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FilingDate.After(out[j].FilingDate)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// DocumentURL builds the archive URL of a filing's primary document.
func DocumentURL(cik, accession, doc string) string {
	if cik == "" || accession == "" || doc == "" {
		return ""
	}
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		defaultBaseURL, cik, strings.ReplaceAll(accession, "-", ""), doc)
}

func safeIndex(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURLs overrides the www.sec.gov and data.sec.gov hosts.
func WithBaseURLs(baseURL, dataURL string) Option {
	return func(c *httpClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
		if dataURL != "" {
			c.dataURL = dataURL
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the 10 req/s SEC fair-access limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 10)
	}
}

type httpClient struct {
	userAgent string
	baseURL   string
	dataURL   string
	http      *http.Client
	limiter   *rate.Limiter

	mu      sync.Mutex
	tickers map[string]int
}

// NewClient creates an EDGAR client. userAgent must identify the caller,
// e.g. "Company Name admin@example.com".
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		userAgent: userAgent,
		baseURL:   defaultBaseURL,
		dataURL:   defaultDataURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type tickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// LookupCIK resolves a ticker through company_tickers.json. The mapping is
// fetched once per client.
func (c *httpClient) LookupCIK(ctx context.Context, ticker string) (int, error) {
	if c.userAgent == "" {
		return 0, ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tickers == nil {
		var raw map[string]tickerEntry
		if err := c.get(ctx, c.baseURL+"/files/company_tickers.json", &raw); err != nil {
			return 0, err
		}
		m := make(map[string]int, len(raw))
		for _, e := range raw {
			m[strings.ToUpper(e.Ticker)] = e.CIK
		}
		c.tickers = m
	}

	cik, ok := c.tickers[strings.ToUpper(ticker)]
	if !ok {
		return 0, ErrUnknownTicker
	}
	return cik, nil
}

func (c *httpClient) Submissions(ctx context.Context, cik int) (*Submissions, error) {
	if c.userAgent == "" {
		return nil, ErrNotConfigured
	}
	var s Submissions
	if err := c.get(ctx, fmt.Sprintf("%s/submissions/CIK%010d.json", c.dataURL, cik), &s); err != nil {
		return nil, err
	}
	if s.CIK == "" {
		s.CIK = strconv.Itoa(cik)
	}
	return &s, nil
}

func (c *httpClient) get(ctx context.Context, url string, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "edgar: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "edgar: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "edgar: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "edgar: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError("edgar", resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return eris.Wrap(err, "edgar: unmarshal response")
	}
	return nil
}
