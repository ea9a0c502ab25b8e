package finnhub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-mcp/internal/resilience"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

var (
	// ErrNotConfigured is returned by every call when no API key is set.
	ErrNotConfigured = eris.New("finnhub: api key not configured")
	// ErrNotFound is returned when Finnhub has no profile for a symbol.
	ErrNotFound = eris.New("finnhub: symbol not found")
)

// Client reads company, market and analyst data from Finnhub.
type Client interface {
	CompanyProfile(ctx context.Context, symbol string) (*Profile, error)
	Quote(ctx context.Context, symbol string) (*Quote, error)
	CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]NewsArticle, error)
	Recommendations(ctx context.Context, symbol string) ([]Recommendation, error)
	Earnings(ctx context.Context, symbol string) ([]EarningsSurprise, error)
}

// Profile is the response of /stock/profile2.
type Profile struct {
	Country              string  `json:"country"`
	Currency             string  `json:"currency"`
	Exchange             string  `json:"exchange"`
	Industry             string  `json:"finnhubIndustry"`
	IPO                  string  `json:"ipo"`
	Logo                 string  `json:"logo"`
	MarketCapitalization float64 `json:"marketCapitalization"`
	Name                 string  `json:"name"`
	Phone                string  `json:"phone"`
	ShareOutstanding     float64 `json:"shareOutstanding"`
	Ticker               string  `json:"ticker"`
	WebURL               string  `json:"weburl"`
	Description          string  `json:"description,omitempty"`
}

// Quote is the response of /quote.
type Quote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// NewsArticle is one element of /company-news.
type NewsArticle struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Published converts the unix datetime field.
func (a NewsArticle) Published() time.Time {
	if a.Datetime == 0 {
		return time.Time{}
	}
	return time.Unix(a.Datetime, 0).UTC()
}

// Recommendation is one monthly period of /stock/recommendation. Finnhub
// returns the latest period first.
type Recommendation struct {
	Symbol     string `json:"symbol"`
	Period     string `json:"period"`
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
}

// Total is the number of analysts in the period.
func (r Recommendation) Total() int {
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}

// EarningsSurprise is one quarter of /stock/earnings. Values are nullable
// for quarters that have not reported.
type EarningsSurprise struct {
	Symbol          string   `json:"symbol"`
	Period          string   `json:"period"`
	Quarter         int      `json:"quarter"`
	Year            int      `json:"year"`
	Actual          *float64 `json:"actual"`
	Estimate        *float64 `json:"estimate"`
	Surprise        *float64 `json:"surprise"`
	SurprisePercent *float64 `json:"surprisePercent"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Finnhub client. The free tier allows 30 requests per
// second, which is the default limit.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(30, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CompanyProfile(ctx context.Context, symbol string) (*Profile, error) {
	var p Profile
	if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &p); err != nil {
		return nil, err
	}
	// Unknown symbols come back as 200 with an empty object.
	if p.Name == "" && p.Ticker == "" {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (c *httpClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var q Quote
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *httpClient) CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]NewsArticle, error) {
	params := url.Values{
		"symbol": {symbol},
		"from":   {from.Format(time.DateOnly)},
		"to":     {to.Format(time.DateOnly)},
	}
	var out []NewsArticle
	if err := c.get(ctx, "/company-news", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) Recommendations(ctx context.Context, symbol string) ([]Recommendation, error) {
	var out []Recommendation
	if err := c.get(ctx, "/stock/recommendation", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) Earnings(ctx context.Context, symbol string) ([]EarningsSurprise, error) {
	var out []EarningsSurprise
	if err := c.get(ctx, "/stock/earnings", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, dst any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "finnhub: rate limit wait")
		}
	}

	params.Set("token", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "finnhub: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "finnhub: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "finnhub: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError("finnhub", resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return eris.Wrap(err, "finnhub: unmarshal response")
	}
	return nil
}
