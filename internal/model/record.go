package model

import "time"

// WorkflowVersion is stamped on every research record.
const WorkflowVersion = "1.0"

// ResearchRecord is the merged output of one research workflow. Each
// gathering step writes exactly one section.
type ResearchRecord struct {
	Ticker          string          `json:"ticker"`
	ThreadID        string          `json:"thread_id,omitempty"`
	WorkflowVersion string          `json:"workflow_version"`
	IncludeFilings  bool            `json:"include_sec_filings"`
	CreatedAt       time.Time       `json:"created_at"`
	Profile         *ProfileSection `json:"profile,omitempty"`
	News            *NewsSection    `json:"news,omitempty"`
	Filings         *FilingsSection `json:"filings,omitempty"`
	Analyst         *AnalystSection `json:"analyst,omitempty"`
	Synthesis       *Synthesis      `json:"synthesis,omitempty"`
	DataSources     *DataSummary    `json:"data_sources,omitempty"`
}

// NewResearchRecord starts an empty record for ticker.
func NewResearchRecord(ticker, threadID string, includeFilings bool, now time.Time) *ResearchRecord {
	return &ResearchRecord{
		Ticker:          ticker,
		ThreadID:        threadID,
		WorkflowVersion: WorkflowVersion,
		IncludeFilings:  includeFilings,
		CreatedAt:       now,
	}
}

// ProfileSection is the company profile plus a trading snapshot.
type ProfileSection struct {
	Name              Attributed[string]  `json:"name"`
	Description       Attributed[string]  `json:"description"`
	Exchange          Attributed[string]  `json:"exchange"`
	Country           Attributed[string]  `json:"country"`
	Sector            Attributed[string]  `json:"sector"`
	Website           Attributed[string]  `json:"website"`
	Logo              Attributed[string]  `json:"logo"`
	MarketCapMillions Attributed[float64] `json:"market_cap_millions"`
	Quote             QuoteSnapshot       `json:"quote"`
}

// QuoteSnapshot holds the latest trading values.
type QuoteSnapshot struct {
	Current       Attributed[float64] `json:"current_price"`
	Change        Attributed[float64] `json:"change"`
	ChangePercent Attributed[float64] `json:"change_percent"`
	PreviousClose Attributed[float64] `json:"previous_close"`
	Open          Attributed[float64] `json:"open"`
	High          Attributed[float64] `json:"high"`
	Low           Attributed[float64] `json:"low"`
}

// Populated reports whether the section has at least one live field.
func (p *ProfileSection) Populated() bool {
	if p == nil {
		return false
	}
	return AnyLive(p.Name, p.Description, p.Exchange, p.Country, p.Sector, p.Website, p.Logo,
		p.MarketCapMillions, p.Quote.Current, p.Quote.Change, p.Quote.ChangePercent,
		p.Quote.PreviousClose, p.Quote.Open, p.Quote.High, p.Quote.Low)
}

// NewsSection summarizes recent headlines and keyword sentiment.
type NewsSection struct {
	TotalArticles Attributed[int] `json:"total_articles"`
	Headlines     []Headline      `json:"recent_headlines"`
	PositiveCount Attributed[int] `json:"positive_articles"`
	NegativeCount Attributed[int] `json:"negative_articles"`
	NeutralCount  Attributed[int] `json:"neutral_articles"`
}

// Headline is one news article.
type Headline struct {
	Headline  Attributed[string]    `json:"headline"`
	Published Attributed[time.Time] `json:"published"`
	Source    Attributed[string]    `json:"source"`
	URL       Attributed[string]    `json:"url"`
	Summary   Attributed[string]    `json:"summary"`
}

// Populated reports whether the section has at least one live field.
func (n *NewsSection) Populated() bool {
	if n == nil {
		return false
	}
	if AnyLive(n.TotalArticles, n.PositiveCount, n.NegativeCount, n.NeutralCount) {
		return true
	}
	for _, h := range n.Headlines {
		if AnyLive(h.Headline, h.Published, h.Source, h.URL, h.Summary) {
			return true
		}
	}
	return false
}

// FilingsSection summarizes recent SEC filings.
type FilingsSection struct {
	CIK            Attributed[string]         `json:"cik"`
	Name           Attributed[string]         `json:"name"`
	SIC            Attributed[string]         `json:"sic"`
	SICDescription Attributed[string]         `json:"sic_description"`
	WindowDays     Attributed[int]            `json:"window_days"`
	TotalFilings   Attributed[int]            `json:"total_filings"`
	Recent         []FilingSummary            `json:"filing_summary"`
	KeyForms       map[string]Attributed[int] `json:"key_forms"`
}

// FilingSummary is one filing in the recent window.
type FilingSummary struct {
	FormType        Attributed[string] `json:"form_type"`
	FilingDate      Attributed[string] `json:"filing_date"`
	AccessionNumber Attributed[string] `json:"accession_number"`
	PeriodOfReport  Attributed[string] `json:"period_of_report"`
	DocumentURL     Attributed[string] `json:"document_url"`
}

// Populated reports whether the section has at least one live field.
func (f *FilingsSection) Populated() bool {
	if f == nil {
		return false
	}
	if AnyLive(f.CIK, f.Name, f.SIC, f.SICDescription, f.TotalFilings) {
		return true
	}
	for _, r := range f.Recent {
		if AnyLive(r.FormType, r.FilingDate, r.AccessionNumber, r.PeriodOfReport, r.DocumentURL) {
			return true
		}
	}
	return false
}

// AnalystSection holds recommendation and earnings data.
type AnalystSection struct {
	StrongBuy        Attributed[int]        `json:"strong_buy"`
	Buy              Attributed[int]        `json:"buy"`
	Hold             Attributed[int]        `json:"hold"`
	Sell             Attributed[int]        `json:"sell"`
	StrongSell       Attributed[int]        `json:"strong_sell"`
	TotalAnalysts    Attributed[int]        `json:"total_analysts"`
	Period           Attributed[string]     `json:"period"`
	Trend            []RecommendationPeriod `json:"trend"`
	Earnings         []EarningsQuarter      `json:"recent_quarters"`
	AverageSurprise  Attributed[float64]    `json:"average_surprise"`
	QuartersAnalyzed Attributed[int]        `json:"quarters_analyzed"`
	ConsistentBeats  Attributed[int]        `json:"consistent_beats"`
}

// RecommendationPeriod is one month of analyst recommendation counts.
type RecommendationPeriod struct {
	Period     Attributed[string] `json:"period"`
	StrongBuy  Attributed[int]    `json:"strong_buy"`
	Buy        Attributed[int]    `json:"buy"`
	Hold       Attributed[int]    `json:"hold"`
	Sell       Attributed[int]    `json:"sell"`
	StrongSell Attributed[int]    `json:"strong_sell"`
}

// EarningsQuarter is one reported quarter.
type EarningsQuarter struct {
	Period          Attributed[string]  `json:"period"`
	Actual          Attributed[float64] `json:"actual"`
	Estimate        Attributed[float64] `json:"estimate"`
	Surprise        Attributed[float64] `json:"surprise"`
	SurprisePercent Attributed[float64] `json:"surprise_percent"`
}

// Populated reports whether the section has at least one live field.
func (a *AnalystSection) Populated() bool {
	if a == nil {
		return false
	}
	if AnyLive(a.StrongBuy, a.Buy, a.Hold, a.Sell, a.StrongSell, a.TotalAnalysts, a.Period) {
		return true
	}
	for _, q := range a.Earnings {
		if AnyLive(q.Period, q.Actual, q.Estimate, q.Surprise, q.SurprisePercent) {
			return true
		}
	}
	return false
}

// Synthesis is the merged report computed from the gathered sections.
type Synthesis struct {
	SentimentRatio Attributed[float64]  `json:"sentiment_ratio"`
	SentimentScore Attributed[float64]  `json:"sentiment_score"`
	AnalystScore   Attributed[float64]  `json:"analyst_score"`
	FilingActivity Attributed[int]      `json:"filing_activity"`
	Completeness   Attributed[float64]  `json:"completeness_score"`
	SourcesUsed    Attributed[[]string] `json:"sources_used"`
	Summary        ExecutiveSummary     `json:"executive_summary"`
	Narrative      Attributed[string]   `json:"narrative"`
}

// ExecutiveSummary is the fixed-shape prose summary.
type ExecutiveSummary struct {
	CompanyOverview  Attributed[string]   `json:"company_overview"`
	MarketSentiment  Attributed[string]   `json:"market_sentiment"`
	AnalystConsensus Attributed[string]   `json:"analyst_consensus"`
	RegulatoryStatus Attributed[string]   `json:"regulatory_status"`
	Highlights       Attributed[[]string] `json:"investment_highlights"`
	RiskFactors      Attributed[[]string] `json:"key_risks"`
}

// DataTag classifies one data-source call.
type DataTag string

const (
	DataTagLive DataTag = "LIVE"
	DataTagMock DataTag = "MOCK"
	DataTagCalc DataTag = "CALC"
)

// DataSummary totals the data-source calls of one workflow.
type DataSummary struct {
	Total   int     `json:"total"`
	Live    int     `json:"live"`
	Mock    int     `json:"mock"`
	Calc    int     `json:"calc"`
	LivePct float64 `json:"live_pct"`
	MockPct float64 `json:"mock_pct"`
}

// Summarize counts tags and derives percentages.
func Summarize(tags []DataTag) DataSummary {
	var s DataSummary
	for _, t := range tags {
		switch t {
		case DataTagLive:
			s.Live++
		case DataTagMock:
			s.Mock++
		case DataTagCalc:
			s.Calc++
		}
	}
	s.Total = s.Live + s.Mock + s.Calc
	if s.Total > 0 {
		s.LivePct = float64(s.Live) / float64(s.Total) * 100
		s.MockPct = float64(s.Mock) / float64(s.Total) * 100
	}
	return s
}
