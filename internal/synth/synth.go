// Package synth merges the gathered sections of a research record into
// quantitative metrics and a fixed-shape executive summary.
package synth

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/research"
)

// Label thresholds.
const (
	PositiveThreshold   = 0.6
	NegativeThreshold   = 0.4
	WeakAnalystSupport  = 0.3
	HighFilingActivity  = 5
	ConsistentBeatCount = 3
)

// Sentiment and consensus labels.
const (
	LabelPositive = "Positive"
	LabelNegative = "Negative"
	LabelNeutral  = "Neutral"
	LabelMixed    = "Mixed"
)

// Highlight and risk texts.
const (
	HighlightNews     = "Positive recent news sentiment"
	HighlightAnalysts = "Strong analyst support"
	HighlightEarnings = "Consistent earnings beats"
	RiskFilings       = "High regulatory filing activity may indicate volatility"
	RiskNews          = "Negative recent news sentiment"
	RiskAnalysts      = "Analyst support is weak"
)

// SentimentRatio is positive/max(negative,1).
func SentimentRatio(positive, negative int) float64 {
	return float64(positive) / float64(max(negative, 1))
}

// PositiveShare is positive/(positive+negative). ok is false when no
// headline matched either keyword list.
func PositiveShare(positive, negative int) (share float64, ok bool) {
	if positive+negative <= 0 {
		return 0, false
	}
	return float64(positive) / float64(positive+negative), true
}

// SentimentLabel classifies the positive share of scored headlines.
func SentimentLabel(positive, negative int) string {
	share, ok := PositiveShare(positive, negative)
	switch {
	case !ok:
		return LabelNeutral
	case share > PositiveThreshold:
		return LabelPositive
	case share < NegativeThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// AnalystScore is (strongBuy+buy)/total. ok is false when total is 0.
func AnalystScore(strongBuy, buy, total int) (score float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	return math.Min(1, math.Max(0, float64(strongBuy+buy)/float64(total))), true
}

// ConsensusLabel classifies an analyst score.
func ConsensusLabel(score float64) string {
	switch {
	case score > PositiveThreshold:
		return LabelPositive
	case score < NegativeThreshold:
		return LabelNegative
	default:
		return LabelMixed
	}
}

// ExpectedSources is 4, or 3 when filings were not requested.
func ExpectedSources(includeFilings bool) int {
	if includeFilings {
		return 4
	}
	return 3
}

// Completeness is populated/expected*100 clamped to [0,100].
func Completeness(populated, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	return math.Min(100, math.Max(0, float64(populated)/float64(expected)*100))
}

// PopulatedSources lists the sections of rec with at least one live field.
func PopulatedSources(rec *model.ResearchRecord) []string {
	var out []string
	if rec.Profile.Populated() {
		out = append(out, model.StepProfile)
	}
	if rec.News.Populated() {
		out = append(out, model.StepNews)
	}
	if rec.IncludeFilings && rec.Filings.Populated() {
		out = append(out, model.StepFilings)
	}
	if rec.Analyst.Populated() {
		out = append(out, model.StepAnalyst)
	}
	return out
}

// CompanyOverview renders the one-line company description.
func CompanyOverview(name, sector string, marketCapMillions float64, hasCap bool) string {
	if sector == "" {
		sector = "Unknown"
	}
	s := fmt.Sprintf("%s is a %s company", name, sector)
	if hasCap && marketCapMillions > 0 {
		s += fmt.Sprintf(" with a market cap of $%.1fB", marketCapMillions/1000)
	}
	return s
}

// Synthesizer computes the synthesis section of a research record.
type Synthesizer struct {
	narrator Narrator
	datalog  *research.DataLog
	now      func() time.Time
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithNarrator enables the LLM narrative paragraph.
func WithNarrator(n Narrator) Option {
	return func(s *Synthesizer) { s.narrator = n }
}

// WithDataLog sets the datasource stream for the CALC line.
func WithDataLog(d *research.DataLog) Option {
	return func(s *Synthesizer) { s.datalog = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// New creates a Synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		datalog: research.NewDataLog(nil),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize computes metrics and the executive summary from the gathered
// sections of rec. It reads nothing but rec and never fails.
func (s *Synthesizer) Synthesize(ctx context.Context, rec *model.ResearchRecord) *model.Synthesis {
	start := s.now()
	ts := start
	alg := model.SourceAlgorithm
	out := &model.Synthesis{}

	// News sentiment.
	var pos, neg int
	newsOK, newsMock := false, true
	if rec.News != nil {
		p, pok := rec.News.PositiveCount.Get()
		n, nok := rec.News.NegativeCount.Get()
		pos, neg = p, n
		newsOK = pok && nok
		newsMock = rec.News.PositiveCount.IsMock() || rec.News.NegativeCount.IsMock()
	}
	label := LabelNeutral
	if newsOK {
		out.SentimentRatio = model.Attr(SentimentRatio(pos, neg), alg, conf(newsMock), ts)
		if share, ok := PositiveShare(pos, neg); ok {
			out.SentimentScore = model.Attr(share, alg, conf(newsMock), ts)
		} else {
			out.SentimentScore = model.Missing[float64](alg, model.ConfidenceLow, ts)
		}
		label = SentimentLabel(pos, neg)
		out.Summary.MarketSentiment = model.Attr(label+" news sentiment", alg, conf(newsMock), ts)
	} else {
		out.SentimentRatio = model.Missing[float64](alg, model.ConfidenceLow, ts)
		out.SentimentScore = model.Missing[float64](alg, model.ConfidenceLow, ts)
		out.Summary.MarketSentiment = model.Attr("News sentiment data not available", alg, model.ConfidenceLow, ts)
	}

	// Analyst consensus.
	var score float64
	scoreOK, scoreMock := false, true
	if a := rec.Analyst; a != nil {
		sb, _ := a.StrongBuy.Get()
		b, _ := a.Buy.Get()
		total, _ := a.TotalAnalysts.Get()
		scoreMock = a.StrongBuy.IsMock() || a.Buy.IsMock() || a.TotalAnalysts.IsMock()
		if score, scoreOK = AnalystScore(sb, b, total); scoreOK {
			out.AnalystScore = model.Attr(score, alg, conf(scoreMock), ts)
			out.Summary.AnalystConsensus = model.Attr(
				fmt.Sprintf("%s analyst sentiment (%d analysts)", ConsensusLabel(score), total), alg, conf(scoreMock), ts)
		}
	}
	if !scoreOK {
		out.AnalystScore = model.Missing[float64](alg, model.ConfidenceLow, ts)
		out.Summary.AnalystConsensus = model.Attr("Analyst data not available", alg, model.ConfidenceLow, ts)
	}

	// Filing activity.
	filings, filingsMock := 0, true
	if f := rec.Filings; rec.IncludeFilings && f != nil && f.TotalFilings.Present() {
		filings = f.TotalFilings.Or(0)
		filingsMock = f.TotalFilings.IsMock()
		days := f.WindowDays.Or(90)
		out.FilingActivity = model.Attr(filings, alg, conf(f.TotalFilings.IsMock()), ts)
		out.Summary.RegulatoryStatus = model.Attr(
			fmt.Sprintf("Recent filing activity: %d filings in last %d days", filings, days), alg, conf(f.TotalFilings.IsMock()), ts)
	} else {
		out.FilingActivity = model.Missing[int](alg, model.ConfidenceLow, ts)
		out.Summary.RegulatoryStatus = model.Attr("SEC filing data not available", alg, model.ConfidenceLow, ts)
	}

	// Company overview.
	if p := rec.Profile; p != nil && p.Name.Present() {
		capM, hasCap := p.MarketCapMillions.Get()
		mock := p.Name.IsMock() || p.Sector.IsMock()
		out.Summary.CompanyOverview = model.Attr(
			CompanyOverview(p.Name.Or(""), p.Sector.Or(""), capM, hasCap), alg, conf(mock), ts)
	} else {
		out.Summary.CompanyOverview = model.Attr("Company profile data not available", alg, model.ConfidenceLow, ts)
	}

	// Highlights and risks come from live inputs only.
	newsLive := newsOK && !newsMock
	scoreLive := scoreOK && !scoreMock
	var highlights, risks []string
	if newsLive && label == LabelPositive {
		highlights = append(highlights, HighlightNews)
	}
	if scoreLive && score > PositiveThreshold {
		highlights = append(highlights, HighlightAnalysts)
	}
	if a := rec.Analyst; a != nil && !a.ConsistentBeats.IsMock() && a.ConsistentBeats.Or(0) >= ConsistentBeatCount {
		highlights = append(highlights, HighlightEarnings)
	}
	if !filingsMock && filings > HighFilingActivity {
		risks = append(risks, RiskFilings)
	}
	if newsLive && label == LabelNegative {
		risks = append(risks, RiskNews)
	}
	if scoreLive && score < WeakAnalystSupport {
		risks = append(risks, RiskAnalysts)
	}
	anyMock := anyMockSection(rec)
	out.Summary.Highlights = model.Attr(nonNil(highlights), alg, conf(anyMock), ts)
	out.Summary.RiskFactors = model.Attr(nonNil(risks), alg, conf(anyMock), ts)

	// Data quality.
	sources := PopulatedSources(rec)
	expected := ExpectedSources(rec.IncludeFilings)
	out.Completeness = model.Attr(Completeness(len(sources), expected), alg, conf(anyMock), ts)
	out.SourcesUsed = model.Attr(nonNil(sources), alg, conf(anyMock), ts)

	out.Narrative = model.Missing[string](model.SourceAnthropic, model.ConfidenceLow, ts)
	if s.narrator != nil {
		if text, err := s.narrator.Narrate(ctx, rec.Ticker, out); err == nil && text != "" {
			out.Narrative = model.Attr(text, model.SourceAnthropic, model.ConfidenceMedium, s.now())
		}
	}

	s.datalog.Record(research.Event{
		Tag:      model.DataTagCalc,
		Provider: alg,
		Endpoint: "synthesis",
		Ticker:   rec.Ticker,
		Elapsed:  s.now().Sub(start),
		Detail:   fmt.Sprintf("completeness %.0f%% (%d/%d sources)", out.Completeness.Or(0), len(sources), expected),
	})
	return out
}

func conf(mock bool) model.Confidence {
	if mock {
		return model.ConfidenceLow
	}
	return model.ConfidenceMedium
}

func anyMockSection(rec *model.ResearchRecord) bool {
	if rec.Profile != nil && rec.Profile.Name.IsMock() {
		return true
	}
	if rec.News != nil && rec.News.TotalArticles.IsMock() {
		return true
	}
	if rec.IncludeFilings && rec.Filings != nil && rec.Filings.TotalFilings.IsMock() {
		return true
	}
	return rec.Analyst != nil && rec.Analyst.TotalAnalysts.IsMock()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
