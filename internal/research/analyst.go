package research

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/pkg/finnhub"
)

// Analyst window sizes.
const (
	TrendPeriods     = 4
	EarningsQuarters = 4
)

type analystStep struct{ g *Gatherer }

func (analystStep) Name() string { return model.StepAnalyst }

func (s analystStep) Run(ctx context.Context, ticker string, rec *model.ResearchRecord) Outcome {
	section, out := s.g.Analyst(ctx, ticker)
	rec.Analyst = section
	return out
}

func (s analystStep) Fallback(ticker string, rec *model.ResearchRecord, cause error) Outcome {
	rec.Analyst = mockAnalyst(s.g.now())
	return s.g.fallback(model.StepAnalyst, model.SourceFinnhub, ticker, cause)
}

// Analyst gathers recommendation counts and the earnings surprise history.
func (g *Gatherer) Analyst(ctx context.Context, ticker string) (*model.AnalystSection, Outcome) {
	start := g.now()
	ev := Event{Provider: model.SourceFinnhub, Endpoint: "stock/recommendation?symbol=" + ticker, Ticker: ticker}

	recs, recCached, err := fetch(ctx, g, model.SourceFinnhub, "recommendation", ticker, func(ctx context.Context) ([]finnhub.Recommendation, error) {
		return g.finnhub.Recommendations(ctx, ticker)
	})
	ts := g.now()
	if err != nil {
		ev.Tag = model.DataTagMock
		ev.Err = err
		return mockAnalyst(ts), g.record(model.StepAnalyst, ev, start)
	}

	src := model.SourceFinnhub
	section := &model.AnalystSection{}

	// Finnhub lists the latest period first; sort defensively.
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Period > recs[j].Period })
	if len(recs) > 0 {
		latest := recs[0]
		section.StrongBuy = model.Attr(latest.StrongBuy, src, model.ConfidenceHigh, ts)
		section.Buy = model.Attr(latest.Buy, src, model.ConfidenceHigh, ts)
		section.Hold = model.Attr(latest.Hold, src, model.ConfidenceHigh, ts)
		section.Sell = model.Attr(latest.Sell, src, model.ConfidenceHigh, ts)
		section.StrongSell = model.Attr(latest.StrongSell, src, model.ConfidenceHigh, ts)
		section.TotalAnalysts = model.Attr(latest.Total(), src, model.ConfidenceHigh, ts)
		section.Period = liveString(latest.Period, src, ts)
	} else {
		section.StrongBuy = model.Missing[int](src, model.ConfidenceLow, ts)
		section.Buy = model.Missing[int](src, model.ConfidenceLow, ts)
		section.Hold = model.Missing[int](src, model.ConfidenceLow, ts)
		section.Sell = model.Missing[int](src, model.ConfidenceLow, ts)
		section.StrongSell = model.Missing[int](src, model.ConfidenceLow, ts)
		section.TotalAnalysts = model.Missing[int](src, model.ConfidenceLow, ts)
		section.Period = model.Missing[string](src, model.ConfidenceLow, ts)
	}
	for i, r := range recs {
		if i == TrendPeriods {
			break
		}
		section.Trend = append(section.Trend, model.RecommendationPeriod{
			Period:     liveString(r.Period, src, ts),
			StrongBuy:  model.Attr(r.StrongBuy, src, model.ConfidenceHigh, ts),
			Buy:        model.Attr(r.Buy, src, model.ConfidenceHigh, ts),
			Hold:       model.Attr(r.Hold, src, model.ConfidenceHigh, ts),
			Sell:       model.Attr(r.Sell, src, model.ConfidenceHigh, ts),
			StrongSell: model.Attr(r.StrongSell, src, model.ConfidenceHigh, ts),
		})
	}

	earnings, earnCached, eerr := fetch(ctx, g, model.SourceFinnhub, "earnings", ticker, func(ctx context.Context) ([]finnhub.EarningsSurprise, error) {
		return g.finnhub.Earnings(ctx, ticker)
	})
	ts = g.now()
	if eerr != nil {
		section.AverageSurprise = model.Missing[float64](model.SourceAlgorithm, model.ConfidenceLow, ts)
		section.QuartersAnalyzed = model.Missing[int](model.SourceAlgorithm, model.ConfidenceLow, ts)
		section.ConsistentBeats = model.Missing[int](model.SourceAlgorithm, model.ConfidenceLow, ts)
		ev.Detail = "earnings unavailable: " + eerr.Error()
	} else {
		applyEarnings(section, earnings, ts)
		ev.Detail = fmt.Sprintf("%d analysts, %d quarters", section.TotalAnalysts.Or(0), section.QuartersAnalyzed.Or(0))
	}

	ev.Tag = model.DataTagLive
	ev.Cached = recCached && earnCached
	return section, g.record(model.StepAnalyst, ev, start)
}

// applyEarnings fills the last EarningsQuarters quarters and the surprise
// statistics over the quarters that reported a surprise.
func applyEarnings(section *model.AnalystSection, earnings []finnhub.EarningsSurprise, ts time.Time) {
	src := model.SourceFinnhub
	sort.SliceStable(earnings, func(i, j int) bool { return earnings[i].Period > earnings[j].Period })
	if len(earnings) > EarningsQuarters {
		earnings = earnings[:EarningsQuarters]
	}

	var sum float64
	var reported, beats int
	for _, e := range earnings {
		section.Earnings = append(section.Earnings, model.EarningsQuarter{
			Period:          liveString(e.Period, src, ts),
			Actual:          liveFloat(e.Actual, src, ts),
			Estimate:        liveFloat(e.Estimate, src, ts),
			Surprise:        liveFloat(e.Surprise, src, ts),
			SurprisePercent: liveFloat(e.SurprisePercent, src, ts),
		})
		if e.Surprise != nil {
			sum += *e.Surprise
			reported++
			if *e.Surprise > 0 {
				beats++
			}
		}
	}

	alg := model.SourceAlgorithm
	section.QuartersAnalyzed = model.Attr(reported, alg, model.ConfidenceMedium, ts)
	section.ConsistentBeats = model.Attr(beats, alg, model.ConfidenceMedium, ts)
	if reported > 0 {
		section.AverageSurprise = model.Attr(sum/float64(reported), alg, model.ConfidenceMedium, ts)
	} else {
		section.AverageSurprise = model.Missing[float64](alg, model.ConfidenceLow, ts)
	}
}
