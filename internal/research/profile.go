package research

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/pkg/finnhub"
)

type profileStep struct{ g *Gatherer }

func (profileStep) Name() string { return model.StepProfile }

func (s profileStep) Run(ctx context.Context, ticker string, rec *model.ResearchRecord) Outcome {
	section, out := s.g.Profile(ctx, ticker)
	rec.Profile = section
	return out
}

func (s profileStep) Fallback(ticker string, rec *model.ResearchRecord, cause error) Outcome {
	rec.Profile = mockProfile(ticker, s.g.now())
	return s.g.fallback(model.StepProfile, model.SourceFinnhub, ticker, cause)
}

// Profile gathers the company profile and trading snapshot from Finnhub.
func (g *Gatherer) Profile(ctx context.Context, ticker string) (*model.ProfileSection, Outcome) {
	start := g.now()
	ev := Event{Provider: model.SourceFinnhub, Endpoint: "stock/profile2?symbol=" + ticker, Ticker: ticker}

	p, cached, err := fetch(ctx, g, model.SourceFinnhub, "profile", ticker, func(ctx context.Context) (*finnhub.Profile, error) {
		return g.finnhub.CompanyProfile(ctx, ticker)
	})
	ts := g.now()

	switch {
	case errors.Is(err, finnhub.ErrNotFound):
		ev.Tag = model.DataTagLive
		ev.Detail = "symbol not found"
		section := emptyProfile(model.SourceFinnhub, ts)
		return section, g.record(model.StepProfile, ev, start)
	case err != nil:
		ev.Tag = model.DataTagMock
		ev.Err = err
		return mockProfile(ticker, ts), g.record(model.StepProfile, ev, start)
	}

	section := &model.ProfileSection{
		Name:        liveString(p.Name, model.SourceFinnhub, ts),
		Description: liveString(truncate(p.Description, 500), model.SourceFinnhub, ts),
		Exchange:    liveString(p.Exchange, model.SourceFinnhub, ts),
		Country:     liveString(p.Country, model.SourceFinnhub, ts),
		Sector:      liveString(p.Industry, model.SourceFinnhub, ts),
		Website:     liveString(p.WebURL, model.SourceFinnhub, ts),
		Logo:        liveString(p.Logo, model.SourceFinnhub, ts),
	}
	if p.MarketCapitalization > 0 {
		section.MarketCapMillions = model.Attr(p.MarketCapitalization, model.SourceFinnhub, model.ConfidenceHigh, ts)
	} else {
		section.MarketCapMillions = model.Missing[float64](model.SourceFinnhub, model.ConfidenceLow, ts)
	}

	q, qcached, qerr := fetch(ctx, g, model.SourceFinnhub, "quote", ticker, func(ctx context.Context) (*finnhub.Quote, error) {
		return g.finnhub.Quote(ctx, ticker)
	})
	ts = g.now()
	if qerr != nil {
		section.Quote = emptyQuote(model.SourceFinnhub, ts)
		ev.Detail = "quote unavailable: " + qerr.Error()
	} else {
		section.Quote = model.QuoteSnapshot{
			Current:       model.Attr(q.Current, model.SourceFinnhub, model.ConfidenceHigh, ts),
			Change:        model.Attr(q.Change, model.SourceFinnhub, model.ConfidenceHigh, ts),
			ChangePercent: model.Attr(q.ChangePercent, model.SourceFinnhub, model.ConfidenceHigh, ts),
			PreviousClose: model.Attr(q.PreviousClose, model.SourceFinnhub, model.ConfidenceHigh, ts),
			Open:          model.Attr(q.Open, model.SourceFinnhub, model.ConfidenceHigh, ts),
			High:          model.Attr(q.High, model.SourceFinnhub, model.ConfidenceHigh, ts),
			Low:           model.Attr(q.Low, model.SourceFinnhub, model.ConfidenceHigh, ts),
		}
	}

	ev.Tag = model.DataTagLive
	ev.Cached = cached && qcached
	return section, g.record(model.StepProfile, ev, start)
}

func emptyProfile(src model.Source, ts time.Time) *model.ProfileSection {
	return &model.ProfileSection{
		Name:              model.Missing[string](src, model.ConfidenceLow, ts),
		Description:       model.Missing[string](src, model.ConfidenceLow, ts),
		Exchange:          model.Missing[string](src, model.ConfidenceLow, ts),
		Country:           model.Missing[string](src, model.ConfidenceLow, ts),
		Sector:            model.Missing[string](src, model.ConfidenceLow, ts),
		Website:           model.Missing[string](src, model.ConfidenceLow, ts),
		Logo:              model.Missing[string](src, model.ConfidenceLow, ts),
		MarketCapMillions: model.Missing[float64](src, model.ConfidenceLow, ts),
		Quote:             emptyQuote(src, ts),
	}
}

func emptyQuote(src model.Source, ts time.Time) model.QuoteSnapshot {
	return model.QuoteSnapshot{
		Current:       model.Missing[float64](src, model.ConfidenceLow, ts),
		Change:        model.Missing[float64](src, model.ConfidenceLow, ts),
		ChangePercent: model.Missing[float64](src, model.ConfidenceLow, ts),
		PreviousClose: model.Missing[float64](src, model.ConfidenceLow, ts),
		Open:          model.Missing[float64](src, model.ConfidenceLow, ts),
		High:          model.Missing[float64](src, model.ConfidenceLow, ts),
		Low:           model.Missing[float64](src, model.ConfidenceLow, ts),
	}
}
