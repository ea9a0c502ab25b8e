package research

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/pkg/edgar"
)

// FilingSummaryLimit is the number of filings described in the section.
const FilingSummaryLimit = 5

type filingsStep struct{ g *Gatherer }

func (filingsStep) Name() string { return model.StepFilings }

func (s filingsStep) Run(ctx context.Context, ticker string, rec *model.ResearchRecord) Outcome {
	section, out := s.g.Filings(ctx, ticker, 0, 0)
	rec.Filings = section
	return out
}

func (s filingsStep) Fallback(ticker string, rec *model.ResearchRecord, cause error) Outcome {
	rec.Filings = mockFilings(s.g.opts.FilingsDays, s.g.now())
	return s.g.fallback(model.StepFilings, model.SourceSECEdgar, ticker, cause)
}

// Filings gathers SEC company info and filings of the configured forms
// from the last days days. Zero days or limit use the configured values.
func (g *Gatherer) Filings(ctx context.Context, ticker string, days, limit int) (*model.FilingsSection, Outcome) {
	if days <= 0 {
		days = g.opts.FilingsDays
	}
	if limit <= 0 {
		limit = g.opts.FilingsLimit
	}

	start := g.now()
	ev := Event{Provider: model.SourceSECEdgar, Endpoint: "files/company_tickers.json", Ticker: ticker}

	cik, cikCached, err := fetch(ctx, g, model.SourceSECEdgar, "cik", ticker, func(ctx context.Context) (int, error) {
		return g.edgar.LookupCIK(ctx, ticker)
	})
	ts := g.now()
	switch {
	case errors.Is(err, edgar.ErrUnknownTicker):
		ev.Tag = model.DataTagLive
		ev.Detail = "no CIK for ticker"
		return emptyFilings(days, ts), g.record(model.StepFilings, ev, start)
	case err != nil:
		ev.Tag = model.DataTagMock
		ev.Err = err
		return mockFilings(days, ts), g.record(model.StepFilings, ev, start)
	}

	ev.Endpoint = fmt.Sprintf("submissions/CIK%010d.json", cik)
	sub, subCached, err := fetch(ctx, g, model.SourceSECEdgar, "submissions", strconv.Itoa(cik), func(ctx context.Context) (*edgar.Submissions, error) {
		return g.edgar.Submissions(ctx, cik)
	})
	ts = g.now()
	if err != nil {
		ev.Tag = model.DataTagMock
		ev.Err = err
		return mockFilings(days, ts), g.record(model.StepFilings, ev, start)
	}

	src := model.SourceSECEdgar
	recent := sub.Recent(edgar.Filter{
		Forms: g.opts.Forms,
		Since: start.AddDate(0, 0, -days),
		Limit: limit,
	})

	section := &model.FilingsSection{
		CIK:            model.Attr(fmt.Sprintf("%010d", cik), src, model.ConfidenceHigh, ts),
		Name:           liveString(sub.Name, src, ts),
		SIC:            liveString(sub.SIC, src, ts),
		SICDescription: liveString(sub.SICDescription, src, ts),
		WindowDays:     model.Attr(days, src, model.ConfidenceHigh, ts),
		TotalFilings:   model.Attr(len(recent), src, model.ConfidenceHigh, ts),
		KeyForms:       make(map[string]model.Attributed[int], len(g.opts.Forms)),
	}

	counts := make(map[string]int, len(g.opts.Forms))
	for _, f := range recent {
		counts[f.Form]++
	}
	for _, form := range g.opts.Forms {
		section.KeyForms[form] = model.Attr(counts[form], src, model.ConfidenceHigh, ts)
	}

	for i, f := range recent {
		if i == FilingSummaryLimit {
			break
		}
		section.Recent = append(section.Recent, model.FilingSummary{
			FormType:        liveString(f.Form, src, ts),
			FilingDate:      liveString(f.FilingDate.Format(time.DateOnly), src, ts),
			AccessionNumber: liveString(f.AccessionNumber, src, ts),
			PeriodOfReport:  liveString(f.ReportDate, src, ts),
			DocumentURL:     liveString(f.DocumentURL, src, ts),
		})
	}

	ev.Tag = model.DataTagLive
	ev.Cached = cikCached && subCached
	ev.Detail = fmt.Sprintf("%d filings in last %d days", len(recent), days)
	return section, g.record(model.StepFilings, ev, start)
}

func emptyFilings(days int, ts time.Time) *model.FilingsSection {
	src := model.SourceSECEdgar
	return &model.FilingsSection{
		CIK:            model.Missing[string](src, model.ConfidenceLow, ts),
		Name:           model.Missing[string](src, model.ConfidenceLow, ts),
		SIC:            model.Missing[string](src, model.ConfidenceLow, ts),
		SICDescription: model.Missing[string](src, model.ConfidenceLow, ts),
		WindowDays:     model.Attr(days, src, model.ConfidenceLow, ts),
		TotalFilings:   model.Missing[int](src, model.ConfidenceLow, ts),
		KeyForms:       map[string]model.Attributed[int]{},
	}
}
