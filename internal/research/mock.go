package research

import (
	"time"

	"github.com/sells-group/research-mcp/internal/model"
)

// Static fallback payloads. Every value is tagged source=mock,
// confidence=low so it can never be mistaken for provider data.

func mockString(v string, ts time.Time) model.Attributed[string] {
	return model.Attr(v, model.SourceMock, model.ConfidenceLow, ts)
}

func mockInt(v int, ts time.Time) model.Attributed[int] {
	return model.Attr(v, model.SourceMock, model.ConfidenceLow, ts)
}

func mockFloat(v float64, ts time.Time) model.Attributed[float64] {
	return model.Attr(v, model.SourceMock, model.ConfidenceLow, ts)
}

func mockProfile(ticker string, ts time.Time) *model.ProfileSection {
	return &model.ProfileSection{
		Name:              mockString(ticker+" Corporation", ts),
		Description:       mockString("Placeholder profile used while the market data provider is unavailable.", ts),
		Exchange:          mockString("NASDAQ", ts),
		Country:           mockString("US", ts),
		Sector:            mockString("Technology", ts),
		Website:           mockString("https://example.com", ts),
		Logo:              model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
		MarketCapMillions: mockFloat(100000, ts),
		Quote: model.QuoteSnapshot{
			Current:       mockFloat(100, ts),
			Change:        mockFloat(1.5, ts),
			ChangePercent: mockFloat(1.52, ts),
			PreviousClose: mockFloat(98.5, ts),
			Open:          mockFloat(99, ts),
			High:          mockFloat(101.25, ts),
			Low:           mockFloat(98.1, ts),
		},
	}
}

func mockNews(ts time.Time) *model.NewsSection {
	headlines := []struct{ title, source string }{
		{"Company reports revenue growth in latest quarter", "Mock Wire"},
		{"Analysts weigh margin concerns ahead of earnings", "Mock Wire"},
		{"Company announces product update", "Mock Wire"},
	}
	s := &model.NewsSection{
		TotalArticles: mockInt(len(headlines), ts),
		PositiveCount: mockInt(1, ts),
		NegativeCount: mockInt(1, ts),
		NeutralCount:  mockInt(1, ts),
	}
	for i, h := range headlines {
		s.Headlines = append(s.Headlines, model.Headline{
			Headline:  mockString(h.title, ts),
			Published: model.Attr(ts.Add(-time.Duration(i+1)*24*time.Hour), model.SourceMock, model.ConfidenceLow, ts),
			Source:    mockString(h.source, ts),
			URL:       model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
			Summary:   model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
		})
	}
	return s
}

func mockFilings(days int, ts time.Time) *model.FilingsSection {
	filings := []struct{ form, date, period string }{
		{"10-Q", ts.AddDate(0, 0, -20).Format(time.DateOnly), ts.AddDate(0, 0, -50).Format(time.DateOnly)},
		{"8-K", ts.AddDate(0, 0, -45).Format(time.DateOnly), ""},
	}
	s := &model.FilingsSection{
		CIK:            model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
		Name:           model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
		SIC:            model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
		SICDescription: model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
		WindowDays:     mockInt(days, ts),
		TotalFilings:   mockInt(len(filings), ts),
		KeyForms: map[string]model.Attributed[int]{
			"10-K": mockInt(0, ts),
			"10-Q": mockInt(1, ts),
			"8-K":  mockInt(1, ts),
		},
	}
	for _, f := range filings {
		period := mockString(f.period, ts)
		if f.period == "" {
			period = model.Missing[string](model.SourceMock, model.ConfidenceLow, ts)
		}
		s.Recent = append(s.Recent, model.FilingSummary{
			FormType:        mockString(f.form, ts),
			FilingDate:      mockString(f.date, ts),
			AccessionNumber: model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
			PeriodOfReport:  period,
			DocumentURL:     model.Missing[string](model.SourceMock, model.ConfidenceLow, ts),
		})
	}
	return s
}

func mockAnalyst(ts time.Time) *model.AnalystSection {
	return &model.AnalystSection{
		StrongBuy:        mockInt(5, ts),
		Buy:              mockInt(10, ts),
		Hold:             mockInt(8, ts),
		Sell:             mockInt(2, ts),
		StrongSell:       mockInt(1, ts),
		TotalAnalysts:    mockInt(26, ts),
		Period:           mockString(ts.Format("2006-01")+"-01", ts),
		AverageSurprise:  mockFloat(0.05, ts),
		QuartersAnalyzed: mockInt(4, ts),
		ConsistentBeats:  mockInt(3, ts),
	}
}
