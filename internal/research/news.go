package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/pkg/rssnews"
)

// HeadlineLimit is the number of headlines kept in the news section.
const HeadlineLimit = 10

type newsStep struct{ g *Gatherer }

func (newsStep) Name() string { return model.StepNews }

func (s newsStep) Run(ctx context.Context, ticker string, rec *model.ResearchRecord) Outcome {
	section, out := s.g.News(ctx, ticker)
	rec.News = section
	return out
}

func (s newsStep) Fallback(ticker string, rec *model.ResearchRecord, cause error) Outcome {
	rec.News = mockNews(s.g.now())
	src := model.SourceFinnhub
	if s.g.opts.NewsProvider == NewsRSS {
		src = model.SourceRSS
	}
	return s.g.fallback(model.StepNews, src, ticker, cause)
}

// article is the provider-neutral news item.
type article struct {
	Headline  string    `json:"headline"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
}

// News gathers recent headlines from the configured provider and scores
// their sentiment.
func (g *Gatherer) News(ctx context.Context, ticker string) (*model.NewsSection, Outcome) {
	start := g.now()
	to := start
	from := to.Add(-g.opts.NewsLookback)

	var (
		src      model.Source
		endpoint string
		items    []article
		cached   bool
		err      error
	)
	switch g.opts.NewsProvider {
	case NewsRSS:
		src = model.SourceRSS
		endpoint = g.opts.FeedURL
		if endpoint == "" {
			endpoint = rssnews.DefaultFeedURL
		}
		if strings.Contains(endpoint, "%s") {
			endpoint = fmt.Sprintf(endpoint, ticker)
		}
		items, cached, err = fetch(ctx, g, src, "headlines", ticker, func(ctx context.Context) ([]article, error) {
			if g.rss == nil {
				return nil, eris.New("rss: client not configured")
			}
			res, err := g.rss.Headlines(ctx, ticker, from)
			if err != nil {
				return nil, err
			}
			out := make([]article, 0, len(res))
			for _, a := range res {
				out = append(out, article{Headline: a.Title, Published: a.Published, Source: a.Publisher, URL: a.Link, Summary: a.Summary})
			}
			return out, nil
		})
	default:
		src = model.SourceFinnhub
		endpoint = fmt.Sprintf("company-news?symbol=%s&from=%s&to=%s", ticker, from.Format(time.DateOnly), to.Format(time.DateOnly))
		items, cached, err = fetch(ctx, g, src, "news", ticker+":"+to.Format(time.DateOnly), func(ctx context.Context) ([]article, error) {
			res, err := g.finnhub.CompanyNews(ctx, ticker, from, to)
			if err != nil {
				return nil, err
			}
			out := make([]article, 0, len(res))
			for _, a := range res {
				out = append(out, article{Headline: a.Headline, Published: a.Published(), Source: a.Source, URL: a.URL, Summary: a.Summary})
			}
			return out, nil
		})
	}

	ev := Event{Provider: src, Endpoint: endpoint, Ticker: ticker, Cached: cached}
	ts := g.now()
	if err != nil {
		ev.Tag = model.DataTagMock
		ev.Err = err
		return mockNews(ts), g.record(model.StepNews, ev, start)
	}

	section := &model.NewsSection{
		TotalArticles: model.Attr(len(items), src, model.ConfidenceHigh, ts),
	}
	for i, a := range items {
		if i == HeadlineLimit {
			break
		}
		h := model.Headline{
			Headline: liveString(truncate(a.Headline, 200), src, ts),
			Source:   liveString(a.Source, src, ts),
			URL:      liveString(a.URL, src, ts),
			Summary:  liveString(truncate(a.Summary, 300), src, ts),
		}
		if a.Published.IsZero() {
			h.Published = model.Missing[time.Time](src, model.ConfidenceLow, ts)
		} else {
			h.Published = model.Attr(a.Published, src, model.ConfidenceHigh, ts)
		}
		section.Headlines = append(section.Headlines, h)
	}

	headlines := make([]string, 0, len(items))
	for _, a := range items {
		headlines = append(headlines, a.Headline)
	}
	counts := g.lexicon.Score(headlines)
	section.PositiveCount = model.Attr(counts.Positive, model.SourceAlgorithm, model.ConfidenceMedium, ts)
	section.NegativeCount = model.Attr(counts.Negative, model.SourceAlgorithm, model.ConfidenceMedium, ts)
	section.NeutralCount = model.Attr(counts.Neutral, model.SourceAlgorithm, model.ConfidenceMedium, ts)

	ev.Tag = model.DataTagLive
	ev.Detail = fmt.Sprintf("%d articles, %d positive, %d negative", len(items), counts.Positive, counts.Negative)
	return section, g.record(model.StepNews, ev, start)
}
