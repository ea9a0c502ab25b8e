// Package research implements the data-gathering steps of a research
// workflow. Every step calls one provider, wraps each field in a
// provenance-tagged value and substitutes static mock data when the
// provider is unreachable or unconfigured. No provider error escapes a step.
package research

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/sells-group/research-mcp/internal/cache"
	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/resilience"
	"github.com/sells-group/research-mcp/pkg/edgar"
	"github.com/sells-group/research-mcp/pkg/finnhub"
	"github.com/sells-group/research-mcp/pkg/rssnews"
)

// News providers.
const (
	NewsFinnhub = "finnhub"
	NewsRSS     = "rss"
)

// Outcome is what a step reports back to the engine.
type Outcome struct {
	Step     string
	Tag      model.DataTag
	Provider model.Source
	Elapsed  time.Duration
	Detail   string
	Err      error
}

// Mock reports whether the step fell back to mock data.
func (o Outcome) Mock() bool {
	return o.Tag == model.DataTagMock
}

// Step is one data-gathering step. Run writes only its own section of rec.
// Fallback writes the mock section when Run did not finish.
type Step interface {
	Name() string
	Run(ctx context.Context, ticker string, rec *model.ResearchRecord) Outcome
	Fallback(ticker string, rec *model.ResearchRecord, cause error) Outcome
}

// Options tunes the gathering steps.
type Options struct {
	NewsProvider string
	NewsLookback time.Duration
	FilingsDays  int
	FilingsLimit int
	Forms        []string
	// FeedURL is logged as the RSS endpoint.
	FeedURL string
}

func (o Options) withDefaults() Options {
	if o.NewsProvider == "" {
		o.NewsProvider = NewsFinnhub
	}
	if o.NewsLookback <= 0 {
		o.NewsLookback = 7 * 24 * time.Hour
	}
	if o.FilingsDays <= 0 {
		o.FilingsDays = 90
	}
	if o.FilingsLimit <= 0 {
		o.FilingsLimit = 10
	}
	if len(o.Forms) == 0 {
		o.Forms = []string{"10-K", "10-Q", "8-K"}
	}
	return o
}

// Gatherer owns the provider clients shared by all steps.
type Gatherer struct {
	finnhub finnhub.Client
	edgar   edgar.Client
	rss     rssnews.Client
	guard   *resilience.Guard
	cache   cache.Cache
	lexicon *Lexicon
	datalog *DataLog
	opts    Options
	now     func() time.Time
}

// GathererOption configures a Gatherer.
type GathererOption func(*Gatherer)

// WithRSS sets the RSS client used when the news provider is rss.
func WithRSS(c rssnews.Client) GathererOption {
	return func(g *Gatherer) { g.rss = c }
}

// WithGuard routes provider calls through breakers and retries.
func WithGuard(guard *resilience.Guard) GathererOption {
	return func(g *Gatherer) { g.guard = guard }
}

// WithCache caches raw provider payloads.
func WithCache(c cache.Cache) GathererOption {
	return func(g *Gatherer) { g.cache = c }
}

// WithLexicon overrides the sentiment keywords.
func WithLexicon(lx *Lexicon) GathererOption {
	return func(g *Gatherer) { g.lexicon = lx }
}

// WithDataLog sets the datasource stream.
func WithDataLog(d *DataLog) GathererOption {
	return func(g *Gatherer) { g.datalog = d }
}

// WithOptions sets step tuning.
func WithOptions(o Options) GathererOption {
	return func(g *Gatherer) { g.opts = o }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) GathererOption {
	return func(g *Gatherer) { g.now = now }
}

// NewGatherer creates a Gatherer. Either client may be unconfigured; its
// steps then produce mock data.
func NewGatherer(fh finnhub.Client, ed edgar.Client, opts ...GathererOption) *Gatherer {
	g := &Gatherer{
		finnhub: fh,
		edgar:   ed,
		cache:   cache.Nop{},
		lexicon: DefaultLexicon(),
		datalog: NewDataLog(nil),
		now:     time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	g.opts = g.opts.withDefaults()
	return g
}

// Steps returns the gathering steps of a deep-research run, in reporting
// order. The filings step is omitted when includeFilings is false.
func (g *Gatherer) Steps(includeFilings bool) []Step {
	steps := []Step{profileStep{g}, newsStep{g}}
	if includeFilings {
		steps = append(steps, filingsStep{g})
	}
	return append(steps, analystStep{g})
}

// fetch runs a provider call through the cache and the guard.
func fetch[T any](ctx context.Context, g *Gatherer, provider model.Source, op, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	return cache.Fetch(ctx, g.cache, string(provider)+":"+op+":"+key, func(ctx context.Context) (T, error) {
		return resilience.Call(ctx, g.guard, string(provider), op, fn)
	})
}

func (g *Gatherer) record(step string, e Event, start time.Time) Outcome {
	e.Elapsed = g.now().Sub(start)
	g.datalog.Record(e)
	return Outcome{
		Step:     step,
		Tag:      e.Tag,
		Provider: e.Provider,
		Elapsed:  e.Elapsed,
		Detail:   e.Detail,
		Err:      e.Err,
	}
}

// fallback logs the mock substitution for a step that did not finish.
func (g *Gatherer) fallback(step string, provider model.Source, ticker string, cause error) Outcome {
	return g.record(step, Event{Tag: model.DataTagMock, Provider: provider, Ticker: ticker, Err: cause}, g.now())
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// liveString wraps a provider string, treating "" as missing.
func liveString(v string, src model.Source, ts time.Time) model.Attributed[string] {
	if v == "" {
		return model.Missing[string](src, model.ConfidenceLow, ts)
	}
	return model.Attr(v, src, model.ConfidenceHigh, ts)
}

func liveFloat(v *float64, src model.Source, ts time.Time) model.Attributed[float64] {
	if v == nil {
		return model.Missing[float64](src, model.ConfidenceLow, ts)
	}
	return model.Attr(*v, src, model.ConfidenceHigh, ts)
}
