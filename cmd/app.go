package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-mcp/internal/cache"
	"github.com/sells-group/research-mcp/internal/config"
	"github.com/sells-group/research-mcp/internal/research"
	"github.com/sells-group/research-mcp/internal/resilience"
	"github.com/sells-group/research-mcp/internal/store"
	"github.com/sells-group/research-mcp/internal/synth"
	"github.com/sells-group/research-mcp/internal/tracker"
	"github.com/sells-group/research-mcp/internal/workflow"
	anthropicpkg "github.com/sells-group/research-mcp/pkg/anthropic"
	"github.com/sells-group/research-mcp/pkg/edgar"
	"github.com/sells-group/research-mcp/pkg/finnhub"
	"github.com/sells-group/research-mcp/pkg/rssnews"
)

// appEnv holds the initialized clients, store and engine needed by the
// serve/research/overview/runs/status commands.
type appEnv struct {
	Store   store.Store // nil for the memory driver
	Cache   cache.Cache
	Tracker *tracker.Tracker
	Engine  *workflow.Engine
}

// Close releases resources held by the environment.
func (a *appEnv) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// initStore opens and migrates the configured store. The memory driver
// returns a nil store.
func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver == store.DriverSQLite && dsn == "" {
		dsn = store.DefaultSQLitePath
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCache opens the provider response cache, or returns nil when caching
// is disabled.
func initCache(ctx context.Context, c config.CacheConfig) (cache.Cache, error) {
	if !c.Enabled {
		return nil, nil
	}
	bc, err := cache.Open(c.Dir, c.TTL())
	if err != nil {
		return nil, err
	}
	// Entries left by earlier processes are dropped once they expire.
	if err := bc.Purge(ctx); err != nil {
		zap.L().Warn("provider cache purge failed", zap.Error(err))
	}
	zap.L().Info("provider cache enabled", zap.String("dir", c.Dir), zap.Duration("ttl", c.TTL()))
	return bc, nil
}

func httpClient(timeoutSecs int) *http.Client {
	return &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
}

func newFinnhub(c config.FinnhubConfig) finnhub.Client {
	opts := []finnhub.Option{}
	if c.BaseURL != "" {
		opts = append(opts, finnhub.WithBaseURL(c.BaseURL))
	}
	if c.TimeoutSecs > 0 {
		opts = append(opts, finnhub.WithHTTPClient(httpClient(c.TimeoutSecs)))
	}
	if c.RateLimit > 0 {
		opts = append(opts, finnhub.WithRateLimit(c.RateLimit))
	}
	if c.Key == "" {
		zap.L().Warn("finnhub api key not set, profile, news and analyst data will be mock")
	}
	return finnhub.NewClient(c.Key, opts...)
}

func newEdgar(c config.EdgarConfig) edgar.Client {
	opts := []edgar.Option{}
	if c.BaseURL != "" || c.DataURL != "" {
		opts = append(opts, edgar.WithBaseURLs(c.BaseURL, c.DataURL))
	}
	if c.TimeoutSecs > 0 {
		opts = append(opts, edgar.WithHTTPClient(httpClient(c.TimeoutSecs)))
	}
	if c.UserAgent == "" {
		zap.L().Warn("sec edgar user agent not set, filings data will be mock")
	}
	return edgar.NewClient(c.UserAgent, opts...)
}

// initApp wires the workflow engine from cfg. Callers should defer
// env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	c, err := initCache(ctx, cfg.Cache)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Cache = c

	lexicon := research.DefaultLexicon()
	if cfg.News.LexiconPath != "" {
		lexicon, err = research.LoadLexicon(cfg.News.LexiconPath)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	rc := cfg.Resilience
	guard := resilience.NewGuardFromConfig(rc.MaxAttempts, rc.InitialBackoffMs, rc.MaxBackoffMs,
		rc.Multiplier, rc.JitterFraction, rc.FailureThreshold, rc.ResetTimeoutSecs)

	datalog := research.NewDataLog(config.StreamLogger("datasource", cfg.Log.DataLog))
	runlog := workflow.NewRunLog(config.StreamLogger("workflow", cfg.Log.WorkflowLog))

	gopts := []research.GathererOption{
		research.WithGuard(guard),
		research.WithLexicon(lexicon),
		research.WithDataLog(datalog),
		research.WithOptions(research.Options{
			NewsProvider: cfg.News.Provider,
			NewsLookback: time.Duration(cfg.News.LookbackDays) * 24 * time.Hour,
			FilingsDays:  cfg.Edgar.FilingsDays,
			FilingsLimit: cfg.Edgar.FilingsLimit,
			Forms:        cfg.Edgar.Forms,
			FeedURL:      cfg.News.FeedURL,
		}),
	}
	if cfg.News.Provider == research.NewsRSS {
		gopts = append(gopts, research.WithRSS(rssnews.NewClient(cfg.News.FeedURL)))
	}
	if env.Cache != nil {
		gopts = append(gopts, research.WithCache(env.Cache))
	}
	g := research.NewGatherer(newFinnhub(cfg.Finnhub), newEdgar(cfg.Edgar), gopts...)

	sopts := []synth.Option{synth.WithDataLog(datalog)}
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		sopts = append(sopts, synth.WithNarrator(synth.NewAnthropicNarrator(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)))
		zap.L().Info("anthropic narrative enabled", zap.String("model", cfg.Anthropic.Model))
	}

	var topts []tracker.Option
	if st != nil {
		topts = append(topts, tracker.WithStore(st))
	}
	env.Tracker = tracker.New(topts...)

	env.Engine = workflow.New(g, synth.New(sopts...), env.Tracker,
		workflow.WithParallel(cfg.Workflow.Parallel),
		workflow.WithStepTimeout(cfg.Workflow.StepTimeout()),
		workflow.WithRunLog(runlog),
		workflow.WithDataLog(datalog),
	)

	zap.L().Info("research engine ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("news_provider", cfg.News.Provider),
		zap.Bool("parallel", cfg.Workflow.Parallel),
	)
	return env, nil
}
