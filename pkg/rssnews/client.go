// Package rssnews reads ticker headlines from an RSS or Atom feed.
package rssnews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-mcp/internal/resilience"
)

// DefaultFeedURL is the Yahoo Finance headline feed; %s is the ticker.
const DefaultFeedURL = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"

// Client fetches headlines for a ticker.
type Client interface {
	Headlines(ctx context.Context, ticker string, since time.Time) ([]Article, error)
}

// Article is one feed item.
type Article struct {
	Title     string
	Link      string
	Summary   string
	Publisher string
	Published time.Time
}

// Option configures the client.
type Option func(*feedClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *feedClient) {
		c.parser.Client = hc
	}
}

// WithUserAgent sets the User-Agent sent with feed requests.
func WithUserAgent(ua string) Option {
	return func(c *feedClient) {
		c.parser.UserAgent = ua
	}
}

type feedClient struct {
	template string
	parser   *gofeed.Parser
}

// NewClient creates a feed client. template must contain one %s verb for
// the ticker; empty means DefaultFeedURL.
func NewClient(template string, opts ...Option) Client {
	if template == "" {
		template = DefaultFeedURL
	}
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: 10 * time.Second}
	c := &feedClient{template: template, parser: p}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Headlines returns items published at or after since, in feed order.
// Items without a date are kept.
func (c *feedClient) Headlines(ctx context.Context, ticker string, since time.Time) ([]Article, error) {
	feedURL := c.template
	if strings.Contains(feedURL, "%s") {
		feedURL = fmt.Sprintf(feedURL, url.QueryEscape(ticker))
	}

	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, resilience.StatusError("rss", httpErr.StatusCode, []byte(httpErr.Status))
		}
		return nil, eris.Wrap(err, "rss: parse feed")
	}

	publisher := feed.Title
	out := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		if !published.IsZero() && !since.IsZero() && published.Before(since) {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		out = append(out, Article{
			Title:     strings.TrimSpace(item.Title),
			Link:      item.Link,
			Summary:   strings.TrimSpace(summary),
			Publisher: publisher,
			Published: published.UTC(),
		})
	}
	return out, nil
}
