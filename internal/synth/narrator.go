package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/pkg/anthropic"
)

// Narrator writes a short prose thesis from the computed synthesis.
type Narrator interface {
	Narrate(ctx context.Context, ticker string, s *model.Synthesis) (string, error)
}

const narratorSystem = `You are an equity research assistant. Write one paragraph of at most 120 words ` +
	`summarising the investment picture for the company using only the facts provided. ` +
	`Do not invent numbers. Do not give a buy or sell recommendation.`

// AnthropicNarrator implements Narrator with the Anthropic Messages API.
type AnthropicNarrator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicNarrator creates a narrator. maxTokens <= 0 uses 300.
func NewAnthropicNarrator(client anthropic.Client, model string, maxTokens int64) *AnthropicNarrator {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &AnthropicNarrator{client: client, model: model, maxTokens: maxTokens}
}

// Narrate implements Narrator. Errors are logged and returned; the caller
// leaves the narrative empty.
func (n *AnthropicNarrator) Narrate(ctx context.Context, ticker string, s *model.Synthesis) (string, error) {
	resp, err := n.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     n.model,
		MaxTokens: n.maxTokens,
		System:    narratorSystem,
		Messages: []anthropic.Message{
			{Role: "user", Content: narratorPrompt(ticker, s)},
		},
	})
	if err != nil {
		zap.L().Warn("synth: narrative failed", zap.String("ticker", ticker), zap.Error(err))
		return "", eris.Wrap(err, "synth: narrate")
	}
	resp.Usage.LogCost(n.model, "narrative")
	text := resp.Text()
	if text == "" {
		return "", eris.New("synth: empty narrative")
	}
	return text, nil
}

func narratorPrompt(ticker string, s *model.Synthesis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", ticker)
	fmt.Fprintf(&b, "Overview: %s\n", s.Summary.CompanyOverview.Or(""))
	fmt.Fprintf(&b, "News: %s\n", s.Summary.MarketSentiment.Or(""))
	fmt.Fprintf(&b, "Analysts: %s\n", s.Summary.AnalystConsensus.Or(""))
	fmt.Fprintf(&b, "Filings: %s\n", s.Summary.RegulatoryStatus.Or(""))
	if h := s.Summary.Highlights.Or(nil); len(h) > 0 {
		fmt.Fprintf(&b, "Highlights: %s\n", strings.Join(h, "; "))
	}
	if r := s.Summary.RiskFactors.Or(nil); len(r) > 0 {
		fmt.Fprintf(&b, "Risks: %s\n", strings.Join(r, "; "))
	}
	fmt.Fprintf(&b, "Data completeness: %.0f%%\n", s.Completeness.Or(0))
	return b.String()
}
