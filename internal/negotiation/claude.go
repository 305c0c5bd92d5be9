package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/roastline/market-cli/pkg/anthropic"
)

// SystemPrompt instructs the model to act as the marketplace's pricing agent
// and answer in strict JSON.
const SystemPrompt = `You are the pricing agent for a wholesale ingredient marketplace. A customer has countered a quoted price with a lower proposal and a rationale. Decide whether to accept.

Consider: the proposal must leave a workable margin over the base price, large discounts need a strong rationale, and high demand (low stock) argues against concessions.

Respond with a single JSON object and nothing else:
{"accepted": true|false, "rationale": "<one or two sentences addressed to the customer>"}`

// ClaudeDecider asks Claude to rule on a counter-offer. It implements
// Decider; malformed responses come back as errors so the caller's
// deterministic fallback takes over.
type ClaudeDecider struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
}

// NewClaudeDecider wraps the API client. requestsPerSecond bounds the call
// rate across concurrent negotiations; zero or negative means no limit.
func NewClaudeDecider(client anthropic.Client, model string, requestsPerSecond float64) *ClaudeDecider {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &ClaudeDecider{client: client, model: model, limiter: limiter}
}

// Warm primes the prompt cache so decision calls reuse the cached system
// prompt. Failures are non-fatal; the first real call warms it instead.
func (d *ClaudeDecider) Warm(ctx context.Context) error {
	_, err := anthropic.PrimerRequest(ctx, d.client, anthropic.MessageRequest{
		Model:     d.model,
		MaxTokens: 16,
		System:    anthropic.BuildCachedSystemBlocks(SystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: "ack"}},
	})
	return err
}

type claudeVerdict struct {
	Accepted  *bool  `json:"accepted"`
	Rationale string `json:"rationale"`
}

func (d *ClaudeDecider) Decide(ctx context.Context, in DecisionInput) (Decision, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Decision{}, eris.Wrap(err, "negotiation: rate limit wait")
		}
	}

	userMsg := fmt.Sprintf(
		"Ingredient: %s (%s)\nBase price: %.2f %s per unit\nQuoted price: %.2f\nProposed price: %.2f\nStock level: %.0f\nCustomer rationale: %s",
		in.IngredientName, in.IngredientID,
		in.BasePrice, in.Currency,
		in.QuotedPerUnit,
		in.ProposedPerUnit,
		in.StockLevel,
		in.Rationale,
	)

	temp := 0.0
	resp, err := d.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       d.model,
		MaxTokens:   256,
		System:      anthropic.BuildCachedSystemBlocks(SystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: userMsg}},
		Temperature: &temp,
	})
	if err != nil {
		return Decision{}, eris.Wrap(err, "negotiation: claude request")
	}
	resp.Usage.LogCost(d.model, "negotiation")

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return Decision{}, eris.New("negotiation: empty claude response")
	}

	// Find JSON in the response (it may have surrounding text).
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return Decision{}, eris.Errorf("negotiation: no JSON in response: %s", text)
	}

	var verdict claudeVerdict
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &verdict); err != nil {
		return Decision{}, eris.Wrap(err, "negotiation: parse response JSON")
	}
	if verdict.Accepted == nil || verdict.Rationale == "" {
		return Decision{}, eris.Errorf("negotiation: incomplete verdict: %s", text[jsonStart:jsonEnd+1])
	}

	return Decision{Accepted: *verdict.Accepted, Rationale: verdict.Rationale}, nil
}
