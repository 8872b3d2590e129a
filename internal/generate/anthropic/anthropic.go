// Package anthropic provides a content generator backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/coursewright/coursewright/internal/generate"
)

// Options configures the Anthropic generator.
type Options struct {
	Model       anthropic.Model
	MaxTokens   int64
	Temperature float64

	// Per-million-token rates used to compute Result.CostUSD.
	InputCostPerMTok  float64
	OutputCostPerMTok float64

	APIKey string
}

// Generator wraps the Anthropic Messages API behind generate.Generator.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic generator with functional options.
func New(optFns ...func(o *Options)) *Generator {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens:   4096,
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Generator{client: &client, opts: opts}
}

// WithModel overrides the model id.
func WithModel(model string) func(o *Options) {
	return func(o *Options) { o.Model = anthropic.Model(model) }
}

// WithMaxTokens overrides the response token limit.
func WithMaxTokens(n int64) func(o *Options) {
	return func(o *Options) { o.MaxTokens = n }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) func(o *Options) {
	return func(o *Options) { o.Temperature = t }
}

// WithAPIKey sets the API key explicitly instead of reading the
// environment.
func WithAPIKey(key string) func(o *Options) {
	return func(o *Options) { o.APIKey = key }
}

// WithCostRates sets the per-million-token input/output prices used for
// cost accounting.
func WithCostRates(inputPerMTok, outputPerMTok float64) func(o *Options) {
	return func(o *Options) {
		o.InputCostPerMTok = inputPerMTok
		o.OutputCostPerMTok = outputPerMTok
	}
}

// Name implements generate.Generator.
func (g *Generator) Name() string { return "anthropic" }

// Generate implements generate.Generator via a non-streaming Messages
// API call.
func (g *Generator) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	params := anthropic.MessageNewParams{
		Model:       g.opts.Model,
		Messages:    buildMessages(req),
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &generate.GenerationError{Provider: g.Name(), Err: err}
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}
	if content == "" {
		return nil, &generate.GenerationError{Provider: g.Name(), Err: errors.New("empty response")}
	}

	usage := generate.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	return &generate.Result{
		Content: content,
		Usage:   usage,
		CostUSD: g.cost(usage),
	}, nil
}

func (g *Generator) cost(u generate.Usage) float64 {
	const mtok = 1_000_000
	return float64(u.InputTokens)/mtok*g.opts.InputCostPerMTok +
		float64(u.OutputTokens)/mtok*g.opts.OutputCostPerMTok
}

// buildMessages converts the request history and prompt to Anthropic
// message params. System turns in the history are skipped; the API takes
// the system prompt separately.
func buildMessages(req generate.Request) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, turn := range req.History {
		if turn.Content == "" || turn.Role == "system" {
			continue
		}
		switch turn.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	if req.Prompt != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
	}
	return messages
}
