// Package anthropic provides a reply generator backed by the Anthropic
// Claude API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/model"
)

// Options configures the Anthropic generator (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Generator wraps the Anthropic Messages API behind core.ResponseGenerator.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// New creates a new Anthropic generator using the official client. Without
// an APIKey the client reads ANTHROPIC_API_KEY.
func New(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
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

// NewFromClient creates a new Anthropic generator from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate implements core.ResponseGenerator.
func (g *Generator) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	resp, err := g.client.Messages.New(ctx, g.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		b.WriteString(block.AsText().Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text (stop reason %q)", resp.StopReason)
	}
	return b.String(), nil
}

func (g *Generator) buildParams(req core.GenerateRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.opts.Model),
		Messages:    buildMessages(model.Transcript(req)),
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
	}
	if system := model.SystemPrompt(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// buildMessages converts transcript turns to Anthropic message format.
func buildMessages(turns []model.Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Text)
		if t.Role == model.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}
	return messages
}

// Info returns metadata describing this generator.
func (g *Generator) Info() model.Info {
	return model.Info{
		Name:     g.opts.Model,
		Provider: "anthropic",
	}
}

var _ model.Generator = (*Generator)(nil)
