// Package openai provides a reply generator backed by the OpenAI Chat
// Completions API. It adapts the provider-neutral transcript of a
// core.GenerateRequest into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/model"
)

// Options configure the OpenAI generator. Fields mirror a subset of Chat
// Completion parameters.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Generator wraps the OpenAI Chat Completions API behind
// core.ResponseGenerator.
type Generator struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI generator using the official client. Without an
// APIKey the client reads OPENAI_API_KEY.
func New(optFns ...func(o *Options)) *Generator {
	var probe Options
	for _, fn := range optFns {
		fn(&probe)
	}
	var clientOpts []option.RequestOption
	if probe.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(probe.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI generator from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate implements core.ResponseGenerator.
func (g *Generator) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, g.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("openai returned no text (finish reason %q)", resp.Choices[0].FinishReason)
	}
	return content, nil
}

// buildParams assembles the request parameters.
func (g *Generator) buildParams(req core.GenerateRequest) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages:            buildMessages(model.SystemPrompt(req), model.Transcript(req)),
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	}
}

// buildMessages converts the system prompt and transcript turns into chat
// messages.
func buildMessages(system string, turns []model.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, t := range turns {
		if t.Role == model.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(t.Text))
	}
	return messages
}

// Info returns metadata describing this generator.
func (g *Generator) Info() model.Info {
	return model.Info{
		Name:     g.opts.Model,
		Provider: "openai",
	}
}

var _ model.Generator = (*Generator)(nil)
