package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/core"
)

func newTestGenerator(t *testing.T, status int, body string, seen *map[string]any) *Generator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	return NewFromClient(&client, func(o *Options) { o.MaxTokens = 256 })
}

func TestGenerate(t *testing.T) {
	var seen map[string]any
	g := newTestGenerator(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"content": [{"type": "text", "text": "Use mTLS."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 3}
	}`, &seen)

	reply, err := g.Generate(context.Background(), core.GenerateRequest{
		Prompt:            "You are sec",
		Agent:             core.RegisteredAgent{ID: "sec"},
		History:           []core.Message{{AgentID: "user", Content: "is it safe?"}},
		GovernanceEnabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Use mTLS.", reply)

	assert.EqualValues(t, 256, seen["max_tokens"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.NotEmpty(t, seen["system"])
}

func TestGenerate_NoText(t *testing.T) {
	g := newTestGenerator(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"content": [],
		"stop_reason": "max_tokens",
		"usage": {"input_tokens": 10, "output_tokens": 0}
	}`, nil)

	_, err := g.Generate(context.Background(), core.GenerateRequest{Agent: core.RegisteredAgent{ID: "sec"}})
	assert.ErrorContains(t, err, "max_tokens")
}

func TestGenerate_APIError(t *testing.T) {
	g := newTestGenerator(t, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, nil)

	_, err := g.Generate(context.Background(), core.GenerateRequest{Agent: core.RegisteredAgent{ID: "sec"}})
	assert.ErrorContains(t, err, "anthropic api error")
}

func TestInfo(t *testing.T) {
	g := New(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, "anthropic", g.Info().Provider)
	assert.Equal(t, string(anthropic.ModelClaude3_5Sonnet20241022), g.Info().Name)
}
