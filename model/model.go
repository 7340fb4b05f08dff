package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentfloor/core"
)

// Info contains metadata about a generator implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Generator is a core.ResponseGenerator that can describe itself.
type Generator interface {
	core.ResponseGenerator

	// Info returns information about the generator implementation.
	Info() Info
}

// Role is the speaker role of a transcript turn as seen by the agent that
// is about to reply.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one provider-neutral chat message.
type Turn struct {
	Role Role
	Text string
}

// governanceNote is appended to the system prompt when governance is
// enabled for the orchestrator.
const governanceNote = "Only disclose reasoning your governance boundaries allow. Never reveal confidential policies."

// SystemPrompt returns the system instructions for a request.
func SystemPrompt(req core.GenerateRequest) string {
	if !req.GovernanceEnabled {
		return req.Prompt
	}
	return req.Prompt + "\n" + governanceNote
}

// Transcript converts the request history into chat turns from the point of
// view of the replying agent: its own messages become assistant turns, all
// others user turns prefixed with the author. Consecutive turns of the same
// role are merged, attachments are listed in the last user turn, and the
// transcript always ends with a user turn.
func Transcript(req core.GenerateRequest) []Turn {
	self := ""
	if req.Agent != nil {
		self = req.Agent.AgentID()
	}

	var turns []Turn
	add := func(role Role, text string) {
		if text == "" {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Text += "\n" + text
			return
		}
		turns = append(turns, Turn{Role: role, Text: text})
	}

	for _, m := range req.History {
		if m.AgentID == self {
			add(RoleAssistant, m.Content)
			continue
		}
		content := m.Content
		if content == "" && len(m.Topics) > 0 {
			content = "(about " + strings.Join(m.Topics, ", ") + ")"
		}
		if content != "" {
			add(RoleUser, m.AgentID+": "+content)
		}
	}

	if len(req.Attachments) > 0 {
		names := make([]string, len(req.Attachments))
		for i, a := range req.Attachments {
			names[i] = fmt.Sprintf("%s (%s)", a.Name, a.MimeType)
		}
		add(RoleUser, "Attachments: "+strings.Join(names, ", "))
	}

	if n := len(turns); n == 0 || turns[n-1].Role != RoleUser {
		turns = append(turns, Turn{Role: RoleUser, Text: "It is your turn."})
	}
	return turns
}

// Mock is a deterministic in-memory Generator for tests, examples and
// simulations.
type Mock struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []core.GenerateRequest
}

// NewMock creates a Mock that replies with a short canned text per agent.
func NewMock() *Mock {
	return &Mock{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// AddResponse registers the reply for an agent.
func (m *Mock) AddResponse(agentID, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[agentID] = reply
}

// FailFor makes every generation for agentID return err.
func (m *Mock) FailFor(agentID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[agentID] = err
}

// Calls returns the requests seen so far.
func (m *Mock) Calls() []core.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.GenerateRequest(nil), m.calls...)
}

// Generate implements core.ResponseGenerator.
func (m *Mock) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Agent == nil {
		return "", fmt.Errorf("no agent provided")
	}
	id := req.Agent.AgentID()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if err := m.errs[id]; err != nil {
		return "", err
	}
	if r, ok := m.responses[id]; ok {
		return r, nil
	}

	turns := Transcript(req)
	return fmt.Sprintf("Mock reply from %s to: %s", id, turns[len(turns)-1].Text), nil
}

// Info implements Generator.
func (m *Mock) Info() Info { return Info{Name: "mock", Provider: "mock"} }

// RateLimited paces calls to a Generator across all sessions.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token bucket of r calls per second and
// the given burst.
func NewRateLimited(next Generator, r rate.Limit, burst int) *RateLimited {
	return &RateLimited{next: next, limiter: rate.NewLimiter(r, burst)}
}

// Generate waits for a token, then delegates. Waiting honors ctx.
func (g *RateLimited) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.next.Generate(ctx, req)
}

// Info implements Generator.
func (g *RateLimited) Info() Info { return g.next.Info() }

var (
	_ Generator = (*Mock)(nil)
	_ Generator = (*RateLimited)(nil)
)
