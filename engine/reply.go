package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
)

const replyPrompt = `You are {{.name}}, taking part in a {{.session_type}} session as {{.role}}.
Your contribution: {{.type}}{{if .tone}}, in a {{.tone}} tone{{end}}.
{{- if .key_points}}
Cover: {{join "; " .key_points}}.
{{- end}}
{{- if .targets}}
Address: {{join ", " .targets}}.
{{- end}}
{{- if .references}}
Refer to: {{join ", " .references}}.
{{- end}}
Keep it short. Confidence in speaking now: {{pct .confidence}}.`

func renderPrompt(agent core.RegisteredAgent, sessionType core.SessionType, d core.ParticipationDecision) (string, error) {
	return util.RenderTemplate(replyPrompt, map[string]any{
		"name":         agent.Name,
		"role":         string(agent.Role),
		"session_type": string(sessionType),
		"type":         string(d.Type),
		"tone":         d.Content.SuggestedTone,
		"key_points":   d.Content.KeyPoints,
		"targets":      d.Content.TargetAgents,
		"references":   d.Content.References,
		"confidence":   d.Confidence,
	})
}

// generateReplies asks the generator for the text of every admitted
// speaker. A failed or timed out generation turns that speaker's decision
// into silence. Only cancellation of ctx is returned as an error.
func (o *Orchestrator) generateReplies(ctx context.Context, state *core.SessionState, agents []core.RegisteredAgent, decisions []core.ParticipationDecision, attachments []core.Attachment) ([]core.ParticipationDecision, []string, error) {
	if o.opts.Generator == nil {
		return decisions, nil, nil
	}

	byID := make(map[string]core.RegisteredAgent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	history := state.History
	if n := o.opts.Config.HistoryWindow; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	out := make([]core.ParticipationDecision, len(decisions))
	copy(out, decisions)
	errs := make([]error, len(out))

	var wg sync.WaitGroup
	for i, d := range out {
		if !d.ShouldParticipate {
			continue
		}
		i, d := i, d
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("generator panic: %v", r)
				}
			}()
			reply, err := o.generate(ctx, state.Type, byID[d.AgentID], d, history, attachments)
			if err != nil {
				errs[i] = err
				return
			}
			out[i].Reply = reply
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var warnings []string
	for i, err := range errs {
		if err == nil {
			continue
		}
		d := out[i]
		silent := core.SilenceDecision(d.SessionID, d.Turn, d.AgentID, 1-d.Confidence, core.ReasonGenerationFailed)
		silent.CreatedAt = d.CreatedAt
		silent.Degraded = d.Degraded
		out[i] = silent

		warnings = append(warnings, fmt.Sprintf("reply generation for %s failed: %v", d.AgentID, err))
		o.opts.Logger.Warn("Reply generation failed",
			"session_id", d.SessionID,
			"turn", d.Turn,
			"agent_id", d.AgentID,
			"error", err,
		)
	}
	return out, warnings, nil
}

func (o *Orchestrator) generate(ctx context.Context, sessionType core.SessionType, agent core.RegisteredAgent, d core.ParticipationDecision, history []core.Message, attachments []core.Attachment) (string, error) {
	prompt, err := renderPrompt(agent, sessionType, d)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	if timeout := o.opts.Config.GeneratorTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply, err := o.opts.Generator.Generate(ctx, core.GenerateRequest{
		Prompt:            prompt,
		Agent:             agent,
		Attachments:       attachments,
		History:           history,
		GovernanceEnabled: o.opts.Config.GovernanceEnabled,
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
