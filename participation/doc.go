// Package participation decides, for every agent and turn, whether the agent
// should speak, how, and when.
//
// The per-agent pipeline is:
//
//	CalculateRelevance → EvaluateSpeaking / EvaluateSilence → ApplyAutonomy → DecisionGenerator.Generate
//
// Evaluator runs that pipeline for all agents concurrently against a shared,
// read-only ConversationContext and joins before returning. Coordinator then
// enforces the per-turn speaker cap with a stable, reproducible ranking.
//
// Adapt applies explicit feedback to a behavior profile; nothing else in this
// package mutates a profile.
package participation
