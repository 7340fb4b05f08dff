// Package analysis builds the per-turn ConversationContext snapshot from a
// message history, the participant roster and the pre-scored conversation
// signals delivered by the ingestion layer.
//
// The analyzer is a pure function of its Input: it never reads a clock and
// never inspects raw message text, so replaying the same window always
// yields the same snapshot.
package analysis
