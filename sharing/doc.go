// Package sharing detects, prioritizes and executes rationale disclosures
// between agents.
//
// Every turn the Engine runs seven detectors over the rationale records of
// the session and the turn's conversation snapshot. Each detector proposes
// source → recipient triggers. Triggers the visibility snapshot does not
// permit are dropped silently. The rest are scored
//
//	priority = 0.4·expectedValue + 0.3·confidence + 0.2·urgency − 0.1·risk
//
// and only those above the priority and expected-value floors survive, capped
// to the five best. A surviving trigger executes immediately when its
// confidence reaches the autonomy tier's auto-execute threshold and its
// urgency exceeds 0.7; otherwise it is surfaced as a suggestion.
//
// Execution runs the Redactor, which reduces the full record to the steps,
// policies and risks relevant to the trigger type within the filter level's
// step budget, redacts jurisdiction-scoped policies and sensitive patterns,
// and links the result to the source by hash.
package sharing
