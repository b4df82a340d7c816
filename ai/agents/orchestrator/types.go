// Package orchestrator runs one conversational turn end to end: session
// resolution, risk triage, strategy dispatch and the memory update.
package orchestrator

import "fmt"

// Stage is a step of the per-turn pipeline.
//
//	RECEIVED → TRIAGED → {CRISIS_TERMINAL | ROUTED} → PERSISTED
type Stage string

const (
	StageReceived       Stage = "RECEIVED"
	StageTriaged        Stage = "TRIAGED"
	StageCrisisTerminal Stage = "CRISIS_TERMINAL"
	StageRouted         Stage = "ROUTED"
	StagePersisted      Stage = "PERSISTED"
)

// Result is the reply to one inbound message.
type Result struct {
	Response string   `json:"response"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes how a reply was produced.
type Metadata struct {
	RiskLevel        string   `json:"riskLevel"`
	AgentUsed        string   `json:"agentUsed"`
	SessionID        string   `json:"sessionId"`
	RequiresFollowUp bool     `json:"requiresFollowUp"`
	Indicators       []string `json:"indicators,omitempty"`

	// Degraded is set when the strategy fell back after a generation failure.
	Degraded bool `json:"degraded,omitempty"`
	// FailSafe is set when triage could not classify the message.
	FailSafe bool `json:"failSafe,omitempty"`
}

// ValidationError rejects a request before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
