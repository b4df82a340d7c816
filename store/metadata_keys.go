package store

import "time"

// Fields of the per-user memory namespace written by the orchestrator.
const (
	// UserFieldLastInteraction holds the time of the user's latest turn.
	UserFieldLastInteraction = "last_interaction"

	// UserFieldMessageCount counts every processed inbound message.
	UserFieldMessageCount = "message_count"

	// UserFieldLastCrisisEvent holds the audit record of the latest
	// high or critical assessment.
	UserFieldLastCrisisEvent = "last_crisis_event"
)

// Keys of the turn metadata returned with every response.
const (
	MetadataKeyRiskLevel        = "riskLevel"
	MetadataKeyAgentUsed        = "agentUsed"
	MetadataKeySessionID        = "sessionId"
	MetadataKeyRequiresFollowUp = "requiresFollowUp"
	MetadataKeyDegraded         = "degraded"
	MetadataKeyFailSafe         = "failSafe"
	MetadataKeyIndicators       = "indicators"
)

// CrisisEvent is the audit record kept for high and critical assessments.
type CrisisEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RiskLevel string    `json:"riskLevel"`
	Message   string    `json:"message"`
	FailSafe  bool      `json:"failSafe,omitempty"`
}
