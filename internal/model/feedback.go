package model

import "time"

// Feedback is a reputation-registry projection row, keyed by
// (agent_id, client_address, feedback_index).
type Feedback struct {
	AgentID       string    `json:"agent_id"`
	ClientAddress string    `json:"client_address"`
	FeedbackIndex uint64    `json:"feedback_index"`
	Value         string    `json:"value"`
	ValueDecimals uint8     `json:"value_decimals"`
	Tag1          string    `json:"tag1,omitempty"`
	Tag2          string    `json:"tag2,omitempty"`
	IsRevoked     bool      `json:"is_revoked"`
	CreatedAt     time.Time `json:"created_at"`
}
