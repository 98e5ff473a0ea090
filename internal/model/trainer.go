package model

import "time"

// Trainer is the per-wallet mint aggregate.
type Trainer struct {
	Wallet     string    `json:"wallet"`
	AgentCount int       `json:"agent_count"`
	TotalMints int       `json:"total_mints"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}
