package model

import "time"

// Agent is the read-model row derived from mint and lifecycle events.
// Created on first mint sighting, mutated in place afterwards, never deleted.
type Agent struct {
	TokenID           string    `json:"token_id"`
	Name              string    `json:"name"`
	Owner             string    `json:"owner"`
	AgentWallet       string    `json:"agent_wallet"`
	Level             int       `json:"level"`
	Stage             string    `json:"stage"`
	Capabilities      string    `json:"capabilities"`
	Version           string    `json:"version"`
	Description       string    `json:"description"`
	TokenURI          string    `json:"token_uri"`
	Status            string    `json:"status"`
	ERC8004AgentID    string    `json:"erc8004_agent_id,omitempty"`
	LearningRoot      string    `json:"learning_root,omitempty"`
	LearningEvents    int       `json:"learning_events"`
	TotalInteractions int       `json:"total_interactions"`
	AgentBalance      string    `json:"agent_balance"`
	MintedAt          time.Time `json:"minted_at"`
	BlockNumber       uint64    `json:"block_number"`
	TxHash            string    `json:"tx_hash"`
	UpdatedAt         time.Time `json:"updated_at"`
}
