package model

import "time"

// Activity is one append-only row per observed event. Rows are inserted
// unconditionally on every run, so a replayed range produces duplicate
// entries rather than losing any.
type Activity struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Wallet      string    `json:"wallet,omitempty"`
	TokenID     string    `json:"token_id,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	CreatedAt   time.Time `json:"created_at"`
}
