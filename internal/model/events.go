package model

// DomainEvent is implemented by every decoded chain event.
type DomainEvent interface {
	EventName() string
}

// AgentMinted is the decoded identity-registry mint event. Metadata fields
// are already resolved from the tokenURI document, with defaults substituted
// when the document could not be parsed.
type AgentMinted struct {
	TokenID      string
	Owner        string
	AgentWallet  string
	TokenURI     string
	Name         string
	Level        int
	Stage        string
	Capabilities string
	Version      string
	Description  string
	BlockNumber  uint64
	TxHash       string
}

func (AgentMinted) EventName() string { return "mint" }

// AgentLeveledUp is the decoded level-up event. Applying it sets the level
// outright, so replays are harmless.
type AgentLeveledUp struct {
	TokenID     string
	NewLevel    int
	BlockNumber uint64
	TxHash      string
}

func (AgentLeveledUp) EventName() string { return "level_up" }

// NFAActivated links an agent token to its ERC-8004 registry id.
type NFAActivated struct {
	TokenID        string
	ERC8004AgentID string
	Owner          string
	BlockNumber    uint64
	TxHash         string
}

func (NFAActivated) EventName() string { return "nfa_activated" }

// StatusChanged carries the already-mapped status string.
type StatusChanged struct {
	TokenID     string
	Status      string
	BlockNumber uint64
	TxHash      string
}

func (StatusChanged) EventName() string { return "status_changed" }

// LearningUpdated replaces the agent's learning root.
type LearningUpdated struct {
	TokenID     string
	NewRoot     string
	BlockNumber uint64
	TxHash      string
}

func (LearningUpdated) EventName() string { return "learning_updated" }

// InteractionRecorded counts one agent interaction.
type InteractionRecorded struct {
	TokenID         string
	InteractionType string
	Success         bool
	BlockNumber     uint64
	TxHash          string
}

func (InteractionRecorded) EventName() string { return "interaction" }

// AgentFunded credits the agent wallet balance.
type AgentFunded struct {
	TokenID     string
	Amount      string
	BlockNumber uint64
	TxHash      string
}

func (AgentFunded) EventName() string { return "agent_funded" }

// FeedbackGiven is a reputation-registry feedback entry.
type FeedbackGiven struct {
	AgentID       string
	Client        string
	FeedbackIndex uint64
	Value         string
	ValueDecimals uint8
	Tag1          string
	Tag2          string
	BlockNumber   uint64
	TxHash        string
}

func (FeedbackGiven) EventName() string { return "feedback" }

// FeedbackRevoked marks a previously recorded feedback entry as revoked.
type FeedbackRevoked struct {
	AgentID       string
	FeedbackIndex uint64
	BlockNumber   uint64
	TxHash        string
}

func (FeedbackRevoked) EventName() string { return "feedback_revoked" }
