package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"agentScope/internal/model"
)

type feedbackKey struct {
	agentID string
	client  string
	index   uint64
}

// MemoryStore keeps the read model in process memory. It backs tests and
// local development runs without a database, with the same idempotency
// semantics as the Postgres store.
type MemoryStore struct {
	mu sync.Mutex

	lastSynced uint64
	hasSynced  bool

	agents     map[string]*model.Agent
	trainers   map[string]*model.Trainer
	activities []model.Activity
	feedback   map[feedbackKey]*model.Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:   make(map[string]*model.Agent),
		trainers: make(map[string]*model.Trainer),
		feedback: make(map[feedbackKey]*model.Feedback),
	}
}

func (s *MemoryStore) LastSyncedBlock(_ context.Context) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSynced, s.hasSynced, nil
}

func (s *MemoryStore) SetLastSyncedBlock(_ context.Context, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSynced = block
	s.hasSynced = true
	return nil
}

func (s *MemoryStore) ApplyMints(_ context.Context, events []model.AgentMinted) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	newMints := make(map[string]int)
	for _, ev := range events {
		if _, exists := s.agents[ev.TokenID]; !exists {
			s.agents[ev.TokenID] = &model.Agent{
				TokenID:      ev.TokenID,
				Name:         ev.Name,
				Owner:        ev.Owner,
				AgentWallet:  ev.AgentWallet,
				Level:        ev.Level,
				Stage:        ev.Stage,
				Capabilities: ev.Capabilities,
				Version:      ev.Version,
				Description:  ev.Description,
				TokenURI:     ev.TokenURI,
				Status:       "Active",
				AgentBalance: "0",
				MintedAt:     now,
				BlockNumber:  ev.BlockNumber,
				TxHash:       ev.TxHash,
				UpdatedAt:    now,
			}
			newMints[ev.Owner]++
		}

		s.appendActivity(model.Activity{
			Type:        ev.EventName(),
			Wallet:      ev.Owner,
			TokenID:     ev.TokenID,
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
			CreatedAt:   now,
		})
	}

	for wallet, count := range newMints {
		tr, ok := s.trainers[wallet]
		if !ok {
			s.trainers[wallet] = &model.Trainer{
				Wallet:     wallet,
				AgentCount: count,
				TotalMints: count,
				FirstSeen:  now,
				LastSeen:   now,
			}
			continue
		}
		tr.AgentCount += count
		tr.TotalMints += count
		tr.LastSeen = now
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyLevelUps(_ context.Context, events []model.AgentLeveledUp) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		if agent, ok := s.agents[ev.TokenID]; ok {
			agent.Level = ev.NewLevel
			agent.UpdatedAt = now
		}
		s.appendActivity(model.Activity{
			Type:        ev.EventName(),
			TokenID:     ev.TokenID,
			Metadata:    mustJSON(map[string]int{"newLevel": ev.NewLevel}),
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
			CreatedAt:   now,
		})
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyActivations(_ context.Context, events []model.NFAActivated) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		if agent, ok := s.agents[ev.TokenID]; ok {
			agent.ERC8004AgentID = ev.ERC8004AgentID
			agent.UpdatedAt = now
		}
		s.appendActivity(model.Activity{
			Type:        ev.EventName(),
			Wallet:      ev.Owner,
			TokenID:     ev.TokenID,
			Metadata:    mustJSON(map[string]string{"erc8004AgentId": ev.ERC8004AgentID}),
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
			CreatedAt:   now,
		})
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyStatusChanges(_ context.Context, events []model.StatusChanged) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		if agent, ok := s.agents[ev.TokenID]; ok {
			agent.Status = ev.Status
			agent.UpdatedAt = now
		}
		s.appendActivity(model.Activity{
			Type:        ev.EventName(),
			TokenID:     ev.TokenID,
			Metadata:    mustJSON(map[string]string{"status": ev.Status}),
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
			CreatedAt:   now,
		})
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyLearningUpdates(_ context.Context, events []model.LearningUpdated) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		if agent, ok := s.agents[ev.TokenID]; ok {
			agent.LearningRoot = ev.NewRoot
			agent.LearningEvents++
			agent.UpdatedAt = now
		}
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyInteractions(_ context.Context, events []model.InteractionRecorded) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		if agent, ok := s.agents[ev.TokenID]; ok {
			agent.TotalInteractions++
			agent.UpdatedAt = now
		}
		s.appendActivity(model.Activity{
			Type:        ev.EventName(),
			TokenID:     ev.TokenID,
			Metadata:    mustJSON(map[string]interface{}{"interactionType": ev.InteractionType, "success": ev.Success}),
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
			CreatedAt:   now,
		})
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyFundings(_ context.Context, events []model.AgentFunded) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		if agent, ok := s.agents[ev.TokenID]; ok {
			agent.AgentBalance = addDecimal(agent.AgentBalance, ev.Amount)
			agent.UpdatedAt = now
		}
		s.appendActivity(model.Activity{
			Type:        ev.EventName(),
			TokenID:     ev.TokenID,
			Metadata:    mustJSON(map[string]string{"amount": ev.Amount}),
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
			CreatedAt:   now,
		})
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyFeedback(_ context.Context, events []model.FeedbackGiven) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		key := feedbackKey{agentID: ev.AgentID, client: ev.Client, index: ev.FeedbackIndex}
		if _, exists := s.feedback[key]; exists {
			continue
		}
		s.feedback[key] = &model.Feedback{
			AgentID:       ev.AgentID,
			ClientAddress: ev.Client,
			FeedbackIndex: ev.FeedbackIndex,
			Value:         ev.Value,
			ValueDecimals: ev.ValueDecimals,
			Tag1:          ev.Tag1,
			Tag2:          ev.Tag2,
			CreatedAt:     now,
		}
	}

	return len(events), nil
}

func (s *MemoryStore) ApplyFeedbackRevocations(_ context.Context, events []model.FeedbackRevoked) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		// Revocation carries no client address; match on agent and index.
		for k, fb := range s.feedback {
			if k.agentID == ev.AgentID && k.index == ev.FeedbackIndex {
				fb.IsRevoked = true
			}
		}
	}

	return len(events), nil
}

// Agent returns a copy of the projection row for tokenID.
func (s *MemoryStore) Agent(tokenID string) (model.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[tokenID]
	if !ok {
		return model.Agent{}, false
	}
	return *agent, true
}

// Trainer returns a copy of the aggregate row for wallet.
func (s *MemoryStore) Trainer(wallet string) (model.Trainer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.trainers[wallet]
	if !ok {
		return model.Trainer{}, false
	}
	return *tr, true
}

// Activities returns a copy of the activity log in insert order.
func (s *MemoryStore) Activities() []model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Activity, len(s.activities))
	copy(out, s.activities)
	return out
}

// Feedback returns a copy of the feedback row, if present.
func (s *MemoryStore) Feedback(agentID, client string, index uint64) (model.Feedback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[feedbackKey{agentID: agentID, client: client, index: index}]
	if !ok {
		return model.Feedback{}, false
	}
	return *fb, true
}

func (s *MemoryStore) appendActivity(a model.Activity) {
	a.ID = int64(len(s.activities) + 1)
	s.activities = append(s.activities, a)
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func addDecimal(a, b string) string {
	x, okX := new(big.Int).SetString(a, 10)
	y, okY := new(big.Int).SetString(b, 10)
	if !okX {
		x = big.NewInt(0)
	}
	if !okY {
		y = big.NewInt(0)
	}
	return new(big.Int).Add(x, y).String()
}
