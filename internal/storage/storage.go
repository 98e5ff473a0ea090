package storage

import (
	"context"

	"agentScope/internal/model"
)

// Store is the projection sink and checkpoint record the indexer writes to.
// Every Apply method must be idempotent under at-least-once replay: the
// orchestrator re-fetches and re-applies the same range after any failed run.
// Counts returned are the number of decoded events processed, for the run
// summary.
type Store interface {
	// LastSyncedBlock returns the checkpoint. ok=false means never synced.
	LastSyncedBlock(ctx context.Context) (block uint64, ok bool, err error)
	// SetLastSyncedBlock overwrites the checkpoint. It must be durable
	// before the sync run reports success.
	SetLastSyncedBlock(ctx context.Context, block uint64) error

	ApplyMints(ctx context.Context, events []model.AgentMinted) (int, error)
	ApplyLevelUps(ctx context.Context, events []model.AgentLeveledUp) (int, error)

	ApplyActivations(ctx context.Context, events []model.NFAActivated) (int, error)
	ApplyStatusChanges(ctx context.Context, events []model.StatusChanged) (int, error)
	ApplyLearningUpdates(ctx context.Context, events []model.LearningUpdated) (int, error)
	ApplyInteractions(ctx context.Context, events []model.InteractionRecorded) (int, error)
	ApplyFundings(ctx context.Context, events []model.AgentFunded) (int, error)

	ApplyFeedback(ctx context.Context, events []model.FeedbackGiven) (int, error)
	ApplyFeedbackRevocations(ctx context.Context, events []model.FeedbackRevoked) (int, error)
}
