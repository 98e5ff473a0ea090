package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agentScope/internal/model"
	"agentScope/internal/nfa"
	"agentScope/internal/storage"
)

// LogSource is the contract the runner expects from the chain RPC. Any
// backend providing the current height and filtered log retrieval works.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, address common.Address, topic0 common.Hash, fromBlock, toBlock uint64) ([]types.Log, error)
}

// RunConfig holds the per-deployment settings for a sync run.
type RunConfig struct {
	// IdentityRegistry emits the mint and level-up events and is the probe
	// target for range negotiation.
	IdentityRegistry common.Address
	// TrainerNFA and ReputationRegistry are optional; the zero address
	// skips that registry entirely.
	TrainerNFA         common.Address
	ReputationRegistry common.Address
	// DeployBlock substitutes for an absent checkpoint on the first run.
	DeployBlock uint64
	// Window caps how many blocks one run attempts before negotiation.
	Window uint64
	// MinRange is the negotiation floor.
	MinRange uint64
}

// Summary reports what a single run accomplished.
type Summary struct {
	RunID     string `json:"runId"`
	Synced    int    `json:"synced"`
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
}

// Runner executes one checkpointed sync pass per Run call. Callers must
// serialize invocations; nothing here guards against concurrent runs racing
// on the checkpoint.
type Runner struct {
	cfg     RunConfig
	source  LogSource
	store   storage.Store
	decoder *nfa.Decoder
	logger  *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, store storage.Store, logger *zap.Logger) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.IdentityRegistry == (common.Address{}) {
		return nil, fmt.Errorf("identity registry address is required")
	}
	if cfg.Window == 0 {
		cfg.Window = 1000
	}
	if cfg.MinRange == 0 {
		cfg.MinRange = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	decoder, err := nfa.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}

	return &Runner{cfg: cfg, source: source, store: store, decoder: decoder, logger: logger}, nil
}

// Run performs one sync pass: read the checkpoint, negotiate a safe window,
// fetch and decode both core event kinds concurrently, project them (mints
// before level-ups), then advance the checkpoint. The checkpoint only moves
// after every write succeeded, so a failed run replays the same range.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))

	last, ok, err := r.store.LastSyncedBlock(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load checkpoint: %w", err)
	}
	fromBlock := r.cfg.DeployBlock
	if ok {
		fromBlock = last + 1
	}

	latest, err := r.source.LatestBlockNumber(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("latest block: %w", err)
	}

	summary := Summary{RunID: runID, FromBlock: fromBlock, ToBlock: latest}
	if fromBlock > latest {
		logger.Info("nothing to sync", zap.Uint64("from", fromBlock), zap.Uint64("latest", latest))
		return summary, nil
	}

	desired := latest
	if latest-fromBlock > r.cfg.Window {
		desired = fromBlock + r.cfg.Window
	}

	toBlock, err := NegotiateRange(ctx, r.source, r.cfg.IdentityRegistry, fromBlock, desired, r.cfg.MinRange, logger)
	if err != nil {
		return Summary{}, fmt.Errorf("negotiate range: %w", err)
	}
	if toBlock <= fromBlock {
		logger.Warn("provider rejected every window, retrying next run",
			zap.Uint64("from", fromBlock),
			zap.Uint64("desired", desired),
		)
		summary.ToBlock = fromBlock
		return summary, nil
	}
	summary.ToBlock = toBlock

	topics := r.decoder.Topics()

	var mintLogs, levelLogs []types.Log
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mintLogs, err = r.source.FilterLogs(gctx, r.cfg.IdentityRegistry, topics.Minted, fromBlock, toBlock)
		return err
	})
	g.Go(func() error {
		var err error
		levelLogs, err = r.source.FilterLogs(gctx, r.cfg.IdentityRegistry, topics.LevelUp, fromBlock, toBlock)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("fetch identity logs: %w", err)
	}

	mints, mintSkips := decodeAll(mintLogs, r.decoder.DecodeMint)
	levels, levelSkips := decodeAll(levelLogs, r.decoder.DecodeLevelUp)
	skipped := mintSkips + levelSkips

	synced := 0

	// Mints first: a level-up for a token minted in this same batch must
	// find the agent row already present.
	n, err := r.store.ApplyMints(ctx, mints)
	if err != nil {
		return Summary{}, fmt.Errorf("apply mints: %w", err)
	}
	synced += n

	n, err = r.store.ApplyLevelUps(ctx, levels)
	if err != nil {
		return Summary{}, fmt.Errorf("apply level-ups: %w", err)
	}
	synced += n

	if r.cfg.TrainerNFA != (common.Address{}) {
		n, skips, err := r.syncTrainerRegistry(ctx, fromBlock, toBlock)
		if err != nil {
			return Summary{}, err
		}
		synced += n
		skipped += skips
	}

	if r.cfg.ReputationRegistry != (common.Address{}) {
		n, skips, err := r.syncReputationRegistry(ctx, fromBlock, toBlock)
		if err != nil {
			return Summary{}, err
		}
		synced += n
		skipped += skips
	}

	if skipped > 0 {
		logger.Warn("skipped undecodable logs", zap.Int("count", skipped))
	}

	if err := r.store.SetLastSyncedBlock(ctx, toBlock); err != nil {
		return Summary{}, fmt.Errorf("advance checkpoint: %w", err)
	}

	summary.Synced = synced
	logger.Info("sync complete",
		zap.Int("synced", synced),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
	)
	return summary, nil
}

func (r *Runner) syncTrainerRegistry(ctx context.Context, fromBlock, toBlock uint64) (int, int, error) {
	topics := r.decoder.Topics()
	fetched := make([][]types.Log, 5)
	kinds := []common.Hash{
		topics.Activated,
		topics.StatusChanged,
		topics.LearningUpdated,
		topics.InteractionRecorded,
		topics.AgentFunded,
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, topic := range kinds {
		i, topic := i, topic
		g.Go(func() error {
			var err error
			fetched[i], err = r.source.FilterLogs(gctx, r.cfg.TrainerNFA, topic, fromBlock, toBlock)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("fetch trainer registry logs: %w", err)
	}

	activations, skipA := decodeAll(fetched[0], r.decoder.DecodeActivation)
	statuses, skipS := decodeAll(fetched[1], r.decoder.DecodeStatusChange)
	learnings, skipL := decodeAll(fetched[2], r.decoder.DecodeLearningUpdate)
	interactions, skipI := decodeAll(fetched[3], r.decoder.DecodeInteraction)
	fundings, skipF := decodeAll(fetched[4], r.decoder.DecodeFunding)
	skipped := skipA + skipS + skipL + skipI + skipF

	synced := 0
	n, err := r.store.ApplyActivations(ctx, activations)
	if err != nil {
		return 0, 0, fmt.Errorf("apply activations: %w", err)
	}
	synced += n

	n, err = r.store.ApplyStatusChanges(ctx, statuses)
	if err != nil {
		return 0, 0, fmt.Errorf("apply status changes: %w", err)
	}
	synced += n

	n, err = r.store.ApplyLearningUpdates(ctx, learnings)
	if err != nil {
		return 0, 0, fmt.Errorf("apply learning updates: %w", err)
	}
	synced += n

	n, err = r.store.ApplyInteractions(ctx, interactions)
	if err != nil {
		return 0, 0, fmt.Errorf("apply interactions: %w", err)
	}
	synced += n

	n, err = r.store.ApplyFundings(ctx, fundings)
	if err != nil {
		return 0, 0, fmt.Errorf("apply fundings: %w", err)
	}
	synced += n

	return synced, skipped, nil
}

func (r *Runner) syncReputationRegistry(ctx context.Context, fromBlock, toBlock uint64) (int, int, error) {
	topics := r.decoder.Topics()

	var feedbackLogs, revokedLogs []types.Log
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feedbackLogs, err = r.source.FilterLogs(gctx, r.cfg.ReputationRegistry, topics.NewFeedback, fromBlock, toBlock)
		return err
	})
	g.Go(func() error {
		var err error
		revokedLogs, err = r.source.FilterLogs(gctx, r.cfg.ReputationRegistry, topics.FeedbackRevoked, fromBlock, toBlock)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("fetch reputation logs: %w", err)
	}

	feedback, skipFB := decodeAll(feedbackLogs, r.decoder.DecodeFeedback)
	revocations, skipRV := decodeAll(revokedLogs, r.decoder.DecodeFeedbackRevocation)

	synced := 0
	n, err := r.store.ApplyFeedback(ctx, feedback)
	if err != nil {
		return 0, 0, fmt.Errorf("apply feedback: %w", err)
	}
	synced += n

	n, err = r.store.ApplyFeedbackRevocations(ctx, revocations)
	if err != nil {
		return 0, 0, fmt.Errorf("apply feedback revocations: %w", err)
	}
	synced += n

	return synced, skipFB + skipRV, nil
}

func decodeAll[T model.DomainEvent](logs []types.Log, decode func(types.Log) (T, bool)) ([]T, int) {
	out := make([]T, 0, len(logs))
	skipped := 0
	for _, lg := range logs {
		ev, ok := decode(lg)
		if !ok {
			skipped++
			continue
		}
		out = append(out, ev)
	}
	return out, skipped
}
