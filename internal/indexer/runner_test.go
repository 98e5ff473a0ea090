package indexer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"agentScope/internal/model"
	"agentScope/internal/nfa"
	"agentScope/internal/storage"
)

var (
	identityAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	trainerAddr    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	reputationAddr = common.HexToAddress("0x4444444444444444444444444444444444444444")
	ownerAddr      = common.HexToAddress("0xAbCd000000000000000000000000000000000001")
	walletAddr     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testRunner(t *testing.T, source LogSource, store storage.Store, cfg RunConfig) *Runner {
	t.Helper()
	if cfg.IdentityRegistry == (common.Address{}) {
		cfg.IdentityRegistry = identityAddr
	}
	runner, err := NewRunner(cfg, source, store, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func tokenURIFor(t *testing.T, name string, level int) string {
	t.Helper()
	doc := map[string]interface{}{
		"name":        name,
		"description": "test agent",
		"attributes": []map[string]interface{}{
			{"trait_type": "Level", "value": level},
			{"trait_type": "Stage", "value": "Rookie"},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(data)
}

func mintLogAt(t *testing.T, tokenID int64, block uint64, tokenURI string) types.Log {
	t.Helper()
	identity, err := nfa.IdentityRegistryABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	ev := identity.Events["NFAMinted"]
	data, err := ev.Inputs.NonIndexed().Pack(tokenURI)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}
	return types.Log{
		Address: identityAddr,
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(big.NewInt(tokenID)),
			common.BytesToHash(ownerAddr.Bytes()),
			common.BytesToHash(walletAddr.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xaa01"),
	}
}

func levelUpLogAt(t *testing.T, tokenID int64, level uint8, block uint64) types.Log {
	t.Helper()
	identity, err := nfa.IdentityRegistryABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	ev := identity.Events["AgentLevelUp"]
	data, err := ev.Inputs.NonIndexed().Pack(level)
	if err != nil {
		t.Fatalf("pack level up: %v", err)
	}
	return types.Log{
		Address:     identityAddr,
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(tokenID))},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xaa02"),
	}
}

func TestRunFreshSyncAppliesMintsBeforeLevelUps(t *testing.T) {
	source := &fakeSource{
		latest: 250,
		logs: []types.Log{
			// Level-up for a token minted in the same batch: ordered
			// application must leave the post-level-up level.
			levelUpLogAt(t, 7, 3, 130),
			mintLogAt(t, 7, 120, tokenURIFor(t, "NFA: Sparky", 1)),
		},
	}
	store := storage.NewMemoryStore()
	runner := testRunner(t, source, store, RunConfig{DeployBlock: 100})

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.Synced != 2 || summary.FromBlock != 100 || summary.ToBlock != 250 {
		t.Fatalf("summary mismatch: %+v", summary)
	}

	agent, ok := store.Agent("7")
	if !ok {
		t.Fatalf("agent projection missing")
	}
	if agent.Name != "Sparky" {
		t.Fatalf("name mismatch: %q", agent.Name)
	}
	if agent.Level != 3 {
		t.Fatalf("expected post-level-up level, got %d", agent.Level)
	}
	if agent.Owner != strings.ToLower(ownerAddr.Hex()) {
		t.Fatalf("owner mismatch: %q", agent.Owner)
	}

	block, ok, err := store.LastSyncedBlock(context.Background())
	if err != nil || !ok || block != 250 {
		t.Fatalf("checkpoint mismatch: %d %v %v", block, ok, err)
	}
}

func TestRunRateLimitedAdvancesPartially(t *testing.T) {
	source := &fakeSource{
		latest:    250,
		maxWindow: 80,
		logs: []types.Log{
			mintLogAt(t, 1, 120, tokenURIFor(t, "NFA: Early", 1)),
			mintLogAt(t, 2, 200, tokenURIFor(t, "NFA: Late", 1)),
		},
	}
	store := storage.NewMemoryStore()
	runner := testRunner(t, source, store, RunConfig{DeployBlock: 100})

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// [100,250] rejected, [100,175] accepted: only the early mint lands.
	if summary.ToBlock != 175 || summary.Synced != 1 {
		t.Fatalf("summary mismatch: %+v", summary)
	}
	if _, ok := store.Agent("1"); !ok {
		t.Fatalf("early mint missing")
	}
	if _, ok := store.Agent("2"); ok {
		t.Fatalf("late mint must wait for the next run")
	}

	block, _, _ := store.LastSyncedBlock(context.Background())
	if block != 175 {
		t.Fatalf("checkpoint mismatch: %d", block)
	}

	// Next run resumes at 176 and picks up the rest.
	summary, err = runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.FromBlock != 176 || summary.ToBlock != 250 || summary.Synced != 1 {
		t.Fatalf("second summary mismatch: %+v", summary)
	}
	if _, ok := store.Agent("2"); !ok {
		t.Fatalf("late mint missing after resume")
	}
}

func TestRunNothingToSync(t *testing.T) {
	source := &fakeSource{latest: 250}
	store := storage.NewMemoryStore()
	if err := store.SetLastSyncedBlock(context.Background(), 250); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	runner := testRunner(t, source, store, RunConfig{DeployBlock: 100})

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Synced != 0 || summary.FromBlock != 251 || summary.ToBlock != 250 {
		t.Fatalf("summary mismatch: %+v", summary)
	}

	block, _, _ := store.LastSyncedBlock(context.Background())
	if block != 250 {
		t.Fatalf("checkpoint moved without work: %d", block)
	}
}

func TestRunZeroProgressKeepsCheckpoint(t *testing.T) {
	source := &fakeSource{latest: 250, maxWindow: 10}
	store := storage.NewMemoryStore()
	runner := testRunner(t, source, store, RunConfig{DeployBlock: 100})

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Synced != 0 || summary.FromBlock != 100 || summary.ToBlock != 100 {
		t.Fatalf("summary mismatch: %+v", summary)
	}

	if _, ok, _ := store.LastSyncedBlock(context.Background()); ok {
		t.Fatalf("checkpoint must stay absent when no progress was made")
	}
}

type failingStore struct {
	*storage.MemoryStore
}

func (f *failingStore) ApplyLevelUps(context.Context, []model.AgentLeveledUp) (int, error) {
	return 0, errors.New("disk full")
}

func TestRunStorageFailureLeavesCheckpoint(t *testing.T) {
	source := &fakeSource{
		latest: 250,
		logs: []types.Log{
			mintLogAt(t, 7, 120, tokenURIFor(t, "NFA: Sparky", 1)),
			levelUpLogAt(t, 7, 3, 130),
		},
	}
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	runner := testRunner(t, source, store, RunConfig{DeployBlock: 100})

	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected storage failure to fail the run")
	}

	if _, ok, _ := store.LastSyncedBlock(context.Background()); ok {
		t.Fatalf("checkpoint must not advance past a failed run")
	}
}

func TestRunMalformedTokenURIStillProjectsAgent(t *testing.T) {
	source := &fakeSource{
		latest: 250,
		logs: []types.Log{
			mintLogAt(t, 7, 120, "data:application/json;base64,@@broken@@"),
		},
	}
	store := storage.NewMemoryStore()
	runner := testRunner(t, source, store, RunConfig{DeployBlock: 100})

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	agent, ok := store.Agent("7")
	if !ok {
		t.Fatalf("malformed metadata must not drop the mint")
	}
	if agent.Name != "Agent-7" || agent.Level != 1 || agent.Stage != "Rookie" {
		t.Fatalf("defaults mismatch: %+v", agent)
	}
}

// cancellingSource serves the negotiation probe, then cancels the run
// context on the first real fetch.
type cancellingSource struct {
	mu     sync.Mutex
	latest uint64
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingSource) LatestBlockNumber(context.Context) (uint64, error) {
	return c.latest, nil
}

func (c *cancellingSource) FilterLogs(ctx context.Context, _ common.Address, _ common.Hash, _, _ uint64) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls == 1 {
		return nil, nil
	}
	c.cancel()
	return nil, ctx.Err()
}

func TestRunCancelledLeavesCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &cancellingSource{latest: 250, cancel: cancel}
	store := storage.NewMemoryStore()
	runner := testRunner(t, source, store, RunConfig{DeployBlock: 100})

	if _, err := runner.Run(ctx); err == nil {
		t.Fatalf("expected cancelled run to fail")
	}

	if _, ok, _ := store.LastSyncedBlock(context.Background()); ok {
		t.Fatalf("cancelled run must not advance the checkpoint")
	}
}

func TestRunCountsSupplementalSkips(t *testing.T) {
	trainer, err := nfa.TrainerNFAABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	statusEv := trainer.Events["StatusChanged"]

	source := &fakeSource{
		latest: 250,
		logs: []types.Log{
			// Right topic, truncated data: fetched but undecodable.
			{
				Address:     trainerAddr,
				Topics:      []common.Hash{statusEv.ID, common.BigToHash(big.NewInt(7))},
				Data:        []byte{0x01},
				BlockNumber: 140,
			},
		},
	}
	core, observed := observer.New(zap.WarnLevel)
	runner, err := NewRunner(RunConfig{
		IdentityRegistry: identityAddr,
		TrainerNFA:       trainerAddr,
		DeployBlock:      100,
	}, source, storage.NewMemoryStore(), zap.New(core))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Synced != 0 {
		t.Fatalf("undecodable log must not count as synced: %+v", summary)
	}

	entries := observed.FilterMessage("skipped undecodable logs").All()
	if len(entries) != 1 {
		t.Fatalf("expected one skip warning, got %d", len(entries))
	}
	if count, ok := entries[0].ContextMap()["count"].(int64); !ok || count != 1 {
		t.Fatalf("skip count mismatch: %v", entries[0].ContextMap()["count"])
	}
}

func TestRunSupplementalRegistries(t *testing.T) {
	trainer, err := nfa.TrainerNFAABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	reputation, err := nfa.ReputationRegistryABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}

	statusEv := trainer.Events["StatusChanged"]
	statusData, err := statusEv.Inputs.NonIndexed().Pack(uint8(1))
	if err != nil {
		t.Fatalf("pack status: %v", err)
	}
	fundedEv := trainer.Events["AgentFunded"]
	fundedData, err := fundedEv.Inputs.NonIndexed().Pack(big.NewInt(5000))
	if err != nil {
		t.Fatalf("pack funded: %v", err)
	}
	feedbackEv := reputation.Events["NewFeedback"]
	feedbackData, err := feedbackEv.Inputs.NonIndexed().Pack(
		big.NewInt(1), big.NewInt(400), uint8(2), [32]byte{}, [32]byte{},
	)
	if err != nil {
		t.Fatalf("pack feedback: %v", err)
	}

	source := &fakeSource{
		latest: 250,
		logs: []types.Log{
			mintLogAt(t, 7, 120, tokenURIFor(t, "NFA: Sparky", 1)),
			{
				Address:     trainerAddr,
				Topics:      []common.Hash{statusEv.ID, common.BigToHash(big.NewInt(7))},
				Data:        statusData,
				BlockNumber: 140,
			},
			{
				Address:     trainerAddr,
				Topics:      []common.Hash{fundedEv.ID, common.BigToHash(big.NewInt(7))},
				Data:        fundedData,
				BlockNumber: 150,
			},
			{
				Address: reputationAddr,
				Topics: []common.Hash{
					feedbackEv.ID,
					common.BigToHash(big.NewInt(7)),
					common.BytesToHash(ownerAddr.Bytes()),
				},
				Data:        feedbackData,
				BlockNumber: 160,
			},
		},
	}
	store := storage.NewMemoryStore()
	runner := testRunner(t, source, store, RunConfig{
		DeployBlock:        100,
		TrainerNFA:         trainerAddr,
		ReputationRegistry: reputationAddr,
	})

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Synced != 4 {
		t.Fatalf("synced mismatch: %+v", summary)
	}

	agent, ok := store.Agent("7")
	if !ok {
		t.Fatalf("agent missing")
	}
	if agent.Status != "Paused" {
		t.Fatalf("status mismatch: %q", agent.Status)
	}
	if agent.AgentBalance != "5000" {
		t.Fatalf("balance mismatch: %q", agent.AgentBalance)
	}

	fb, ok := store.Feedback("7", strings.ToLower(ownerAddr.Hex()), 1)
	if !ok {
		t.Fatalf("feedback missing")
	}
	if fb.Value != "400" || fb.ValueDecimals != 2 {
		t.Fatalf("feedback mismatch: %+v", fb)
	}
}
