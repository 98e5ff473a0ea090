package postgres

import (
	"context"
	"os"
	"testing"

	"agentScope/internal/model"
)

// newTestStore connects to the database named by INDEXER_TEST_PG_DSN and
// resets the schema. Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	dsn := os.Getenv("INDEXER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("INDEXER_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)

	for _, table := range []string{"sync_state", "agents", "trainers", "activities", "reputation_feedback"} {
		if _, err := store.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			t.Fatalf("drop %s: %v", table, err)
		}
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store, ctx
}

func testMint(tokenID, owner string) model.AgentMinted {
	return model.AgentMinted{
		TokenID:     tokenID,
		Owner:       owner,
		AgentWallet: "0xwallet",
		TokenURI:    "data:application/json;base64,e30=",
		Name:        "Agent-" + tokenID,
		Level:       1,
		Stage:       "Rookie",
		Version:     "1.0.0",
		BlockNumber: 100,
		TxHash:      "0x" + tokenID,
	}
}

func TestApplyMintsRollsBackOnFailure(t *testing.T) {
	store, ctx := newTestStore(t)

	// Break the second half of the write: the activities insert fails, and
	// the agent inserts from the first half must not survive it.
	if _, err := store.pool.Exec(ctx, "DROP TABLE activities"); err != nil {
		t.Fatalf("drop activities: %v", err)
	}

	events := []model.AgentMinted{testMint("1", "0xowner"), testMint("2", "0xowner")}
	if _, err := store.ApplyMints(ctx, events); err == nil {
		t.Fatalf("expected failure with activities table missing")
	}

	var agents int
	if err := store.pool.QueryRow(ctx, "SELECT count(*) FROM agents").Scan(&agents); err != nil {
		t.Fatalf("count agents: %v", err)
	}
	if agents != 0 {
		t.Fatalf("failed apply left %d agent rows behind", agents)
	}

	// Replaying the same range after the schema is healthy again must land
	// both the rows and the full aggregates.
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("restore schema: %v", err)
	}
	if _, err := store.ApplyMints(ctx, events); err != nil {
		t.Fatalf("replay: %v", err)
	}

	var agentCount, totalMints int
	err := store.pool.QueryRow(ctx,
		"SELECT agent_count, total_mints FROM trainers WHERE wallet = $1", "0xowner",
	).Scan(&agentCount, &totalMints)
	if err != nil {
		t.Fatalf("load trainer: %v", err)
	}
	if agentCount != 2 || totalMints != 2 {
		t.Fatalf("aggregate mismatch after replay: %d/%d", agentCount, totalMints)
	}
}

func TestApplyMintsReplayKeepsAggregates(t *testing.T) {
	store, ctx := newTestStore(t)

	events := []model.AgentMinted{testMint("1", "0xowner"), testMint("2", "0xowner")}
	for i := 0; i < 2; i++ {
		if _, err := store.ApplyMints(ctx, events); err != nil {
			t.Fatalf("apply mints: %v", err)
		}
	}

	var agentCount, totalMints int
	err := store.pool.QueryRow(ctx,
		"SELECT agent_count, total_mints FROM trainers WHERE wallet = $1", "0xowner",
	).Scan(&agentCount, &totalMints)
	if err != nil {
		t.Fatalf("load trainer: %v", err)
	}
	if agentCount != 2 || totalMints != 2 {
		t.Fatalf("replay inflated aggregates: %d/%d", agentCount, totalMints)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	store, ctx := newTestStore(t)

	if _, ok, err := store.LastSyncedBlock(ctx); err != nil || ok {
		t.Fatalf("expected absent checkpoint, got ok=%v err=%v", ok, err)
	}
	if err := store.SetLastSyncedBlock(ctx, 250); err != nil {
		t.Fatalf("set checkpoint: %v", err)
	}
	if err := store.SetLastSyncedBlock(ctx, 300); err != nil {
		t.Fatalf("update checkpoint: %v", err)
	}

	block, ok, err := store.LastSyncedBlock(ctx)
	if err != nil || !ok || block != 300 {
		t.Fatalf("checkpoint mismatch: %d %v %v", block, ok, err)
	}
}
