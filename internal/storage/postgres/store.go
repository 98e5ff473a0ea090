package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentScope/internal/model"
)

const checkpointKey = "last_synced_block"

// Store provides Postgres persistence for the agent read model and the
// sync checkpoint.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the projection tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// LastSyncedBlock returns the checkpoint. ok=false means never synced.
func (s *Store) LastSyncedBlock(ctx context.Context) (uint64, bool, error) {
	var value string
	row := s.pool.QueryRow(ctx, `SELECT value FROM sync_state WHERE key=$1`, checkpointKey)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	block, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse checkpoint %q: %w", value, err)
	}
	return block, true, nil
}

// SetLastSyncedBlock upserts the checkpoint row.
func (s *Store) SetLastSyncedBlock(ctx context.Context, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, checkpointKey, strconv.FormatUint(block, 10))
	return err
}

// ApplyMints inserts agent rows (first mint wins), appends one activity row
// per event, and folds newly inserted mints into the trainer aggregates.
// Replayed events insert no agent row and leave the aggregates untouched.
// Everything runs in one transaction: the trainer increments are derived from
// the RETURNING rows of the agent inserts, so a partial commit would suppress
// them forever on replay.
func (s *Store) ApplyMints(ctx context.Context, events []model.AgentMinted) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO agents (
				token_id, name, owner, agent_wallet, level, stage, capabilities,
				version, description, token_uri, minted_at, block_number, tx_hash, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), $11, $12, now())
			ON CONFLICT (token_id) DO NOTHING
			RETURNING owner
		`,
			ev.TokenID,
			ev.Name,
			ev.Owner,
			ev.AgentWallet,
			ev.Level,
			ev.Stage,
			ev.Capabilities,
			ev.Version,
			ev.Description,
			ev.TokenURI,
			int64(ev.BlockNumber),
			ev.TxHash,
		)
	}

	br := tx.SendBatch(ctx, batch)
	newMints := make(map[string]int)
	for range events {
		var owner string
		err := br.QueryRow().Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			br.Close()
			return 0, err
		}
		newMints[owner]++
	}
	if err := br.Close(); err != nil {
		return 0, err
	}

	activityBatch := &pgx.Batch{}
	for _, ev := range events {
		activityBatch.Queue(`
			INSERT INTO activities (type, wallet, token_id, block_number, tx_hash)
			VALUES ($1, $2, $3, $4, $5)
		`, ev.EventName(), ev.Owner, ev.TokenID, int64(ev.BlockNumber), ev.TxHash)
	}
	for wallet, count := range newMints {
		activityBatch.Queue(`
			INSERT INTO trainers (wallet, agent_count, total_mints, first_seen, last_seen)
			VALUES ($1, $2, $2, now(), now())
			ON CONFLICT (wallet) DO UPDATE SET
				agent_count = trainers.agent_count + EXCLUDED.agent_count,
				total_mints = trainers.total_mints + EXCLUDED.total_mints,
				last_seen = now()
		`, wallet, count)
	}
	abr := tx.SendBatch(ctx, activityBatch)
	for i := 0; i < activityBatch.Len(); i++ {
		if _, err := abr.Exec(); err != nil {
			abr.Close()
			return 0, err
		}
	}
	if err := abr.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyLevelUps sets agent levels and appends activity rows. Setting the
// same level twice is a no-op by construction.
func (s *Store) ApplyLevelUps(ctx context.Context, events []model.AgentLeveledUp) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			UPDATE agents SET level = $2, updated_at = now() WHERE token_id = $1
		`, ev.TokenID, ev.NewLevel)
		batch.Queue(`
			INSERT INTO activities (type, token_id, metadata, block_number, tx_hash)
			VALUES ($1, $2, $3, $4, $5)
		`, ev.EventName(), ev.TokenID, metadataJSON(map[string]int{"newLevel": ev.NewLevel}), int64(ev.BlockNumber), ev.TxHash)
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyActivations records the ERC-8004 agent id on the agent row.
func (s *Store) ApplyActivations(ctx context.Context, events []model.NFAActivated) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			UPDATE agents SET erc8004_agent_id = $2, updated_at = now() WHERE token_id = $1
		`, ev.TokenID, ev.ERC8004AgentID)
		batch.Queue(`
			INSERT INTO activities (type, wallet, token_id, metadata, block_number, tx_hash)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ev.EventName(), ev.Owner, ev.TokenID, metadataJSON(map[string]string{"erc8004AgentId": ev.ERC8004AgentID}), int64(ev.BlockNumber), ev.TxHash)
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyStatusChanges sets the mapped status string on the agent row.
func (s *Store) ApplyStatusChanges(ctx context.Context, events []model.StatusChanged) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			UPDATE agents SET status = $2, updated_at = now() WHERE token_id = $1
		`, ev.TokenID, ev.Status)
		batch.Queue(`
			INSERT INTO activities (type, token_id, metadata, block_number, tx_hash)
			VALUES ($1, $2, $3, $4, $5)
		`, ev.EventName(), ev.TokenID, metadataJSON(map[string]string{"status": ev.Status}), int64(ev.BlockNumber), ev.TxHash)
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyLearningUpdates replaces the learning root and counts the update.
// No activity row, matching the upstream event feed.
func (s *Store) ApplyLearningUpdates(ctx context.Context, events []model.LearningUpdated) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			UPDATE agents SET
				learning_root = $2,
				learning_events = learning_events + 1,
				updated_at = now()
			WHERE token_id = $1
		`, ev.TokenID, ev.NewRoot)
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyInteractions bumps the interaction counter and logs the interaction.
func (s *Store) ApplyInteractions(ctx context.Context, events []model.InteractionRecorded) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			UPDATE agents SET total_interactions = total_interactions + 1, updated_at = now()
			WHERE token_id = $1
		`, ev.TokenID)
		batch.Queue(`
			INSERT INTO activities (type, token_id, metadata, block_number, tx_hash)
			VALUES ($1, $2, $3, $4, $5)
		`, ev.EventName(), ev.TokenID, metadataJSON(map[string]interface{}{
			"interactionType": ev.InteractionType,
			"success":         ev.Success,
		}), int64(ev.BlockNumber), ev.TxHash)
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyFundings credits the agent balance.
func (s *Store) ApplyFundings(ctx context.Context, events []model.AgentFunded) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			UPDATE agents SET agent_balance = agent_balance + $2::numeric, updated_at = now()
			WHERE token_id = $1
		`, ev.TokenID, ev.Amount)
		batch.Queue(`
			INSERT INTO activities (type, token_id, metadata, block_number, tx_hash)
			VALUES ($1, $2, $3, $4, $5)
		`, ev.EventName(), ev.TokenID, metadataJSON(map[string]string{"amount": ev.Amount}), int64(ev.BlockNumber), ev.TxHash)
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyFeedback inserts feedback rows, first sighting wins.
func (s *Store) ApplyFeedback(ctx context.Context, events []model.FeedbackGiven) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO reputation_feedback (
				agent_id, client_address, feedback_index, value, value_decimals, tag1, tag2
			) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
			ON CONFLICT (agent_id, client_address, feedback_index) DO NOTHING
		`,
			ev.AgentID,
			ev.Client,
			int64(ev.FeedbackIndex),
			ev.Value,
			int16(ev.ValueDecimals),
			ev.Tag1,
			ev.Tag2,
		)
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ApplyFeedbackRevocations flags feedback rows as revoked.
func (s *Store) ApplyFeedbackRevocations(ctx context.Context, events []model.FeedbackRevoked) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			UPDATE reputation_feedback SET is_revoked = true
			WHERE agent_id = $1 AND feedback_index = $2
		`, ev.AgentID, int64(ev.FeedbackIndex))
	}

	if err := s.flushBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(events), nil
}

func (s *Store) flushBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func metadataJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
