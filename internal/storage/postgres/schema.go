package postgres

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS agents (
		token_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner TEXT NOT NULL,
		agent_wallet TEXT NOT NULL,
		level INT NOT NULL DEFAULT 1,
		stage TEXT NOT NULL DEFAULT 'Rookie',
		capabilities TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '1.0.0',
		description TEXT NOT NULL DEFAULT '',
		token_uri TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Active',
		erc8004_agent_id TEXT,
		learning_root TEXT,
		learning_events INT NOT NULL DEFAULT 0,
		total_interactions INT NOT NULL DEFAULT 0,
		agent_balance NUMERIC(78, 0) NOT NULL DEFAULT 0,
		minted_at TIMESTAMPTZ NOT NULL,
		block_number BIGINT NOT NULL,
		tx_hash TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_owner ON agents (owner)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_name ON agents (name)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_level ON agents (level)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_minted_at ON agents (minted_at)`,
	`CREATE TABLE IF NOT EXISTS trainers (
		wallet TEXT PRIMARY KEY,
		agent_count INT NOT NULL DEFAULT 0,
		total_mints INT NOT NULL DEFAULT 0,
		first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id BIGSERIAL PRIMARY KEY,
		type TEXT NOT NULL,
		wallet TEXT,
		token_id TEXT,
		metadata TEXT,
		block_number BIGINT,
		tx_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities (type)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_wallet ON activities (wallet)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities (created_at)`,
	`CREATE TABLE IF NOT EXISTS reputation_feedback (
		agent_id TEXT NOT NULL,
		client_address TEXT NOT NULL,
		feedback_index BIGINT NOT NULL,
		value NUMERIC(40, 0) NOT NULL DEFAULT 0,
		value_decimals SMALLINT NOT NULL DEFAULT 0,
		tag1 TEXT,
		tag2 TEXT,
		is_revoked BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (agent_id, client_address, feedback_index)
	)`,
}
