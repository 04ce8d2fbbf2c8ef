package store

// schema is the idempotent DDL applied on startup. NUMERIC(78) fits any uint256 rendered in decimal.
const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	number            BIGINT PRIMARY KEY,
	hash              TEXT NOT NULL UNIQUE,
	parent_hash       TEXT NOT NULL,
	timestamp         TIMESTAMPTZ NOT NULL,
	miner             TEXT NOT NULL,
	gas_limit         BIGINT NOT NULL,
	gas_used          BIGINT NOT NULL,
	difficulty        NUMERIC(78) NOT NULL DEFAULT 0,
	extra_data        TEXT NOT NULL DEFAULT '',
	nonce             TEXT NOT NULL DEFAULT '',
	transaction_count INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS accounts (
	address    TEXT PRIMARY KEY,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL,
	balance    NUMERIC(78) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transactions (
	hash              TEXT PRIMARY KEY,
	block_number      BIGINT NOT NULL REFERENCES blocks (number) ON DELETE CASCADE,
	transaction_index BIGINT NOT NULL,
	from_address      TEXT NOT NULL,
	to_address        TEXT,
	value             NUMERIC(78) NOT NULL DEFAULT 0,
	gas_price         NUMERIC(78) NOT NULL DEFAULT 0,
	gas_limit         BIGINT NOT NULL DEFAULT 0,
	gas_used          BIGINT NOT NULL DEFAULT 0,
	input             TEXT NOT NULL DEFAULT '0x',
	nonce             BIGINT NOT NULL DEFAULT 0,
	status            SMALLINT NOT NULL DEFAULT 1,
	contract_address  TEXT,
	timestamp         TIMESTAMPTZ NOT NULL,
	UNIQUE (block_number, transaction_index)
);

CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions (from_address);
CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions (to_address);
CREATE INDEX IF NOT EXISTS idx_transactions_block ON transactions (block_number DESC, transaction_index DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions (timestamp);

CREATE TABLE IF NOT EXISTS contracts (
	address               TEXT PRIMARY KEY REFERENCES accounts (address),
	creator               TEXT NOT NULL,
	creation_tx_hash      TEXT NOT NULL,
	creation_block        BIGINT NOT NULL,
	contract_type         TEXT NOT NULL DEFAULT 'UNKNOWN',
	name                  TEXT,
	symbol                TEXT,
	decimals              INT,
	total_supply          NUMERIC(78),
	transaction_count     BIGINT NOT NULL DEFAULT 0,
	verified              BOOLEAN NOT NULL DEFAULT FALSE,
	source_code           TEXT,
	compiler_version      TEXT,
	optimization_used     BOOLEAN,
	runs                  INT,
	evm_version           TEXT,
	constructor_arguments TEXT,
	libraries             TEXT,
	abi                   TEXT,
	verified_at           TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_contracts_type ON contracts (contract_type);

CREATE TABLE IF NOT EXISTS token_transfers (
	id               BIGSERIAL PRIMARY KEY,
	transaction_hash TEXT NOT NULL,
	block_number     BIGINT NOT NULL,
	token_address    TEXT NOT NULL,
	from_address     TEXT NOT NULL,
	to_address       TEXT NOT NULL,
	value            NUMERIC(78) NOT NULL DEFAULT 0,
	token_type       TEXT NOT NULL,
	token_id         NUMERIC(78),
	timestamp        TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_token_transfers_logical_key
	ON token_transfers (transaction_hash, token_address, from_address, to_address, COALESCE(token_id, '-1'::numeric));
CREATE INDEX IF NOT EXISTS idx_token_transfers_token ON token_transfers (token_address, block_number DESC);
CREATE INDEX IF NOT EXISTS idx_token_transfers_from ON token_transfers (from_address);
CREATE INDEX IF NOT EXISTS idx_token_transfers_to ON token_transfers (to_address);
CREATE INDEX IF NOT EXISTS idx_token_transfers_block ON token_transfers (block_number DESC, id DESC);

CREATE TABLE IF NOT EXISTS nft_tokens (
	token_address TEXT NOT NULL,
	token_id      NUMERIC(78) NOT NULL,
	owner_address TEXT NOT NULL,
	metadata_uri  TEXT,
	name          TEXT,
	description   TEXT,
	image_url     TEXT,
	last_updated  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (token_address, token_id)
);

CREATE INDEX IF NOT EXISTS idx_nft_tokens_owner ON nft_tokens (owner_address);

CREATE TABLE IF NOT EXISTS nft_metadata (
	token_address TEXT NOT NULL,
	token_id      NUMERIC(78) NOT NULL,
	document      JSONB NOT NULL,
	last_updated  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (token_address, token_id)
);

CREATE TABLE IF NOT EXISTS nft_collections (
	token_address TEXT PRIMARY KEY,
	name          TEXT,
	symbol        TEXT,
	total_supply  NUMERIC(78),
	owner_count   BIGINT,
	last_updated  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS event_logs (
	transaction_hash TEXT NOT NULL,
	log_index        BIGINT NOT NULL,
	block_number     BIGINT NOT NULL,
	address          TEXT NOT NULL,
	topic0           TEXT,
	topic1           TEXT,
	topic2           TEXT,
	topic3           TEXT,
	data             TEXT NOT NULL DEFAULT '0x',
	timestamp        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (transaction_hash, log_index)
);

CREATE INDEX IF NOT EXISTS idx_event_logs_address_topic0 ON event_logs (address, topic0);
CREATE INDEX IF NOT EXISTS idx_event_logs_block ON event_logs (block_number);

CREATE TABLE IF NOT EXISTS indexer_cursor (
	id               SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	latest_processed BIGINT NOT NULL DEFAULT -1,
	latest_finalized BIGINT NOT NULL DEFAULT -1
);

INSERT INTO indexer_cursor (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
`
