package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/logging"
)

// BlockBundle carries everything a single block contributes to the store. IngestBlock persists the whole bundle in
// one database transaction; either all of it commits or none of it does.
type BlockBundle struct {
	Block        Block
	Transactions []Transaction
	Transfers    []TokenTransfer
	EventLogs    []EventLog

	// Contracts holds rows for contracts created in this block, as classified at decode time.
	Contracts []Contract

	// Balances maps touched addresses to their native balance in wei (decimal string), fetched best effort at
	// decode time. Missing addresses keep their previously mirrored balance.
	Balances map[string]string
}

// IngestBlock persists a block bundle atomically. It verifies the parent-hash chain invariant first and returns
// ErrParentHashMismatch without writing anything when the stored previous block disagrees, which signals a reorg to
// the caller. Re-ingesting an identical bundle is a no-op for all derived state.
func (s *Store) IngestBlock(ctx context.Context, bundle *BlockBundle) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin block transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Parent-hash invariant: block N's parent hash must equal the stored hash of block N-1, when we have one.
	if bundle.Block.Number > 0 {
		var prevHash string
		err = tx.GetContext(ctx, &prevHash, `SELECT hash FROM blocks WHERE number = $1`, bundle.Block.Number-1)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(err, "could not read previous block")
		}
		if err == nil && prevHash != bundle.Block.ParentHash {
			return ErrParentHashMismatch
		}
	}

	if err = insertBlock(ctx, tx, &bundle.Block); err != nil {
		return err
	}

	for i := range bundle.Transactions {
		if err = insertTransaction(ctx, tx, &bundle.Transactions[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Contracts {
		if err = upsertContract(ctx, tx, &bundle.Contracts[i]); err != nil {
			return err
		}
	}

	// Transfers are applied in original log order so that derived NFT ownership converges to the last transfer's
	// recipient within the block.
	for i := range bundle.Transfers {
		if err = insertTokenTransfer(ctx, tx, &bundle.Transfers[i]); err != nil {
			return err
		}
	}

	for i := range bundle.EventLogs {
		if err = insertEventLog(ctx, tx, &bundle.EventLogs[i]); err != nil {
			return err
		}
	}

	for address, balance := range bundle.Balances {
		if _, err = tx.ExecContext(ctx,
			`UPDATE accounts SET balance = $2 WHERE address = $1`, address, balance); err != nil {
			return errors.Wrap(err, "could not update account balance")
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE indexer_cursor SET latest_processed = $1 WHERE id = 1`, int64(bundle.Block.Number)); err != nil {
		return errors.Wrap(err, "could not advance cursor")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit block transaction")
	}
	return nil
}

// insertBlock upserts a block by number, replacing all fields.
func insertBlock(ctx context.Context, tx *sqlx.Tx, block *Block) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO blocks (number, hash, parent_hash, timestamp, miner, gas_limit, gas_used, difficulty,
			extra_data, nonce, transaction_count)
		VALUES (:number, :hash, :parent_hash, :timestamp, :miner, :gas_limit, :gas_used, :difficulty,
			:extra_data, :nonce, :transaction_count)
		ON CONFLICT (number) DO UPDATE SET
			hash = EXCLUDED.hash,
			parent_hash = EXCLUDED.parent_hash,
			timestamp = EXCLUDED.timestamp,
			miner = EXCLUDED.miner,
			gas_limit = EXCLUDED.gas_limit,
			gas_used = EXCLUDED.gas_used,
			difficulty = EXCLUDED.difficulty,
			extra_data = EXCLUDED.extra_data,
			nonce = EXCLUDED.nonce,
			transaction_count = EXCLUDED.transaction_count`, block)
	return errors.Wrap(err, "could not insert block")
}

// insertTransaction upserts a transaction by hash, touches the sender and recipient accounts, and maintains
// Contract.transaction_count for any known contract party. The counter is only incremented when the row is newly
// inserted so that re-processing a height does not double count.
func insertTransaction(ctx context.Context, tx *sqlx.Tx, transaction *Transaction) error {
	// xmax = 0 distinguishes a fresh insert from a conflict-update
	var inserted bool
	rows, err := tx.NamedQuery(`
		INSERT INTO transactions (hash, block_number, transaction_index, from_address, to_address, value,
			gas_price, gas_limit, gas_used, input, nonce, status, contract_address, timestamp)
		VALUES (:hash, :block_number, :transaction_index, :from_address, :to_address, :value,
			:gas_price, :gas_limit, :gas_used, :input, :nonce, :status, :contract_address, :timestamp)
		ON CONFLICT (hash) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			transaction_index = EXCLUDED.transaction_index,
			from_address = EXCLUDED.from_address,
			to_address = EXCLUDED.to_address,
			value = EXCLUDED.value,
			gas_price = EXCLUDED.gas_price,
			gas_limit = EXCLUDED.gas_limit,
			gas_used = EXCLUDED.gas_used,
			input = EXCLUDED.input,
			nonce = EXCLUDED.nonce,
			status = EXCLUDED.status,
			contract_address = EXCLUDED.contract_address,
			timestamp = EXCLUDED.timestamp
		RETURNING (xmax = 0) AS inserted`, transaction)
	if err != nil {
		return errors.Wrap(err, "could not insert transaction")
	}
	if rows.Next() {
		if err = rows.Scan(&inserted); err != nil {
			_ = rows.Close()
			return errors.Wrap(err, "could not scan transaction insert result")
		}
	}
	if err = rows.Close(); err != nil {
		return errors.WithStack(err)
	}

	// Touch accounts for every address party to the transaction
	parties := []string{transaction.From}
	if transaction.To != nil {
		parties = append(parties, *transaction.To)
	}
	if transaction.ContractAddress != nil {
		parties = append(parties, *transaction.ContractAddress)
	}
	for _, address := range parties {
		if err = touchAccount(ctx, tx, address, transaction); err != nil {
			return err
		}
	}

	// Maintain per-contract transaction counters for fresh rows only
	if inserted {
		if _, err = tx.ExecContext(ctx, `
			UPDATE contracts SET transaction_count = transaction_count + 1
			WHERE address = $1 OR address = COALESCE($2, '')`,
			transaction.From, transaction.To); err != nil {
			return errors.Wrap(err, "could not update contract transaction count")
		}
	}
	return nil
}

// touchAccount makes sure an account row exists for the address and advances its last_seen watermark.
func touchAccount(ctx context.Context, tx *sqlx.Tx, address string, transaction *Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (address, first_seen, last_seen)
		VALUES ($1, $2, $2)
		ON CONFLICT (address) DO UPDATE SET
			last_seen = GREATEST(accounts.last_seen, EXCLUDED.last_seen)`,
		address, transaction.Timestamp)
	return errors.Wrap(err, "could not touch account")
}

// insertTokenTransfer upserts a transfer on its logical key. On conflict only value, token type and timestamp are
// replaced. ERC-721/1155 transfers then update derived NFT ownership in the same transaction.
func insertTokenTransfer(ctx context.Context, tx *sqlx.Tx, transfer *TokenTransfer) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO token_transfers (transaction_hash, block_number, token_address, from_address, to_address,
			value, token_type, token_id, timestamp)
		VALUES (:transaction_hash, :block_number, :token_address, :from_address, :to_address,
			:value, :token_type, :token_id, :timestamp)
		ON CONFLICT (transaction_hash, token_address, from_address, to_address, COALESCE(token_id, '-1'::numeric))
		DO UPDATE SET
			value = EXCLUDED.value,
			token_type = EXCLUDED.token_type,
			timestamp = EXCLUDED.timestamp`, transfer)
	if err != nil {
		return errors.Wrap(err, "could not insert token transfer")
	}

	if (transfer.TokenType == TokenTypeERC721 || transfer.TokenType == TokenTypeERC1155) && transfer.TokenID != nil {
		if err = updateNFTOwnership(ctx, tx, transfer); err != nil {
			return err
		}
	}
	return nil
}

// updateNFTOwnership points the (collection, token id) row at the most recent observed recipient.
func updateNFTOwnership(ctx context.Context, tx *sqlx.Tx, transfer *TokenTransfer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO nft_tokens (token_address, token_id, owner_address, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_address, token_id) DO UPDATE SET
			owner_address = EXCLUDED.owner_address,
			last_updated = EXCLUDED.last_updated`,
		transfer.TokenAddress, transfer.TokenID, transfer.To, transfer.Timestamp)
	return errors.Wrap(err, "could not update nft ownership")
}

// insertEventLog records the raw audit row for one emitted log.
func insertEventLog(ctx context.Context, tx *sqlx.Tx, eventLog *EventLog) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO event_logs (transaction_hash, log_index, block_number, address, topic0, topic1, topic2, topic3,
			data, timestamp)
		VALUES (:transaction_hash, :log_index, :block_number, :address, :topic0, :topic1, :topic2, :topic3,
			:data, :timestamp)
		ON CONFLICT (transaction_hash, log_index) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			address = EXCLUDED.address,
			topic0 = EXCLUDED.topic0,
			topic1 = EXCLUDED.topic1,
			topic2 = EXCLUDED.topic2,
			topic3 = EXCLUDED.topic3,
			data = EXCLUDED.data,
			timestamp = EXCLUDED.timestamp`, eventLog)
	return errors.Wrap(err, "could not insert event log")
}

// Reorg deletes all indexed state at or above fromHeight in one transaction and rewinds the cursor to
// fromHeight - 1. Derived NFT ownership rows are intentionally left in place; the next observed transfer of a token
// corrects them.
func (s *Store) Reorg(ctx context.Context, fromHeight uint64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin reorg transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statements := []string{
		`DELETE FROM token_transfers WHERE block_number >= $1`,
		`DELETE FROM event_logs WHERE block_number >= $1`,
		`DELETE FROM transactions WHERE block_number >= $1`,
		`DELETE FROM blocks WHERE number >= $1`,
	}
	for _, statement := range statements {
		if _, err = tx.ExecContext(ctx, statement, int64(fromHeight)); err != nil {
			return errors.Wrap(err, "could not delete reorged state")
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE indexer_cursor SET latest_processed = $1 WHERE id = 1`, int64(fromHeight)-1); err != nil {
		return errors.Wrap(err, "could not rewind cursor")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit reorg transaction")
	}

	s.logger.Warn("chain reorg handled", logging.StructuredLogInfo{"fromHeight": fromHeight})
	return nil
}

// GetCursor reads the process-wide ingestion cursor.
func (s *Store) GetCursor(ctx context.Context) (*Cursor, error) {
	var cursor Cursor
	err := s.db.GetContext(ctx, &cursor,
		`SELECT latest_processed, latest_finalized FROM indexer_cursor WHERE id = 1`)
	if err != nil {
		return nil, errors.Wrap(err, "could not read indexer cursor")
	}
	return &cursor, nil
}

// SetFinalized records the highest height currently considered final (chain head minus confirmations).
func (s *Store) SetFinalized(ctx context.Context, height int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE indexer_cursor SET latest_finalized = $1 WHERE id = 1`, height)
	return errors.Wrap(err, "could not update finalized height")
}
