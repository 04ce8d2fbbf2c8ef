package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// GetBlockByNumber fetches one block by height. Returns ErrNotFound when the height is not indexed.
func (s *Store) GetBlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var block Block
	err := s.db.GetContext(ctx, &block, `SELECT * FROM blocks WHERE number = $1`, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read block")
	}
	return &block, nil
}

// GetBlockByHash fetches one block by hash.
func (s *Store) GetBlockByHash(ctx context.Context, hash string) (*Block, error) {
	var block Block
	err := s.db.GetContext(ctx, &block, `SELECT * FROM blocks WHERE hash = $1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read block")
	}
	return &block, nil
}

// GetLatestBlocks lists indexed blocks in descending height order.
func (s *Store) GetLatestBlocks(ctx context.Context, limit int, offset int) ([]Block, error) {
	limit, offset = clampPage(limit, offset)
	blocks := []Block{}
	err := s.db.SelectContext(ctx, &blocks,
		`SELECT * FROM blocks ORDER BY number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "could not list blocks")
	}
	return blocks, nil
}

// GetBlocksByMiner lists blocks produced by the given validator, descending by height.
func (s *Store) GetBlocksByMiner(ctx context.Context, miner string, limit int, offset int) ([]Block, error) {
	limit, offset = clampPage(limit, offset)
	blocks := []Block{}
	err := s.db.SelectContext(ctx, &blocks,
		`SELECT * FROM blocks WHERE miner = $1 ORDER BY number DESC LIMIT $2 OFFSET $3`, miner, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "could not list blocks by miner")
	}
	return blocks, nil
}

// CountBlocksByMiner returns the exact number of blocks produced by the given validator. This backs the payout
// endpoint; it deliberately counts every block rather than estimating from a sample.
func (s *Store) CountBlocksByMiner(ctx context.Context, miner string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM blocks WHERE miner = $1`, miner)
	return count, errors.Wrap(err, "could not count blocks by miner")
}

// DistinctMiners returns the distinct block producers over the most recent span of blocks. Used as the validator
// set fallback when clique_getSigners is unavailable.
func (s *Store) DistinctMiners(ctx context.Context, span int) ([]string, error) {
	miners := []string{}
	err := s.db.SelectContext(ctx, &miners, `
		SELECT DISTINCT miner FROM (
			SELECT miner FROM blocks ORDER BY number DESC LIMIT $1
		) recent`, span)
	if err != nil {
		return nil, errors.Wrap(err, "could not list distinct miners")
	}
	return miners, nil
}

// GetTransactionByHash fetches one transaction.
func (s *Store) GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var transaction Transaction
	err := s.db.GetContext(ctx, &transaction, `SELECT * FROM transactions WHERE hash = $1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read transaction")
	}
	return &transaction, nil
}

// GetLatestTransactions lists transactions in descending (block, index) order.
func (s *Store) GetLatestTransactions(ctx context.Context, limit int, offset int) ([]Transaction, error) {
	limit, offset = clampPage(limit, offset)
	transactions := []Transaction{}
	err := s.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions
		ORDER BY block_number DESC, transaction_index DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "could not list transactions")
	}
	return transactions, nil
}

// GetTransactionsByBlock lists a block's transactions in ascending index order.
func (s *Store) GetTransactionsByBlock(ctx context.Context, number uint64) ([]Transaction, error) {
	transactions := []Transaction{}
	err := s.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions WHERE block_number = $1 ORDER BY transaction_index ASC`, number)
	if err != nil {
		return nil, errors.Wrap(err, "could not list block transactions")
	}
	return transactions, nil
}

// GetTransactionsByAddress lists transactions sent or received by the address, descending (block, index).
func (s *Store) GetTransactionsByAddress(ctx context.Context, address string, limit int, offset int) ([]Transaction, error) {
	limit, offset = clampPage(limit, offset)
	transactions := []Transaction{}
	err := s.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions WHERE from_address = $1 OR to_address = $1
		ORDER BY block_number DESC, transaction_index DESC LIMIT $2 OFFSET $3`, address, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "could not list address transactions")
	}
	return transactions, nil
}

// GetAccount fetches one account row.
func (s *Store) GetAccount(ctx context.Context, address string) (*Account, error) {
	var account Account
	err := s.db.GetContext(ctx, &account, `SELECT * FROM accounts WHERE address = $1`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read account")
	}
	return &account, nil
}

// GetEventLogs lists raw logs for an address, optionally narrowed to one topic0 signature, descending by block.
func (s *Store) GetEventLogs(ctx context.Context, address string, topic0 string, limit int, offset int) ([]EventLog, error) {
	limit, offset = clampPage(limit, offset)
	eventLogs := []EventLog{}
	var err error
	if topic0 == "" {
		err = s.db.SelectContext(ctx, &eventLogs, `
			SELECT * FROM event_logs WHERE address = $1
			ORDER BY block_number DESC, log_index DESC LIMIT $2 OFFSET $3`, address, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &eventLogs, `
			SELECT * FROM event_logs WHERE address = $1 AND topic0 = $2
			ORDER BY block_number DESC, log_index DESC LIMIT $3 OFFSET $4`, address, topic0, limit, offset)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not list event logs")
	}
	return eventLogs, nil
}

// CountEventLogs returns the exact number of stored event logs.
func (s *Store) CountEventLogs(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM event_logs`)
	return count, errors.Wrap(err, "could not count event logs")
}
