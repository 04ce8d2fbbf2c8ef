package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// upsertContract writes a contract row. A stored concrete contract_type is never downgraded to UNKNOWN, and token
// metadata fields only ever gain information.
func upsertContract(ctx context.Context, e sqlx.ExtContext, contract *Contract) error {
	// The creator must exist as an account before the contract row can reference it
	_, err := e.ExecContext(ctx, `
		INSERT INTO accounts (address, first_seen, last_seen)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (address) DO NOTHING`, contract.Address)
	if err != nil {
		return errors.Wrap(err, "could not ensure contract account")
	}

	_, err = sqlx.NamedExecContext(ctx, e, `
		INSERT INTO contracts (address, creator, creation_tx_hash, creation_block, contract_type, name, symbol,
			decimals, total_supply)
		VALUES (:address, :creator, :creation_tx_hash, :creation_block, :contract_type, :name, :symbol,
			:decimals, :total_supply)
		ON CONFLICT (address) DO UPDATE SET
			contract_type = CASE
				WHEN contracts.contract_type <> 'UNKNOWN' AND EXCLUDED.contract_type = 'UNKNOWN'
					THEN contracts.contract_type
				ELSE EXCLUDED.contract_type
			END,
			name = COALESCE(EXCLUDED.name, contracts.name),
			symbol = COALESCE(EXCLUDED.symbol, contracts.symbol),
			decimals = COALESCE(EXCLUDED.decimals, contracts.decimals),
			total_supply = COALESCE(EXCLUDED.total_supply, contracts.total_supply)`, contract)
	return errors.Wrap(err, "could not upsert contract")
}

// UpsertContract records a contract discovered outside block ingestion, e.g. a classification performed lazily for
// an address first observed as a transaction recipient.
func (s *Store) UpsertContract(ctx context.Context, contract *Contract) error {
	return upsertContract(ctx, s.db, contract)
}

// SetVerified atomically writes all source-verification fields for a contract. The verified flag transitions only
// false to true; a second write returns ErrAlreadyVerified.
func (s *Store) SetVerified(ctx context.Context, address string, verification *Verification) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET
			verified = TRUE,
			source_code = $2,
			compiler_version = $3,
			optimization_used = $4,
			runs = $5,
			evm_version = $6,
			constructor_arguments = $7,
			libraries = $8,
			abi = $9,
			verified_at = $10
		WHERE address = $1 AND verified = FALSE`,
		address,
		verification.SourceCode,
		verification.CompilerVersion,
		verification.OptimizationUsed,
		verification.Runs,
		verification.EVMVersion,
		verification.ConstructorArguments,
		verification.Libraries,
		verification.ABI,
		time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "could not set contract verified")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 {
		// Distinguish a repeat verification from a contract we have never indexed
		var verified bool
		err = s.db.GetContext(ctx, &verified, `SELECT verified FROM contracts WHERE address = $1`, address)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "could not read contract verified flag")
		}
		return ErrAlreadyVerified
	}
	return nil
}

// GetContract fetches one contract row. Returns ErrNotFound when the address has no contract row.
func (s *Store) GetContract(ctx context.Context, address string) (*Contract, error) {
	var contract Contract
	err := s.db.GetContext(ctx, &contract, `SELECT * FROM contracts WHERE address = $1`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read contract")
	}
	return &contract, nil
}

// GetTokenContracts lists contracts of the given token type, newest deployment first. An empty type lists every
// token contract (any type except UNKNOWN).
func (s *Store) GetTokenContracts(ctx context.Context, tokenType string, limit int, offset int) ([]Contract, error) {
	limit, offset = clampPage(limit, offset)

	contracts := []Contract{}
	var err error
	if tokenType == "" {
		err = s.db.SelectContext(ctx, &contracts, `
			SELECT * FROM contracts WHERE contract_type <> 'UNKNOWN'
			ORDER BY creation_block DESC LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &contracts, `
			SELECT * FROM contracts WHERE contract_type = $1
			ORDER BY creation_block DESC LIMIT $2 OFFSET $3`, tokenType, limit, offset)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not list token contracts")
	}
	return contracts, nil
}

// CountContracts returns the exact number of indexed contracts.
func (s *Store) CountContracts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM contracts`)
	return count, errors.Wrap(err, "could not count contracts")
}

// CountTokenContracts returns the exact number of contracts with the given token type. Passing multiple types
// counts their union.
func (s *Store) CountTokenContracts(ctx context.Context, tokenTypes ...string) (int64, error) {
	var count int64
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM contracts WHERE contract_type IN (?)`, tokenTypes)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	err = s.db.GetContext(ctx, &count, s.db.Rebind(query), args...)
	return count, errors.Wrap(err, "could not count token contracts")
}
