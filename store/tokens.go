package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GetTokenTransfers lists transfers matching the filter, descending by (block, id). Empty filter fields are not
// applied; Address matches either side of a transfer.
func (s *Store) GetTokenTransfers(ctx context.Context, filter TransferFilter, limit int, offset int) ([]TokenTransfer, error) {
	limit, offset = clampPage(limit, offset)

	query := `SELECT * FROM token_transfers WHERE 1=1`
	args := []interface{}{}
	if filter.TokenAddress != "" {
		args = append(args, filter.TokenAddress)
		query += ` AND token_address = $` + itoa(len(args))
	}
	if filter.Address != "" {
		args = append(args, filter.Address)
		n := itoa(len(args))
		query += ` AND (from_address = $` + n + ` OR to_address = $` + n + `)`
	}
	if len(filter.TokenTypes) > 0 {
		placeholders := make([]string, 0, len(filter.TokenTypes))
		for _, tokenType := range filter.TokenTypes {
			args = append(args, tokenType)
			placeholders = append(placeholders, "$"+itoa(len(args)))
		}
		query += ` AND token_type IN (` + strings.Join(placeholders, ", ") + `)`
	}
	args = append(args, limit)
	query += ` ORDER BY block_number DESC, id DESC LIMIT $` + itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + itoa(len(args))

	transfers := []TokenTransfer{}
	if err := s.db.SelectContext(ctx, &transfers, query, args...); err != nil {
		return nil, errors.Wrap(err, "could not list token transfers")
	}
	return transfers, nil
}

// GetTokenHolders aggregates ERC-20 holder balances for a token from its transfer history: for each address, the
// sum of received values minus the sum of sent values. Addresses whose net balance is zero or negative are omitted.
// Ordered by balance descending.
func (s *Store) GetTokenHolders(ctx context.Context, tokenAddress string, limit int, offset int) ([]TokenHolder, error) {
	limit, offset = clampPage(limit, offset)

	holders := []TokenHolder{}
	err := s.db.SelectContext(ctx, &holders, `
		WITH movements AS (
			SELECT to_address AS address, value AS delta
			FROM token_transfers WHERE token_address = $1
			UNION ALL
			SELECT from_address AS address, -value AS delta
			FROM token_transfers WHERE token_address = $1
		)
		SELECT address, SUM(delta)::TEXT AS balance
		FROM movements
		WHERE address <> '0x0000000000000000000000000000000000000000'
		GROUP BY address
		HAVING SUM(delta) > 0
		ORDER BY SUM(delta) DESC, address ASC
		LIMIT $2 OFFSET $3`, tokenAddress, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "could not aggregate token holders")
	}
	return holders, nil
}

// GetERC20Balances computes an address's balance in every ERC-20 token it has touched, from transfer history.
func (s *Store) GetERC20Balances(ctx context.Context, address string) (map[string]string, error) {
	rows := []struct {
		TokenAddress string `db:"token_address"`
		Balance      string `db:"balance"`
	}{}
	err := s.db.SelectContext(ctx, &rows, `
		WITH movements AS (
			SELECT token_address, value AS delta
			FROM token_transfers WHERE token_type = 'ERC20' AND to_address = $1
			UNION ALL
			SELECT token_address, -value AS delta
			FROM token_transfers WHERE token_type = 'ERC20' AND from_address = $1
		)
		SELECT token_address, SUM(delta)::TEXT AS balance
		FROM movements
		GROUP BY token_address
		HAVING SUM(delta) > 0`, address)
	if err != nil {
		return nil, errors.Wrap(err, "could not compute token balances")
	}

	balances := make(map[string]string, len(rows))
	for _, row := range rows {
		balances[row.TokenAddress] = row.Balance
	}
	return balances, nil
}

// itoa is shorthand for the positional-placeholder numbering above.
func itoa(n int) string {
	return strconv.Itoa(n)
}
