package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// GetNFTToken fetches one (collection, token id) row.
func (s *Store) GetNFTToken(ctx context.Context, tokenAddress string, tokenID string) (*NFTToken, error) {
	var token NFTToken
	err := s.db.GetContext(ctx, &token,
		`SELECT * FROM nft_tokens WHERE token_address = $1 AND token_id = $2::numeric`, tokenAddress, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read nft token")
	}
	return &token, nil
}

// GetNFTsByOwner lists tokens currently owned by the address, most recently updated first. A non-empty
// tokenAddress narrows the listing to one collection.
func (s *Store) GetNFTsByOwner(ctx context.Context, owner string, tokenAddress string, limit int, offset int) ([]NFTToken, error) {
	limit, offset = clampPage(limit, offset)
	tokens := []NFTToken{}
	var err error
	if tokenAddress == "" {
		err = s.db.SelectContext(ctx, &tokens, `
			SELECT * FROM nft_tokens WHERE owner_address = $1
			ORDER BY last_updated DESC LIMIT $2 OFFSET $3`, owner, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &tokens, `
			SELECT * FROM nft_tokens WHERE owner_address = $1 AND token_address = $2
			ORDER BY last_updated DESC LIMIT $3 OFFSET $4`, owner, tokenAddress, limit, offset)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not list nfts by owner")
	}
	return tokens, nil
}

// GetNFTsByCollection lists a collection's tokens, most recently updated first.
func (s *Store) GetNFTsByCollection(ctx context.Context, tokenAddress string, limit int, offset int) ([]NFTToken, error) {
	limit, offset = clampPage(limit, offset)
	tokens := []NFTToken{}
	err := s.db.SelectContext(ctx, &tokens, `
		SELECT * FROM nft_tokens WHERE token_address = $1
		ORDER BY last_updated DESC LIMIT $2 OFFSET $3`, tokenAddress, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "could not list collection nfts")
	}
	return tokens, nil
}

// GetNFTCollections lists known collections, most recently updated first.
func (s *Store) GetNFTCollections(ctx context.Context, limit int, offset int) ([]NFTCollection, error) {
	limit, offset = clampPage(limit, offset)
	collections := []NFTCollection{}
	err := s.db.SelectContext(ctx, &collections, `
		SELECT * FROM nft_collections ORDER BY last_updated DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "could not list nft collections")
	}
	return collections, nil
}

// GetNFTMetadata fetches the raw metadata document for one token.
func (s *Store) GetNFTMetadata(ctx context.Context, tokenAddress string, tokenID string) (*NFTMetadata, error) {
	var metadata NFTMetadata
	err := s.db.GetContext(ctx, &metadata,
		`SELECT * FROM nft_metadata WHERE token_address = $1 AND token_id = $2::numeric`, tokenAddress, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read nft metadata")
	}
	return &metadata, nil
}

// UpdateNFTMetadata upserts the raw metadata document and the normalized display fields on the token row.
func (s *Store) UpdateNFTMetadata(ctx context.Context, metadata *NFTMetadata, name *string, description *string, imageURL *string, metadataURI *string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin metadata transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO nft_metadata (token_address, token_id, document, last_updated)
		VALUES (:token_address, :token_id, :document, :last_updated)
		ON CONFLICT (token_address, token_id) DO UPDATE SET
			document = EXCLUDED.document,
			last_updated = EXCLUDED.last_updated`, metadata)
	if err != nil {
		return errors.Wrap(err, "could not upsert nft metadata")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE nft_tokens SET
			metadata_uri = COALESCE($3, metadata_uri),
			name = COALESCE($4, name),
			description = COALESCE($5, description),
			image_url = COALESCE($6, image_url),
			last_updated = $7
		WHERE token_address = $1 AND token_id = $2::numeric`,
		metadata.TokenAddress, metadata.TokenID, metadataURI, name, description, imageURL, metadata.LastUpdated)
	if err != nil {
		return errors.Wrap(err, "could not update nft token fields")
	}

	return errors.Wrap(tx.Commit(), "could not commit metadata transaction")
}

// UpdateNFTCollection upserts a collection row.
func (s *Store) UpdateNFTCollection(ctx context.Context, collection *NFTCollection) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO nft_collections (token_address, name, symbol, total_supply, owner_count, last_updated)
		VALUES (:token_address, :name, :symbol, :total_supply, :owner_count, :last_updated)
		ON CONFLICT (token_address) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, nft_collections.name),
			symbol = COALESCE(EXCLUDED.symbol, nft_collections.symbol),
			total_supply = COALESCE(EXCLUDED.total_supply, nft_collections.total_supply),
			owner_count = COALESCE(EXCLUDED.owner_count, nft_collections.owner_count),
			last_updated = EXCLUDED.last_updated`, collection)
	return errors.Wrap(err, "could not upsert nft collection")
}

// CountCollectionOwners returns the number of distinct current owners within one collection.
func (s *Store) CountCollectionOwners(ctx context.Context, tokenAddress string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(DISTINCT owner_address) FROM nft_tokens WHERE token_address = $1`, tokenAddress)
	return count, errors.Wrap(err, "could not count collection owners")
}

// HasNFTMetadata reports whether the token row already carries resolved metadata.
func (s *Store) HasNFTMetadata(ctx context.Context, tokenAddress string, tokenID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM nft_metadata WHERE token_address = $1 AND token_id = $2::numeric
		)`, tokenAddress, tokenID)
	return exists, errors.Wrap(err, "could not check nft metadata presence")
}
