package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// tokenBalance is one entry of an address's ERC-20 holdings, joined with the token contract's captured metadata.
type tokenBalance struct {
	ContractAddress string  `json:"contractAddress"`
	Symbol          *string `json:"symbol,omitempty"`
	Name            *string `json:"name,omitempty"`
	Balance         string  `json:"balance"`
	Decimals        *int    `json:"decimals,omitempty"`
	Type            string  `json:"type"`
}

// tokenBalances computes an address's ERC-20 holdings from transfer history and decorates each with the token's
// stored metadata. Tokens without a contract row still appear, carrying just the balance.
func tokenBalances(ctx context.Context, ix *indexer.Indexer, address string) ([]tokenBalance, error) {
	balances, err := ix.Store().GetERC20Balances(ctx, address)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(balances))
	for tokenAddress := range balances {
		tokens = append(tokens, tokenAddress)
	}
	sort.Strings(tokens)

	result := make([]tokenBalance, 0, len(tokens))
	for _, tokenAddress := range tokens {
		entry := tokenBalance{
			ContractAddress: tokenAddress,
			Balance:         balances[tokenAddress],
			Type:            store.ContractTypeERC20,
		}
		contract, err := ix.Store().GetContract(ctx, tokenAddress)
		if err == nil {
			entry.Symbol = contract.Symbol
			entry.Name = contract.Name
			entry.Decimals = contract.Decimals
			entry.Type = contract.ContractType
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

// GetAddressTypeHandler classifies an address as wallet, contract or token.
func GetAddressTypeHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		kind, err := ix.AddressType(r.Context(), address)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"address": address, "type": kind})
	}
}

// GetAddressTransactionsHandler lists the transactions an address sent or received.
func GetAddressTransactionsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		limit, offset := pagination(r)
		transactions, err := ix.Store().GetTransactionsByAddress(r.Context(), address, limit, offset)
		writeResult(w, transactions, err)
	}
}

// GetAddressTokensHandler lists an address's ERC-20 holdings.
func GetAddressTokensHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		tokens, err := tokenBalances(r.Context(), ix, address)
		writeResult(w, tokens, err)
	}
}

// GetAddressTokenTransfersHandler lists the ERC-20 transfers touching an address.
func GetAddressTokenTransfersHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		limit, offset := pagination(r)
		transfers, err := ix.Store().GetTokenTransfers(r.Context(), store.TransferFilter{
			Address:    address,
			TokenTypes: []string{store.TokenTypeERC20},
		}, limit, offset)
		writeResult(w, transfers, err)
	}
}

// GetAddressNFTsHandler lists the NFTs an address currently owns, optionally narrowed to one collection.
func GetAddressNFTsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		collection := ""
		if raw := r.URL.Query().Get("collection"); raw != "" {
			collection = utils.NormalizeAddress(raw)
		}
		limit, offset := pagination(r)
		nfts, err := ix.Store().GetNFTsByOwner(r.Context(), address, collection, limit, offset)
		writeResult(w, nfts, err)
	}
}

// GetAddressNFTTransfersHandler lists the ERC-721 and ERC-1155 transfers touching an address.
func GetAddressNFTTransfersHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		limit, offset := pagination(r)
		transfers, err := ix.Store().GetTokenTransfers(r.Context(), store.TransferFilter{
			Address:    address,
			TokenTypes: []string{store.TokenTypeERC721, store.TokenTypeERC1155},
		}, limit, offset)
		writeResult(w, transfers, err)
	}
}

// GetAccountBalancesHandler reports an address's live native balance alongside its ERC-20 holdings.
func GetAccountBalancesHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		parsed, err := utils.HexStringToAddress(address)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}

		native, err := ix.Pool().GetBalance(r.Context(), parsed)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		tokens, err := tokenBalances(r.Context(), ix, address)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"native": native.String(),
			"tokens": tokens,
		})
	}
}
