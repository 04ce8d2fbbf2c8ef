package handlers

import (
	"net/http"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/store"
)

// GetTPSHandler reports transactions per second over the configured trailing window.
func GetTPSHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tps, err := ix.GetTPS(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tps": tps})
	}
}

// GetHoldersHandler counts accounts holding a non-zero native balance.
func GetHoldersHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holders, err := ix.Store().CountAccountsWithBalance(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"holders": holders})
	}
}

// GetValidatorsHandler lists the current validator set.
func GetValidatorsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		validators, err := ix.GetValidators(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"validators": validators})
	}
}

// GetValidatorsCountHandler reports the size of the current validator set.
func GetValidatorsCountHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := ix.GetValidatorsCount(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": count})
	}
}

// GetValidatorPayoutHandler reports one validator's accumulated block rewards.
func GetValidatorPayoutHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, r.URL.Query().Get("address"))
		if !ok {
			return
		}
		payout, blocksMined, err := ix.GetValidatorPayout(r.Context(), address)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"validator":   address,
			"blocksMined": blocksMined,
			"payout":      payout,
		})
	}
}

// GetContractsCountHandler counts every indexed contract.
func GetContractsCountHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := ix.Store().CountContracts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": count})
	}
}

// GetERC20ContractsCountHandler counts indexed ERC-20 contracts.
func GetERC20ContractsCountHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := ix.Store().CountTokenContracts(r.Context(), store.ContractTypeERC20)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": count})
	}
}

// GetNFTContractsCountHandler counts indexed ERC-721 and ERC-1155 contracts.
func GetNFTContractsCountHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := ix.Store().CountTokenContracts(r.Context(), store.ContractTypeERC721, store.ContractTypeERC1155)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": count})
	}
}
