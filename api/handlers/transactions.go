package handlers

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// GetLatestTransactionsHandler lists indexed transactions descending by (block, index).
func GetLatestTransactionsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		transactions, err := ix.Store().GetLatestTransactions(r.Context(), limit, offset)
		writeResult(w, transactions, err)
	}
}

// GetTransactionByHashHandler fetches one transaction by hash.
func GetTransactionByHashHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash, ok := requireTransactionHash(w, mux.Vars(r)["hash"])
		if !ok {
			return
		}
		transaction, err := ix.Store().GetTransactionByHash(r.Context(), hash)
		writeResult(w, transaction, err)
	}
}

// GetTransactionReceiptHandler relays the upstream receipt of one transaction.
func GetTransactionReceiptHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash, ok := requireTransactionHash(w, mux.Vars(r)["hash"])
		if !ok {
			return
		}
		receipt, err := ix.Pool().TransactionReceipt(r.Context(), common.HexToHash(hash))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if receipt == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}

// GetPendingTransactionsHandler relays the upstream pending transaction list.
func GetPendingTransactionsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := ix.Pool().PendingTransactions(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeRaw(w, pending)
	}
}

// requireTransactionHash validates and normalizes a transaction hash parameter, writing a 400 on malformed input.
func requireTransactionHash(w http.ResponseWriter, raw string) (string, bool) {
	normalized := utils.NormalizeAddress(raw)
	body := strings.TrimPrefix(normalized, "0x")
	if !utils.IsHexString(body) || len(body) != 64 {
		writeError(w, http.StatusBadRequest, "invalid transaction hash")
		return "", false
	}
	return normalized, true
}
