package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// GetLatestBlocksHandler lists indexed blocks descending by height.
func GetLatestBlocksHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		blocks, err := ix.Store().GetLatestBlocks(r.Context(), limit, offset)
		writeResult(w, blocks, err)
	}
}

// GetBlockByNumberHandler fetches one block by height.
func GetBlockByNumberHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := strconv.ParseUint(mux.Vars(r)["number"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid block number")
			return
		}
		block, err := ix.Store().GetBlockByNumber(r.Context(), number)
		writeResult(w, block, err)
	}
}

// GetBlockByHashHandler fetches one block by hash.
func GetBlockByHashHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := utils.NormalizeAddress(mux.Vars(r)["hash"])
		block, err := ix.Store().GetBlockByHash(r.Context(), hash)
		writeResult(w, block, err)
	}
}

// GetBlockTransactionsHandler lists the transactions of one block in execution order.
func GetBlockTransactionsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := strconv.ParseUint(mux.Vars(r)["number"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid block number")
			return
		}
		transactions, err := ix.Store().GetTransactionsByBlock(r.Context(), number)
		writeResult(w, transactions, err)
	}
}

// GetBlocksByMinerHandler lists the blocks sealed by one validator.
func GetBlocksByMinerHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		limit, offset := pagination(r)
		blocks, err := ix.Store().GetBlocksByMiner(r.Context(), address, limit, offset)
		writeResult(w, blocks, err)
	}
}
