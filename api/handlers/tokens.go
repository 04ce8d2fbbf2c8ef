package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/store"
)

// GetTokenContractsHandler lists token contracts, optionally narrowed by standard with the type parameter.
func GetTokenContractsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		contracts, err := ix.Store().GetTokenContracts(r.Context(), r.URL.Query().Get("type"), limit, offset)
		writeResult(w, contracts, err)
	}
}

// GetTokenHandler fetches one token contract's metadata.
func GetTokenHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		contract, err := ix.Store().GetContract(r.Context(), address)
		writeResult(w, contract, err)
	}
}

// GetTokenTransfersHandler lists the transfers of one token.
func GetTokenTransfersHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		limit, offset := pagination(r)
		transfers, err := ix.Store().GetTokenTransfers(r.Context(), store.TransferFilter{TokenAddress: address}, limit, offset)
		writeResult(w, transfers, err)
	}
}

// GetTokenHoldersHandler lists the holders of one token by aggregated balance.
func GetTokenHoldersHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["address"])
		if !ok {
			return
		}
		limit, offset := pagination(r)
		holders, err := ix.Store().GetTokenHolders(r.Context(), address, limit, offset)
		writeResult(w, holders, err)
	}
}
