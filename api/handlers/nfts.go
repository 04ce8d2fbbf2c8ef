package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/store"
)

// GetNFTCollectionsHandler lists indexed NFT collections.
func GetNFTCollectionsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		collections, err := ix.Store().GetNFTCollections(r.Context(), limit, offset)
		writeResult(w, collections, err)
	}
}

// GetNFTCollectionTokensHandler lists the tokens of one collection.
func GetNFTCollectionTokensHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["tokenAddress"])
		if !ok {
			return
		}
		limit, offset := pagination(r)
		tokens, err := ix.Store().GetNFTsByCollection(r.Context(), address, limit, offset)
		writeResult(w, tokens, err)
	}
}

// GetNFTTokenHandler fetches one NFT with its resolved metadata document when one exists.
func GetNFTTokenHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := requireAddress(w, mux.Vars(r)["tokenAddress"])
		if !ok {
			return
		}
		tokenID := mux.Vars(r)["tokenId"]

		token, err := ix.Store().GetNFTToken(r.Context(), address, tokenID)
		if err != nil {
			writeResult(w, nil, err)
			return
		}

		response := map[string]any{"token": token}
		metadata, err := ix.Store().GetNFTMetadata(r.Context(), address, tokenID)
		if err == nil {
			response["metadata"] = json.RawMessage(metadata.Document)
		} else if !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, response)
	}
}
