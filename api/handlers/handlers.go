package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// IndexerHandler builds an http.HandlerFunc bound to a running indexer.
type IndexerHandler func(ix *indexer.Indexer) http.HandlerFunc

// defaultPageSize applies when a listing request carries no limit parameter.
const defaultPageSize = 25

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeRaw relays an upstream JSON payload untouched.
func writeRaw(w http.ResponseWriter, payload []byte) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// writeResult maps a store read onto the response: 200 with the payload, 404 for a miss, 500 otherwise.
func writeResult(w http.ResponseWriter, payload any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, payload)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// pagination reads the limit and offset query parameters. Out-of-range values are clamped by the store.
func pagination(r *http.Request) (int, int) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			offset = parsed
		}
	}
	return limit, offset
}

// requireAddress validates and normalizes an address parameter, writing a 400 on malformed input.
func requireAddress(w http.ResponseWriter, raw string) (string, bool) {
	normalized := utils.NormalizeAddress(raw)
	if _, err := utils.HexStringToAddress(normalized); err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return "", false
	}
	return normalized, true
}

func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "Not Found")
}

// HealthHandler reports the ingestion cursor and whether the ingestion loop is live.
func HealthHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cursor, err := ix.Store().GetCursor(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"lastBlock":  cursor.LatestProcessed,
			"isIndexing": ix.IsRunning(),
		})
	}
}

// SearchHandler disambiguates the q parameter into a block, transaction, contract or account.
func SearchHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := ix.Search(r.Context(), r.URL.Query().Get("q"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, result)
		case errors.Is(err, indexer.ErrUnrecognizedQuery):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}
