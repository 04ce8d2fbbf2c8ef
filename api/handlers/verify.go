package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/verification"
)

// maxProxyBodyBytes bounds the request body of the RPC passthrough endpoints.
const maxProxyBodyBytes = 1 << 20

// VerifyContractHandler accepts a source verification submission. Negative verification outcomes are 200 responses
// carrying success=false; only admission and lookup failures map to error status codes.
func VerifyContractHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request verification.Request
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		result, err := ix.Verifier().Verify(r.Context(), &request)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, result)
		case errors.Is(err, verification.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "contract not found")
		case errors.Is(err, store.ErrAlreadyVerified):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

// ProxyRPCHandler relays an opaque JSON-RPC request to the healthy upstream endpoints.
func ProxyRPCHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readJSONBody(w, r)
		if !ok {
			return
		}
		response, err := ix.Pool().Proxy(r.Context(), body)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeRaw(w, response)
	}
}

// FilterLogsHandler relays an Ethereum log filter to the upstream eth_getLogs.
func FilterLogsHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readJSONBody(w, r)
		if !ok {
			return
		}
		logs, err := ix.Pool().GetLogs(r.Context(), body)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeRaw(w, logs)
	}
}

// readJSONBody reads a bounded request body and requires it to be well-formed JSON, writing a 400 otherwise.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return nil, false
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return nil, false
	}
	return body, true
}
