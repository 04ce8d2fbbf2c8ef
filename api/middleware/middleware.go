package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/studio-blockchain/studio-indexer/logging"
)

func setHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set default headers
		w.Header().Set("Content-Type", "application/json")

		// Handle CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	logger := logging.GlobalLogger.NewSubLogger("module", "api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request served", logging.StructuredLogInfo{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}

func AttachMiddleware(router *mux.Router) {
	router.Use(setHeaders)
	router.Use(logRequests)
}
