package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/studio-blockchain/studio-indexer/api/middleware"
	"github.com/studio-blockchain/studio-indexer/api/routes"
	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/logging"
)

// Start serves the HTTP API until the context is cancelled or the server fails. When the configured port is already
// taken, the next few ports are tried before giving up.
func Start(ctx context.Context, ix *indexer.Indexer) {
	port := fmt.Sprint(":", ix.Config().Server.Port)

	// Create a new router
	router := mux.NewRouter()

	// Attach middleware
	middleware.AttachMiddleware(router)

	// Attach routes
	routes.AttachRoutes(router, ix)

	logger := logging.GlobalLogger.NewSubLogger("module", "api")

	var listener net.Listener
	var err error

	for i := 0; i < 10; i++ {
		listener, err = net.Listen("tcp", port)
		if err == nil {
			break
		}

		logger.Info("Server failed to start on port ", port[1:])
		port = incrementPort(port)
	}

	// Stop further execution if the server failed to start
	if listener == nil {
		logger.Error("Failed to start server: ", err)
		return
	}

	logger.Info("Server started on port ", port[1:])

	// Start the server in a separate goroutine
	serverErrorChan := make(chan error, 1)
	go func() {
		serverErrorChan <- http.Serve(listener, router)
	}()

	// Gracefully shutdown the server if the indexer context is cancelled or a server error is encountered
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server due to context cancellation")
		if err := listener.Close(); err != nil {
			logger.Error("Error closing listener: ", err)
		}
	case err := <-serverErrorChan:
		logger.Error("Server error: ", err)
	}
}

func incrementPort(port string) string {
	var portNum int

	_, err := fmt.Sscanf(port, ":%d", &portNum)
	if err != nil {
		panic(err)
	}

	return fmt.Sprintf(":%d", portNum+1)
}
