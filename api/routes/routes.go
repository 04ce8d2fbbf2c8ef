package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/studio-blockchain/studio-indexer/api/handlers"
	"github.com/studio-blockchain/studio-indexer/indexer"
)

func attachBlockRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/blocks", handlers.GetLatestBlocksHandler(ix)).Methods("GET")
	router.HandleFunc("/blocks/hash/{hash}", handlers.GetBlockByHashHandler(ix)).Methods("GET")
	router.HandleFunc("/blocks/miner/{address}", handlers.GetBlocksByMinerHandler(ix)).Methods("GET")
	router.HandleFunc("/blocks/{number:[0-9]+}", handlers.GetBlockByNumberHandler(ix)).Methods("GET")
	router.HandleFunc("/blocks/{number:[0-9]+}/transactions", handlers.GetBlockTransactionsHandler(ix)).Methods("GET")
}

func attachTransactionRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/transactions", handlers.GetLatestTransactionsHandler(ix)).Methods("GET")
	router.HandleFunc("/transactions/pending", handlers.GetPendingTransactionsHandler(ix)).Methods("GET")
	router.HandleFunc("/transactions/{hash}", handlers.GetTransactionByHashHandler(ix)).Methods("GET")
	router.HandleFunc("/transactions/{hash}/receipt", handlers.GetTransactionReceiptHandler(ix)).Methods("GET")
}

func attachAddressRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/address/{address}/type", handlers.GetAddressTypeHandler(ix)).Methods("GET")
	router.HandleFunc("/address/{address}/transactions", handlers.GetAddressTransactionsHandler(ix)).Methods("GET")
	router.HandleFunc("/address/{address}/tokens", handlers.GetAddressTokensHandler(ix)).Methods("GET")
	router.HandleFunc("/address/{address}/token-transfers", handlers.GetAddressTokenTransfersHandler(ix)).Methods("GET")
	router.HandleFunc("/address/{address}/nfts", handlers.GetAddressNFTsHandler(ix)).Methods("GET")
	router.HandleFunc("/address/{address}/nft-transfers", handlers.GetAddressNFTTransfersHandler(ix)).Methods("GET")
	router.HandleFunc("/account/{address}/balances", handlers.GetAccountBalancesHandler(ix)).Methods("GET")
}

func attachTokenRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/tokens", handlers.GetTokenContractsHandler(ix)).Methods("GET")
	router.HandleFunc("/tokens/{address}", handlers.GetTokenHandler(ix)).Methods("GET")
	router.HandleFunc("/tokens/{address}/transfers", handlers.GetTokenTransfersHandler(ix)).Methods("GET")
	router.HandleFunc("/tokens/{address}/holders", handlers.GetTokenHoldersHandler(ix)).Methods("GET")
}

func attachNFTRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/nfts", handlers.GetNFTCollectionsHandler(ix)).Methods("GET")
	router.HandleFunc("/nfts/{tokenAddress}", handlers.GetNFTCollectionTokensHandler(ix)).Methods("GET")
	router.HandleFunc("/nfts/{tokenAddress}/{tokenId}", handlers.GetNFTTokenHandler(ix)).Methods("GET")
}

func attachStatsRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/stats/tps", handlers.GetTPSHandler(ix)).Methods("GET")
	router.HandleFunc("/stats/holders", handlers.GetHoldersHandler(ix)).Methods("GET")
	router.HandleFunc("/stats/validators", handlers.GetValidatorsHandler(ix)).Methods("GET")
	router.HandleFunc("/stats/validators/count", handlers.GetValidatorsCountHandler(ix)).Methods("GET")
	router.HandleFunc("/stats/validators/payout", handlers.GetValidatorPayoutHandler(ix)).Methods("GET")
	router.HandleFunc("/stats/contracts/count", handlers.GetContractsCountHandler(ix)).Methods("GET")
	router.HandleFunc("/stats/contracts/erc20/count", handlers.GetERC20ContractsCountHandler(ix)).Methods("GET")
	router.HandleFunc("/stats/contracts/nft/count", handlers.GetNFTContractsCountHandler(ix)).Methods("GET")
}

func attachVerificationRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/contracts/verify", handlers.VerifyContractHandler(ix)).Methods("POST")
}

func attachProxyRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/proxy/rpc", handlers.ProxyRPCHandler(ix)).Methods("POST")
	router.HandleFunc("/logs/filter", handlers.FilterLogsHandler(ix)).Methods("POST")
}

func attachWebsocketRoutes(router *mux.Router, ix *indexer.Indexer) {
	router.HandleFunc("/ws/blocks", handlers.WebsocketBlocksHandler(ix)).Methods("GET")
}

func AttachRoutes(router *mux.Router, ix *indexer.Indexer) {
	// Register routes
	router.HandleFunc("/health", handlers.HealthHandler(ix)).Methods("GET")
	router.HandleFunc("/search", handlers.SearchHandler(ix)).Methods("GET")
	attachBlockRoutes(router, ix)
	attachTransactionRoutes(router, ix)
	attachAddressRoutes(router, ix)
	attachTokenRoutes(router, ix)
	attachNFTRoutes(router, ix)
	attachStatsRoutes(router, ix)
	attachVerificationRoutes(router, ix)
	attachProxyRoutes(router, ix)
	attachWebsocketRoutes(router, ix)

	// Catch-all 404 handler
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFoundHandler)
}
