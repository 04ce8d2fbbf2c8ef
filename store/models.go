package store

import (
	"time"
)

// Contract type classifications. ContractTypeUnknown never overwrites a concrete type once one has been stored.
const (
	ContractTypeERC20   = "ERC20"
	ContractTypeERC721  = "ERC721"
	ContractTypeERC1155 = "ERC1155"
	ContractTypeUnknown = "UNKNOWN"
)

// Token transfer types mirror the contract types they originate from.
const (
	TokenTypeERC20   = "ERC20"
	TokenTypeERC721  = "ERC721"
	TokenTypeERC1155 = "ERC1155"
)

// Block mirrors one indexed block. Hashes and addresses are lowercase 0x-prefixed hex; difficulty is a decimal
// string.
type Block struct {
	Number           uint64    `db:"number" json:"number"`
	Hash             string    `db:"hash" json:"hash"`
	ParentHash       string    `db:"parent_hash" json:"parentHash"`
	Timestamp        time.Time `db:"timestamp" json:"timestamp"`
	Miner            string    `db:"miner" json:"miner"`
	GasLimit         uint64    `db:"gas_limit" json:"gasLimit"`
	GasUsed          uint64    `db:"gas_used" json:"gasUsed"`
	Difficulty       string    `db:"difficulty" json:"difficulty"`
	ExtraData        string    `db:"extra_data" json:"extraData"`
	Nonce            string    `db:"nonce" json:"nonce"`
	TransactionCount int       `db:"transaction_count" json:"transactionCount"`
}

// Transaction mirrors one indexed transaction. Value and gas price are decimal strings; To is nil exactly when the
// transaction created a contract.
type Transaction struct {
	Hash             string    `db:"hash" json:"hash"`
	BlockNumber      uint64    `db:"block_number" json:"blockNumber"`
	TransactionIndex uint64    `db:"transaction_index" json:"transactionIndex"`
	From             string    `db:"from_address" json:"from"`
	To               *string   `db:"to_address" json:"to"`
	Value            string    `db:"value" json:"value"`
	GasPrice         string    `db:"gas_price" json:"gasPrice"`
	GasLimit         uint64    `db:"gas_limit" json:"gasLimit"`
	GasUsed          uint64    `db:"gas_used" json:"gasUsed"`
	Input            string    `db:"input" json:"input"`
	Nonce            uint64    `db:"nonce" json:"nonce"`
	Status           int16     `db:"status" json:"status"`
	ContractAddress  *string   `db:"contract_address" json:"contractAddress,omitempty"`
	Timestamp        time.Time `db:"timestamp" json:"timestamp"`
}

// Account exists for every address that ever appeared as a sender or recipient. Balance mirrors the native balance
// in wei as of the last block that touched the account, refreshed best effort.
type Account struct {
	Address   string    `db:"address" json:"address"`
	FirstSeen time.Time `db:"first_seen" json:"firstSeen"`
	LastSeen  time.Time `db:"last_seen" json:"lastSeen"`
	Balance   string    `db:"balance" json:"balance"`
}

// Contract describes a deployed contract, its inferred token standard, token metadata captured by the classifier,
// and source verification state.
type Contract struct {
	Address          string  `db:"address" json:"address"`
	Creator          string  `db:"creator" json:"creator"`
	CreationTxHash   string  `db:"creation_tx_hash" json:"creationTxHash"`
	CreationBlock    uint64  `db:"creation_block" json:"creationBlock"`
	ContractType     string  `db:"contract_type" json:"contractType"`
	Name             *string `db:"name" json:"name,omitempty"`
	Symbol           *string `db:"symbol" json:"symbol,omitempty"`
	Decimals         *int    `db:"decimals" json:"decimals,omitempty"`
	TotalSupply      *string `db:"total_supply" json:"totalSupply,omitempty"`
	TransactionCount int64   `db:"transaction_count" json:"transactionCount"`

	Verified             bool       `db:"verified" json:"verified"`
	SourceCode           *string    `db:"source_code" json:"sourceCode,omitempty"`
	CompilerVersion      *string    `db:"compiler_version" json:"compilerVersion,omitempty"`
	OptimizationUsed     *bool      `db:"optimization_used" json:"optimizationUsed,omitempty"`
	Runs                 *int       `db:"runs" json:"runs,omitempty"`
	EVMVersion           *string    `db:"evm_version" json:"evmVersion,omitempty"`
	ConstructorArguments *string    `db:"constructor_arguments" json:"constructorArguments,omitempty"`
	Libraries            *string    `db:"libraries" json:"libraries,omitempty"`
	ABI                  *string    `db:"abi" json:"abi,omitempty"`
	VerifiedAt           *time.Time `db:"verified_at" json:"verifiedAt,omitempty"`
}

// Verification carries the full set of source-verification fields written atomically by SetVerified.
type Verification struct {
	SourceCode           string
	CompilerVersion      string
	OptimizationUsed     bool
	Runs                 int
	EVMVersion           string
	ConstructorArguments string
	Libraries            string
	ABI                  string
}

// TokenTransfer is one decoded token movement. Its logical key is (transaction hash, token address, from, to,
// token id), with a missing token id treated as the empty string.
type TokenTransfer struct {
	ID              int64     `db:"id" json:"id"`
	TransactionHash string    `db:"transaction_hash" json:"transactionHash"`
	BlockNumber     uint64    `db:"block_number" json:"blockNumber"`
	TokenAddress    string    `db:"token_address" json:"tokenAddress"`
	From            string    `db:"from_address" json:"from"`
	To              string    `db:"to_address" json:"to"`
	Value           string    `db:"value" json:"value"`
	TokenType       string    `db:"token_type" json:"tokenType"`
	TokenID         *string   `db:"token_id" json:"tokenId,omitempty"`
	Timestamp       time.Time `db:"timestamp" json:"timestamp"`
}

// NFTToken tracks the current owner of one (collection, token id) pair, alongside normalized metadata fields.
type NFTToken struct {
	TokenAddress string    `db:"token_address" json:"tokenAddress"`
	TokenID      string    `db:"token_id" json:"tokenId"`
	Owner        string    `db:"owner_address" json:"owner"`
	MetadataURI  *string   `db:"metadata_uri" json:"metadataUri,omitempty"`
	Name         *string   `db:"name" json:"name,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	ImageURL     *string   `db:"image_url" json:"imageUrl,omitempty"`
	LastUpdated  time.Time `db:"last_updated" json:"lastUpdated"`
}

// NFTMetadata holds the raw resolved metadata document for one token.
type NFTMetadata struct {
	TokenAddress string    `db:"token_address" json:"tokenAddress"`
	TokenID      string    `db:"token_id" json:"tokenId"`
	Document     string    `db:"document" json:"document"`
	LastUpdated  time.Time `db:"last_updated" json:"lastUpdated"`
}

// NFTCollection aggregates per-collection data.
type NFTCollection struct {
	TokenAddress string    `db:"token_address" json:"tokenAddress"`
	Name         *string   `db:"name" json:"name,omitempty"`
	Symbol       *string   `db:"symbol" json:"symbol,omitempty"`
	TotalSupply  *string   `db:"total_supply" json:"totalSupply,omitempty"`
	OwnerCount   *int64    `db:"owner_count" json:"ownerCount,omitempty"`
	LastUpdated  time.Time `db:"last_updated" json:"lastUpdated"`
}

// EventLog is the raw audit row for one emitted log.
type EventLog struct {
	TransactionHash string    `db:"transaction_hash" json:"transactionHash"`
	LogIndex        uint64    `db:"log_index" json:"logIndex"`
	BlockNumber     uint64    `db:"block_number" json:"blockNumber"`
	Address         string    `db:"address" json:"address"`
	Topic0          *string   `db:"topic0" json:"topic0,omitempty"`
	Topic1          *string   `db:"topic1" json:"topic1,omitempty"`
	Topic2          *string   `db:"topic2" json:"topic2,omitempty"`
	Topic3          *string   `db:"topic3" json:"topic3,omitempty"`
	Data            string    `db:"data" json:"data"`
	Timestamp       time.Time `db:"timestamp" json:"timestamp"`
}

// TokenHolder is one row of an ERC-20 holder aggregation.
type TokenHolder struct {
	Address string `db:"address" json:"address"`
	Balance string `db:"balance" json:"balance"`
}

// Cursor is the process-wide ingestion cursor. LatestProcessed is -1 before any block has been persisted.
type Cursor struct {
	LatestProcessed int64 `db:"latest_processed" json:"latestProcessed"`
	LatestFinalized int64 `db:"latest_finalized" json:"latestFinalized"`
}

// TransferFilter narrows token transfer queries. Empty fields are not applied; TokenTypes matches any of the listed
// standards.
type TransferFilter struct {
	TokenAddress string
	Address      string
	TokenTypes   []string
}
