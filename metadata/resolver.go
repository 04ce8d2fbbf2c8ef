package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// fetchTimeout bounds one metadata document download.
const fetchTimeout = 5 * time.Second

// maxDocumentBytes bounds the size of an accepted metadata document.
const maxDocumentBytes = 1 << 20

// URISource resolves the on-chain metadata URI for one token.
type URISource interface {
	TokenURI(ctx context.Context, address common.Address, tokenID *uint256.Int) string
}

// TokenStore is the slice of the persistence layer the resolver writes through.
type TokenStore interface {
	HasNFTMetadata(ctx context.Context, tokenAddress string, tokenID string) (bool, error)
	UpdateNFTMetadata(ctx context.Context, metadata *store.NFTMetadata, name *string, description *string, imageURL *string, metadataURI *string) error
	CountCollectionOwners(ctx context.Context, tokenAddress string) (int64, error)
	UpdateNFTCollection(ctx context.Context, collection *store.NFTCollection) error
}

// Request identifies one token whose metadata should be resolved.
type Request struct {
	TokenAddress string
	TokenID      string
	TokenType    string
}

// document is the parsed shape of a token metadata JSON document. Image fields vary across marketplaces, so both
// common spellings are accepted.
type document struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	ImageURL    *string `json:"image_url"`
}

// Resolver fetches and persists NFT metadata off the ingestion path. Requests flow through a bounded queue; when
// the queue is full the oldest pending request is dropped so that ingestion never blocks on slow metadata hosts.
type Resolver struct {
	cfg        config.MetadataConfig
	tokenStore TokenStore
	uriSource  URISource
	httpClient *http.Client
	logger     *logging.Logger

	queueLock sync.Mutex
	queue     chan Request

	workersWaitGroup sync.WaitGroup
}

// NewResolver returns a resolver with a bounded request queue. Workers do not run until Start is called.
func NewResolver(cfg config.MetadataConfig, tokenStore TokenStore, uriSource URISource, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 1
	}
	return &Resolver{
		cfg:        cfg,
		tokenStore: tokenStore,
		uriSource:  uriSource,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger.NewSubLogger("module", "metadata"),
		queue:      make(chan Request, capacity),
	}
}

// Start launches the worker pool. Workers exit when the context is cancelled; Start blocks until they have.
func (r *Resolver) Start(ctx context.Context) {
	workerCount := r.cfg.WorkerPool
	if workerCount <= 0 {
		workerCount = 1
	}
	r.logger.Info("Starting metadata workers", logging.StructuredLogInfo{
		"workers": workerCount, "queueCapacity": cap(r.queue)})

	for i := 0; i < workerCount; i++ {
		r.workersWaitGroup.Add(1)
		go func() {
			defer r.workersWaitGroup.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case request := <-r.queue:
					r.resolve(ctx, request)
				}
			}
		}()
	}
	r.workersWaitGroup.Wait()
}

// Enqueue schedules a token for metadata resolution without blocking. When the queue is full, the oldest pending
// request is discarded to make room.
func (r *Resolver) Enqueue(request Request) {
	r.queueLock.Lock()
	defer r.queueLock.Unlock()
	for {
		select {
		case r.queue <- request:
			return
		default:
		}
		select {
		case dropped := <-r.queue:
			r.logger.Debug("Metadata queue full, dropping oldest request", logging.StructuredLogInfo{
				"tokenAddress": dropped.TokenAddress, "tokenId": dropped.TokenID})
		default:
		}
	}
}

// QueueDepth reports the number of pending requests.
func (r *Resolver) QueueDepth() int {
	return len(r.queue)
}

// resolve performs the full pipeline for one request. Failures are logged and dropped; the next transfer of the
// token enqueues it again.
func (r *Resolver) resolve(ctx context.Context, request Request) {
	resolved, err := r.tokenStore.HasNFTMetadata(ctx, request.TokenAddress, request.TokenID)
	if err != nil {
		r.logger.Warn("Could not check metadata presence", err)
		return
	}
	if resolved {
		return
	}

	tokenID, err := uint256.FromDecimal(request.TokenID)
	if err != nil {
		r.logger.Warn("Could not parse token id", err, logging.StructuredLogInfo{"tokenId": request.TokenID})
		return
	}
	address, err := utils.HexStringToAddress(request.TokenAddress)
	if err != nil {
		r.logger.Warn("Could not parse token address", err)
		return
	}

	uri := r.uriSource.TokenURI(ctx, address, tokenID)
	if uri == "" {
		return
	}

	fetchURL := r.RewriteURI(uri, tokenID)
	body, err := r.fetch(ctx, fetchURL)
	if err != nil {
		r.logger.Debug("Could not fetch token metadata", err, logging.StructuredLogInfo{
			"tokenAddress": request.TokenAddress, "tokenId": request.TokenID, "url": fetchURL})
		return
	}

	var doc document
	if err = json.Unmarshal(body, &doc); err != nil {
		r.logger.Debug("Could not parse token metadata document", err, logging.StructuredLogInfo{
			"tokenAddress": request.TokenAddress, "tokenId": request.TokenID})
		return
	}
	image := doc.Image
	if image == nil {
		image = doc.ImageURL
	}
	if image != nil {
		rewritten := r.RewriteURI(*image, tokenID)
		image = &rewritten
	}

	now := time.Now().UTC()
	err = r.tokenStore.UpdateNFTMetadata(ctx, &store.NFTMetadata{
		TokenAddress: request.TokenAddress,
		TokenID:      request.TokenID,
		Document:     string(body),
		LastUpdated:  now,
	}, doc.Name, doc.Description, image, &uri)
	if err != nil {
		r.logger.Warn("Could not persist token metadata", err)
		return
	}

	r.refreshCollection(ctx, request.TokenAddress, now)
}

// refreshCollection recomputes the owner count of the token's collection after a metadata update.
func (r *Resolver) refreshCollection(ctx context.Context, tokenAddress string, now time.Time) {
	ownerCount, err := r.tokenStore.CountCollectionOwners(ctx, tokenAddress)
	if err != nil {
		r.logger.Debug("Could not count collection owners", err)
		return
	}
	err = r.tokenStore.UpdateNFTCollection(ctx, &store.NFTCollection{
		TokenAddress: tokenAddress,
		OwnerCount:   &ownerCount,
		LastUpdated:  now,
	})
	if err != nil {
		r.logger.Debug("Could not update collection", err)
	}
}

// RewriteURI applies the two URI conventions of the token metadata ecosystem: the ERC-1155 {id} placeholder is
// replaced with the token id as 64 lowercase hex digits, and ipfs:// URIs are routed through the configured gateway.
func (r *Resolver) RewriteURI(uri string, tokenID *uint256.Int) string {
	if strings.Contains(uri, "{id}") {
		idBytes := tokenID.Bytes32()
		uri = strings.ReplaceAll(uri, "{id}", fmt.Sprintf("%064x", idBytes[:]))
	}
	if strings.HasPrefix(uri, "ipfs://") {
		uri = strings.TrimSuffix(r.cfg.IPFSGateway, "/") + "/" + strings.TrimPrefix(strings.TrimPrefix(uri, "ipfs://"), "ipfs/")
	}
	return uri
}

// fetch downloads one metadata document with the resolver's timeout and size bound.
func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	requestCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build metadata request")
	}
	response, err := r.httpClient.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch metadata")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("metadata host returned status %d", response.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "could not read metadata body")
	}
	if len(body) > maxDocumentBytes {
		return nil, errors.New("metadata document exceeds size bound")
	}
	return body, nil
}
