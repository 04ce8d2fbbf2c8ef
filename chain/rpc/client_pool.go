package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/logging"
)

// DefaultCallTimeout is the deadline applied to every outbound RPC call unless the caller's context expires sooner.
const DefaultCallTimeout = 5 * time.Second

// healthProbeInterval is how often the background prober checks every endpoint.
const healthProbeInterval = 60 * time.Second

// EndpointStatus describes the reported health of a single endpoint in the pool. Health flags are informational
// only; routing is reactive and does not consult them.
type EndpointStatus struct {
	URL       string    `json:"url"`
	Healthy   bool      `json:"healthy"`
	LastProbe time.Time `json:"lastProbe"`
	LastError string    `json:"lastError,omitempty"`
}

// ClientPool provides a single callRpc abstraction over an ordered list of JSON-RPC endpoints. Each call is tried
// against the current endpoint first, then the rest in rotation. When a rotation succeeds on a different endpoint
// than the current one, that endpoint is promoted to current.
type ClientPool struct {
	// urls is the ordered endpoint list the pool was constructed from.
	urls []string

	// clients holds one rpc.Client per endpoint, index-aligned with urls.
	clients []*gethrpc.Client

	// current is the index of the endpoint tried first on the next call.
	current int

	// healthy and probe bookkeeping, index-aligned with urls. Updated by the prober and read by Endpoints.
	healthy    []bool
	lastProbe  []time.Time
	lastErrors []string

	// callTimeout is the per-attempt deadline applied to outbound calls.
	callTimeout time.Duration

	lock   sync.Mutex
	logger *logging.Logger
}

// NewClientPool constructs a ClientPool from an ordered list of endpoint URLs. Returns an error if no URLs are
// provided or any endpoint URL cannot be parsed.
func NewClientPool(urls []string, logger *logging.Logger) (*ClientPool, error) {
	if len(urls) == 0 {
		return nil, errors.New("rpc client pool requires at least one endpoint url")
	}

	pool := &ClientPool{
		urls:        urls,
		clients:     make([]*gethrpc.Client, len(urls)),
		healthy:     make([]bool, len(urls)),
		lastProbe:   make([]time.Time, len(urls)),
		lastErrors:  make([]string, len(urls)),
		callTimeout: DefaultCallTimeout,
		logger:      logger.NewSubLogger("module", "rpc"),
	}

	for i, url := range urls {
		client, err := gethrpc.Dial(url)
		if err != nil {
			return nil, errors.Wrapf(err, "error when creating rpc client for '%s'", url)
		}
		pool.clients[i] = client
		// Endpoints start out presumed healthy until a probe says otherwise
		pool.healthy[i] = true
	}
	return pool, nil
}

// SetCallTimeout overrides the per-attempt deadline applied to outbound calls.
func (c *ClientPool) SetCallTimeout(timeout time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.callTimeout = timeout
}

// Call executes a JSON-RPC request against the pool, decoding the response into result. It attempts each endpoint in
// rotation starting from the current one, for up to len(endpoints) attempts. On success via a non-current endpoint,
// that endpoint becomes current. If every endpoint fails, the last underlying error is surfaced.
func (c *ClientPool) Call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	c.lock.Lock()
	start := c.current
	count := len(c.clients)
	timeout := c.callTimeout
	c.lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < count; attempt++ {
		index := (start + attempt) % count

		// Bound the attempt. The caller's context still cancels the in-flight request if it expires first.
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.clients[index].CallContext(attemptCtx, result, method, args...)
		cancel()

		if err == nil {
			if index != start {
				c.promote(index)
			}
			return nil
		}
		lastErr = err

		// Caller cancellation is not an endpoint failure, stop rotating
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Debug("rpc call failed over", logging.StructuredLogInfo{"method": method, "endpoint": c.urls[index]}, err)
	}

	return errors.Wrapf(lastErr, "all %d rpc endpoints failed for method '%s'", count, method)
}

// promote makes the endpoint at the given index the first one tried by subsequent calls.
func (c *ClientPool) promote(index int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.current != index {
		c.logger.Info("promoted rpc endpoint ", c.urls[index])
		c.current = index
	}
}

// proxyError is the JSON-RPC error object echoed to proxy callers when the upstream node rejects a request.
type proxyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// proxyEnvelope is the JSON-RPC response envelope returned by Proxy, carrying the caller's request id.
type proxyEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *proxyError     `json:"error,omitempty"`
}

// Proxy forwards a raw JSON-RPC request body and returns the full response envelope with the caller's id, using the
// same failover as Call. Error objects from the upstream node are part of the passthrough response; only transport
// failures surface as errors.
func (c *ClientPool) Proxy(ctx context.Context, request []byte) (json.RawMessage, error) {
	var parsed struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(request, &parsed); err != nil {
		return nil, errors.Wrap(err, "malformed json-rpc request")
	}
	if parsed.Method == "" {
		return nil, errors.New("json-rpc request missing method")
	}

	// Re-materialize params as opaque values so the underlying client re-encodes them untouched
	args := make([]interface{}, len(parsed.Params))
	for i, p := range parsed.Params {
		args[i] = p
	}

	envelope := proxyEnvelope{JSONRPC: "2.0", ID: parsed.ID}
	var result json.RawMessage
	if err := c.Call(ctx, &result, parsed.Method, args...); err != nil {
		var rpcErr gethrpc.Error
		if !errors.As(err, &rpcErr) {
			return nil, err
		}
		envelope.Error = &proxyError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		var dataErr gethrpc.DataError
		if errors.As(err, &dataErr) {
			envelope.Error.Data = dataErr.ErrorData()
		}
	} else {
		envelope.Result = result
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return encoded, nil
}

// Endpoints reports the status of every endpoint in the pool, in construction order.
func (c *ClientPool) Endpoints() []EndpointStatus {
	c.lock.Lock()
	defer c.lock.Unlock()

	statuses := make([]EndpointStatus, len(c.urls))
	for i, url := range c.urls {
		statuses[i] = EndpointStatus{
			URL:       url,
			Healthy:   c.healthy[i],
			LastProbe: c.lastProbe[i],
			LastError: c.lastErrors[i],
		}
	}
	return statuses
}

// StartHealthProbes launches the background prober, which requests the current block number from every endpoint on a
// fixed interval and records the result. It returns immediately; probing stops when the context is cancelled.
func (c *ClientPool) StartHealthProbes(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(healthProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.probeAll(ctx)
			}
		}
	}()
}

// probeAll probes every endpoint once, updating the health bookkeeping.
func (c *ClientPool) probeAll(ctx context.Context) {
	for i := range c.clients {
		probeCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		var blockNumber string
		err := c.clients[i].CallContext(probeCtx, &blockNumber, "eth_blockNumber")
		cancel()

		c.lock.Lock()
		c.lastProbe[i] = time.Now().UTC()
		c.healthy[i] = err == nil
		if err != nil {
			c.lastErrors[i] = err.Error()
		} else {
			c.lastErrors[i] = ""
		}
		c.lock.Unlock()

		if err != nil {
			c.logger.Warn("rpc endpoint failed health probe ", c.urls[i], err)
		}
	}
}

// Close releases every underlying client.
func (c *ClientPool) Close() {
	for _, client := range c.clients {
		client.Close()
	}
}
