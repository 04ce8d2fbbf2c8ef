package verification

import (
	"crypto/sha256"
	"encoding/json"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/studio-blockchain/studio-indexer/utils"
)

// cacheBucket is the bbolt bucket holding verification artifacts.
var cacheBucket = []byte("verifications")

// cache persists successful verification artifacts keyed by the canonical hash of their request, so that repeat
// submissions skip compilation entirely.
type cache struct {
	db *bolt.DB
}

// openCache opens (or creates) the verification cache database at the given path.
func openCache(path string) (*cache, error) {
	if err := utils.MakeDirectory(filepath.Dir(path)); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "could not open verification cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not create verification cache bucket")
	}
	return &cache{db: db}, nil
}

// get returns the cached result for a request key, or nil on miss.
func (c *cache) get(key [sha256.Size]byte) *Result {
	var result *Result
	_ = c.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(cacheBucket).Get(key[:])
		if value == nil {
			return nil
		}
		var decoded Result
		if err := json.Unmarshal(value, &decoded); err != nil {
			return nil
		}
		result = &decoded
		return nil
	})
	return result
}

// put stores a result under a request key.
func (c *cache) put(key [sha256.Size]byte, result *Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrap(c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(key[:], encoded)
	}), "could not write verification cache entry")
}

// close closes the underlying database.
func (c *cache) close() error {
	return c.db.Close()
}

// requestKey computes the canonical cache key of a request: SHA-256 over a canonical JSON encoding with the source
// files and libraries serialized in sorted key order.
func requestKey(request *Request) [sha256.Size]byte {
	type keyedPair struct {
		Key   string `json:"k"`
		Value string `json:"v"`
	}
	sortedPairs := func(m map[string]string) []keyedPair {
		keys := make([]string, 0, len(m))
		for key := range m {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]keyedPair, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, keyedPair{Key: key, Value: m[key]})
		}
		return pairs
	}

	canonical := struct {
		Address              string      `json:"address"`
		Sources              []keyedPair `json:"sources"`
		ContractName         string      `json:"contractName"`
		CompilerVersion      string      `json:"compilerVersion"`
		OptimizationUsed     bool        `json:"optimizationUsed"`
		Runs                 int         `json:"runs"`
		EVMVersion           string      `json:"evmVersion"`
		Libraries            []keyedPair `json:"libraries"`
		ConstructorArguments string      `json:"constructorArguments"`
	}{
		Address:              request.Address,
		Sources:              sortedPairs(request.Sources),
		ContractName:         request.ContractName,
		CompilerVersion:      request.CompilerVersion,
		OptimizationUsed:     request.OptimizationUsed,
		Runs:                 request.Runs,
		EVMVersion:           request.EVMVersion,
		Libraries:            sortedPairs(request.Libraries),
		ConstructorArguments: request.ConstructorArguments,
	}
	encoded, _ := json.Marshal(canonical)
	return sha256.Sum256(encoded)
}
