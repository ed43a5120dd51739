package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"voice-stress/pkg/models"
)

var ErrCacheMiss = errors.New("cache miss")

// ResultCache remembers responses by input checksum for a limited time.
// Scoring is a pure function of its input so a hit is always valid.
type ResultCache interface {
	Get(checksum string) (*models.StressResponse, error)
	Put(checksum string, resp *models.StressResponse) error
	Close() error
}

type badgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewResultCache opens an in-memory badger instance. Nothing is written to
// disk and entries expire after ttl.
func NewResultCache(ttl time.Duration) (ResultCache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open result cache: %w", err)
	}
	return &badgerCache{db: db, ttl: ttl}, nil
}

func cacheKey(checksum string) []byte {
	return []byte("result/" + checksum)
}

func (c *badgerCache) Get(checksum string) (*models.StressResponse, error) {
	var resp models.StressResponse

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(checksum))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &resp)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached result: %w", err)
	}
	return &resp, nil
}

func (c *badgerCache) Put(checksum string, resp *models.StressResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(cacheKey(checksum), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (c *badgerCache) Close() error {
	return c.db.Close()
}

type noopCache struct{}

// NewNoopCache returns a cache that never hits.
func NewNoopCache() ResultCache { return noopCache{} }

func (noopCache) Get(string) (*models.StressResponse, error) { return nil, ErrCacheMiss }
func (noopCache) Put(string, *models.StressResponse) error { return nil }
func (noopCache) Close() error { return nil }
