// Package cache stores provider responses for a bounded time so repeated
// research on the same ticker does not spend provider quota.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"
	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"
)

// Cache is a TTL key/value store for raw provider payloads.
type Cache interface {
	// Get returns the payload and true on a fresh hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Purge removes expired entries.
	Purge(ctx context.Context) error
	Close() error
}

type entry struct {
	Key       string
	Payload   []byte
	ExpiresAt int64
}

// BadgerCache is a Cache on an embedded badgerhold store.
type BadgerCache struct {
	store *badgerhold.Store
	ttl   time.Duration
	now   func() time.Time
}

// Open opens (creating if needed) a cache in dir. An empty dir keeps the
// cache in memory.
func Open(dir string, ttl time.Duration) (*BadgerCache, error) {
	var bopts badger.Options
	if dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "cache: create dir")
		}
		bopts = badger.DefaultOptions(dir)
	}

	opts := badgerhold.DefaultOptions
	opts.Options = bopts.WithLogger(nil)

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open badger")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BadgerCache{store: store, ttl: ttl, now: time.Now}, nil
}

// Get implements Cache. Expired entries read as a miss.
func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var e entry
	if err := c.store.Get(key, &e); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, eris.Wrap(err, "cache: get")
	}
	if c.now().UnixNano() >= e.ExpiresAt {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

// Set implements Cache.
func (c *BadgerCache) Set(_ context.Context, key string, value []byte) error {
	e := entry{
		Key:       key,
		Payload:   value,
		ExpiresAt: c.now().Add(c.ttl).UnixNano(),
	}
	if err := c.store.Upsert(key, &e); err != nil {
		return eris.Wrap(err, "cache: set")
	}
	return nil
}

// Purge implements Cache.
func (c *BadgerCache) Purge(_ context.Context) error {
	q := badgerhold.Where("ExpiresAt").Le(c.now().UnixNano())
	if err := c.store.DeleteMatching(&entry{}, q); err != nil {
		return eris.Wrap(err, "cache: purge")
	}
	return nil
}

// Close implements Cache.
func (c *BadgerCache) Close() error {
	return c.store.Close()
}

// PurgeEvery removes expired entries from c on every tick until ctx is
// done. Failures are logged and the loop keeps going.
func PurgeEvery(ctx context.Context, c Cache, every time.Duration) {
	if c == nil || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Purge(ctx); err != nil && ctx.Err() == nil {
				zap.L().Warn("cache: purge failed", zap.Error(err))
			}
		}
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) Purge(context.Context) error                       { return nil }
func (Nop) Close() error                                      { return nil }

// Fetch returns the cached value for key, or calls fn and caches its
// result. hit reports whether fn was skipped. Cache failures are logged and
// never fail the call.
func Fetch[T any](ctx context.Context, c Cache, key string, fn func(ctx context.Context) (T, error)) (val T, hit bool, err error) {
	if c == nil {
		c = Nop{}
	}

	raw, ok, gerr := c.Get(ctx, key)
	if gerr != nil {
		zap.L().Warn("cache: read failed", zap.String("key", key), zap.Error(gerr))
	}
	if ok {
		if uerr := json.Unmarshal(raw, &val); uerr == nil {
			return val, true, nil
		}
	}

	val, err = fn(ctx)
	if err != nil {
		return val, false, err
	}

	if raw, merr := json.Marshal(val); merr == nil {
		if serr := c.Set(ctx, key, raw); serr != nil {
			zap.L().Warn("cache: write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return val, false, nil
}
