// Package cache memoizes search results. An in-process LRU answers repeat
// queries on one replica; Redis, when configured, shares results across
// replicas behind a circuit breaker. Keys include every source's item count,
// so any push to a queried source changes the key and stale entries simply
// age out.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/resilience"
)

const keyPrefix = "fuzzy:"

// Remote is the shared tier. pkg/redis.Client implements it; a miss is an
// error for which pkgredis.IsNilError reports true.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies a result: the query, the sources in join order with their
// item counts, and the limit.
type Key struct {
	Query   string
	Sources []string
	Counts  []uint32
	Limit   int
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(k.Query))
	for i, s := range k.Sources {
		b.WriteString("|")
		b.WriteString(s)
		b.WriteString("@")
		b.WriteString(strconv.FormatUint(uint64(k.Counts[i]), 10))
	}
	b.WriteString("|limit=")
	b.WriteString(strconv.Itoa(k.Limit))
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

// Stats counts lookups by the tier that answered them.
type Stats struct {
	LocalHits  int64  `json:"local_hits"`
	RemoteHits int64  `json:"remote_hits"`
	Misses     int64  `json:"misses"`
	LocalSize  int    `json:"local_size"`
	Breaker    string `json:"breaker,omitempty"`
}

type QueryCache struct {
	local   *lru.Cache[string, *executor.SearchResult]
	remote  Remote
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	localHits  atomic.Int64
	remoteHits atomic.Int64
	misses     atomic.Int64
}

// New creates a cache holding localSize results in process. remote may be
// nil; m may be nil.
func New(localSize int, remote Remote, ttl time.Duration, m *metrics.Metrics) (*QueryCache, error) {
	local, err := lru.New[string, *executor.SearchResult](max(localSize, 1))
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	c := &QueryCache{
		local:   local,
		remote:  remote,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	if remote != nil {
		c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     15 * time.Second,
			IsFailure:        func(err error) bool { return err != nil && !pkgredis.IsNilError(err) },
			OnStateChange: func(name string, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
	}
	return c, nil
}

// Get looks the key up in the local tier, then the remote one. Remote hits
// are promoted to the local tier.
func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := key.String()
	if result, ok := c.local.Get(k); ok {
		c.hit(&c.localHits)
		return result, true
	}
	if c.remote != nil {
		var data []byte
		err := c.breaker.Execute(func() error {
			var err error
			data, err = c.remote.Get(ctx, k)
			return err
		})
		switch {
		case err == nil:
			var result executor.SearchResult
			if err := json.Unmarshal(data, &result); err != nil {
				c.logger.Warn("cache unmarshal failed", "key", k, "error", err)
				break
			}
			c.local.Add(k, &result)
			c.hit(&c.remoteHits)
			return &result, true
		case !pkgredis.IsNilError(err):
			c.logger.Debug("remote cache get failed", "key", k, "error", err)
		}
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return nil, false
}

func (c *QueryCache) hit(counter *atomic.Int64) {
	counter.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

// Set stores result in both tiers. Remote failures are logged only.
func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := key.String()
	c.local.Add(k, result)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error { return c.remote.Set(ctx, k, data, c.ttl) }); err != nil {
		c.logger.Debug("remote cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns a cached result or runs computeFn once for all
// concurrent callers of the same key.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate empties both tiers.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.local.Purge()
	if c.remote == nil {
		return nil
	}
	deleted, err := c.remote.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating remote cache: %w", err)
	}
	c.logger.Info("cache invalidated", "remote_keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() Stats {
	st := Stats{
		LocalHits:  c.localHits.Load(),
		RemoteHits: c.remoteHits.Load(),
		Misses:     c.misses.Load(),
		LocalSize:  c.local.Len(),
	}
	if c.breaker != nil {
		st.Breaker = c.breaker.GetState().String()
	}
	return st
}
