package cacher

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vertextoedge/movie-catalog/internal/metrics"
	"github.com/vertextoedge/movie-catalog/internal/port"
)

// Config contains per query type cache TTLs
type Config struct {
	DetailTTL         time.Duration
	ListTTL           time.Duration
	TrendingTTL       time.Duration
	SearchTTL         time.Duration
	RecommendationTTL time.Duration
	MatchTTL          time.Duration
	SimilarTTL        time.Duration
	PopularityTTL     time.Duration
	StatsTTL          time.Duration
}

// DefaultConfig returns default cacher configuration
func DefaultConfig() *Config {
	return &Config{
		DetailTTL:         time.Hour,
		ListTTL:           10 * time.Minute,
		TrendingTTL:       30 * time.Minute,
		SearchTTL:         15 * time.Minute,
		RecommendationTTL: 30 * time.Minute,
		MatchTTL:          30 * time.Minute,
		SimilarTTL:        time.Hour,
		PopularityTTL:     10 * time.Minute,
		StatsTTL:          10 * time.Minute,
	}
}

// keyState tracks computations in flight for one key. The generation is
// bumped by every invalidation that lands while a compute is running.
type keyState struct {
	gen  uint64
	refs int
}

// Cacher is a read-through cache over a CacheBackend. Values are stored as
// JSON. Backend failures are logged and treated as misses.
type Cacher struct {
	config  *Config
	backend port.CacheBackend
	logger  *zap.Logger
	group   singleflight.Group

	mu       sync.Mutex
	inflight map[string]*keyState
	// Keys and prefixes whose backend delete failed. They are served as
	// misses until a later delete succeeds.
	pendingKeys     map[string]struct{}
	pendingPrefixes map[string]struct{}
}

// New creates a new Cacher
func New(cfg *Config, backend port.CacheBackend, logger *zap.Logger) *Cacher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.DetailTTL == 0 {
		cfg.DetailTTL = def.DetailTTL
	}
	if cfg.ListTTL == 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.TrendingTTL == 0 {
		cfg.TrendingTTL = def.TrendingTTL
	}
	if cfg.SearchTTL == 0 {
		cfg.SearchTTL = def.SearchTTL
	}
	if cfg.RecommendationTTL == 0 {
		cfg.RecommendationTTL = def.RecommendationTTL
	}
	if cfg.MatchTTL == 0 {
		cfg.MatchTTL = def.MatchTTL
	}
	if cfg.SimilarTTL == 0 {
		cfg.SimilarTTL = def.SimilarTTL
	}
	if cfg.PopularityTTL == 0 {
		cfg.PopularityTTL = def.PopularityTTL
	}
	if cfg.StatsTTL == 0 {
		cfg.StatsTTL = def.StatsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cacher{
		config:          cfg,
		backend:         backend,
		logger:          logger,
		inflight:        make(map[string]*keyState),
		pendingKeys:     make(map[string]struct{}),
		pendingPrefixes: make(map[string]struct{}),
	}
}

// Config returns the TTL configuration
func (c *Cacher) Config() *Config {
	return c.config
}

// GetOrCompute returns the cached value for key, or runs compute, stores
// its result for ttl and returns it. Concurrent misses on the same key share
// one compute, which is not cancelled when the caller that started it
// gives up. A result whose key was invalidated while computing is returned
// to its callers but not stored.
func GetOrCompute[T any](
	ctx context.Context,
	c *Cacher,
	key string,
	ttl time.Duration,
	compute func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	if raw, ok := c.lookup(ctx, key); ok {
		var v T
		err := json.Unmarshal(raw, &v)
		if err == nil {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry",
			zap.String("key", key), zap.Error(err))
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	// Each caller holds its reference on key until the shared compute
	// finishes, even after leaving early on its own cancellation.
	gen := c.acquire(key)

	flightKey := key + "\x00" + strconv.FormatUint(gen, 10)
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		v, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.store(shared, key, gen, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		c.release(key)
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		go func() {
			<-ch
			c.release(key)
		}()
		return zero, ctx.Err()
	}
}

// Invalidate removes keys. Computations already running for them will not
// store their results.
func (c *Cacher) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	c.mu.Lock()
	for _, k := range keys {
		if st, ok := c.inflight[k]; ok {
			st.gen++
		}
	}
	c.mu.Unlock()

	metrics.CacheInvalidations.Add(float64(len(keys)))

	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.logger.Error("cache delete failed; keys will be bypassed",
			zap.Strings("keys", keys), zap.Error(err))
		c.mu.Lock()
		for _, k := range keys {
			c.pendingKeys[k] = struct{}{}
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	for _, k := range keys {
		delete(c.pendingKeys, k)
	}
	c.mu.Unlock()
}

// InvalidatePrefix removes every key starting with one of the prefixes
func (c *Cacher) InvalidatePrefix(ctx context.Context, prefixes ...string) {
	if len(prefixes) == 0 {
		return
	}

	c.mu.Lock()
	for k, st := range c.inflight {
		if hasAnyPrefix(k, prefixes) {
			st.gen++
		}
	}
	c.mu.Unlock()

	metrics.CacheInvalidations.Add(float64(len(prefixes)))

	for _, p := range prefixes {
		n, err := c.backend.DeletePrefix(ctx, p)
		if err != nil {
			c.logger.Error("cache prefix delete failed; prefix will be bypassed",
				zap.String("prefix", p), zap.Error(err))
			c.mu.Lock()
			c.pendingPrefixes[p] = struct{}{}
			c.mu.Unlock()
			continue
		}
		c.mu.Lock()
		delete(c.pendingPrefixes, p)
		c.mu.Unlock()
		c.logger.Debug("cache prefix invalidated", zap.String("prefix", p), zap.Int("keys", n))
	}
}

// InvalidateMovieData drops every entry derived from catalog content
func (c *Cacher) InvalidateMovieData(ctx context.Context, movieIDs ...int64) {
	keys := make([]string, 0, len(movieIDs))
	for _, id := range movieIDs {
		keys = append(keys, MovieDetailKey(id))
	}
	c.Invalidate(ctx, keys...)
	c.InvalidatePrefix(ctx, MovieDataPrefixes()...)
}

// InvalidateUser drops every entry derived from one user's profile or ratings
func (c *Cacher) InvalidateUser(ctx context.Context, userID int64) {
	c.Invalidate(ctx, UserStatsKey(userID))
	c.InvalidatePrefix(ctx, UserPrefixes(userID)...)
}

// PurgeExpired reclaims space held by expired entries
func (c *Cacher) PurgeExpired(ctx context.Context) (int, error) {
	return c.backend.PurgeExpired(ctx)
}

// lookup reads key from the backend. Keys with a failed invalidation are
// retried for deletion and reported as misses.
func (c *Cacher) lookup(ctx context.Context, key string) ([]byte, bool) {
	if c.bypass(ctx, key) {
		return nil, false
	}

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return raw, ok
}

func (c *Cacher) bypass(ctx context.Context, key string) bool {
	c.mu.Lock()
	_, pendingKey := c.pendingKeys[key]
	var prefixes []string
	for p := range c.pendingPrefixes {
		if strings.HasPrefix(key, p) {
			prefixes = append(prefixes, p)
		}
	}
	c.mu.Unlock()

	if !pendingKey && len(prefixes) == 0 {
		return false
	}

	if pendingKey {
		if err := c.backend.Delete(ctx, key); err == nil {
			c.mu.Lock()
			delete(c.pendingKeys, key)
			c.mu.Unlock()
		}
	}
	for _, p := range prefixes {
		if _, err := c.backend.DeletePrefix(ctx, p); err == nil {
			c.mu.Lock()
			delete(c.pendingPrefixes, p)
			c.mu.Unlock()
		}
	}
	return true
}

func (c *Cacher) acquire(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.inflight[key]
	if !ok {
		st = &keyState{}
		c.inflight[key] = st
	}
	st.refs++
	return st.gen
}

func (c *Cacher) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.inflight[key]
	if !ok {
		return
	}
	st.refs--
	if st.refs <= 0 {
		delete(c.inflight, key)
	}
}

// store writes v under key unless the key was invalidated after the
// compute started. The generation check and the write happen under the
// same lock as the generation bump in Invalidate.
func (c *Cacher) store(ctx context.Context, key string, gen uint64, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.inflight[key]; ok && st.gen != gen {
		metrics.CacheStaleDiscards.Inc()
		c.logger.Debug("discarding stale computation", zap.String("key", key))
		return
	}
	if _, pending := c.pendingKeys[key]; pending {
		return
	}
	for p := range c.pendingPrefixes {
		if strings.HasPrefix(key, p) {
			return
		}
	}

	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
