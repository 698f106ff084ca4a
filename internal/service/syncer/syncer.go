package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/event"
	"github.com/vertextoedge/movie-catalog/internal/port"
)

// ErrRunInProgress is returned when a category is already being synced
var ErrRunInProgress = errors.New("sync already running for category")

// Config contains syncer configuration
type Config struct {
	Categories []domain.Category
	// Pages is the number of listing pages synced per category, from page 1
	Pages    int
	Interval time.Duration

	MaxRetries         int
	BaseBackoff        time.Duration
	MaxBackoff         time.Duration
	RateLimitCooldown  time.Duration
	MaxRateLimitPauses int
	FetchTimeout       time.Duration

	RunOnStart    bool
	MaxRunHistory int
}

// DefaultConfig returns default syncer configuration
func DefaultConfig() *Config {
	return &Config{
		Categories:         []domain.Category{domain.CategoryPopular, domain.CategoryTrending, domain.CategoryTopRated},
		Pages:              5,
		Interval:           6 * time.Hour,
		MaxRetries:         3,
		BaseBackoff:        time.Second,
		MaxBackoff:         30 * time.Second,
		RateLimitCooldown:  10 * time.Second,
		MaxRateLimitPauses: 5,
		FetchTimeout:       30 * time.Second,
		RunOnStart:         true,
		MaxRunHistory:      50,
	}
}

// CacheInvalidator drops cached results derived from catalog content
type CacheInvalidator interface {
	InvalidateMovieData(ctx context.Context, movieIDs ...int64)
}

// Syncer ingests provider listings into the metadata store
type Syncer struct {
	config   *Config
	provider port.CatalogProvider
	movies   port.MovieRepository
	cache    CacheInvalidator
	events   event.EventDispatcher
	logger   *zap.Logger

	// Replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	registry *registry

	activeMu sync.Mutex
	active   map[domain.Category]bool

	// Triggered runs outlive the request that started them
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Syncer
func New(cfg *Config, provider port.CatalogProvider, movies port.MovieRepository, cache CacheInvalidator, logger *zap.Logger) *Syncer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if len(cfg.Categories) == 0 {
		cfg.Categories = def.Categories
	}
	if cfg.Pages <= 0 {
		cfg.Pages = def.Pages
	}
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.RateLimitCooldown == 0 {
		cfg.RateLimitCooldown = def.RateLimitCooldown
	}
	if cfg.MaxRateLimitPauses == 0 {
		cfg.MaxRateLimitPauses = def.MaxRateLimitPauses
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MaxRunHistory == 0 {
		cfg.MaxRunHistory = def.MaxRunHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Syncer{
		config:     cfg,
		provider:   provider,
		movies:     movies,
		cache:      cache,
		events:     event.NewNullDispatcher(),
		logger:     logger,
		sleep:      sleepContext,
		now:        func() time.Time { return time.Now().UTC() },
		registry:   newRegistry(cfg.MaxRunHistory),
		active:     make(map[domain.Category]bool),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
}

// SetDispatcher publishes run completions to d
func (s *Syncer) SetDispatcher(d event.EventDispatcher) {
	s.events = d
}

// Start runs every configured category periodically until ctx is done
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("syncer already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("syncer started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("pages", s.config.Pages),
		zap.Int("categories", len(s.config.Categories)))

	if s.config.RunOnStart {
		s.SyncAll(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer stopped")
			return nil
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}

// Stop stops the periodic loop and cancels triggered runs between pages
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.mu.Unlock()

	s.baseCancel()
	s.wg.Wait()
}

// SyncAll runs every configured category over pages 1..Pages in turn
func (s *Syncer) SyncAll(ctx context.Context) []*domain.SyncRun {
	pages, _ := domain.NewPageRange(1, s.config.Pages)

	var runs []*domain.SyncRun
	for _, category := range s.config.Categories {
		if ctx.Err() != nil {
			break
		}
		run, err := s.Run(ctx, category, pages)
		if err != nil {
			s.logger.Warn("skipping category", zap.String("category", string(category)), zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}
	return runs
}

// Run syncs a page range of one category and returns the finished run
func (s *Syncer) Run(ctx context.Context, category domain.Category, pages domain.PageRange) (*domain.SyncRun, error) {
	if err := pages.Validate(); err != nil {
		return nil, err
	}
	return s.RunPages(ctx, category, pages.Pages())
}

// RunPages syncs the given pages of one category
func (s *Syncer) RunPages(ctx context.Context, category domain.Category, pages []int) (*domain.SyncRun, error) {
	if _, err := domain.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	if !s.acquire(category) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, category)
	}
	defer s.release(category)

	run := domain.NewSyncRun(category, pages)
	s.registry.put(run)
	s.execute(ctx, run)
	return run.Clone(), nil
}

// RetryFailed reprocesses only the failed pages of a previous run
func (s *Syncer) RetryFailed(ctx context.Context, prev *domain.SyncRun) (*domain.SyncRun, error) {
	if prev == nil {
		return nil, fmt.Errorf("%w: no run to retry", domain.ErrInvalidInput)
	}
	return s.RunPages(ctx, prev.Category, uniquePages(prev.FailedPages()))
}

// Trigger starts a run in the background and returns it in its idle state.
// The run is not tied to ctx; Stop cancels it between pages.
func (s *Syncer) Trigger(ctx context.Context, category domain.Category, pages domain.PageRange) (*domain.SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	if err := pages.Validate(); err != nil {
		return nil, err
	}
	if !s.acquire(category) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, category)
	}

	run := domain.NewSyncRun(category, pages.Pages())
	s.registry.put(run)
	snapshot := run.Clone()

	s.logger.Info("sync triggered",
		zap.String("run_id", run.ID),
		zap.String("category", string(category)),
		zap.Int("from", pages.From),
		zap.Int("to", pages.To))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(category)
		s.execute(s.baseCtx, run)
	}()

	return snapshot, nil
}

// GetRun returns a snapshot of a known run
func (s *Syncer) GetRun(id string) (*domain.SyncRun, bool) {
	return s.registry.get(id)
}

// ListRuns returns snapshots of recent runs, newest first
func (s *Syncer) ListRuns() []*domain.SyncRun {
	return s.registry.list()
}

func (s *Syncer) acquire(category domain.Category) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active[category] {
		return false
	}
	s.active[category] = true
	return true
}

func (s *Syncer) release(category domain.Category) {
	s.activeMu.Lock()
	delete(s.active, category)
	s.activeMu.Unlock()
}

// backoff returns the delay before retry number attempt (1-based)
func (s *Syncer) backoff(attempt int) time.Duration {
	d := s.config.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.config.MaxBackoff {
			return s.config.MaxBackoff
		}
	}
	if d > s.config.MaxBackoff {
		return s.config.MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func uniquePages(pages []int) []int {
	seen := make(map[int]bool, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
