package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/metrics"
	"github.com/vertextoedge/movie-catalog/internal/port"
	"github.com/vertextoedge/movie-catalog/internal/util/ratelimiter"
)

const breakerName = "tmdb-api"

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 4 << 10

// Client is a TMDB API client. It never retries; every failure is returned
// as a *domain.FetchError for the caller to act on.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *ratelimiter.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// Ensure Client implements port.CatalogProvider
var _ port.CatalogProvider = (*Client)(nil)

// NewClient creates a new TMDB client
func NewClient(cfg *Config, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxPage == 0 {
		cfg.MaxPage = def.MaxPage
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: ratelimiter.New(cfg.RequestsPerWindow, cfg.RateWindow),
		logger:  logger,
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Only transient failures say anything about provider health
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !domain.IsFetchKind(err, domain.FetchTransient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return c
}

// FetchPage returns one page of a category listing
func (c *Client) FetchPage(ctx context.Context, category domain.Category, page int) (*domain.RawPage, error) {
	path, ok := categoryPaths[category]
	if !ok {
		return nil, &domain.FetchError{
			Kind:     domain.FetchInvalidPage,
			Category: category,
			Page:     page,
			Err:      fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category),
		}
	}
	if err := c.checkPage(page); err != nil {
		err.Category = category
		return nil, err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	body, err := c.get(ctx, string(category), path, params)
	if err != nil {
		return nil, withPage(err, category, page)
	}

	raw, err := decodePage(body)
	if err != nil {
		return nil, withPage(err, category, page)
	}
	raw.Category = category
	if raw.Page == 0 {
		raw.Page = page
	}
	return raw, nil
}

// Search returns one page of results for a free-text query
func (c *Client) Search(ctx context.Context, query string, page int) (*domain.RawPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewFetchError(domain.FetchInvalidPage, errors.New("empty search query"))
	}
	if err := c.checkPage(page); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")

	body, err := c.get(ctx, "search", "/search/movie", params)
	if err != nil {
		return nil, err
	}

	raw, err := decodePage(body)
	if err != nil {
		return nil, err
	}
	if raw.Page == 0 {
		raw.Page = page
	}
	return raw, nil
}

// FetchMovie returns the detail record of a single movie
func (c *Client) FetchMovie(ctx context.Context, externalID string) (domain.RawRecord, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.NewFetchError(domain.FetchNotFound, domain.ErrMissingExternalID)
	}

	body, err := c.get(ctx, "movie", "/movie/"+url.PathEscape(externalID), url.Values{})
	if err != nil {
		return nil, err
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, domain.NewFetchError(domain.FetchTransient, fmt.Errorf("decode movie: %w", err))
	}
	return domain.RawRecord(record), nil
}

// Genres returns the provider's genre id to name table
func (c *Client) Genres(ctx context.Context) (domain.GenreLookup, error) {
	body, err := c.get(ctx, "genres", "/genre/movie/list", url.Values{})
	if err != nil {
		return nil, err
	}

	var resp genreListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewFetchError(domain.FetchTransient, fmt.Errorf("decode genres: %w", err))
	}

	lookup := make(domain.GenreLookup, len(resp.Genres))
	for _, g := range resp.Genres {
		if g.Name != "" {
			lookup[g.ID] = g.Name
		}
	}
	return lookup, nil
}

// BreakerState returns the circuit breaker state name
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) checkPage(page int) *domain.FetchError {
	if page < 1 || page > c.config.MaxPage {
		return &domain.FetchError{
			Kind: domain.FetchInvalidPage,
			Page: page,
			Err:  fmt.Errorf("page must be between 1 and %d", c.config.MaxPage),
		}
	}
	return nil
}

// get performs one budgeted, breaker-guarded GET and returns the body of a
// 2xx response
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "canceled").Inc()
		return nil, domain.NewFetchError(domain.FetchTransient, fmt.Errorf("waiting for request budget: %w", err))
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path, params)
	})
	metrics.ProviderRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ProviderRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, domain.NewFetchError(domain.FetchTransient, err)
	}
	if err != nil {
		kind, _ := domain.FetchKindOf(err)
		metrics.ProviderRequests.WithLabelValues(endpoint, kind.String()).Inc()
		c.logger.Debug("provider request failed",
			zap.String("endpoint", endpoint),
			zap.String("path", path),
			zap.Error(err))
		return nil, err
	}

	metrics.ProviderRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}
	if c.config.Language != "" {
		params.Set("language", c.config.Language)
	}

	reqURL := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.NewFetchError(domain.FetchTransient, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(domain.FetchTransient, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, domain.NewFetchError(domain.FetchTransient, fmt.Errorf("read body: %w", err))
		}
		return body, nil
	}

	return nil, statusError(resp)
}

// statusError classifies a non-2xx response
func statusError(resp *http.Response) *domain.FetchError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := http.StatusText(resp.StatusCode)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.StatusMessage != "" {
		msg = er.StatusMessage
	}

	fe := &domain.FetchError{StatusCode: resp.StatusCode, Err: errors.New(msg)}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		fe.Kind = domain.FetchAuthError
	case resp.StatusCode == http.StatusNotFound:
		fe.Kind = domain.FetchNotFound
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		fe.Kind = domain.FetchInvalidPage
	case resp.StatusCode == http.StatusTooManyRequests:
		fe.Kind = domain.FetchRateLimited
		fe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	default:
		fe.Kind = domain.FetchTransient
	}
	return fe
}

// parseRetryAfter accepts delay-seconds or an HTTP date
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func decodePage(body []byte) (*domain.RawPage, error) {
	var resp pageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewFetchError(domain.FetchTransient, fmt.Errorf("decode page: %w", err))
	}

	records := make([]domain.RawRecord, 0, len(resp.Results))
	for _, r := range resp.Results {
		records = append(records, domain.RawRecord(r))
	}

	return &domain.RawPage{
		Page:         resp.Page,
		TotalPages:   resp.TotalPages,
		TotalResults: resp.TotalResults,
		Records:      records,
	}, nil
}

// withPage stamps category and page onto a fetch error
func withPage(err error, category domain.Category, page int) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		fe.Category = category
		fe.Page = page
		return fe
	}
	return err
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
