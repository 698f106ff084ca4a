package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/event"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
	"github.com/vertextoedge/movie-catalog/internal/metrics"
)

// pageOutcome is the result of processing one page
type pageOutcome int

const (
	pageSucceeded pageOutcome = iota
	pageFailed
	runAborted
)

// pageResult carries the counters and failure reason of one page
type pageResult struct {
	outcome pageOutcome
	reason  string

	created int
	updated int
	skipped int
}

// execute drives run from idle to a terminal state
func (s *Syncer) execute(ctx context.Context, run *domain.SyncRun) {
	log := s.logger.With(
		zap.String("run_id", run.ID),
		zap.String("category", string(run.Category)))

	if err := run.Start(s.now()); err != nil {
		log.Error("cannot start run", zap.Error(err))
		return
	}
	s.registry.put(run)
	log.Info("sync run started", zap.Ints("pages", run.PagesRequested))

	defer func() {
		s.registry.put(run)
		metrics.SyncRuns.WithLabelValues(string(run.Category), string(run.State)).Inc()
		log.Info("sync run finished",
			zap.String("state", string(run.State)),
			zap.Int("succeeded", len(run.PagesSucceeded)),
			zap.Int("failed", len(run.Failures)),
			zap.Int("created", run.RecordsCreated),
			zap.Int("updated", run.RecordsUpdated),
			zap.Int("skipped", run.RecordsSkipped),
			zap.Int("empty_pages", run.EmptyPages),
			zap.Int("rate_limit_pauses", run.RateLimitPauses),
			zap.String("abort_reason", run.AbortReason),
			zap.Duration("duration", run.Duration()))
		s.events.Dispatch(event.SyncRunFinished{
			BaseEvent:      event.BaseEvent{Timestamp: run.EndedAt},
			RunID:          run.ID,
			Category:       string(run.Category),
			State:          string(run.State),
			PagesSucceeded: len(run.PagesSucceeded),
			PagesFailed:    len(run.Failures),
			Created:        run.RecordsCreated,
			Updated:        run.RecordsUpdated,
			Skipped:        run.RecordsSkipped,
			AbortReason:    run.AbortReason,
			Duration:       run.Duration(),
		})
	}()

	lookup, err := s.genreLookup(ctx)
	if err != nil {
		run.Abort(err.Error(), s.now())
		return
	}

	for _, page := range run.PagesRequested {
		if err := ctx.Err(); err != nil {
			run.Abort("canceled: "+err.Error(), s.now())
			return
		}

		res := s.processPage(ctx, run, lookup, page)
		switch res.outcome {
		case pageSucceeded:
			run.RecordPageSuccess(page, res.created, res.updated, res.skipped)
			outcome := "succeeded"
			if res.created+res.updated == 0 {
				outcome = "empty"
				log.Info("page had no valid records", zap.Int("page", page), zap.Int("skipped", res.skipped))
			}
			metrics.SyncPages.WithLabelValues(string(run.Category), outcome).Inc()
		case pageFailed:
			run.RecordPageFailure(page, res.reason)
			metrics.SyncPages.WithLabelValues(string(run.Category), "failed").Inc()
			log.Warn("page failed", zap.Int("page", page), zap.String("reason", res.reason))
		case runAborted:
			run.Abort(res.reason, s.now())
			log.Error("sync run aborted", zap.Int("page", page), zap.String("reason", res.reason))
			return
		}
		s.registry.put(run)
	}

	run.Finish(s.now())
}

// genreLookup fetches the provider genre table once per run. Only an auth
// failure is fatal; anything else falls back to the built-in table.
func (s *Syncer) genreLookup(ctx context.Context) (domain.GenreLookup, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FetchTimeout)
	defer cancel()

	lookup, err := s.provider.Genres(fetchCtx)
	if err == nil && len(lookup) > 0 {
		return lookup, nil
	}
	if domain.IsFetchKind(err, domain.FetchAuthError) {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("using built-in genre table", zap.Error(err))
	}
	return domain.DefaultGenreLookup(), nil
}

// processPage fetches, normalizes and stores one page
func (s *Syncer) processPage(ctx context.Context, run *domain.SyncRun, lookup domain.GenreLookup, page int) pageResult {
	raw, res, ok := s.fetchPage(ctx, run, page)
	if !ok {
		return res
	}

	movies, skipped := domainservice.NormalizePage(raw, lookup)
	res = pageResult{outcome: pageSucceeded, skipped: len(skipped)}
	for _, err := range skipped {
		s.logger.Debug("skipping record",
			zap.String("category", string(run.Category)),
			zap.Int("page", page),
			zap.Error(err))
	}

	// Upserts of a page that began are completed even if the run is canceled
	storeCtx := context.WithoutCancel(ctx)
	syncedAt := s.now()
	ids := make([]int64, 0, len(movies))

	for _, movie := range movies {
		movie.LastSyncedAt = syncedAt
		created, err := s.upsert(ctx, storeCtx, movie)
		if err != nil {
			res = pageResult{
				outcome: pageFailed,
				reason:  fmt.Sprintf("store movie %s: %v", movie.ExternalID, err),
			}
			break
		}
		ids = append(ids, movie.ID)
		if created {
			res.created++
		} else {
			res.updated++
		}
	}

	metrics.SyncRecords.WithLabelValues("created").Add(float64(res.created))
	metrics.SyncRecords.WithLabelValues("updated").Add(float64(res.updated))
	metrics.SyncRecords.WithLabelValues("skipped").Add(float64(res.skipped))

	if len(ids) > 0 && s.cache != nil {
		s.cache.InvalidateMovieData(storeCtx, ids...)
	}

	return res
}

// fetchPage fetches one page, retrying transient failures and pausing on
// rate limits. ok is false when res holds a failure or abort.
func (s *Syncer) fetchPage(ctx context.Context, run *domain.SyncRun, page int) (*domain.RawPage, pageResult, bool) {
	attempts := 0
	pauses := 0

	for {
		raw, err := s.fetchOnce(ctx, run.Category, page)
		if err == nil {
			return raw, pageResult{}, true
		}

		kind, ok := domain.FetchKindOf(err)
		if !ok {
			kind = domain.FetchTransient
		}

		switch kind {
		case domain.FetchAuthError:
			return nil, pageResult{outcome: runAborted, reason: err.Error()}, false

		case domain.FetchNotFound, domain.FetchInvalidPage:
			return nil, pageResult{outcome: pageFailed, reason: err.Error()}, false

		case domain.FetchRateLimited:
			pauses++
			if pauses > s.config.MaxRateLimitPauses {
				return nil, pageResult{
					outcome: pageFailed,
					reason:  "rate limited after " + strconv.Itoa(s.config.MaxRateLimitPauses) + " pauses: " + err.Error(),
				}, false
			}
			wait := s.config.RateLimitCooldown
			if d, ok := domain.GetRetryAfter(err); ok {
				wait = d
			}
			run.RateLimitPauses++
			metrics.SyncRetries.WithLabelValues("rate_limited").Inc()
			s.logger.Warn("rate limited, pausing run",
				zap.String("run_id", run.ID),
				zap.Int("page", page),
				zap.Duration("wait", wait))
			if err := s.sleep(ctx, wait); err != nil {
				return nil, pageResult{outcome: runAborted, reason: "canceled during rate limit pause"}, false
			}

		default:
			attempts++
			if attempts > s.config.MaxRetries {
				return nil, pageResult{
					outcome: pageFailed,
					reason:  fmt.Sprintf("gave up after %d retries: %v", s.config.MaxRetries, err),
				}, false
			}
			wait := s.backoff(attempts)
			metrics.SyncRetries.WithLabelValues("transient").Inc()
			s.logger.Debug("transient fetch failure, retrying",
				zap.String("run_id", run.ID),
				zap.Int("page", page),
				zap.Int("attempt", attempts),
				zap.Duration("backoff", wait),
				zap.Error(err))
			if err := s.sleep(ctx, wait); err != nil {
				return nil, pageResult{outcome: runAborted, reason: "canceled during retry backoff"}, false
			}
		}
	}
}

// fetchOnce runs one fetch detached from run cancellation and bounded by
// the fetch timeout
func (s *Syncer) fetchOnce(ctx context.Context, category domain.Category, page int) (*domain.RawPage, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FetchTimeout)
	defer cancel()
	return s.provider.FetchPage(fetchCtx, category, page)
}

// upsert stores one movie. An unavailable store is retried with backoff; a
// constraint violation counts as an update when the stored record already
// carries the same content.
func (s *Syncer) upsert(ctx, storeCtx context.Context, movie *domain.Movie) (bool, error) {
	for attempt := 1; ; attempt++ {
		created, err := s.movies.UpsertMovie(storeCtx, movie)
		if err == nil {
			return created, nil
		}

		if domain.IsStoreKind(err, domain.StoreConstraintViolation) {
			existing, getErr := s.movies.GetMovieByExternalID(storeCtx, movie.ExternalID)
			if getErr == nil && existing != nil && existing.SameContent(movie) {
				movie.ID = existing.ID
				return false, nil
			}
			return false, err
		}

		if !domain.IsStoreKind(err, domain.StoreUnavailable) || attempt > s.config.MaxRetries {
			return false, err
		}

		metrics.SyncRetries.WithLabelValues("store_unavailable").Inc()
		if sleepErr := s.sleep(ctx, s.backoff(attempt)); sleepErr != nil {
			return false, errors.Join(err, sleepErr)
		}
	}
}
