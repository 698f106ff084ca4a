package event

import (
	"go.uber.org/zap"
)

// LoggingHandler writes an activity log line for every event
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case SyncRunFinished:
		h.logger.Info("sync run finished",
			zap.String("run_id", e.RunID),
			zap.String("category", e.Category),
			zap.String("state", e.State),
			zap.Int("pages_succeeded", e.PagesSucceeded),
			zap.Int("pages_failed", e.PagesFailed),
			zap.Int("created", e.Created),
			zap.Int("updated", e.Updated),
			zap.Int("skipped", e.Skipped),
			zap.Duration("duration", e.Duration),
		)
	case MovieImported:
		h.logger.Info("movie imported",
			zap.Int64("movie_id", e.MovieID),
			zap.String("external_id", e.ExternalID),
			zap.Bool("created", e.Created),
		)
	case RatingChanged:
		if e.Removed() {
			h.logger.Debug("rating removed",
				zap.Int64("user_id", e.UserID),
				zap.Int64("movie_id", e.MovieID),
			)
			break
		}
		h.logger.Debug("rating changed",
			zap.Int64("user_id", e.UserID),
			zap.Int64("movie_id", e.MovieID),
			zap.Int("score", e.Score),
		)
	case UserDeleted:
		h.logger.Info("user deleted", zap.Int64("user_id", e.UserID))
	case StaleMoviesRemoved:
		h.logger.Info("stale movies removed",
			zap.Int("count", e.Count),
			zap.Time("created_before", e.CreatedBefore),
		)
	case MoviesRefreshed:
		h.logger.Info("movies refreshed",
			zap.Int("refreshed", e.Refreshed),
			zap.Int("failed", e.Failed),
			zap.Bool("aborted", e.Aborted),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{AllEvents}
}
