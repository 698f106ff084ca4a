package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a sync run
type RunState string

// Sync run states
const (
	RunIdle                RunState = "idle"
	RunRunning             RunState = "running"
	RunCompleted           RunState = "completed"
	RunCompletedWithErrors RunState = "completed_with_errors"
	RunAborted             RunState = "aborted"
)

// IsTerminal returns true once the run can no longer change state
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunCompletedWithErrors || s == RunAborted
}

// PageFailure records a page that could not be ingested
type PageFailure struct {
	Category Category `json:"category"`
	Page     int      `json:"page"`
	Reason   string   `json:"reason"`
}

// SyncRun is the bookkeeping for one orchestrated ingestion of a category
type SyncRun struct {
	ID             string        `json:"id"`
	Category       Category      `json:"category"`
	PagesRequested []int         `json:"pages_requested"`
	State          RunState      `json:"state"`
	PagesSucceeded []int         `json:"pages_succeeded"`
	Failures       []PageFailure `json:"failures"`

	// Record counters
	RecordsCreated int `json:"records_created"`
	RecordsUpdated int `json:"records_updated"`
	RecordsSkipped int `json:"records_skipped"`
	EmptyPages     int `json:"empty_pages"`

	RateLimitPauses int    `json:"rate_limit_pauses"`
	AbortReason     string `json:"abort_reason,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// NewSyncRun creates an idle run for the given pages
func NewSyncRun(category Category, pages []int) *SyncRun {
	return &SyncRun{
		ID:             uuid.NewString(),
		Category:       category,
		PagesRequested: slices.Clone(pages),
		State:          RunIdle,
	}
}

// Start moves the run from idle to running
func (r *SyncRun) Start(now time.Time) error {
	if r.State != RunIdle {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, r.State, RunRunning)
	}
	r.State = RunRunning
	r.StartedAt = now
	return nil
}

// RecordPageSuccess marks a page as ingested and adds its record counts
func (r *SyncRun) RecordPageSuccess(page, created, updated, skipped int) {
	r.PagesSucceeded = append(r.PagesSucceeded, page)
	r.RecordsCreated += created
	r.RecordsUpdated += updated
	r.RecordsSkipped += skipped
	if created+updated == 0 {
		r.EmptyPages++
	}
}

// RecordPageFailure adds a failed page with its reason
func (r *SyncRun) RecordPageFailure(page int, reason string) {
	r.Failures = append(r.Failures, PageFailure{
		Category: r.Category,
		Page:     page,
		Reason:   reason,
	})
}

// Abort ends the run without processing the remaining pages
func (r *SyncRun) Abort(reason string, now time.Time) error {
	if r.State.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, r.State, RunAborted)
	}
	r.State = RunAborted
	r.AbortReason = reason
	r.EndedAt = now
	return nil
}

// Finish ends a running run. The final state depends on page failures.
func (r *SyncRun) Finish(now time.Time) error {
	if r.State != RunRunning {
		return fmt.Errorf("%w: %s -> finished", ErrInvalidStateTransition, r.State)
	}
	if len(r.Failures) == 0 {
		r.State = RunCompleted
	} else {
		r.State = RunCompletedWithErrors
	}
	r.EndedAt = now
	return nil
}

// FailedPages returns the page numbers that failed, in failure order
func (r *SyncRun) FailedPages() []int {
	pages := make([]int, 0, len(r.Failures))
	for _, f := range r.Failures {
		pages = append(pages, f.Page)
	}
	return pages
}

// Duration returns how long the run took, or has taken so far
func (r *SyncRun) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.EndedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Clone returns a deep copy safe to hand to other goroutines
func (r *SyncRun) Clone() *SyncRun {
	c := *r
	c.PagesRequested = slices.Clone(r.PagesRequested)
	c.PagesSucceeded = slices.Clone(r.PagesSucceeded)
	c.Failures = slices.Clone(r.Failures)
	return &c
}
