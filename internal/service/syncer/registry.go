package syncer

import (
	"sync"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// registry keeps snapshots of the most recent runs
type registry struct {
	mu    sync.RWMutex
	limit int
	runs  map[string]*domain.SyncRun
	order []string // oldest first
}

func newRegistry(limit int) *registry {
	return &registry{
		limit: limit,
		runs:  make(map[string]*domain.SyncRun),
	}
}

// put stores a snapshot of run, replacing an older snapshot of the same run
func (r *registry) put(run *domain.SyncRun) {
	snapshot := run.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	r.runs[run.ID] = snapshot

	for len(r.order) > r.limit {
		evicted := false
		for i, id := range r.order {
			if r.runs[id].State.IsTerminal() {
				delete(r.runs, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

func (r *registry) get(id string) (*domain.SyncRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, false
	}
	return run.Clone(), true
}

func (r *registry) list() []*domain.SyncRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.SyncRun, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.runs[r.order[i]].Clone())
	}
	return out
}
