// Package registry is the in-memory, TTL-bounded job directory. It is the
// only state shared across concurrent renders; all operations are safe under
// concurrent access. Eviction is a pure function of "now - createdAt >= TTL",
// checked lazily on read, so behavior stays deterministic under an injected
// clock. The registry is not durable: jobs reference externally persisted
// artifacts, so losing an entry loses only the lookup convenience.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"adreel/internal/models"
)

// Registry maps opaque job ids to render artifacts and metadata.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]models.Job
	ttl  time.Duration
	now  func() time.Time
}

// New builds a registry with the given TTL. now is the injected clock; pass
// time.Now in production.
func New(ttl time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		jobs: make(map[string]models.Job),
		ttl:  ttl,
		now:  now,
	}
}

// Register stores a completed render and returns the stored job, with id and
// lifetime stamps filled in. The stored job is immutable afterwards.
func (r *Registry) Register(job models.Job) models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := r.now()
	job.CreatedAt = now
	job.ExpiresAt = now.Add(r.ttl)
	r.jobs[job.ID] = job
	return job
}

// Get returns the job for id. An expired job is indistinguishable from one
// that never existed.
func (r *Registry) Get(id string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	if r.expired(job) {
		delete(r.jobs, id)
		return models.Job{}, false
	}
	return job, true
}

// Delete removes the job for id, reporting whether it was present (and not
// already expired).
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	delete(r.jobs, id)
	return !r.expired(job)
}

// Sweep drops every expired entry. Get already evicts lazily; Sweep keeps the
// map from accumulating entries nobody reads again.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if r.expired(job) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) expired(job models.Job) bool {
	return r.now().Sub(job.CreatedAt) >= r.ttl
}
