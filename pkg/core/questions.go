package core

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// QuestionDirectory exposes the active question pool the allocator
// draws new introductions from.
//
// Implementations decide what "active" means (a course table, a CMS,
// a static list). ListActive must return IDs in a stable order; the
// allocator introduces new questions in exactly that order.
type QuestionDirectory interface {
	// Active reports whether the question exists and may be studied.
	Active(ctx context.Context, questionID int64) (bool, error)

	// ListActive returns all active question IDs in introduction order.
	ListActive(ctx context.Context) ([]int64, error)
}

// StaticDirectory is a fixed in-memory question pool.
//
// Useful for tests and for deployments where the question set ships
// with the binary. Safe for concurrent use.
type StaticDirectory struct {
	mu  sync.RWMutex
	ids []int64
	set map[int64]bool
}

// NewStaticDirectory creates a directory over the given question IDs.
// Duplicates are dropped; the first occurrence keeps its position.
func NewStaticDirectory(ids []int64) *StaticDirectory {
	d := &StaticDirectory{
		set: make(map[int64]bool, len(ids)),
	}
	for _, id := range ids {
		if d.set[id] {
			continue
		}
		d.set[id] = true
		d.ids = append(d.ids, id)
	}
	return d
}

// Add appends a question to the pool if not already present.
func (d *StaticDirectory) Add(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.set[id] {
		return
	}
	d.set[id] = true
	d.ids = append(d.ids, id)
}

// Remove deactivates a question. Existing memory records are kept;
// the question just stops appearing in sessions.
func (d *StaticDirectory) Remove(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.set[id] {
		return
	}
	delete(d.set, id)
	for i, v := range d.ids {
		if v == id {
			d.ids = append(d.ids[:i], d.ids[i+1:]...)
			break
		}
	}
}

// Active reports whether the question is in the pool.
func (d *StaticDirectory) Active(_ context.Context, questionID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.set[questionID], nil
}

// ListActive returns the pool in insertion order.
func (d *StaticDirectory) ListActive(_ context.Context) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]int64, len(d.ids))
	copy(out, d.ids)
	return out, nil
}

// CachedDirectory wraps another directory with a TTL cache, for pools
// backed by a remote service where per-question lookups during session
// builds would be too chatty.
type CachedDirectory struct {
	inner QuestionDirectory

	mu     sync.Mutex
	list   []int64
	listAt time.Time
	ttl    time.Duration

	active *expirable.LRU[int64, bool]
}

// NewCachedDirectory wraps inner with a cache holding up to size
// Active lookups and one ListActive result, each for ttl.
func NewCachedDirectory(inner QuestionDirectory, size int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		inner:  inner,
		ttl:    ttl,
		active: expirable.NewLRU[int64, bool](size, nil, ttl),
	}
}

// Active answers from cache when possible, falling back to the inner
// directory on a miss.
func (d *CachedDirectory) Active(ctx context.Context, questionID int64) (bool, error) {
	if v, ok := d.active.Get(questionID); ok {
		return v, nil
	}
	v, err := d.inner.Active(ctx, questionID)
	if err != nil {
		return false, err
	}
	d.active.Add(questionID, v)
	return v, nil
}

// ListActive returns the cached listing when fresh, otherwise
// refreshes from the inner directory.
func (d *CachedDirectory) ListActive(ctx context.Context) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.list != nil && time.Since(d.listAt) < d.ttl {
		out := make([]int64, len(d.list))
		copy(out, d.list)
		return out, nil
	}
	ids, err := d.inner.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	d.list = ids
	d.listAt = time.Now()
	for _, id := range ids {
		d.active.Add(id, true)
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out, nil
}

var (
	_ QuestionDirectory = (*StaticDirectory)(nil)
	_ QuestionDirectory = (*CachedDirectory)(nil)
)
