// Package registry holds the allowlist of source channels the pipeline
// accepts events from. It is independent of whatever list the upstream
// collector watches; its only job is rejecting unauthorized events.
package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one permitted source channel.
type Entry struct {
	SourceID   int64  `json:"channel_id"`
	SourceName string `json:"channel_name,omitempty"`
	AddedAt    int64  `json:"added_at"`
}

// Registry is an in-memory allowlist keyed by source id. All operations
// are idempotent; reads may run concurrently, writes are exclusive.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]Entry
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[int64]Entry),
		logger:  logger.Named("registry"),
	}
}

// Seed adds the configured startup sources without names.
func (r *Registry) Seed(ids []int64) {
	for _, id := range ids {
		r.Add(id, "")
	}
}

// Add inserts or updates an entry. Adding an existing id refreshes its
// name and timestamp rather than erroring.
func (r *Registry) Add(id int64, name string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{
		SourceID:   id,
		SourceName: name,
		AddedAt:    time.Now().Unix(),
	}
	if prev, ok := r.entries[id]; ok {
		entry.AddedAt = prev.AddedAt
		if name == "" {
			entry.SourceName = prev.SourceName
		}
	}
	r.entries[id] = entry
	r.logger.Info("channel added", zap.Int64("source_id", id), zap.String("name", entry.SourceName))
	return entry
}

// Remove deletes an entry, reporting whether it existed.
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	r.logger.Info("channel removed", zap.Int64("source_id", id))
	return true
}

// Replace swaps the whole membership for ids, keeping names and
// added-at stamps of ids that were already present.
func (r *Registry) Replace(ids []int64) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	next := make(map[int64]Entry, len(ids))
	for _, id := range ids {
		if prev, ok := r.entries[id]; ok {
			next[id] = prev
			continue
		}
		next[id] = Entry{SourceID: id, AddedAt: now}
	}
	r.entries = next
	r.logger.Info("channel list replaced", zap.Int("count", len(next)))

	out := make([]Entry, 0, len(next))
	for _, e := range next {
		out = append(out, e)
	}
	return out
}

// Contains reports whether id is a current member.
func (r *Registry) Contains(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// List returns the current members in no particular order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
