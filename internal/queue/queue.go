// Package queue implements the batch queue: an ordered buffer that
// flushes on a size threshold or an age threshold, whichever fires
// first. A flush atomically detaches the buffered events as a Batch
// and resets the queue, so concurrent producers and the timer never
// see an event twice or lose one between triggers.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/event"
)

// Trigger records what caused a flush.
type Trigger string

const (
	TriggerSize  Trigger = "size"
	TriggerTimer Trigger = "timer"
	TriggerDrain Trigger = "drain"
)

type Queue struct {
	mu        sync.Mutex
	events    []event.Inbound
	startedAt time.Time

	maxSize int
	maxAge  time.Duration
	logger  *zap.Logger
}

func New(maxSize int, maxAge time.Duration, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		maxSize: maxSize,
		maxAge:  maxAge,
		logger:  logger.Named("queue"),
	}
}

// Add appends an accepted event. When the insertion reaches the size
// threshold the current contents are detached and returned as a batch;
// the queue is already empty again by the time Add returns.
func (q *Queue) Add(ev event.Inbound) (event.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		q.startedAt = time.Now()
	}
	q.events = append(q.events, ev)

	if len(q.events) >= q.maxSize {
		batch := q.detachLocked()
		q.logger.Debug("size trigger fired", zap.String("batch_id", batch.ID), zap.Int("size", batch.Size()))
		return batch, true
	}
	return event.Batch{}, false
}

// FlushExpired detaches the current contents when the oldest buffered
// event has been waiting longer than the age threshold. An empty queue
// never flushes.
func (q *Queue) FlushExpired(now time.Time) (event.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event.Batch{}, false
	}
	if now.Sub(q.startedAt) < q.maxAge {
		return event.Batch{}, false
	}

	batch := q.detachLocked()
	q.logger.Debug("time trigger fired", zap.String("batch_id", batch.ID), zap.Int("size", batch.Size()))
	return batch, true
}

// Drain detaches whatever is buffered regardless of age. Used for the
// best-effort final flush on shutdown.
func (q *Queue) Drain() (event.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event.Batch{}, false
	}
	return q.detachLocked(), true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// detachLocked transfers ownership of the buffered events to a new
// Batch and resets the queue. Callers must hold q.mu.
func (q *Queue) detachLocked() event.Batch {
	batch := event.Batch{
		ID:        uuid.NewString(),
		StartedAt: q.startedAt,
		Events:    q.events,
	}
	q.events = nil
	q.startedAt = time.Time{}
	return batch
}
