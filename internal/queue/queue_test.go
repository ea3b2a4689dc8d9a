package queue

import (
	"testing"
	"time"

	"github.com/dr4g00n/TG-monitor/internal/event"
)

func makeEvent(id int64) event.Inbound {
	return event.Inbound{
		SourceID:   -100123,
		SourceName: "alpha-calls",
		EventID:    id,
		Text:       "test message",
		OccurredAt: time.Now(),
	}
}

func TestAdd_SizeTrigger(t *testing.T) {
	q := New(3, time.Minute, nil)

	for i := int64(1); i <= 2; i++ {
		if _, flushed := q.Add(makeEvent(i)); flushed {
			t.Fatalf("flush fired at %d events, want threshold 3", i)
		}
	}
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}

	batch, flushed := q.Add(makeEvent(3))
	if !flushed {
		t.Fatal("flush did not fire at threshold")
	}
	if batch.Size() != 3 {
		t.Errorf("batch size = %d, want 3", batch.Size())
	}
	if batch.ID == "" {
		t.Error("batch ID should not be empty")
	}
	if q.Len() != 0 {
		t.Errorf("queue not reset after flush, Len = %d", q.Len())
	}
}

func TestAdd_SizeOne(t *testing.T) {
	q := New(1, time.Minute, nil)
	batch, flushed := q.Add(makeEvent(1))
	if !flushed {
		t.Fatal("flush should fire on every Add when maxSize is 1")
	}
	if batch.Size() != 1 {
		t.Errorf("batch size = %d, want 1", batch.Size())
	}
}

func TestAdd_PreservesOrder(t *testing.T) {
	q := New(3, time.Minute, nil)
	q.Add(makeEvent(10))
	q.Add(makeEvent(20))
	batch, _ := q.Add(makeEvent(30))

	want := []int64{10, 20, 30}
	for i, ev := range batch.Events {
		if ev.EventID != want[i] {
			t.Errorf("event %d = id %d, want %d", i, ev.EventID, want[i])
		}
	}
}

func TestFlushExpired_Empty(t *testing.T) {
	q := New(10, time.Minute, nil)
	if _, flushed := q.FlushExpired(time.Now().Add(time.Hour)); flushed {
		t.Error("empty queue must never flush")
	}
}

func TestFlushExpired_NotYetDue(t *testing.T) {
	q := New(10, time.Minute, nil)
	q.Add(makeEvent(1))
	if _, flushed := q.FlushExpired(time.Now()); flushed {
		t.Error("flush fired before the age threshold")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

func TestFlushExpired_PartialBatch(t *testing.T) {
	q := New(10, time.Minute, nil)
	q.Add(makeEvent(1))
	q.Add(makeEvent(2))

	batch, flushed := q.FlushExpired(time.Now().Add(2 * time.Minute))
	if !flushed {
		t.Fatal("flush did not fire after the age threshold")
	}
	if batch.Size() != 2 {
		t.Errorf("batch size = %d, want 2", batch.Size())
	}
	if q.Len() != 0 {
		t.Errorf("queue not reset after flush, Len = %d", q.Len())
	}
}

func TestFlushExpired_TimerResetsAfterFlush(t *testing.T) {
	q := New(10, time.Minute, nil)
	q.Add(makeEvent(1))
	q.FlushExpired(time.Now().Add(2 * time.Minute))

	// A new event starts a fresh window.
	q.Add(makeEvent(2))
	if _, flushed := q.FlushExpired(time.Now()); flushed {
		t.Error("new window should not be expired immediately")
	}
}

func TestDrain(t *testing.T) {
	q := New(10, time.Hour, nil)
	q.Add(makeEvent(1))

	batch, ok := q.Drain()
	if !ok {
		t.Fatal("Drain should return the pending events")
	}
	if batch.Size() != 1 {
		t.Errorf("batch size = %d, want 1", batch.Size())
	}

	if _, ok := q.Drain(); ok {
		t.Error("second Drain on empty queue should report nothing")
	}
}
