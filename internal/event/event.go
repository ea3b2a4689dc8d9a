package event

import (
	"time"
)

// Inbound is a single accepted message from a monitored source. It is
// immutable once the gatekeeper has validated and normalized it.
type Inbound struct {
	SourceID   int64
	SourceName string
	EventID    int64
	Text       string
	OccurredAt time.Time
	Origin     string
}

// Summary returns a short preview for logging.
func (e Inbound) Summary() string {
	preview := e.Text
	runes := []rune(preview)
	if len(runes) > 50 {
		preview = string(runes[:50]) + "..."
	}
	return "[" + e.SourceName + "] " + preview
}

// Batch is an ordered group of accepted events detached from the live
// queue in a single flush. Once detached it is never mutated.
type Batch struct {
	ID        string
	StartedAt time.Time
	Events    []Inbound
}

func (b Batch) Size() int {
	return len(b.Events)
}
