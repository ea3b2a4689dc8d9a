// Package ingest validates and normalizes inbound events before they
// enter the pipeline. Malformed input never crashes the process;
// unauthorized input never proceeds downstream.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/event"
	"github.com/dr4g00n/TG-monitor/internal/metrics"
	"github.com/dr4g00n/TG-monitor/internal/registry"
)

// Reject reasons.
var (
	ErrMalformedEvent     = errors.New("malformed event")
	ErrUnauthorizedSource = errors.New("unauthorized source")
)

const (
	// NonTextPlaceholder stands in for events with no text content
	// (media-only posts); rejecting them would hide activity.
	NonTextPlaceholder = "[non-text message]"

	maxTextLen       = 50000
	truncateAtChars  = 40000
	maxSourceNameLen = 200
)

// RawEvent is the wire shape the upstream collector posts.
type RawEvent struct {
	SourceID   int64  `json:"channel_id"`
	SourceName string `json:"channel_name"`
	EventID    int64  `json:"message_id"`
	Text       string `json:"text"`
	OccurredAt int64  `json:"timestamp"`
	Origin     string `json:"sender,omitempty"`
}

// Sink receives a normalized event. The batch queue satisfies it.
type Sink interface {
	Add(ev event.Inbound) (event.Batch, bool)
}

// Gatekeeper checks each inbound event against structural constraints and
// the channel registry, then pushes survivors into the sink.
type Gatekeeper struct {
	registry *registry.Registry
	sink     Sink
	onFlush  func(event.Batch)
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewGatekeeper(reg *registry.Registry, sink Sink, onFlush func(event.Batch), logger *zap.Logger) *Gatekeeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatekeeper{
		registry: reg,
		sink:     sink,
		onFlush:  onFlush,
		logger:   logger.Named("gatekeeper"),
		metrics:  metrics.New(),
	}
}

// Accept validates raw, normalizes it and enqueues it. The returned
// event is the normalized form; the error is ErrMalformedEvent or
// ErrUnauthorizedSource (wrapped with detail) on rejection.
func (g *Gatekeeper) Accept(raw RawEvent) (event.Inbound, error) {
	if err := validate(raw); err != nil {
		g.metrics.EventsRejected.WithLabelValues(metrics.ReasonMalformed).Inc()
		g.logger.Warn("event rejected",
			zap.Int64("source_id", raw.SourceID),
			zap.Int64("event_id", raw.EventID),
			zap.Error(err),
		)
		return event.Inbound{}, err
	}

	if !g.registry.Contains(raw.SourceID) {
		g.metrics.EventsRejected.WithLabelValues(metrics.ReasonUnauthorized).Inc()
		g.logger.Warn("event from unmonitored source dropped",
			zap.Int64("source_id", raw.SourceID),
			zap.String("source_name", raw.SourceName),
		)
		return event.Inbound{}, fmt.Errorf("source %d: %w", raw.SourceID, ErrUnauthorizedSource)
	}

	ev := normalize(raw)
	g.metrics.EventsAccepted.Inc()
	g.logger.Debug("event accepted", zap.Int64("event_id", ev.EventID), zap.String("summary", ev.Summary()))

	if batch, flushed := g.sink.Add(ev); flushed && g.onFlush != nil {
		g.onFlush(batch)
	}
	return ev, nil
}

func validate(raw RawEvent) error {
	if raw.SourceID == 0 {
		return fmt.Errorf("channel_id is required: %w", ErrMalformedEvent)
	}
	if raw.EventID <= 0 {
		return fmt.Errorf("message_id %d is not a positive integer: %w", raw.EventID, ErrMalformedEvent)
	}
	name := strings.TrimSpace(raw.SourceName)
	if name == "" {
		return fmt.Errorf("channel_name is required: %w", ErrMalformedEvent)
	}
	if len([]rune(name)) > maxSourceNameLen {
		return fmt.Errorf("channel_name exceeds %d characters: %w", maxSourceNameLen, ErrMalformedEvent)
	}
	if strings.ContainsRune(raw.SourceName, 0) {
		return fmt.Errorf("channel_name contains NUL: %w", ErrMalformedEvent)
	}
	if len(raw.Text) > maxTextLen {
		return fmt.Errorf("text exceeds %d bytes: %w", maxTextLen, ErrMalformedEvent)
	}
	return nil
}

func normalize(raw RawEvent) event.Inbound {
	text := sanitizeText(raw.Text)
	if strings.TrimSpace(text) == "" {
		text = NonTextPlaceholder
	}

	occurred := raw.OccurredAt
	if occurred <= 0 {
		occurred = time.Now().Unix()
	}

	return event.Inbound{
		SourceID:   raw.SourceID,
		SourceName: strings.TrimSpace(raw.SourceName),
		EventID:    raw.EventID,
		Text:       text,
		OccurredAt: time.Unix(occurred, 0),
		Origin:     raw.Origin,
	}
}

// sanitizeText strips NUL bytes and truncates very long messages at a
// rune boundary so downstream formatting never splits a character.
func sanitizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")

	runes := []rune(text)
	if len(runes) > truncateAtChars {
		return string(runes[:truncateAtChars]) + "... [truncated]"
	}
	return text
}
