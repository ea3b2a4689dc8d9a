package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dr4g00n/TG-monitor/internal/event"
)

// stubAnalyzer returns canned results keyed by message text.
type stubAnalyzer struct {
	results map[string]Result
	errs    map[string]error
	delay   time.Duration
}

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err, ok := s.errs[text]; ok {
		return Result{}, err
	}
	if res, ok := s.results[text]; ok {
		return res, nil
	}
	return Result{IsRelevant: false}, nil
}

func (s *stubAnalyzer) HealthCheck(ctx context.Context) bool { return true }
func (s *stubAnalyzer) Name() string                         { return "stub" }

func batchOf(texts ...string) event.Batch {
	b := event.Batch{ID: "batch-1", StartedAt: time.Now()}
	for i, text := range texts {
		b.Events = append(b.Events, event.Inbound{
			SourceID:   -100123,
			SourceName: "alpha-calls",
			EventID:    int64(i + 1),
			Text:       text,
		})
	}
	return b
}

func TestDispatch_ConfidenceFloor(t *testing.T) {
	stub := &stubAnalyzer{results: map[string]Result{
		"strong": {IsRelevant: true, TokenName: "AAA", Confidence: 0.9},
		"weak":   {IsRelevant: true, TokenName: "BBB", Confidence: 0.5},
	}}
	d := NewDispatcher(stub, 0.7, nil, 2, nil)

	results := d.Dispatch(context.Background(), batchOf("strong", "weak"))
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].TokenName != "AAA" {
		t.Errorf("surviving result = %q, want AAA", results[0].TokenName)
	}
}

func TestDispatch_IrrelevantDropped(t *testing.T) {
	stub := &stubAnalyzer{results: map[string]Result{
		"noise": {IsRelevant: false, Confidence: 0.99},
	}}
	d := NewDispatcher(stub, 0.1, nil, 1, nil)

	results := d.Dispatch(context.Background(), batchOf("noise"))
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestDispatch_KeywordFilter(t *testing.T) {
	stub := &stubAnalyzer{results: map[string]Result{
		"launch of PEPE":   {IsRelevant: true, Confidence: 0.9},
		"unrelated signal": {IsRelevant: true, Confidence: 0.9},
	}}
	d := NewDispatcher(stub, 0.5, []string{"pepe"}, 2, nil)

	results := d.Dispatch(context.Background(), batchOf("launch of PEPE", "unrelated signal"))
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].EventID != 1 {
		t.Errorf("surviving event = %d, want 1", results[0].EventID)
	}
}

func TestDispatch_NoKeywordsMeansNoFilter(t *testing.T) {
	stub := &stubAnalyzer{results: map[string]Result{
		"anything": {IsRelevant: true, Confidence: 0.9},
	}}
	d := NewDispatcher(stub, 0.5, nil, 1, nil)

	if results := d.Dispatch(context.Background(), batchOf("anything")); len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestDispatch_ErrorDoesNotAbortBatch(t *testing.T) {
	stub := &stubAnalyzer{
		results: map[string]Result{
			"good": {IsRelevant: true, TokenName: "AAA", Confidence: 0.9},
		},
		errs: map[string]error{
			"bad": errors.New("backend exploded"),
		},
	}
	d := NewDispatcher(stub, 0.5, nil, 2, nil)

	results := d.Dispatch(context.Background(), batchOf("bad", "good"))
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].TokenName != "AAA" {
		t.Errorf("surviving result = %q, want AAA", results[0].TokenName)
	}
}

func TestDispatch_PreservesEventOrder(t *testing.T) {
	stub := &stubAnalyzer{results: map[string]Result{}, delay: 5 * time.Millisecond}
	var texts []string
	for i := 0; i < 8; i++ {
		text := fmt.Sprintf("msg-%d", i)
		texts = append(texts, text)
		stub.results[text] = Result{IsRelevant: true, Confidence: 0.9}
	}
	d := NewDispatcher(stub, 0.5, nil, 4, nil)

	results := d.Dispatch(context.Background(), batchOf(texts...))
	if len(results) != 8 {
		t.Fatalf("got %d results, want 8", len(results))
	}
	for i, res := range results {
		if res.EventID != int64(i+1) {
			t.Errorf("result %d has event id %d, want %d", i, res.EventID, i+1)
		}
	}
}

func TestDispatch_SetsEventID(t *testing.T) {
	stub := &stubAnalyzer{results: map[string]Result{
		"x": {IsRelevant: true, Confidence: 0.9},
	}}
	d := NewDispatcher(stub, 0.5, nil, 1, nil)

	results := d.Dispatch(context.Background(), batchOf("x"))
	if len(results) != 1 || results[0].EventID != 1 {
		t.Fatalf("EventID not stamped onto result: %+v", results)
	}
}
