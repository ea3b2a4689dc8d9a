package analysis

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dr4g00n/TG-monitor/internal/event"
	"github.com/dr4g00n/TG-monitor/internal/metrics"
)

// Dispatcher fans a flushed batch out to the analysis backend with
// bounded concurrency and applies the relevance policy to the results.
// Per-message failures are logged and counted, never propagated; the
// rest of the batch always completes.
type Dispatcher struct {
	analyzer      Analyzer
	minConfidence float64
	keywords      []string
	concurrency   int
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

func NewDispatcher(analyzer Analyzer, minConfidence float64, keywords []string, concurrency int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		analyzer:      analyzer,
		minConfidence: minConfidence,
		keywords:      keywords,
		concurrency:   concurrency,
		logger:        logger.Named("dispatcher"),
		metrics:       metrics.New(),
	}
}

// Dispatch analyzes every event in the batch and returns the surviving
// results in original event order, regardless of completion order.
func (d *Dispatcher) Dispatch(ctx context.Context, batch event.Batch) []Result {
	slots := make([]*Result, len(batch.Events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, ev := range batch.Events {
		g.Go(func() error {
			if res, ok := d.analyzeOne(gctx, ev); ok {
				slots[i] = &res
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	results := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	d.logger.Info("batch analyzed",
		zap.String("batch_id", batch.ID),
		zap.Int("events", len(batch.Events)),
		zap.Int("relevant", len(results)),
	)
	return results
}

func (d *Dispatcher) analyzeOne(ctx context.Context, ev event.Inbound) (Result, bool) {
	start := time.Now()
	res, err := d.analyzer.Analyze(ctx, ev.Text)
	d.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		d.logger.Error("analysis failed",
			zap.Int64("event_id", ev.EventID),
			zap.Int64("source_id", ev.SourceID),
			zap.Error(err),
		)
		d.metrics.MessagesDropped.WithLabelValues(metrics.ReasonAnalysisError).Inc()
		return Result{}, false
	}
	res.EventID = ev.EventID

	if reason, ok := d.dropReason(ev.Text, res); ok {
		d.logger.Debug("result dropped",
			zap.Int64("event_id", ev.EventID),
			zap.String("reason", reason),
			zap.Float64("confidence", res.Confidence),
		)
		d.metrics.MessagesDropped.WithLabelValues(reason).Inc()
		return Result{}, false
	}
	return res, true
}

// dropReason applies the relevance policy: analysis verdict first, then
// the confidence floor, then the keyword allowlist over the original
// text. The distinct reasons exist for operator visibility only.
func (d *Dispatcher) dropReason(text string, res Result) (string, bool) {
	if !res.IsRelevant {
		return metrics.ReasonIrrelevant, true
	}
	if res.Confidence < d.minConfidence {
		return metrics.ReasonLowConfidence, true
	}
	if len(d.keywords) > 0 && !containsAnyKeyword(text, d.keywords) {
		return metrics.ReasonFiltered, true
	}
	return "", false
}

func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
