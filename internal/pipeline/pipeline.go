// Package pipeline connects the batch queue, the analysis dispatcher
// and report delivery into one running unit.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/analysis"
	"github.com/dr4g00n/TG-monitor/internal/event"
	"github.com/dr4g00n/TG-monitor/internal/metrics"
	"github.com/dr4g00n/TG-monitor/internal/queue"
	"github.com/dr4g00n/TG-monitor/internal/report"
	"github.com/dr4g00n/TG-monitor/internal/telegram"
)

// Deliverer pushes a finished report to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, rep report.Summary) error
}

// Pipeline owns the flush scheduler and the single batch worker.
// Batches are processed in flush order, one at a time.
type Pipeline struct {
	queue      *queue.Queue
	dispatcher *analysis.Dispatcher
	deliverer  Deliverer
	logger     *zap.Logger
	metrics    *metrics.Metrics

	batches chan flushedBatch
	cron    *cron.Cron
	cancel  context.CancelFunc
	done    chan struct{}
}

type flushedBatch struct {
	batch   event.Batch
	trigger queue.Trigger
}

func New(q *queue.Queue, d *analysis.Dispatcher, deliverer Deliverer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		queue:      q,
		dispatcher: d,
		deliverer:  deliverer,
		logger:     logger.Named("pipeline"),
		metrics:    metrics.New(),
		batches:    make(chan flushedBatch, 16),
		cron:       cron.New(),
		done:       make(chan struct{}),
	}
}

// Enqueue hands a size-triggered batch to the worker. It is the
// gatekeeper's flush callback.
func (p *Pipeline) Enqueue(batch event.Batch) {
	p.submit(batch, queue.TriggerSize)
}

func (p *Pipeline) submit(batch event.Batch, trigger queue.Trigger) {
	p.metrics.BatchesFlushed.WithLabelValues(string(trigger)).Inc()
	p.logger.Info("batch flushed",
		zap.String("batch_id", batch.ID),
		zap.Int("size", batch.Size()),
		zap.String("trigger", string(trigger)),
	)
	p.batches <- flushedBatch{batch: batch, trigger: trigger}
}

// Start launches the worker and the timeout scheduler.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	go p.worker(ctx)

	// The scheduler only checks age; the queue decides whether the
	// batch is actually due.
	if _, err := p.cron.AddFunc("@every 1s", func() {
		if batch, ok := p.queue.FlushExpired(time.Now()); ok {
			p.submit(batch, queue.TriggerTimer)
		}
	}); err != nil {
		return err
	}
	p.cron.Start()
	return nil
}

func (p *Pipeline) worker(ctx context.Context) {
	defer close(p.done)
	for fb := range p.batches {
		p.processBatch(ctx, fb.batch)
	}
}

func (p *Pipeline) processBatch(ctx context.Context, batch event.Batch) {
	results := p.dispatcher.Dispatch(ctx, batch)
	rep := report.Build(batch.Size(), results)

	if rep.Empty() {
		p.metrics.ReportsSkipped.Inc()
		p.logger.Info("batch produced no relevant results, skipping delivery",
			zap.String("batch_id", batch.ID),
			zap.Int("size", batch.Size()),
		)
		return
	}

	if err := p.deliverer.Deliver(ctx, rep); err != nil {
		// Delivery failure must not take the pipeline down; the next
		// batch still gets its chance.
		var derr *telegram.DeliveryError
		if errors.As(err, &derr) {
			p.logger.Error("report delivery failed",
				zap.String("report_id", derr.ReportID),
				zap.Int("chunk", derr.Chunk),
				zap.Int("chunks", derr.Chunks),
				zap.Int("attempts", derr.Attempts),
				zap.Error(derr.Err),
			)
		} else {
			p.logger.Error("report delivery failed", zap.String("report_id", rep.ID), zap.Error(err))
		}
		return
	}

	p.metrics.ReportsDelivered.Inc()
	p.logger.Info("report delivered",
		zap.String("report_id", rep.ID),
		zap.Int("batch_size", rep.BatchSize),
		zap.Int("results", len(rep.Results)),
	)
}

// Stop flushes whatever is queued and waits for the worker to drain.
// The caller must stop accepting events first: no Enqueue may run
// concurrently with or after Stop.
func (p *Pipeline) Stop(ctx context.Context) {
	cronCtx := p.cron.Stop()
	<-cronCtx.Done()

	if batch, ok := p.queue.Drain(); ok {
		p.submit(batch, queue.TriggerDrain)
	}

	close(p.batches)
	select {
	case <-p.done:
	case <-ctx.Done():
		// Deadline hit: cancel in-flight work and wait for the worker
		// to observe it.
		if p.cancel != nil {
			p.cancel()
		}
		<-p.done
	}
	if p.cancel != nil {
		p.cancel()
	}
}
