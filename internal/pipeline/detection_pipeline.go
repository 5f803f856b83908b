package pipeline

import (
	"context"
	"sync"
	"time"

	"chainaudit/internal/detect"
	"chainaudit/internal/logger"
	"chainaudit/internal/metrics"
	"chainaudit/internal/transform/outcomes"
	"chainaudit/pkg/models"
)

// Consumer pops raw outcome-batch messages from an intake queue. A nil
// payload with nil error means no message arrived before the block
// timeout.
type Consumer interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// DetectionPipeline consumes outcome batches from an intake queue and
// writes detection reports.
type DetectionPipeline struct {
	consumer      Consumer
	engine        *detect.Engine
	writer        ReportWriter
	stateWriter   StateWriter
	workers       int
	batchSize     int
	flushInterval time.Duration
}

// NewDetectionPipeline creates a pipeline over an intake queue.
// stateWriter may be nil to disable the audit-state index.
func NewDetectionPipeline(consumer Consumer, engine *detect.Engine, writer ReportWriter, stateWriter StateWriter, workers, batchSize int, flushInterval time.Duration) *DetectionPipeline {
	return &DetectionPipeline{
		consumer:      consumer,
		engine:        engine,
		writer:        writer,
		stateWriter:   stateWriter,
		workers:       workers,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Run starts the pipeline loop and blocks until the context is done.
func (p *DetectionPipeline) Run(ctx context.Context) error {
	logger.Infof("detection pipeline started")

	if p.workers <= 0 {
		p.workers = 4
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 2 * time.Second
	}

	msgCh := make(chan []byte, p.workers*4)
	reportCh := make(chan models.DetectionReport, p.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	// The last worker to exit closes reportCh, so a worker can never send
	// on a closed channel during shutdown.
	var workerWG sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			p.workerLoop(msgCh, reportCh)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		workerWG.Wait()
		close(reportCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.writeLoop(ctx, reportCh)
	}()

	wg.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *DetectionPipeline) Close() error {
	if p.stateWriter != nil {
		if err := p.stateWriter.Close(); err != nil {
			logger.Errorf("failed to close state writer: %v", err)
		}
	}
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("failed to close report writer: %v", err)
		}
	}
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

func (p *DetectionPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("failed to pop redis message: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if payload == nil {
			continue
		}
		out <- payload
	}
}

func (p *DetectionPipeline) workerLoop(in <-chan []byte, out chan<- models.DetectionReport) {
	for payload := range in {
		batch, err := outcomes.Parse(payload)
		if err != nil {
			logger.Warnf("failed to parse outcome batch: %v", err)
			continue
		}

		report := p.engine.BuildReport(batch.Program, batch.Outcomes)

		metrics.OutcomeBatches.Inc()
		metrics.OutcomesProcessed.Add(float64(len(batch.Outcomes)))
		for _, f := range report.Findings {
			metrics.Findings.WithLabelValues(f.Severity).Inc()
		}
		metrics.LastRiskScore.WithLabelValues(report.Program).Set(float64(report.RiskScore))

		out <- report
	}
}

func (p *DetectionPipeline) writeLoop(ctx context.Context, in <-chan models.DetectionReport) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var batch []models.DetectionReport

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for {
			if err := p.writer.WriteReports(batch); err != nil {
				metrics.ReportWriteErrors.Inc()
				logger.Errorf("failed to write reports: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(1 * time.Second):
				}
				continue
			}
			batch = nil
			break
		}
	}

	// Drain until the report channel closes; exiting on ctx alone would
	// strand workers blocked on a send.
	for {
		select {
		case <-ticker.C:
			flush()
		case report, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, report)
			if p.stateWriter != nil {
				if err := p.stateWriter.WriteReport(report); err != nil {
					logger.Warnf("failed to update audit state for %s: %v", report.Program, err)
				}
			}
			if len(batch) >= p.batchSize {
				flush()
			}
		}
	}
}
