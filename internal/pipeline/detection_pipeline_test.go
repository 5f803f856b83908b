package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"chainaudit/internal/detect"
	"chainaudit/pkg/models"
)

type queueConsumer struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *queueConsumer) Pop(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	if len(c.payloads) > 0 {
		payload := c.payloads[0]
		c.payloads = c.payloads[1:]
		c.mu.Unlock()
		return payload, nil
	}
	c.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *queueConsumer) Close() error {
	return nil
}

type collectingWriter struct {
	mu      sync.Mutex
	reports []models.DetectionReport
}

func (w *collectingWriter) WriteReports(reports []models.DetectionReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, reports...)
	return nil
}

func (w *collectingWriter) Close() error {
	return nil
}

func (w *collectingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.reports)
}

func outcomeBatch(i int) []byte {
	return []byte(fmt.Sprintf(`{
		"program": "defai_swap",
		"outcomes": [
			{"family": "double-spend", "success": true, "target_function": "claim_%d",
			 "double_spend": {"attempted_spends": 2, "successful_spends": 1}}
		]
	}`, i))
}

func TestPipelineShutdownDrainsAllQueuedReports(t *testing.T) {
	const batches = 16

	consumer := &queueConsumer{}
	for i := 0; i < batches; i++ {
		consumer.payloads = append(consumer.payloads, outcomeBatch(i))
	}
	writer := &collectingWriter{}

	pipe := NewDetectionPipeline(consumer, detect.NewEngine(detect.Config{}), writer, nil, 2, 4, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pipe.Run(ctx)
	}()

	// Let the readers pick up the queue, then shut down while reports may
	// still be in flight between the workers and the writer.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("pipeline did not shut down")
	}

	if got := writer.count(); got != batches {
		t.Fatalf("expected %d reports after shutdown, got %d", batches, got)
	}
}
