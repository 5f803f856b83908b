// Package outcomes normalizes raw intake messages into outcome batches.
package outcomes

import (
	"encoding/json"
	"fmt"
	"strings"

	"chainaudit/internal/logger"
	"chainaudit/pkg/models"
)

// Batch is one test run's worth of attack outcomes for a program.
type Batch struct {
	Program  string                 `json:"program"`
	RunID    string                 `json:"run_id,omitempty"`
	Outcomes []models.AttackOutcome `json:"outcomes"`
}

// Parse decodes a raw intake message into a Batch. Outcomes whose family
// tag and payload disagree are dropped with a warning rather than
// failing the batch; an under-reported run beats a crashed one.
func Parse(data []byte) (*Batch, error) {
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode outcome batch: %w", err)
	}

	if strings.TrimSpace(batch.Program) == "" {
		return nil, fmt.Errorf("outcome batch has no program")
	}

	kept := batch.Outcomes[:0]
	for _, o := range batch.Outcomes {
		if o.Family != "" && !o.Payload() {
			logger.Warnf("dropping malformed %s outcome for %s: payload missing or mismatched",
				o.Family, o.TargetFunction)
			continue
		}
		kept = append(kept, o)
	}
	batch.Outcomes = kept

	return &batch, nil
}
