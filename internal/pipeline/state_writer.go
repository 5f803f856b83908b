package pipeline

import "chainaudit/pkg/models"

// StateWriter updates a derived per-program audit-state index.
type StateWriter interface {
	WriteReport(report models.DetectionReport) error
	Close() error
}
