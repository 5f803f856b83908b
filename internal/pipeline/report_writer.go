package pipeline

import "chainaudit/pkg/models"

// ReportWriter writes detection reports to a sink.
type ReportWriter interface {
	WriteReports(reports []models.DetectionReport) error
	Close() error
}
