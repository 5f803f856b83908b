package reportnats

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"

	"chainaudit/internal/logger"
	"chainaudit/pkg/models"
)

// Config configures the NATS report publisher.
type Config struct {
	URL     string
	Subject string
}

// Writer publishes detection reports to a NATS subject, one message per
// report.
type Writer struct {
	conn    *nats.Conn
	subject string
}

// NewWriter connects to NATS and creates a report publisher.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = "chainaudit.reports"
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("chainaudit"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Infof("NATS report writer initialized: %s subject=%s", cfg.URL, cfg.Subject)
	return &Writer{conn: conn, subject: cfg.Subject}, nil
}

// WriteReports publishes a batch of reports.
func (w *Writer) WriteReports(reports []models.DetectionReport) error {
	if w.conn == nil || !w.conn.IsConnected() {
		return fmt.Errorf("nats connection not available")
	}

	for _, report := range reports {
		body, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}

		header := nats.Header{}
		header.Set("x-report-id", report.ReportID)
		header.Set("x-program", report.Program)
		header.Set("x-risk-level", report.RiskLevel)
		header.Set("x-risk-score", strconv.Itoa(report.RiskScore))

		msg := &nats.Msg{Subject: w.subject, Data: body, Header: header}
		if err := w.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("failed to publish report: %w", err)
		}
	}

	return w.conn.Flush()
}

// Close drains the connection.
func (w *Writer) Close() error {
	if w.conn != nil {
		w.conn.Close()
	}
	return nil
}
