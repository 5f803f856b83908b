package pipeline

import "chainaudit/pkg/models"

// EventWriter writes attack-timeline events.
type EventWriter interface {
	WriteEvents(events []models.AttackEvent) error
	Close() error
}
