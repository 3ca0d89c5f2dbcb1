package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/todoflow-labs/task-tracker/internal/dto"
	"github.com/todoflow-labs/task-tracker/internal/metrics"
)

const (
	StreamName    = "task_events"
	SubjectPrefix = "tasks."
)

// Subject maps task.created to tasks.created.
func Subject(t dto.EventType) string {
	switch t {
	case dto.TaskCreated:
		return SubjectPrefix + "created"
	case dto.TaskToggled:
		return SubjectPrefix + "toggled"
	case dto.TaskDeleted:
		return SubjectPrefix + "deleted"
	default:
		return SubjectPrefix + "unknown"
	}
}

// EnsureStream creates the task event stream unless it already exists.
func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPrefix + ">"},
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("add stream %s: %w", StreamName, err)
	}
	return nil
}

type JetStreamPublisher struct {
	js nats.JetStreamContext
}

func NewJetStreamPublisher(js nats.JetStreamContext) *JetStreamPublisher {
	return &JetStreamPublisher{js: js}
}

func (p *JetStreamPublisher) Publish(ctx context.Context, evt dto.TaskEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	subject := Subject(evt.Type)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		metrics.RecordEventPublished(subject, metrics.OutcomeError)
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	metrics.RecordEventPublished(subject, metrics.OutcomeSuccess)
	return nil
}

// Noop drops every event. Used when NATS is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, dto.TaskEvent) error { return nil }
