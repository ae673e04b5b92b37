// Package events defines event types for run and step lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Topic is the single topic all run lifecycle events are published to.
const Topic = "hanaperf.run.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunCreatedEvent   EventType = "run.created"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"

	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
	StepFailedEvent    EventType = "step.failed"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	WorkflowType string    `json:"workflow_type,omitempty"`
}

type RunCreated struct {
	BaseEvent

	Steps []string `json:"steps"`
}

func (e RunCreated) GetType() EventType {
	return RunCreatedEvent
}

type RunCompleted struct {
	BaseEvent

	OutputPath string        `json:"output_path,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	StepName string `json:"step_name"`
	Error    string `json:"error"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type StepStarted struct {
	BaseEvent

	StepName string `json:"step_name"`
}

func (e StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepCompleted struct {
	BaseEvent

	StepName   string        `json:"step_name"`
	OutputKeys []string      `json:"output_keys,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	StepName string `json:"step_name"`
	Error    string `json:"error"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}
