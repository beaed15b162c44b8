package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPaymentVerified EventType = "payment.verified"
	EventFormApproved    EventType = "form.approved"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
)

// OutboxEvent is written in the same transaction as the state change it
// announces and relayed to the reward queue afterwards.
type OutboxEvent struct {
	ID          int64           `json:"id"`
	EventType   EventType       `json:"event_type"`
	AggregateID int64           `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	Status      OutboxStatus    `json:"status"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// RewardEvent is the message body published to the reward queue.
type RewardEvent struct {
	EventID   int64     `json:"event_id"`
	EventType EventType `json:"event_type"`
	FormID    int64     `json:"form_id"`
}

func NewFormEvent(t EventType, formID int64) *OutboxEvent {
	payload, _ := json.Marshal(map[string]int64{"form_id": formID})
	return &OutboxEvent{
		EventType:   t,
		AggregateID: formID,
		Payload:     payload,
		Status:      OutboxStatusPending,
	}
}
