package models

import (
	"encoding/json"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
	OutboxStatusDead    OutboxStatus = "DEAD"
)

const EventRequestApproved = "request.approved"

// OutboxEvent is written in the same transaction as the state change it announces.
type OutboxEvent struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateKind string          `json:"aggregate_kind"`
	AggregateID   int64           `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	Status        OutboxStatus    `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// RequestApprovedPayload is the body of a request.approved event.
type RequestApprovedPayload struct {
	RequestID     int64       `json:"request_id"`
	Kind          RequestKind `json:"kind"`
	Type          RequestType `json:"type"`
	ApprovedAt    time.Time   `json:"approved_at"`
	FinalApprover string      `json:"final_approver"`
}

type RedeliverResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}
