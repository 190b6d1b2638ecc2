package entity

import "github.com/google/uuid"

// ExtractionRequestMessage is the inbound message from the tutorial.requests
// queue.
type ExtractionRequestMessage struct {
	RequestID uuid.UUID `json:"request_id"`
	Query     string    `json:"query"`
	UserEmail string    `json:"user_email,omitempty"`
}

// ProgressEventMessage is the outbound message published to the
// tutorial.progress queue, one per ProgressEvent.
type ProgressEventMessage struct {
	RequestID uuid.UUID      `json:"request_id"`
	Query     string         `json:"query"`
	Stage     Stage          `json:"stage"`
	Status    Status         `json:"status"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"data,omitempty"`
}
