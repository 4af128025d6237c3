package models

import "time"

// LifecycleEvent is published to the broker after a committed state change.
type LifecycleEvent struct {
	Type          string        `json:"type"`
	TransactionID string        `json:"transaction_id,omitempty"`
	TicketID      string        `json:"ticket_id,omitempty"`
	DisputeID     string        `json:"dispute_id,omitempty"`
	ActorID       string        `json:"actor_id,omitempty"`
	Step          Step          `json:"step,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
	TicketStatus  TicketStatus  `json:"ticket_status,omitempty"`
	DisputeStatus DisputeStatus `json:"dispute_status,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}
