// Package events publishes marketplace lifecycle events to a message broker
// after the state change has been committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ms-resale/internal/config"
	"ms-resale/internal/logger"
	"ms-resale/internal/models"
)

const (
	TransactionCreated   = "transaction.created"
	PaymentSubmitted     = "transaction.payment_submitted"
	SellerConfirmed      = "transaction.seller_confirmed"
	TicketSent           = "transaction.ticket_sent"
	TransactionCompleted = "transaction.completed"

	DisputeFiled         = "dispute.filed"
	DisputeInvestigating = "dispute.investigating"
	DisputeResolved      = "dispute.resolved"

	ListingCreated   = "listing.created"
	ListingUpdated   = "listing.updated"
	ListingCancelled = "listing.cancelled"
)

// Publisher sends one keyed message to a topic or routing key.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Emitter routes lifecycle events to their topic. Failures are logged and
// never returned; the state change they describe is already durable.
type Emitter struct {
	Publisher Publisher
	Topics    config.TopicConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewEmitter(p Publisher, topics config.TopicConfig, log *logger.Logger) *Emitter {
	if p == nil {
		p = Nop{}
	}
	return &Emitter{Publisher: p, Topics: topics, Logger: log, Now: time.Now}
}

func (e *Emitter) topicFor(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "dispute."):
		return e.Topics.DisputeEvents
	case strings.HasPrefix(eventType, "listing."):
		return e.Topics.ListingEvents
	default:
		return e.Topics.TransactionEvents
	}
}

func (e *Emitter) Emit(ctx context.Context, event models.LifecycleEvent) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() && e.Now != nil {
		event.Timestamp = e.Now().UTC()
	}

	key := event.TransactionID
	if key == "" {
		key = event.TicketID
	}

	value, err := json.Marshal(event)
	if err != nil {
		e.Logger.Error("EVENTS", fmt.Sprintf("Failed to marshal %s: %v", event.Type, err))
		return
	}

	topic := e.topicFor(event.Type)
	if err := e.Publisher.Publish(ctx, topic, key, value); err != nil {
		e.Logger.Error("EVENTS", fmt.Sprintf("Failed to publish %s for %s: %v", event.Type, key, err))
	}
}

// Nop drops every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, []byte) error { return nil }
func (Nop) Close() error                                           { return nil }
