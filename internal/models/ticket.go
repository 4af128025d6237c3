package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketPending   TicketStatus = "pending"
	TicketSold      TicketStatus = "sold"
	TicketDisputed  TicketStatus = "disputed"
	TicketCompleted TicketStatus = "completed"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket is a listing: one seller's claim of tickets for sale.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID             string          `bun:"id,pk" json:"id"`
	SellerID       string          `bun:"seller_id,notnull" json:"seller_id"`
	EventName      string          `bun:"event_name,notnull" json:"event_name"`
	EventDate      time.Time       `bun:"event_date,notnull" json:"event_date"`
	Venue          string          `bun:"venue,notnull" json:"venue"`
	OriginalPrice  decimal.Decimal `bun:"original_price,type:numeric(12,2),notnull" json:"original_price"`
	AskingPrice    decimal.Decimal `bun:"asking_price,type:numeric(12,2),notnull" json:"asking_price"`
	TicketType     string          `bun:"ticket_type,nullzero" json:"ticket_type"`
	Quantity       int             `bun:"quantity,notnull" json:"quantity"`
	TicketProofURL string          `bun:"ticket_proof_url,nullzero" json:"ticket_proof_url,omitempty"`
	Description    string          `bun:"description,nullzero" json:"description,omitempty"`
	Status         TicketStatus    `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time       `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketAvailable, TicketPending, TicketSold, TicketDisputed, TicketCompleted, TicketCancelled:
		return true
	}
	return false
}
