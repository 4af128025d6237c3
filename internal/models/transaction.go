package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentHeld     PaymentStatus = "held"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
)

// Terminal reports whether funds have left escrow in either direction.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentReleased || s == PaymentRefunded
}

// Transaction is a single buyer's attempt to acquire one listing.
// Amount and PlatformFee are fixed at creation and never updated.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID              string          `bun:"id,pk" json:"id"`
	TicketID        string          `bun:"ticket_id,notnull" json:"ticket_id"`
	BuyerID         string          `bun:"buyer_id,notnull" json:"buyer_id"`
	SellerID        string          `bun:"seller_id,notnull" json:"seller_id"`
	Amount          decimal.Decimal `bun:"amount,type:numeric(12,2),notnull" json:"amount"`
	PlatformFee     decimal.Decimal `bun:"platform_fee,type:numeric(12,2),notnull" json:"platform_fee"`
	PaymentStatus   PaymentStatus   `bun:"payment_status,notnull" json:"payment_status"`
	PaymentProofURL string          `bun:"payment_proof_url,nullzero" json:"payment_proof_url,omitempty"`
	SellerConfirmed bool            `bun:"seller_confirmed,notnull" json:"seller_confirmed"`
	TicketSent      bool            `bun:"ticket_sent,notnull" json:"ticket_sent"`
	TicketSentAt    *time.Time      `bun:"ticket_sent_at,nullzero" json:"ticket_sent_at,omitempty"`
	CreatedAt       time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// IsParticipant reports whether userID is the buyer or the seller.
func (t *Transaction) IsParticipant(userID string) bool {
	return userID != "" && (t.BuyerID == userID || t.SellerID == userID)
}

// TransactionView is a transaction with its derived step, as returned to clients.
type TransactionView struct {
	Transaction
	Step   Step    `json:"step"`
	Ticket *Ticket `json:"ticket,omitempty"`
}
