package escrow

import (
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

type Action string

const (
	ActionSubmitPayment  Action = "submit_payment"
	ActionConfirmReceipt Action = "confirm_receipt"
	ActionMarkTicketSent Action = "mark_ticket_sent"
	ActionComplete       Action = "complete"
)

// Rule is one row of the transition table.
type Rule struct {
	Action Action
	Actor  Role
	From   models.Step
	// Payment lists the payment statuses the action accepts; empty means any.
	Payment []models.PaymentStatus
	// Cascade is the listing status written with the transition, if any.
	Cascade models.TicketStatus
	// Frozen actions are refused while a dispute is open.
	Frozen bool
	Effect func(t *models.Transaction, now time.Time) []string
}

var rules = map[Action]Rule{
	ActionSubmitPayment: {
		Action:  ActionSubmitPayment,
		Actor:   RoleBuyer,
		From:    models.StepPayment,
		Payment: []models.PaymentStatus{models.PaymentPending, models.PaymentPaid},
		Effect: func(t *models.Transaction, now time.Time) []string {
			t.PaymentStatus = models.PaymentPaid
			t.UpdatedAt = now
			return []string{"payment_status", "updated_at"}
		},
	},
	ActionConfirmReceipt: {
		Action:  ActionConfirmReceipt,
		Actor:   RoleSeller,
		From:    models.StepPayment,
		Payment: []models.PaymentStatus{models.PaymentPending, models.PaymentPaid},
		Frozen:  true,
		Effect: func(t *models.Transaction, now time.Time) []string {
			t.SellerConfirmed = true
			t.UpdatedAt = now
			return []string{"seller_confirmed", "updated_at"}
		},
	},
	ActionMarkTicketSent: {
		Action:  ActionMarkTicketSent,
		Actor:   RoleSeller,
		From:    models.StepConfirmation,
		Cascade: models.TicketSold,
		Frozen:  true,
		Effect: func(t *models.Transaction, now time.Time) []string {
			t.TicketSent = true
			sentAt := now
			t.TicketSentAt = &sentAt
			t.UpdatedAt = now
			return []string{"ticket_sent", "ticket_sent_at", "updated_at"}
		},
	},
	ActionComplete: {
		Action:  ActionComplete,
		Actor:   RoleBuyer,
		From:    models.StepTicketSent,
		Cascade: models.TicketCompleted,
		Frozen:  true,
		Effect: func(t *models.Transaction, now time.Time) []string {
			t.PaymentStatus = models.PaymentReleased
			t.UpdatedAt = now
			return []string{"payment_status", "updated_at"}
		},
	},
}

// RoleOf reports which side of the transaction userID is on.
func RoleOf(t *models.Transaction, userID string) (Role, bool) {
	switch {
	case userID == "":
		return "", false
	case t.BuyerID == userID:
		return RoleBuyer, true
	case t.SellerID == userID:
		return RoleSeller, true
	}
	return "", false
}

// Transition looks up action and checks that actorID may take it from the
// transaction's current step. Wrong actor is a permission error, wrong step a
// state conflict.
func Transition(action Action, t *models.Transaction, actorID string) (Rule, error) {
	rule, ok := rules[action]
	if !ok {
		return Rule{}, apperr.Validation("unknown action %q", action)
	}

	role, ok := RoleOf(t, actorID)
	if !ok || role != rule.Actor {
		return Rule{}, apperr.Permission("only the %s can %s", rule.Actor, humanize(action))
	}

	if step := t.Step(); step != rule.From {
		return Rule{}, apperr.StateConflict("cannot %s while transaction is at step %s", humanize(action), step)
	}

	if len(rule.Payment) > 0 && !containsStatus(rule.Payment, t.PaymentStatus) {
		return Rule{}, apperr.StateConflict("cannot %s while payment is %s", humanize(action), t.PaymentStatus)
	}
	return rule, nil
}

// Apply returns the transaction after the rule's effect and the columns it changed.
func (r Rule) Apply(t models.Transaction, now time.Time) (models.Transaction, []string) {
	cols := r.Effect(&t, now)
	return t, cols
}

func containsStatus(list []models.PaymentStatus, s models.PaymentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func humanize(a Action) string {
	switch a {
	case ActionSubmitPayment:
		return "submit payment proof"
	case ActionConfirmReceipt:
		return "confirm payment receipt"
	case ActionMarkTicketSent:
		return "mark the ticket sent"
	case ActionComplete:
		return "complete the transaction"
	}
	return string(a)
}
