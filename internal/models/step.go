package models

// Step is the lifecycle position of a transaction. It is derived from the
// stored flags and never persisted.
type Step string

const (
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
	StepTicketSent   Step = "ticket_sent"
	StepCompleted    Step = "completed"
	StepDisputed     Step = "disputed"
)

// Terminal steps accept no further escrow transitions.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepDisputed
}

// DeriveStep maps the stored flag tuple onto exactly one Step.
// Refund wins over release, which wins over the delivery flags.
func DeriveStep(status PaymentStatus, sellerConfirmed, ticketSent bool) Step {
	switch {
	case status == PaymentRefunded:
		return StepDisputed
	case status == PaymentReleased:
		return StepCompleted
	case ticketSent:
		return StepTicketSent
	case sellerConfirmed:
		return StepConfirmation
	default:
		return StepPayment
	}
}

func (t *Transaction) Step() Step {
	return DeriveStep(t.PaymentStatus, t.SellerConfirmed, t.TicketSent)
}

func (t *Transaction) View() TransactionView {
	return TransactionView{Transaction: *t, Step: t.Step()}
}
