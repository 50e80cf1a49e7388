package models

import "time"

// Disbursement is a journaled outgoing payment: a loan payout or an
// overpayment refund.
type Disbursement struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	Recipient string    `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Kind      string    `json:"kind"`
	HMAC      string    `json:"hmac"`
	CreatedAt time.Time `json:"created_at"`
}

// Disbursement kinds.
const (
	DisbursementPayout = "payout"
	DisbursementRefund = "refund"
)
