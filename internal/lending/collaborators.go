package lending

import "time"

// Clock supplies the current time for due-date computation and on-time
// evaluation.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FundTransfer moves money out of the engine: loan payouts and overpayment
// refunds. A returned error is fatal to the enclosing transaction.
//
// Implementations must not call back into the engine; the engine holds its
// transaction lock for the duration of the call.
type FundTransfer interface {
	Transfer(to string, amount uint64, kind string) error
}

// Notifier receives exactly one event per state transition. Events are
// emitted only after the transaction has committed, so observers never see
// rolled-back state.
type Notifier interface {
	Notify(event Event)
}

// Event kinds.
const (
	EventPoolCreated        = "pool_created"
	EventFundsAdded         = "funds_added"
	EventLoanCreated        = "loan_created"
	EventLoanRepaid         = "loan_repaid"
	EventCreditScoreUpdated = "credit_score_updated"
	EventLoanRejected       = "loan_request_rejected"
)

// Event is a structured notification about a committed state transition or a
// rejected loan request.
type Event struct {
	Kind     string    `json:"kind"`
	PoolID   int64     `json:"pool_id,omitempty"`
	LoanID   int64     `json:"loan_id,omitempty"`
	Borrower string    `json:"borrower,omitempty"`
	Amount   uint64    `json:"amount,omitempty"`
	Score    int       `json:"score,omitempty"`
	OnTime   bool      `json:"on_time,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}
