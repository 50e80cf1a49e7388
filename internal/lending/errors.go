package lending

import "errors"

// Business rejections. The messages are the reason strings reported to
// callers and carried on rejection events.
var (
	ErrAmountOutOfBounds     = errors.New("amount out of bounds")
	ErrInvalidDuration       = errors.New("invalid duration")
	ErrCreditScoreTooLow     = errors.New("credit score too low")
	ErrActiveLoanExists      = errors.New("already has active loan")
	ErrNoSuitablePool        = errors.New("no suitable pool")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrLoanNotFound          = errors.New("loan does not exist")
	ErrNotBorrower           = errors.New("only borrower can repay")
	ErrAlreadyRepaid         = errors.New("loan already repaid")
	ErrInsufficientRepayment = errors.New("insufficient repayment")
	ErrInvalidRiskLevel      = errors.New("risk level out of range")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrFundsMismatch         = errors.New("attached funds mismatch")
)

// Fatal conditions. These abort the whole transaction with no partial state
// retained.
var (
	ErrTransferFailed = errors.New("fund transfer failed")
	ErrRefundFailed   = errors.New("refund transfer failed")
	ErrReentrantCall  = errors.New("reentrant engine call")
)

// IsFatal reports whether err belongs to the fatal class rather than being a
// business rejection.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrRefundFailed) ||
		errors.Is(err, ErrReentrantCall)
}
