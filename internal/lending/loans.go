package lending

import (
	"time"

	"github.com/poolfund/lending-service/internal/models"
)

// LoanBook owns all loan records, keyed by sequential id starting at 0.
// Loans are never deleted; repaid loans stay as audit records.
type LoanBook struct {
	loans []models.Loan
}

// NewLoanBook initializes an empty loan book
func NewLoanBook() *LoanBook {
	return &LoanBook{}
}

// HasActiveLoan reports whether the borrower holds any loan not yet repaid.
// Linear scan over the full book; the audit trail is the source of truth, and
// a borrower index would be a pure optimization.
func (b *LoanBook) HasActiveLoan(borrower string) bool {
	for i := range b.loans {
		if b.loans[i].Borrower == borrower && !b.loans[i].Repaid {
			return true
		}
	}
	return false
}

// Create records a new outstanding loan and returns its id.
func (b *LoanBook) Create(borrower string, amount uint64, duration time.Duration, poolID int64, now time.Time) int64 {
	id := int64(len(b.loans))
	b.loans = append(b.loans, models.Loan{
		ID:       id,
		Borrower: borrower,
		Amount:   amount,
		PoolID:   poolID,
		DueDate:  now.Add(duration),
		Repaid:   false,
		IssuedAt: now,
	})
	return id
}

// MarkRepaid transitions the loan to its terminal state and reports whether
// repayment happened on or before the due date.
func (b *LoanBook) MarkRepaid(loanID int64, now time.Time) (bool, error) {
	if loanID < 0 || loanID >= int64(len(b.loans)) {
		return false, ErrLoanNotFound
	}
	loan := &b.loans[loanID]
	if loan.Repaid {
		return false, ErrAlreadyRepaid
	}
	loan.Repaid = true
	return !now.After(loan.DueDate), nil
}

// Get returns a copy of the loan record.
func (b *LoanBook) Get(loanID int64) (models.Loan, error) {
	if loanID < 0 || loanID >= int64(len(b.loans)) {
		return models.Loan{}, ErrLoanNotFound
	}
	return b.loans[loanID], nil
}

// Overdue returns copies of all active loans whose due date has passed.
func (b *LoanBook) Overdue(now time.Time) []models.Loan {
	var out []models.Loan
	for i := range b.loans {
		if !b.loans[i].Repaid && now.After(b.loans[i].DueDate) {
			out = append(out, b.loans[i])
		}
	}
	return out
}

// Count returns the number of loans ever issued.
func (b *LoanBook) Count() int { return len(b.loans) }

// dropLast removes the most recently created loan. Used only to roll back a
// transaction that failed after Create.
func (b *LoanBook) dropLast() {
	b.loans = b.loans[:len(b.loans)-1]
}

// unmarkRepaid reverts MarkRepaid during a rollback.
func (b *LoanBook) unmarkRepaid(loanID int64) {
	b.loans[loanID].Repaid = false
}
