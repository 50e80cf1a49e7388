package lending

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poolfund/lending-service/internal/models"
)

// Engine orchestrates the loan request and repayment workflows over the three
// books it owns. Every mutating call runs as a serialized, single-writer
// transaction: it either commits fully or leaves no trace. Read accessors may
// run concurrently with each other but never with a mutation.
type Engine struct {
	mu     sync.RWMutex
	holder atomic.Uint64

	scores *ScoreBook
	pools  *PoolBook
	loans  *LoanBook

	transfer FundTransfer
	clock    Clock
	notifier Notifier
}

// Receipt summarizes a committed repayment.
type Receipt struct {
	Loan     models.Loan `json:"loan"`
	OnTime   bool        `json:"on_time"`
	Refund   uint64      `json:"refund"`
	NewScore int         `json:"new_score"`
}

// NewEngine constructs an engine wired to its external collaborators.
func NewEngine(transfer FundTransfer, clock Clock, notifier Notifier) *Engine {
	return &Engine{
		scores:   NewScoreBook(),
		pools:    NewPoolBook(),
		loans:    NewLoanBook(),
		transfer: transfer,
		clock:    clock,
		notifier: notifier,
	}
}

// begin opens a mutating transaction. Independent callers queue on the lock;
// only a call from the goroutine already holding a transaction (a
// collaborator calling back in) fails fast instead of deadlocking.
func (e *Engine) begin() error {
	gid := goroutineID()
	if e.holder.Load() == gid {
		return ErrReentrantCall
	}
	e.mu.Lock()
	e.holder.Store(gid)
	return nil
}

func (e *Engine) end() {
	e.holder.Store(0)
	e.mu.Unlock()
}

// goroutineID parses the current goroutine's id from the stack header
// ("goroutine 123 [running]:"). Goroutine ids start at 1, so 0 means no
// transaction holder.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("lending: unexpected stack header %q", buf[:n]))
	}
	return id
}

func (e *Engine) emit(ev Event) {
	if e.notifier != nil {
		e.notifier.Notify(ev)
	}
}

// CreatePool registers a new capital pool. The caller is responsible for
// authorization; the engine only validates the funding claim: if a payment is
// attached it must equal the declared initial funds.
func (e *Engine) CreatePool(riskLevel int, initialFunds uint64, attached *uint64) (models.RiskPool, error) {
	if err := e.begin(); err != nil {
		return models.RiskPool{}, err
	}
	defer e.end()

	now := e.clock.Now()
	if riskLevel < MinRiskLevel || riskLevel > MaxRiskLevel {
		return models.RiskPool{}, ErrInvalidRiskLevel
	}
	if attached != nil && *attached != initialFunds {
		return models.RiskPool{}, ErrFundsMismatch
	}
	id, err := e.pools.Create(riskLevel, initialFunds, now)
	if err != nil {
		return models.RiskPool{}, err
	}
	pool, _ := e.pools.Get(id)
	e.emit(Event{Kind: EventPoolCreated, PoolID: id, Amount: initialFunds, At: now})
	return pool, nil
}

// AddFunds tops up an existing pool, growing both total and available funds.
func (e *Engine) AddFunds(poolID int64, amount uint64, attached *uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	now := e.clock.Now()
	if _, err := e.pools.Get(poolID); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if attached != nil && *attached != amount {
		return ErrFundsMismatch
	}
	if err := e.pools.AddFunds(poolID, amount); err != nil {
		return err
	}
	e.emit(Event{Kind: EventFundsAdded, PoolID: poolID, Amount: amount, At: now})
	return nil
}

// RequestLoan validates the request, matches it to the best-fit pool,
// reserves funds, records the loan and pays out. The payout happens last so
// a transfer failure can unwind the reservation and the loan record,
// leaving the books exactly as they were.
func (e *Engine) RequestLoan(borrower string, amount uint64, duration time.Duration) (models.Loan, error) {
	if err := e.begin(); err != nil {
		return models.Loan{}, err
	}
	defer e.end()

	now := e.clock.Now()
	reject := func(reason error) (models.Loan, error) {
		e.emit(Event{Kind: EventLoanRejected, Borrower: borrower, Amount: amount, Reason: reason.Error(), At: now})
		return models.Loan{}, reason
	}

	if amount < MinLoanAmount || amount > MaxLoanAmount {
		return reject(ErrAmountOutOfBounds)
	}
	if duration <= 0 || duration > MaxLoanDuration {
		return reject(ErrInvalidDuration)
	}
	score := e.scores.Get(borrower)
	if score < MinCreditScore {
		return reject(ErrCreditScoreTooLow)
	}
	if e.loans.HasActiveLoan(borrower) {
		return reject(ErrActiveLoanExists)
	}
	poolID, ok := e.pools.FindBestPool(score, amount)
	if !ok {
		return reject(ErrNoSuitablePool)
	}
	// Defensive re-check; under serialized transactions this cannot diverge
	// from the FindBestPool filter.
	pool, _ := e.pools.Get(poolID)
	if pool.AvailableFunds < amount {
		return reject(ErrInsufficientFunds)
	}

	e.pools.Reserve(poolID, amount)
	loanID := e.loans.Create(borrower, amount, duration, poolID, now)
	if err := e.transfer.Transfer(borrower, amount, models.DisbursementPayout); err != nil {
		e.loans.dropLast()
		e.pools.Release(poolID, amount)
		return models.Loan{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	loan, _ := e.loans.Get(loanID)
	e.emit(Event{Kind: EventLoanCreated, LoanID: loanID, PoolID: poolID, Borrower: borrower, Amount: amount, At: now})
	return loan, nil
}

// RepayLoan settles an outstanding loan. Any amount above the principal is
// refunded to the borrower; a failed refund unwinds the whole repayment so no
// funds go unaccounted.
func (e *Engine) RepayLoan(loanID int64, borrower string, paidAmount uint64) (Receipt, error) {
	if err := e.begin(); err != nil {
		return Receipt{}, err
	}
	defer e.end()

	now := e.clock.Now()
	loan, err := e.loans.Get(loanID)
	if err != nil {
		return Receipt{}, err
	}
	if loan.Borrower != borrower {
		return Receipt{}, ErrNotBorrower
	}
	if loan.Repaid {
		return Receipt{}, ErrAlreadyRepaid
	}
	if paidAmount < loan.Amount {
		return Receipt{}, ErrInsufficientRepayment
	}

	onTime, err := e.loans.MarkRepaid(loanID, now)
	if err != nil {
		return Receipt{}, err
	}
	e.pools.Release(loan.PoolID, loan.Amount)
	prevScore, hadScore := e.scores.snapshot(borrower)
	newScore := e.scores.RecordOutcome(borrower, onTime, now)

	refund := paidAmount - loan.Amount
	if refund > 0 {
		if err := e.transfer.Transfer(borrower, refund, models.DisbursementRefund); err != nil {
			e.scores.restore(borrower, prevScore, hadScore)
			e.pools.Reserve(loan.PoolID, loan.Amount)
			e.loans.unmarkRepaid(loanID)
			return Receipt{}, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
	}

	repaid, _ := e.loans.Get(loanID)
	e.emit(Event{Kind: EventLoanRepaid, LoanID: loanID, PoolID: loan.PoolID, Borrower: borrower, Amount: loan.Amount, OnTime: onTime, At: now})
	e.emit(Event{Kind: EventCreditScoreUpdated, Borrower: borrower, Score: newScore, OnTime: onTime, At: now})
	return Receipt{Loan: repaid, OnTime: onTime, Refund: refund, NewScore: newScore}, nil
}

// Score returns the borrower's current credit score.
func (e *Engine) Score(borrower string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scores.Get(borrower)
}

// Loan returns the loan with the given id.
func (e *Engine) Loan(loanID int64) (models.Loan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loans.Get(loanID)
}

// Pool returns the pool with the given id.
func (e *Engine) Pool(poolID int64) (models.RiskPool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pools.Get(poolID)
}

// Pools returns all pools in id order.
func (e *Engine) Pools() []models.RiskPool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pools.All()
}

// HasActiveLoan reports whether the borrower has an outstanding loan.
func (e *Engine) HasActiveLoan(borrower string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loans.HasActiveLoan(borrower)
}

// OverdueLoans returns all active loans past their due date.
func (e *Engine) OverdueLoans(now time.Time) []models.Loan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loans.Overdue(now)
}
