package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolfund/lending-service/internal/models"
)

func TestRequestRepayRoundTripRestoresPoolFunds(t *testing.T) {
	rig := newTestRig()
	pool, err := rig.engine.CreatePool(40, 1000, attached(1000))
	require.NoError(t, err)

	loan, err := rig.engine.RequestLoan("alice", 300, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loan.ID)
	assert.Equal(t, pool.ID, loan.PoolID)

	mid, err := rig.engine.Pool(pool.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), mid.AvailableFunds)
	assert.Equal(t, uint64(1000), mid.TotalFunds)

	receipt, err := rig.engine.RepayLoan(loan.ID, "alice", 300)
	require.NoError(t, err)
	assert.True(t, receipt.OnTime)
	assert.Zero(t, receipt.Refund)
	assert.Equal(t, 510, receipt.NewScore)

	after, err := rig.engine.Pool(pool.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), after.AvailableFunds)
	assert.Equal(t, uint64(1000), after.TotalFunds)

	require.Len(t, rig.transfer.calls, 1)
	assert.Equal(t, transferCall{to: "alice", amount: 300, kind: models.DisbursementPayout}, rig.transfer.calls[0])
}

func TestRequestLoanValidationOrder(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)

	_, err = rig.engine.RequestLoan("alice", MinLoanAmount-1, time.Hour)
	assert.ErrorIs(t, err, ErrAmountOutOfBounds)
	_, err = rig.engine.RequestLoan("alice", MaxLoanAmount+1, time.Hour)
	assert.ErrorIs(t, err, ErrAmountOutOfBounds)
	_, err = rig.engine.RequestLoan("alice", 500, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = rig.engine.RequestLoan("alice", 500, MaxLoanDuration+time.Second)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = rig.engine.RequestLoan("alice", 2000, time.Hour)
	assert.ErrorIs(t, err, ErrNoSuitablePool)

	// No loan was created and no funds moved.
	pool, _ := rig.engine.Pool(0)
	assert.Equal(t, uint64(1000), pool.AvailableFunds)
	_, err = rig.engine.Loan(0)
	assert.ErrorIs(t, err, ErrLoanNotFound)
	assert.Empty(t, rig.transfer.calls)
}

func TestRequestLoanRejectsSecondActiveLoan(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)

	_, err = rig.engine.RequestLoan("alice", 200, time.Hour)
	require.NoError(t, err)
	_, err = rig.engine.RequestLoan("alice", 200, time.Hour)
	assert.ErrorIs(t, err, ErrActiveLoanExists)

	// Bob is unaffected by alice's loan.
	_, err = rig.engine.RequestLoan("bob", 200, time.Hour)
	assert.NoError(t, err)
}

func TestRejectedRequestLeavesStateUntouchedAndEmitsReason(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)
	rig.notifier.events = nil

	_, err = rig.engine.RequestLoan("alice", 10, time.Hour)
	require.ErrorIs(t, err, ErrAmountOutOfBounds)

	require.Len(t, rig.notifier.events, 1)
	ev := rig.notifier.events[0]
	assert.Equal(t, EventLoanRejected, ev.Kind)
	assert.Equal(t, "amount out of bounds", ev.Reason)
	assert.Equal(t, "alice", ev.Borrower)

	pool, _ := rig.engine.Pool(0)
	assert.Equal(t, uint64(1000), pool.AvailableFunds)
	assert.Equal(t, uint64(1000), pool.TotalFunds)
}

func TestRequestLoanRollsBackOnTransferFailure(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)
	rig.transfer.fail = true

	_, err = rig.engine.RequestLoan("alice", 300, time.Hour)
	require.ErrorIs(t, err, ErrTransferFailed)

	pool, _ := rig.engine.Pool(0)
	assert.Equal(t, uint64(1000), pool.AvailableFunds)
	_, err = rig.engine.Loan(0)
	assert.ErrorIs(t, err, ErrLoanNotFound)
	assert.False(t, rig.engine.HasActiveLoan("alice"))

	// The id is reused by the next successful request.
	rig.transfer.fail = false
	loan, err := rig.engine.RequestLoan("alice", 300, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loan.ID)
}

func TestRepayLoanValidations(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)
	loan, err := rig.engine.RequestLoan("alice", 300, time.Hour)
	require.NoError(t, err)

	_, err = rig.engine.RepayLoan(42, "alice", 300)
	assert.ErrorIs(t, err, ErrLoanNotFound)
	_, err = rig.engine.RepayLoan(loan.ID, "mallory", 300)
	assert.ErrorIs(t, err, ErrNotBorrower)
	_, err = rig.engine.RepayLoan(loan.ID, "alice", 299)
	assert.ErrorIs(t, err, ErrInsufficientRepayment)

	_, err = rig.engine.RepayLoan(loan.ID, "alice", 300)
	require.NoError(t, err)
	_, err = rig.engine.RepayLoan(loan.ID, "alice", 300)
	assert.ErrorIs(t, err, ErrAlreadyRepaid)
}

func TestLateRepaymentLowersScore(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)
	loan, err := rig.engine.RequestLoan("alice", 300, time.Hour)
	require.NoError(t, err)

	rig.clock.Advance(2 * time.Hour)
	receipt, err := rig.engine.RepayLoan(loan.ID, "alice", 300)
	require.NoError(t, err)
	assert.False(t, receipt.OnTime)
	assert.Equal(t, 450, receipt.NewScore)
	assert.Equal(t, 450, rig.engine.Score("alice"))
}

func TestOverpaymentRefundsExcessOnly(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)
	loan, err := rig.engine.RequestLoan("alice", 300, time.Hour)
	require.NoError(t, err)

	receipt, err := rig.engine.RepayLoan(loan.ID, "alice", 302)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), receipt.Refund)
	assert.True(t, receipt.Loan.Repaid)

	// Pool regains the principal, not the paid amount.
	pool, _ := rig.engine.Pool(0)
	assert.Equal(t, uint64(1000), pool.AvailableFunds)

	require.Len(t, rig.transfer.calls, 2)
	assert.Equal(t, transferCall{to: "alice", amount: 2, kind: models.DisbursementRefund}, rig.transfer.calls[1])
}

func TestRepayLoanRollsBackOnRefundFailure(t *testing.T) {
	rig := newTestRig()
	_, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)
	loan, err := rig.engine.RequestLoan("alice", 300, time.Hour)
	require.NoError(t, err)
	rig.transfer.failOn = models.DisbursementRefund

	_, err = rig.engine.RepayLoan(loan.ID, "alice", 302)
	require.ErrorIs(t, err, ErrRefundFailed)

	// Everything is as before the call: loan active, funds reserved, score
	// untouched.
	got, err := rig.engine.Loan(loan.ID)
	require.NoError(t, err)
	assert.False(t, got.Repaid)
	pool, _ := rig.engine.Pool(0)
	assert.Equal(t, uint64(700), pool.AvailableFunds)
	assert.Equal(t, InitialCreditScore, rig.engine.Score("alice"))
	assert.True(t, rig.engine.HasActiveLoan("alice"))
}

func TestCreatePoolAndAddFundsAttachmentChecks(t *testing.T) {
	rig := newTestRig()

	_, err := rig.engine.CreatePool(0, 100, nil)
	assert.ErrorIs(t, err, ErrInvalidRiskLevel)
	_, err = rig.engine.CreatePool(50, 100, attached(99))
	assert.ErrorIs(t, err, ErrFundsMismatch)

	pool, err := rig.engine.CreatePool(50, 100, attached(100))
	require.NoError(t, err)

	assert.ErrorIs(t, rig.engine.AddFunds(42, 10, nil), ErrPoolNotFound)
	assert.ErrorIs(t, rig.engine.AddFunds(pool.ID, 0, nil), ErrZeroAmount)
	assert.ErrorIs(t, rig.engine.AddFunds(pool.ID, 10, attached(9)), ErrFundsMismatch)

	require.NoError(t, rig.engine.AddFunds(pool.ID, 10, attached(10)))
	got, _ := rig.engine.Pool(pool.ID)
	assert.Equal(t, uint64(110), got.TotalFunds)
	assert.Equal(t, uint64(110), got.AvailableFunds)
}

func TestEngineEmitsOneEventPerTransition(t *testing.T) {
	rig := newTestRig()
	pool, err := rig.engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)
	require.NoError(t, rig.engine.AddFunds(pool.ID, 100, nil))
	loan, err := rig.engine.RequestLoan("alice", 300, time.Hour)
	require.NoError(t, err)
	_, err = rig.engine.RepayLoan(loan.ID, "alice", 300)
	require.NoError(t, err)

	assert.Equal(t, []string{
		EventPoolCreated,
		EventFundsAdded,
		EventLoanCreated,
		EventLoanRepaid,
		EventCreditScoreUpdated,
	}, rig.notifier.kinds())
}

// reenteringTransfer tries to call back into the engine mid-transaction.
type reenteringTransfer struct {
	engine *Engine
	inner  error
}

func (t *reenteringTransfer) Transfer(to string, amount uint64, kind string) error {
	_, t.inner = t.engine.RequestLoan(to, amount, time.Hour)
	return nil
}

func TestEngineRejectsReentrantCalls(t *testing.T) {
	transfer := &reenteringTransfer{}
	engine := NewEngine(transfer, newManualClock(), &recordingNotifier{})
	transfer.engine = engine

	_, err := engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)

	_, err = engine.RequestLoan("alice", 300, time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, transfer.inner, ErrReentrantCall)

	// Only the outer request landed.
	assert.Equal(t, int64(1), mustLoanCount(t, engine))
}

func mustLoanCount(t *testing.T, engine *Engine) int64 {
	t.Helper()
	var n int64
	for {
		if _, err := engine.Loan(n); err != nil {
			return n
		}
		n++
	}
}

// blockingTransfer parks inside Transfer until released, holding the engine
// mid-transaction.
type blockingTransfer struct {
	started chan struct{}
	release chan struct{}
}

func (t *blockingTransfer) Transfer(to string, amount uint64, kind string) error {
	t.started <- struct{}{}
	<-t.release
	return nil
}

func TestConcurrentCallersQueueBehindInFlightTransaction(t *testing.T) {
	transfer := &blockingTransfer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := NewEngine(transfer, newManualClock(), &recordingNotifier{})
	_, err := engine.CreatePool(50, 1000, nil)
	require.NoError(t, err)

	loanErr := make(chan error, 1)
	go func() {
		_, err := engine.RequestLoan("alice", 300, time.Hour)
		loanErr <- err
	}()
	<-transfer.started

	// A different caller arriving mid-transfer must wait its turn, not fail.
	fundsErr := make(chan error, 1)
	go func() {
		fundsErr <- engine.AddFunds(0, 10, nil)
	}()

	select {
	case err := <-fundsErr:
		t.Fatalf("AddFunds finished while the transaction was still in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(transfer.release)
	require.NoError(t, <-loanErr)
	require.NoError(t, <-fundsErr)

	pool, err := engine.Pool(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), pool.TotalFunds)
	assert.Equal(t, uint64(710), pool.AvailableFunds)
}

func TestPoolInvariantHoldsAcrossWorkflows(t *testing.T) {
	rig := newTestRig()
	pool, err := rig.engine.CreatePool(60, 500, nil)
	require.NoError(t, err)

	check := func() {
		p, err := rig.engine.Pool(pool.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, p.AvailableFunds, p.TotalFunds)
	}

	loan, err := rig.engine.RequestLoan("alice", 400, time.Hour)
	require.NoError(t, err)
	check()
	require.NoError(t, rig.engine.AddFunds(pool.ID, 50, nil))
	check()
	_, err = rig.engine.RepayLoan(loan.ID, "alice", 450)
	require.NoError(t, err)
	check()
}
