package lending

import (
	"time"

	"github.com/poolfund/lending-service/internal/models"
)

// ScoreBook owns all credit score records. A borrower with no record holds
// InitialCreditScore; records are created on first write and never deleted.
type ScoreBook struct {
	scores map[string]models.CreditScore
}

// NewScoreBook initializes an empty score book
func NewScoreBook() *ScoreBook {
	return &ScoreBook{scores: make(map[string]models.CreditScore)}
}

// Get returns the borrower's score without side effects.
func (b *ScoreBook) Get(borrower string) int {
	if rec, ok := b.scores[borrower]; ok {
		return rec.Score
	}
	return InitialCreditScore
}

// RecordOutcome applies a repayment outcome and returns the new score.
// Each call is a discrete economic event: two identical outcomes produce two
// deltas.
func (b *ScoreBook) RecordOutcome(borrower string, onTime bool, now time.Time) int {
	score := b.Get(borrower)
	if onTime {
		score += OnTimeBonus
		if score > MaxCreditScore {
			score = MaxCreditScore
		}
	} else {
		score -= LatePenalty
		if score < MinCreditScore {
			score = MinCreditScore
		}
	}
	b.scores[borrower] = models.CreditScore{Borrower: borrower, Score: score, UpdatedAt: now}
	return score
}

// snapshot returns the stored record, if any, for rollback purposes.
func (b *ScoreBook) snapshot(borrower string) (models.CreditScore, bool) {
	rec, ok := b.scores[borrower]
	return rec, ok
}

// restore puts back a snapshot taken before a failed transaction.
func (b *ScoreBook) restore(borrower string, rec models.CreditScore, existed bool) {
	if existed {
		b.scores[borrower] = rec
	} else {
		delete(b.scores, borrower)
	}
}
