package lending

import (
	"fmt"
	"time"

	"github.com/poolfund/lending-service/internal/models"
)

// PoolBook owns all risk pools, keyed by sequential id starting at 0.
type PoolBook struct {
	pools []models.RiskPool
}

// NewPoolBook initializes an empty pool book
func NewPoolBook() *PoolBook {
	return &PoolBook{}
}

// Create registers a new pool and returns its id.
func (b *PoolBook) Create(riskLevel int, initialFunds uint64, now time.Time) (int64, error) {
	if riskLevel < MinRiskLevel || riskLevel > MaxRiskLevel {
		return 0, ErrInvalidRiskLevel
	}
	id := int64(len(b.pools))
	b.pools = append(b.pools, models.RiskPool{
		ID:             id,
		RiskLevel:      riskLevel,
		TotalFunds:     initialFunds,
		AvailableFunds: initialFunds,
		CreatedAt:      now,
	})
	return id, nil
}

// AddFunds increases both total and available funds of the pool.
func (b *PoolBook) AddFunds(poolID int64, amount uint64) error {
	if poolID < 0 || poolID >= int64(len(b.pools)) {
		return ErrPoolNotFound
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	b.pools[poolID].TotalFunds += amount
	b.pools[poolID].AvailableFunds += amount
	return nil
}

// FindBestPool scans all pools and returns the id of the one with sufficient
// available funds whose risk level is closest to the credit score. Ties go to
// the lowest id: a later candidate only wins under a strictly smaller
// distance. Returns false if no pool qualifies.
func (b *PoolBook) FindBestPool(creditScore int, amount uint64) (int64, bool) {
	bestID := int64(-1)
	bestDiff := 0
	for i := range b.pools {
		p := &b.pools[i]
		if p.AvailableFunds < amount {
			continue
		}
		diff := creditScore - p.RiskLevel
		if diff < 0 {
			diff = -diff
		}
		if bestID < 0 || diff < bestDiff {
			bestID = p.ID
			bestDiff = diff
		}
	}
	return bestID, bestID >= 0
}

// Reserve removes amount from the pool's available funds. The caller must
// have established sufficiency; a shortfall here is a broken precondition,
// not a business error.
func (b *PoolBook) Reserve(poolID int64, amount uint64) {
	p := &b.pools[poolID]
	if p.AvailableFunds < amount {
		panic(fmt.Sprintf("lending: reserve %d exceeds available %d in pool %d", amount, p.AvailableFunds, poolID))
	}
	p.AvailableFunds -= amount
}

// Release returns amount to the pool's available funds.
func (b *PoolBook) Release(poolID int64, amount uint64) {
	p := &b.pools[poolID]
	if p.AvailableFunds+amount > p.TotalFunds {
		panic(fmt.Sprintf("lending: release %d exceeds total %d in pool %d", amount, p.TotalFunds, poolID))
	}
	p.AvailableFunds += amount
}

// Get returns a copy of the pool record.
func (b *PoolBook) Get(poolID int64) (models.RiskPool, error) {
	if poolID < 0 || poolID >= int64(len(b.pools)) {
		return models.RiskPool{}, ErrPoolNotFound
	}
	return b.pools[poolID], nil
}

// All returns copies of every pool in id order.
func (b *PoolBook) All() []models.RiskPool {
	out := make([]models.RiskPool, len(b.pools))
	copy(out, b.pools)
	return out
}

// Count returns the number of pools ever created.
func (b *PoolBook) Count() int { return len(b.pools) }
