package lending

import "time"

// Fixed risk parameters of the engine. Amounts are in the smallest currency
// unit; the engine is single-asset by design.
const (
	MinLoanAmount   uint64 = 100
	MaxLoanAmount   uint64 = 1_000_000_000
	MaxLoanDuration        = 365 * 24 * time.Hour

	InitialCreditScore = 500
	MinCreditScore     = 300
	MaxCreditScore     = 850

	// Score delta applied per repayment outcome.
	OnTimeBonus = 10
	LatePenalty = 50

	MinRiskLevel = 1
	MaxRiskLevel = 100
)
