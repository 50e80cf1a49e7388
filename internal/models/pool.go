package models

import "time"

// RiskPool is a segregated capital reserve with a declared risk appetite.
// TotalFunds only ever grows; AvailableFunds never exceeds it.
type RiskPool struct {
	ID             int64     `json:"id"`
	RiskLevel      int       `json:"risk_level"`
	TotalFunds     uint64    `json:"total_funds"`
	AvailableFunds uint64    `json:"available_funds"`
	CreatedAt      time.Time `json:"created_at"`
}
