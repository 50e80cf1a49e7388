package models

import "time"

// Loan represents an issued loan. Amounts are in the smallest currency unit.
// A loan is never deleted; once repaid it remains as an immutable audit record.
type Loan struct {
	ID       int64     `json:"id"`
	Borrower string    `json:"borrower"`
	Amount   uint64    `json:"amount"`
	PoolID   int64     `json:"pool_id"`
	DueDate  time.Time `json:"due_date"`
	Repaid   bool      `json:"repaid"`
	IssuedAt time.Time `json:"issued_at"`
}
