package models

import "time"

// CreditScore is a borrower's reputation record. A borrower with no record
// is treated as holding the initial score.
type CreditScore struct {
	Borrower  string    `json:"borrower"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}
