package models

// User represents a user in the system
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"` // Not serialized
	CreatedAt    string `json:"created_at"`
}

// Roles understood by the authorization middleware.
const (
	RoleBorrower = "borrower"
	RoleAdmin    = "admin"
)
