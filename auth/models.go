package auth

import "time"

// Role classifies what a party may do through the API.
type Role string

const (
	RoleParty   Role = "party"
	RoleArbiter Role = "arbiter"
	RoleAdmin   Role = "admin"
)

// Party is the domain representation of an authenticated account. It mirrors
// the parties table and carries no JSON annotations so it can be reused by
// different presentation layers.
type Party struct {
	ID           string
	Address      string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        Role   `json:"role"`
}

// LoginRequest contains login credentials. Accounts log in with the wallet
// address they registered.
type LoginRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}
