package models

import (
	"time"
)

// Account roles
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// ValidRole reports whether role is one of the known account roles
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Account is a dashboard login. Identifier is a username or an email address.
type Account struct {
	ID           string
	Identifier   string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountView is the public projection of an Account. It never carries the hash.
type AccountView struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
}

// View returns the public projection of the account
func (a *Account) View() AccountView {
	return AccountView{
		ID:         a.ID,
		Identifier: a.Identifier,
		Role:       a.Role,
		CreatedAt:  a.CreatedAt,
	}
}

// Principal is the verified identity carried by a session token.
type Principal struct {
	AccountID string
	Role      string
}
