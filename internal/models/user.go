package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

type User struct {
	ID        string                     `json:"id" example:"7b9e1c2a-45f0-4c57-9e1d-0a4c8f2b6d31"` // User ID
	Email     string                     `json:"email" example:"user@example.com"`                   // User email
	Name      string                     `json:"name" example:"Sarah Cohen"`                         // Display name
	Role      string                     `json:"role" example:"member"`                              // admin, moderator or member
	Boxes     []string                   `json:"boxes"`                                              // Box memberships
	Balances  map[string]decimal.Decimal `json:"balances,omitempty"`                                 // Per-box running balance
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// Balance is one row of the per-user per-box balance table.
// Version is bumped on every write and checked for optimistic locking.
type Balance struct {
	UserID    string          `json:"user_id" db:"user_id"`
	BoxID     string          `json:"box_id" db:"box_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int             `json:"version" db:"version"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// IsReviewerRole reports whether the role may review transfer requests
// and record manual activities.
func IsReviewerRole(role string) bool {
	return role == RoleAdmin || role == RoleModerator
}
