package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer request statuses. pending is the only non-terminal state.
const (
	TransferPending  = "pending"
	TransferApproved = "approved"
	TransferRejected = "rejected"
)

// TransferRequest is a member-submitted proposal to credit a box, reviewed
// by an admin or moderator. The status transition out of pending is one-way
// and single-shot.
type TransferRequest struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	BoxID      string          `json:"box_id" db:"box_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	ReceiptURL string          `json:"receipt_url" db:"receipt_url"`
	Notes      string          `json:"notes" db:"notes"`
	Status     string          `json:"status" db:"status"`
	ReviewedBy *string         `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
