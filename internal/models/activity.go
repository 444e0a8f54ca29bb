package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Activity types
const (
	ActivityDeposit    = "deposit"
	ActivityWithdrawal = "withdrawal"
)

// AccountActivity is an immutable ledger entry. Balance is the running
// balance of the (user, box) pair immediately after this entry was applied;
// it is a point-in-time snapshot and is never recomputed on read.
type AccountActivity struct {
	ID               string          `json:"id" db:"id"`
	UserID           string          `json:"user_id" db:"user_id"`
	BoxID            string          `json:"box_id" db:"box_id"`
	Type             string          `json:"type" db:"type"` // deposit or withdrawal
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Balance          decimal.Decimal `json:"balance" db:"balance"`
	Description      string          `json:"description" db:"description"`
	RelatedRequestID *string         `json:"related_request_id,omitempty" db:"related_request_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// ActivitySummary is one bucket of the monthly aggregation view.
type ActivitySummary struct {
	Month       string          `json:"month" example:"2026-08"`
	Deposits    decimal.Decimal `json:"deposits"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
}
