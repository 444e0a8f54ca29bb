package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/familyfund/backend/internal/audit"
	"github.com/familyfund/backend/internal/models"
)

// LedgerService owns the single balance-mutating code path. Every
// AccountActivity row is created here and nowhere else, inside the same
// SQL transaction that moves the balance.
type LedgerService struct {
	db    *sql.DB
	audit *audit.AuditLogger
}

const (
	maxApplyAttempts = 3
	applyBackoff     = 25 * time.Millisecond
)

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:    db,
		audit: audit.NewAuditLogger(),
	}
}

// ApplyActivity atomically updates the (user, box) balance and appends the
// ledger entry carrying the resulting balance snapshot. Concurrent calls on
// the same pair serialize on the balance row lock; a lost optimistic-version
// race is retried up to maxApplyAttempts times before returning
// ErrTransactionConflict.
func (s *LedgerService) ApplyActivity(ctx context.Context, userID, boxID, activityType string, amount decimal.Decimal, description string, relatedRequestID *string) (string, error) {
	if err := validateActivityInput(activityType, amount); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(applyBackoff * time.Duration(attempt))
		}

		activityID, err := s.applyOnce(ctx, userID, boxID, activityType, amount, description, relatedRequestID)
		if err == nil {
			return activityID, nil
		}
		if err != ErrTransactionConflict {
			s.audit.LogError(derefOrEmpty(relatedRequestID), userID, err)
			return "", err
		}

		log.Printf("[LEDGER] Balance write conflict for user %s box %s, attempt %d", userID, boxID, attempt+1)
		lastErr = err
	}

	s.audit.LogError(derefOrEmpty(relatedRequestID), userID, lastErr)
	return "", lastErr
}

func (s *LedgerService) applyOnce(ctx context.Context, userID, boxID, activityType string, amount decimal.Decimal, description string, relatedRequestID *string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	activityID, err := s.ApplyActivityTx(tx, userID, boxID, activityType, amount, description, relatedRequestID)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return activityID, nil
}

// ApplyActivityTx runs the balance mutation inside a caller-owned
// transaction so that approval of a transfer request can span the status
// write and the credit as one atomic unit. The caller commits or rolls back.
func (s *LedgerService) ApplyActivityTx(tx *sql.Tx, userID, boxID, activityType string, amount decimal.Decimal, description string, relatedRequestID *string) (string, error) {
	if err := validateActivityInput(activityType, amount); err != nil {
		return "", err
	}

	balance, version, err := s.lockBalance(tx, userID, boxID)
	if err != nil {
		return "", err
	}

	newBalance := balance.Add(amount)
	if activityType == models.ActivityWithdrawal {
		newBalance = balance.Sub(amount)
	}

	activityID := uuid.NewString()
	if err := s.createActivity(tx, activityID, userID, boxID, activityType, amount, newBalance, description, relatedRequestID); err != nil {
		return "", err
	}

	if err := s.updateBalance(tx, userID, boxID, newBalance, version); err != nil {
		return "", err
	}

	s.audit.LogActivity(activityID, userID, boxID, activityType, amount, newBalance)
	return activityID, nil
}

func validateActivityInput(activityType string, amount decimal.Decimal) error {
	if activityType != models.ActivityDeposit && activityType != models.ActivityWithdrawal {
		return fmt.Errorf("%w: unknown activity type %q", ErrValidation, activityType)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

func (s *LedgerService) lockBalance(tx *sql.Tx, userID, boxID string) (decimal.Decimal, int, error) {
	var balance decimal.Decimal
	var version int
	err := tx.QueryRow(`
		SELECT balance, version FROM balances
		WHERE user_id = $1 AND box_id = $2
		FOR UPDATE`, userID, boxID).Scan(&balance, &version)

	if err == sql.ErrNoRows {
		return decimal.Zero, 0, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, 0, err
	}
	return balance, version, nil
}

func (s *LedgerService) createActivity(tx *sql.Tx, activityID, userID, boxID, activityType string, amount, balance decimal.Decimal, description string, relatedRequestID *string) error {
	_, err := tx.Exec(`
		INSERT INTO account_activities (id, user_id, box_id, type, amount, balance, description, related_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		activityID, userID, boxID, activityType, amount, balance, description, relatedRequestID, time.Now())
	return err
}

func (s *LedgerService) updateBalance(tx *sql.Tx, userID, boxID string, newBalance decimal.Decimal, version int) error {
	result, err := tx.Exec(`
		UPDATE balances
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE user_id = $3 AND box_id = $4 AND version = $5`,
		newBalance, time.Now(), userID, boxID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrTransactionConflict
	}
	return nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
