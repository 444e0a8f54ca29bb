package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/familyfund/backend/internal/models"
)

func expectBalanceLock(mock sqlmock.Sqlmock, userID, boxID, balance string, version int) {
	mock.ExpectQuery("SELECT balance, version FROM balances WHERE user_id = \\$1 AND box_id = \\$2 FOR UPDATE").
		WithArgs(userID, boxID).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(balance, version))
}

func TestLedgerService_ApplyActivity(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)
	ctx := context.Background()

	t.Run("deposit updates balance and appends activity", func(t *testing.T) {
		userID := "user1"
		boxID := "1"
		amount := decimal.NewFromInt(50)

		mock.ExpectBegin()
		expectBalanceLock(mock, userID, boxID, "100", 1)

		mock.ExpectExec("INSERT INTO account_activities").
			WithArgs(sqlmock.AnyArg(), userID, boxID, models.ActivityDeposit, amount,
				decimal.NewFromInt(150), "Monthly payment", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE balances SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE user_id = \\$3 AND box_id = \\$4 AND version = \\$5").
			WithArgs(decimal.NewFromInt(150), sqlmock.AnyArg(), userID, boxID, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		activityID, err := service.ApplyActivity(ctx, userID, boxID, models.ActivityDeposit, amount, "Monthly payment", nil)
		assert.NoError(t, err)
		assert.NotEmpty(t, activityID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal decreases balance", func(t *testing.T) {
		userID := "user1"
		boxID := "2"
		amount := decimal.NewFromInt(30)

		mock.ExpectBegin()
		expectBalanceLock(mock, userID, boxID, "100", 3)

		mock.ExpectExec("INSERT INTO account_activities").
			WithArgs(sqlmock.AnyArg(), userID, boxID, models.ActivityWithdrawal, amount,
				decimal.NewFromInt(70), "Family trip", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE balances").
			WithArgs(decimal.NewFromInt(70), sqlmock.AnyArg(), userID, boxID, 3).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		_, err := service.ApplyActivity(ctx, userID, boxID, models.ActivityWithdrawal, amount, "Family trip", nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing balance row fails with not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance, version FROM balances").
			WithArgs("ghost", "1").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}))
		mock.ExpectRollback()

		_, err := service.ApplyActivity(ctx, "ghost", "1", models.ActivityDeposit, decimal.NewFromInt(10), "x", nil)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version conflict is retried and succeeds", func(t *testing.T) {
		userID := "user1"
		boxID := "1"
		amount := decimal.NewFromInt(20)

		// First attempt reads a balance that a concurrent writer bumps
		// before the version check lands.
		mock.ExpectBegin()
		expectBalanceLock(mock, userID, boxID, "100", 1)
		mock.ExpectExec("INSERT INTO account_activities").
			WithArgs(sqlmock.AnyArg(), userID, boxID, models.ActivityDeposit, amount,
				decimal.NewFromInt(120), "Deposit", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE balances").
			WithArgs(decimal.NewFromInt(120), sqlmock.AnyArg(), userID, boxID, 1).
			WillReturnResult(sqlmock.NewResult(1, 0))
		mock.ExpectRollback()

		// Retry sees the committed concurrent deposit of 20 on top of 100.
		mock.ExpectBegin()
		expectBalanceLock(mock, userID, boxID, "120", 2)
		mock.ExpectExec("INSERT INTO account_activities").
			WithArgs(sqlmock.AnyArg(), userID, boxID, models.ActivityDeposit, amount,
				decimal.NewFromInt(140), "Deposit", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE balances").
			WithArgs(decimal.NewFromInt(140), sqlmock.AnyArg(), userID, boxID, 2).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		activityID, err := service.ApplyActivity(ctx, userID, boxID, models.ActivityDeposit, amount, "Deposit", nil)
		assert.NoError(t, err)
		assert.NotEmpty(t, activityID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict on every attempt surfaces after bounded retries", func(t *testing.T) {
		userID := "user1"
		boxID := "1"
		amount := decimal.NewFromInt(5)

		for i := 0; i < maxApplyAttempts; i++ {
			mock.ExpectBegin()
			expectBalanceLock(mock, userID, boxID, "100", 1)
			mock.ExpectExec("INSERT INTO account_activities").
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec("UPDATE balances").
				WillReturnResult(sqlmock.NewResult(1, 0))
			mock.ExpectRollback()
		}

		_, err := service.ApplyActivity(ctx, userID, boxID, models.ActivityDeposit, amount, "Deposit", nil)
		assert.ErrorIs(t, err, ErrTransactionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount is rejected without touching the database", func(t *testing.T) {
		_, err := service.ApplyActivity(ctx, "user1", "1", models.ActivityDeposit, decimal.Zero, "x", nil)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = service.ApplyActivity(ctx, "user1", "1", models.ActivityDeposit, decimal.NewFromInt(-10), "x", nil)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown activity type is rejected", func(t *testing.T) {
		_, err := service.ApplyActivity(ctx, "user1", "1", "transfer", decimal.NewFromInt(10), "x", nil)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestLedgerService_lockBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("existing balance row", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT balance, version FROM balances").
			WithArgs("user1", "1").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow("250.50", 7))

		balance, version, err := service.lockBalance(tx, "user1", "1")
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("250.50")))
		assert.Equal(t, 7, version)
	})
}

func TestLedgerService_updateBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("stale version is a conflict", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectExec("UPDATE balances").
			WithArgs(decimal.NewFromInt(40), sqlmock.AnyArg(), "user1", "1", 2).
			WillReturnResult(sqlmock.NewResult(1, 0))

		err := service.updateBalance(tx, "user1", "1", decimal.NewFromInt(40), 2)
		assert.ErrorIs(t, err, ErrTransactionConflict)
	})

	t.Run("successful update", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectExec("UPDATE balances").
			WithArgs(decimal.NewFromInt(40), sqlmock.AnyArg(), "user1", "1", 2).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := service.updateBalance(tx, "user1", "1", decimal.NewFromInt(40), 2)
		assert.NoError(t, err)
	})
}
