package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type AuditEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	ActivityID string    `json:"activity_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	BoxID      string    `json:"box_id,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Status     string    `json:"status"`
	Details    any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

// LogActivity records a committed ledger entry.
func (a *AuditLogger) LogActivity(activityID, userID, boxID, activityType string, amount, balance decimal.Decimal) {
	event := AuditEvent{
		Timestamp:  time.Now(),
		EventType:  "LEDGER_APPLY",
		ActivityID: activityID,
		UserID:     userID,
		BoxID:      boxID,
		Amount:     amount.String(),
		Status:     "SUCCESS",
		Details: map[string]string{
			"type":    activityType,
			"balance": balance.String(),
		},
	}
	a.log(event)
}

// LogReview records the review decision on a transfer request.
func (a *AuditLogger) LogReview(requestID, reviewerID, decision string) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "TRANSFER_REVIEW",
		RequestID: requestID,
		UserID:    reviewerID,
		Status:    "SUCCESS",
		Details:   map[string]string{"decision": decision},
	}
	a.log(event)
}

func (a *AuditLogger) LogError(reference, userID string, err error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		RequestID: reference,
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
