package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/familyfund/backend/internal/config"
	"github.com/familyfund/backend/internal/models"
)

// ActivityService serves the read side of the ledger and the manual entry
// endpoint used by admins to record withdrawals and corrections. All writes
// go through the ledger service.
type ActivityService struct {
	db        *sql.DB
	ledger    *LedgerService
	boxes     *config.BoxConfig
	validator *ValidationHelper
}

func NewActivityService(db *sql.DB, ledger *LedgerService, boxes *config.BoxConfig) *ActivityService {
	return &ActivityService{
		db:        db,
		ledger:    ledger,
		boxes:     boxes,
		validator: NewValidationHelper(),
	}
}

// CreateActivityRequest is the manual ledger entry payload.
// @Description Manual account activity payload
type CreateActivityRequest struct {
	UserID      string `json:"userId" validate:"required,uuid4"`
	BoxID       string `json:"boxId" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=deposit withdrawal"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required,max=500"`
}

// ListActivities returns the caller's account activities
// @Summary List own account activities
// @Description Activities are returned newest first, optionally restricted to one box
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param boxId query string false "Filter by box ID"
// @Success 200 {object} object{activities=[]models.AccountActivity,count=int}
// @Router /activities [get]
func (s *ActivityService) ListActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	boxID := r.URL.Query().Get("boxId")

	query := `
		SELECT id, user_id, box_id, type, amount, balance, description, related_request_id, created_at
		FROM account_activities
		WHERE user_id = $1`
	args := []any{userID}
	if boxID != "" {
		query += " AND box_id = $2"
		args = append(args, boxID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch activities", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	activities, err := scanActivityRows(rows)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch activities", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"activities": activities,
		"count":      len(activities),
	})
}

// GetActivitySummary returns monthly deposit/withdrawal totals for the caller
// @Summary Monthly activity summary
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param boxId query string false "Filter by box ID"
// @Success 200 {array} models.ActivitySummary
// @Router /activities/summary [get]
func (s *ActivityService) GetActivitySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	boxID := r.URL.Query().Get("boxId")

	query := `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, type, COALESCE(SUM(amount), 0)
		FROM account_activities
		WHERE user_id = $1`
	args := []any{userID}
	if boxID != "" {
		query += " AND box_id = $2"
		args = append(args, boxID)
	}
	query += " GROUP BY 1, 2 ORDER BY 1 DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch activity summary", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	byMonth := map[string]*models.ActivitySummary{}
	order := []string{}
	for rows.Next() {
		var month, activityType string
		var total decimal.Decimal
		if err := rows.Scan(&month, &activityType, &total); err != nil {
			SendErrorResponse(w, "Failed to fetch activity summary", http.StatusInternalServerError, nil)
			return
		}
		entry, ok := byMonth[month]
		if !ok {
			entry = &models.ActivitySummary{Month: month}
			byMonth[month] = entry
			order = append(order, month)
		}
		if activityType == models.ActivityDeposit {
			entry.Deposits = total
		} else {
			entry.Withdrawals = total
		}
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to fetch activity summary", http.StatusInternalServerError, nil)
		return
	}

	summary := make([]models.ActivitySummary, 0, len(order))
	for _, month := range order {
		summary = append(summary, *byMonth[month])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetRecentActivities returns the latest activities across all users
// @Summary Recent account activities (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of activities to return (default 10, max 100)"
// @Param boxId query string false "Filter by box ID"
// @Success 200 {array} models.AccountActivity
// @Router /admin/activities/recent [get]
func (s *ActivityService) GetRecentActivities(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l >= 1 && l <= 100 {
			limit = l
		}
	}
	boxID := r.URL.Query().Get("boxId")

	query := `
		SELECT id, user_id, box_id, type, amount, balance, description, related_request_id, created_at
		FROM account_activities`
	args := []any{}
	if boxID != "" {
		query += " WHERE box_id = $1"
		args = append(args, boxID)
	}
	query += " ORDER BY created_at DESC LIMIT " + strconv.Itoa(limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch recent activities", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	activities, err := scanActivityRows(rows)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch recent activities", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(activities)
}

// CreateActivity records a manual deposit or withdrawal
// @Summary Record a manual account activity (admin)
// @Description Apply a deposit or withdrawal directly through the ledger
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateActivityRequest true "Activity data"
// @Success 201 {object} object{activity_id=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/activities [post]
func (s *ActivityService) CreateActivity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateActivityRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		SendErrorResponse(w, "Amount must be a positive number", http.StatusBadRequest, nil)
		return
	}
	if !s.boxes.IsValid(req.BoxID) {
		SendErrorResponse(w, "Unknown box", http.StatusBadRequest, nil)
		return
	}

	activityID, err := s.ledger.ApplyActivity(r.Context(), req.UserID, req.BoxID, req.Type, amount, req.Description, nil)
	if err != nil {
		log.Printf("[ACTIVITY] Manual %s for user %s failed: %v", req.Type, req.UserID, err)
		SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"activity_id": activityID})
}

func scanActivityRows(rows *sql.Rows) ([]models.AccountActivity, error) {
	activities := []models.AccountActivity{}
	for rows.Next() {
		var a models.AccountActivity
		if err := rows.Scan(&a.ID, &a.UserID, &a.BoxID, &a.Type, &a.Amount, &a.Balance,
			&a.Description, &a.RelatedRequestID, &a.CreatedAt); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
