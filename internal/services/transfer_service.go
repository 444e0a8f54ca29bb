package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/familyfund/backend/internal/audit"
	"github.com/familyfund/backend/internal/config"
	"github.com/familyfund/backend/internal/models"
	"github.com/familyfund/backend/internal/storage"
)

// TransferService handles transfer request submission, listing and review.
// Review and the resulting ledger credit run in one SQL transaction.
type TransferService struct {
	db        *sql.DB
	ledger    *LedgerService
	store     storage.ReceiptStore
	boxes     *config.BoxConfig
	validator *ValidationHelper
	audit     *audit.AuditLogger
}

const maxReceiptBytes = 10 << 20 // 10 MB

func NewTransferService(db *sql.DB, ledger *LedgerService, store storage.ReceiptStore, boxes *config.BoxConfig) *TransferService {
	return &TransferService{
		db:        db,
		ledger:    ledger,
		store:     store,
		boxes:     boxes,
		validator: NewValidationHelper(),
		audit:     audit.NewAuditLogger(),
	}
}

// ReviewRequest is the body of a review decision.
// @Description Transfer request review payload
type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected" example:"approved"`
	Notes    string `json:"notes" validate:"max=500"`
}

// CreateTransferRequest submits a new deposit proposal with a receipt image
// @Summary Submit a transfer request
// @Description Upload a receipt image and submit a deposit request for review
// @Tags transfers
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param amount formData string true "Requested amount"
// @Param boxId formData string true "Box ID"
// @Param notes formData string false "Free-text notes"
// @Param receipt formData file true "Receipt image"
// @Success 201 {object} models.TransferRequest
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /transfers [post]
func (s *TransferService) CreateTransferRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		SendErrorResponse(w, "Invalid multipart form", http.StatusBadRequest, nil)
		return
	}

	amount, err := decimal.NewFromString(r.FormValue("amount"))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		SendErrorResponse(w, "Amount must be a positive number", http.StatusBadRequest, nil)
		return
	}

	boxID := r.FormValue("boxId")
	if !s.boxes.IsValid(boxID) {
		SendErrorResponse(w, "Unknown box", http.StatusBadRequest, nil)
		return
	}

	notes := r.FormValue("notes")

	file, header, err := r.FormFile("receipt")
	if err != nil {
		SendErrorResponse(w, "Receipt image is required", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	// Receipt is persisted before the request row so a failed upload
	// leaves no dangling record.
	path := fmt.Sprintf("%s/%d_%s", userID, time.Now().UnixNano(), header.Filename)
	receiptURL, err := s.store.Upload(r.Context(), path, file)
	if err != nil {
		log.Printf("[TRANSFER] Receipt upload failed for user %s: %v", userID, err)
		s.audit.LogError("", userID, fmt.Errorf("%w: %v", ErrUploadFailure, err))
		SendServiceError(w, ErrUploadFailure)
		return
	}

	now := time.Now()
	request := models.TransferRequest{
		ID:         uuid.NewString(),
		UserID:     userID,
		BoxID:      boxID,
		Amount:     amount,
		ReceiptURL: receiptURL,
		Notes:      notes,
		Status:     models.TransferPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = s.db.Exec(`
		INSERT INTO transfer_requests (id, user_id, box_id, amount, receipt_url, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		request.ID, request.UserID, request.BoxID, request.Amount, request.ReceiptURL,
		request.Notes, request.Status, request.CreatedAt, request.UpdatedAt)
	if err != nil {
		log.Printf("[TRANSFER] Failed to store transfer request for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to create transfer request", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[TRANSFER] Request %s created by user %s, box %s, amount %s", request.ID, userID, boxID, amount)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(request)
}

// ListMyTransfers returns the caller's transfer requests
// @Summary List own transfer requests
// @Tags transfers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{requests=[]models.TransferRequest,count=int}
// @Router /transfers [get]
func (s *TransferService) ListMyTransfers(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, box_id, amount, receipt_url, notes, status, reviewed_by, reviewed_at, created_at, updated_at
		FROM transfer_requests
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transfer requests", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	requests, err := scanTransferRows(rows)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transfer requests", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"requests": requests,
		"count":    len(requests),
	})
}

// GetTransfer returns a single transfer request
// @Summary Get transfer request by ID
// @Tags transfers
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Success 200 {object} models.TransferRequest
// @Failure 404 {object} ErrorResponse
// @Router /transfers/{requestId} [get]
func (s *TransferService) GetTransfer(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	userID, _ := r.Context().Value("userID").(string)
	role, _ := r.Context().Value("userRole").(string)

	request, err := s.fetchTransfer(requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendServiceError(w, ErrNotFound)
		} else {
			SendErrorResponse(w, "Failed to fetch transfer request", http.StatusInternalServerError, nil)
		}
		return
	}

	// Members may only see their own requests.
	if request.UserID != userID && !models.IsReviewerRole(role) {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(request)
}

// ListTransfers returns transfer requests filtered by status and box
// @Summary List transfer requests (admin)
// @Description Filter requests by status and box. Pending requests are listed oldest first, reviewed ones newest first.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status (default pending)"
// @Param boxId query string false "Filter by box ID"
// @Success 200 {object} object{requests=[]models.TransferRequest,count=int}
// @Router /admin/transfers [get]
func (s *TransferService) ListTransfers(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.TransferPending
	}
	if status != models.TransferPending && status != models.TransferApproved && status != models.TransferRejected {
		SendErrorResponse(w, "Unknown status", http.StatusBadRequest, nil)
		return
	}
	boxID := r.URL.Query().Get("boxId")

	// Review queue is worked oldest-first; history views are newest-first.
	order := "DESC"
	if status == models.TransferPending {
		order = "ASC"
	}

	query := `
		SELECT id, user_id, box_id, amount, receipt_url, notes, status, reviewed_by, reviewed_at, created_at, updated_at
		FROM transfer_requests
		WHERE status = $1`
	args := []any{status}
	if boxID != "" {
		query += " AND box_id = $2"
		args = append(args, boxID)
	}
	query += " ORDER BY created_at " + order

	rows, err := s.db.Query(query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transfer requests", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	requests, err := scanTransferRows(rows)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transfer requests", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"requests": requests,
		"count":    len(requests),
	})
}

// ReviewTransfer approves or rejects a pending transfer request
// @Summary Review a transfer request
// @Description Approve or reject a pending request. Approval credits the requested box in the same transaction.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param request body ReviewRequest true "Review decision"
// @Success 200 {object} object{request_id=string,status=string}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/transfers/{requestId}/review [post]
func (s *TransferService) ReviewTransfer(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	reviewerID, ok := r.Context().Value("userID").(string)
	if !ok || reviewerID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ReviewRequest
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

	if err := s.review(requestID, req.Decision, reviewerID, req.Notes); err != nil {
		log.Printf("[TRANSFER] Review of request %s by %s failed: %v", requestID, reviewerID, err)
		SendServiceError(w, err)
		return
	}

	s.audit.LogReview(requestID, reviewerID, req.Decision)
	log.Printf("[TRANSFER] Request %s %s by %s", requestID, req.Decision, reviewerID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"request_id": requestID,
		"status":     req.Decision,
	})
}

// review performs the pending -> approved/rejected transition. The status
// write and, on approval, the ledger credit commit in one transaction, so a
// request can never end up approved without its matching activity. Version
// conflicts on the balance row are retried a bounded number of times.
func (s *TransferService) review(requestID, decision, reviewerID, notes string) error {
	var lastErr error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(applyBackoff * time.Duration(attempt))
		}

		err := s.reviewOnce(requestID, decision, reviewerID, notes)
		if err != ErrTransactionConflict {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *TransferService) reviewOnce(requestID, decision, reviewerID, notes string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID, boxID, status string
	var amount decimal.Decimal
	err = tx.QueryRow(`
		SELECT user_id, box_id, amount, status FROM transfer_requests
		WHERE id = $1
		FOR UPDATE`, requestID).Scan(&userID, &boxID, &amount, &status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if status != models.TransferPending {
		return ErrInvalidState
	}

	now := time.Now()
	_, err = tx.Exec(`
		UPDATE transfer_requests
		SET status = $1, reviewed_by = $2, reviewed_at = $3, notes = $4, updated_at = $3
		WHERE id = $5`,
		decision, reviewerID, now, notes, requestID)
	if err != nil {
		return err
	}

	if decision == models.TransferApproved {
		_, err = s.ledger.ApplyActivityTx(tx, userID, boxID, models.ActivityDeposit, amount,
			"Transfer request approved", &requestID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *TransferService) fetchTransfer(requestID string) (*models.TransferRequest, error) {
	var req models.TransferRequest
	err := s.db.QueryRow(`
		SELECT id, user_id, box_id, amount, receipt_url, notes, status, reviewed_by, reviewed_at, created_at, updated_at
		FROM transfer_requests
		WHERE id = $1`, requestID).
		Scan(&req.ID, &req.UserID, &req.BoxID, &req.Amount, &req.ReceiptURL, &req.Notes,
			&req.Status, &req.ReviewedBy, &req.ReviewedAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func scanTransferRows(rows *sql.Rows) ([]models.TransferRequest, error) {
	requests := []models.TransferRequest{}
	for rows.Next() {
		var req models.TransferRequest
		if err := rows.Scan(&req.ID, &req.UserID, &req.BoxID, &req.Amount, &req.ReceiptURL,
			&req.Notes, &req.Status, &req.ReviewedBy, &req.ReviewedAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
