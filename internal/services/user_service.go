package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"

	"github.com/familyfund/backend/internal/config"
	"github.com/familyfund/backend/internal/models"
)

// UserService covers the admin-side user management: creating members,
// listing by role, and editing roles and box memberships.
type UserService struct {
	db        *sql.DB
	auth      *AuthService
	boxes     *config.BoxConfig
	validator *ValidationHelper
}

func NewUserService(db *sql.DB, auth *AuthService, boxes *config.BoxConfig) *UserService {
	return &UserService{
		db:        db,
		auth:      auth,
		boxes:     boxes,
		validator: NewValidationHelper(),
	}
}

// CreateUserRequest is the admin member-creation payload.
// @Description Admin user creation payload
type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Name     string   `json:"name" validate:"required,min=2"`
	Role     string   `json:"role" validate:"omitempty,oneof=admin moderator member"`
	Boxes    []string `json:"boxes"`
}

// UpdateRoleRequest changes a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin moderator member"`
}

// UpdateBoxesRequest changes a user's box memberships.
type UpdateBoxesRequest struct {
	Boxes []string `json:"boxes" validate:"required"`
}

// CreateUser creates a new user with box memberships
// @Summary Create a user (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User data"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/users [post]
func (s *UserService) CreateUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateUserRequest
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

	for _, boxID := range req.Boxes {
		if !s.boxes.IsValid(boxID) {
			SendErrorResponse(w, "Unknown box", http.StatusBadRequest, nil)
			return
		}
	}

	role := req.Role
	if role == "" {
		role = models.RoleMember
	}

	user, err := s.auth.createUser(req.Email, req.Password, req.Name, role, req.Boxes)
	if err != nil {
		log.Printf("[USERS] Creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Email Already Exists", http.StatusConflict, nil)
		return
	}

	log.Printf("[USERS] User %s created with role %s", user.ID, role)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// ListUsers returns users, optionally filtered by role
// @Summary List users (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role"
// @Success 200 {object} object{users=[]models.User,count=int}
// @Router /admin/users [get]
func (s *UserService) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && role != models.RoleAdmin && role != models.RoleModerator && role != models.RoleMember {
		SendErrorResponse(w, "Unknown role", http.StatusBadRequest, nil)
		return
	}

	query := `SELECT id, email, name, role, boxes, created_at, updated_at FROM users`
	args := []any{}
	if role != "" {
		query += " WHERE role = $1"
		args = append(args, role)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		var boxes pq.StringArray
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &boxes,
			&user.CreatedAt, &user.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
			return
		}
		user.Boxes = boxes
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"users": users,
		"count": len(users),
	})
}

// UpdateUserRole changes a user's role
// @Summary Update user role (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{userId}/role [put]
func (s *UserService) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req UpdateRoleRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.db.Exec(`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`,
		req.Role, time.Now(), userID)
	if err != nil {
		SendErrorResponse(w, "Failed to update role", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendServiceError(w, ErrNotFound)
		return
	}

	log.Printf("[USERS] Role of user %s set to %s", userID, req.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"user_id": userID, "role": req.Role})
}

// UpdateUserBoxes changes a user's box memberships
// @Summary Update user box memberships (admin)
// @Description Replaces the membership list. Balance rows for newly added boxes are seeded at zero; existing balances are never removed.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body UpdateBoxesRequest true "New box memberships"
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{userId}/boxes [put]
func (s *UserService) UpdateUserBoxes(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req UpdateBoxesRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	for _, boxID := range req.Boxes {
		if !s.boxes.IsValid(boxID) {
			SendErrorResponse(w, "Unknown box", http.StatusBadRequest, nil)
			return
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to update boxes", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE users SET boxes = $1, updated_at = $2 WHERE id = $3`,
		pq.Array(req.Boxes), time.Now(), userID)
	if err != nil {
		SendErrorResponse(w, "Failed to update boxes", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendServiceError(w, ErrNotFound)
		return
	}

	for _, boxID := range req.Boxes {
		_, err = tx.Exec(`
			INSERT INTO balances (user_id, box_id, balance, version, updated_at)
			VALUES ($1, $2, 0, 1, $3)
			ON CONFLICT (user_id, box_id) DO NOTHING`,
			userID, boxID, time.Now())
		if err != nil {
			SendErrorResponse(w, "Failed to update boxes", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to update boxes", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[USERS] Boxes of user %s set to %v", userID, req.Boxes)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"user_id": userID, "boxes": req.Boxes})
}
